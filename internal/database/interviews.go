package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Interview is a user's interview definition and its generated questions.
type Interview struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Position    string          `json:"position"`
	Description string          `json:"description"`
	Experience  int             `json:"experience"`
	TechStack   string          `json:"tech_stack"`
	Questions   json.RawMessage `json:"questions"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   *time.Time      `json:"updated_at,omitempty"`
}

// InterviewFilter specifies filters for listing interviews.
type InterviewFilter struct {
	UserID string
	Search string // case-insensitive match on position or tech stack
	Limit  int
	Offset int
}

const interviewColumns = `id, user_id, position, description, experience, tech_stack, questions, created_at, updated_at`

func scanInterview(row interface{ Scan(...any) error }, iv *Interview) error {
	return row.Scan(
		&iv.ID, &iv.UserID, &iv.Position, &iv.Description, &iv.Experience,
		&iv.TechStack, &iv.Questions, &iv.CreatedAt, &iv.UpdatedAt,
	)
}

// InsertInterview stores a new interview. ID and CreatedAt must be set.
func (db *DB) InsertInterview(ctx context.Context, iv *Interview) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO interviews (id, user_id, position, description, experience, tech_stack, questions, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, iv.ID, iv.UserID, iv.Position, iv.Description, iv.Experience, iv.TechStack, iv.Questions, iv.CreatedAt)
	return err
}

// UpdateInterview overwrites the definition and questions of an interview
// owned by iv.UserID and sets updated_at. Returns ErrNotFound when no owned row matches.
func (db *DB) UpdateInterview(ctx context.Context, iv *Interview) error {
	now := time.Now().UTC()
	tag, err := db.Pool.Exec(ctx, `
		UPDATE interviews SET
			position    = $3,
			description = $4,
			experience  = $5,
			tech_stack  = $6,
			questions   = $7,
			updated_at  = $8
		WHERE id = $1 AND user_id = $2
	`, iv.ID, iv.UserID, iv.Position, iv.Description, iv.Experience, iv.TechStack, iv.Questions, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	iv.UpdatedAt = &now
	return nil
}

// GetInterview returns the interview with the given id regardless of owner.
func (db *DB) GetInterview(ctx context.Context, id string) (*Interview, error) {
	var iv Interview
	row := db.Pool.QueryRow(ctx, `SELECT `+interviewColumns+` FROM interviews WHERE id = $1`, id)
	if err := scanInterview(row, &iv); err != nil {
		return nil, notFound(err)
	}
	return &iv, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// ListInterviews returns interviews matching the filter, newest first, and the total count.
func (db *DB) ListInterviews(ctx context.Context, filter InterviewFilter) ([]Interview, int, error) {
	qb := newQueryBuilder()
	if filter.UserID != "" {
		qb.Add("user_id = %s", filter.UserID)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		qb.Add(`(position ILIKE %s ESCAPE '\' OR tech_stack ILIKE %s ESCAPE '\')`, "%"+escapeLike(s)+"%")
	}
	whereClause := qb.WhereClause()

	var total int
	if err := db.Pool.QueryRow(ctx, "SELECT count(*) FROM interviews"+whereClause, qb.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM interviews %s
		ORDER BY created_at DESC
		LIMIT %d OFFSET %d
	`, interviewColumns, whereClause, limit, filter.Offset), qb.Args()...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Interview
	for rows.Next() {
		var iv Interview
		if err := scanInterview(rows, &iv); err != nil {
			return nil, 0, err
		}
		out = append(out, iv)
	}
	if out == nil {
		out = []Interview{}
	}
	return out, total, rows.Err()
}

// DeleteInterview removes an interview owned by userID together with that
// user's answers referencing it, in one transaction. Returns the number of
// answers removed, or ErrNotFound when no owned interview matches.
func (db *DB) DeleteInterview(ctx context.Context, id, userID string) (int64, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	answers, err := tx.Exec(ctx, `DELETE FROM user_answers WHERE mock_id_ref = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return 0, fmt.Errorf("delete answers: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM interviews WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return 0, fmt.Errorf("delete interview: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return answers.RowsAffected(), nil
}
