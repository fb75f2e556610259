package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// UserAnswer is a scored answer to one interview question.
type UserAnswer struct {
	ID           string     `json:"id"`
	MockIDRef    string     `json:"mock_id_ref"`
	Question     string     `json:"question"`
	CorrectAns   string     `json:"correct_ans"`
	UserAns      string     `json:"user_ans"`
	Feedback     string     `json:"feedback"`
	Rating       int        `json:"rating"`
	UserID       string     `json:"user_id"`
	RecordingKey *string    `json:"recording_key,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

const answerColumns = `id, mock_id_ref, question, correct_ans, user_ans, feedback, rating, user_id, recording_key, created_at, updated_at`

func scanAnswer(row interface{ Scan(...any) error }, a *UserAnswer) error {
	return row.Scan(
		&a.ID, &a.MockIDRef, &a.Question, &a.CorrectAns, &a.UserAns,
		&a.Feedback, &a.Rating, &a.UserID, &a.RecordingKey, &a.CreatedAt, &a.UpdatedAt,
	)
}

// InsertAnswerIfAbsent stores a only if the user has no answer to the same
// question of the same interview. The check and write are a single statement.
// Returns false without writing when an answer already exists.
func (db *DB) InsertAnswerIfAbsent(ctx context.Context, a *UserAnswer) (bool, error) {
	var createdAt, updatedAt time.Time
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO user_answers (id, mock_id_ref, question, correct_ans, user_ans, feedback, rating, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, mock_id_ref, question) DO NOTHING
		RETURNING created_at, updated_at
	`, a.ID, a.MockIDRef, a.Question, a.CorrectAns, a.UserAns, a.Feedback, a.Rating, a.UserID).
		Scan(&createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	a.CreatedAt = createdAt
	a.UpdatedAt = &updatedAt
	return true, nil
}

// GetAnswer returns a single answer regardless of owner.
func (db *DB) GetAnswer(ctx context.Context, id string) (*UserAnswer, error) {
	var a UserAnswer
	row := db.Pool.QueryRow(ctx, `SELECT `+answerColumns+` FROM user_answers WHERE id = $1`, id)
	if err := scanAnswer(row, &a); err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// ListAnswers returns a user's answers for one interview in the order they were saved.
func (db *DB) ListAnswers(ctx context.Context, userID, interviewID string) ([]UserAnswer, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+answerColumns+` FROM user_answers
		WHERE user_id = $1 AND mock_id_ref = $2
		ORDER BY created_at, id
	`, userID, interviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UserAnswer
	for rows.Next() {
		var a UserAnswer
		if err := scanAnswer(rows, &a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if out == nil {
		out = []UserAnswer{}
	}
	return out, rows.Err()
}

// SetAnswerRecording records the storage key of an answer's audio.
func (db *DB) SetAnswerRecording(ctx context.Context, id, userID, key string) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE user_answers SET recording_key = $3, updated_at = now()
		WHERE id = $1 AND user_id = $2
	`, id, userID, key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
