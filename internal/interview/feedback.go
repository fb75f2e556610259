package interview

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/snarg/mockprep/internal/database"
)

// Report is the feedback page for one interview.
type Report struct {
	Interview     *database.Interview   `json:"interview"`
	Answers       []database.UserAnswer `json:"answers"`
	OverallRating string                `json:"overall_rating"`
	HasFeedback   bool                  `json:"has_feedback"`
}

// Feedback collects the user's saved answers to an owned interview.
func (s *Service) Feedback(ctx context.Context, userID, interviewID string) (*Report, error) {
	iv, err := s.GetInterview(ctx, userID, interviewID)
	if err != nil {
		return nil, err
	}
	answers, err := s.store.ListAnswers(ctx, userID, interviewID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	return BuildReport(iv, answers), nil
}

// BuildReport assembles a report from an interview and its saved answers.
// Ownership is the caller's concern.
func BuildReport(iv *database.Interview, answers []database.UserAnswer) *Report {
	if answers == nil {
		answers = []database.UserAnswer{}
	}
	return &Report{
		Interview:     iv,
		Answers:       answers,
		OverallRating: OverallRating(answers),
		HasFeedback:   len(answers) > 0,
	}
}

// OverallRating is the mean rating rounded half away from zero to one
// decimal, "0.0" when there are no answers.
func OverallRating(answers []database.UserAnswer) string {
	if len(answers) == 0 {
		return "0.0"
	}
	sum := 0
	for _, a := range answers {
		sum += a.Rating
	}
	mean := float64(sum) / float64(len(answers))
	return fmt.Sprintf("%.1f", math.Round(mean*10)/10)
}

// SyncUser records the signed-in user's profile. New users get "Anonymous"
// and "N/A" when the provider has no name or email; existing users only get
// their name and image refreshed. Reports whether the user was created.
func (s *Service) SyncUser(ctx context.Context, p Profile) (*database.User, bool, error) {
	if strings.TrimSpace(p.ID) == "" {
		return nil, false, invalid("id", "is required")
	}
	u := &database.User{
		ID:       p.ID,
		Name:     firstNonEmpty(p.FullName, p.FirstName, "Anonymous"),
		Email:    firstNonEmpty(p.Email, "N/A"),
		ImageURL: p.ImageURL,
	}
	created, err := s.store.UpsertUser(ctx, u)
	if err != nil {
		return nil, false, fmt.Errorf("upsert user: %w", err)
	}
	if created {
		s.log.Info().Str("user_id", u.ID).Msg("user created")
	}
	return u, created, nil
}

// GetUser returns the stored profile of the signed-in user.
func (s *Service) GetUser(ctx context.Context, userID string) (*database.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
