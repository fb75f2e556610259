package interview

import (
	"strings"
	"unicode/utf8"
)

const (
	maxPositionLen    = 100
	minDescriptionLen = 10
)

// Input is the user-supplied interview definition.
type Input struct {
	Position    string `json:"position"`
	Description string `json:"description"`
	Experience  int    `json:"experience"`
	TechStack   string `json:"tech_stack"`
}

func (in Input) trimmed() Input {
	in.Position = strings.TrimSpace(in.Position)
	in.Description = strings.TrimSpace(in.Description)
	in.TechStack = strings.TrimSpace(in.TechStack)
	return in
}

// Validate applies the form rules. Lengths count characters, not bytes.
func (in Input) Validate() error {
	in = in.trimmed()
	switch n := utf8.RuneCountInString(in.Position); {
	case n == 0:
		return invalid("position", "is required")
	case n > maxPositionLen:
		return invalid("position", "must be at most %d characters", maxPositionLen)
	}
	if utf8.RuneCountInString(in.Description) < minDescriptionLen {
		return invalid("description", "must be at least %d characters", minDescriptionLen)
	}
	if in.Experience < 0 {
		return invalid("experience", "must not be negative")
	}
	if in.TechStack == "" {
		return invalid("tech_stack", "is required")
	}
	return nil
}

// AnswerInput is an answer submitted for scoring. CorrectAnswer is
// informational; the interview's stored answer is what the model sees.
type AnswerInput struct {
	Question      string `json:"question"`
	CorrectAnswer string `json:"correct_answer,omitempty"`
	UserAnswer    string `json:"user_answer"`
}

// SaveAnswerInput is a scored answer to persist.
type SaveAnswerInput struct {
	Question   string `json:"question"`
	UserAnswer string `json:"user_answer"`
	Feedback   string `json:"feedback"`
	Rating     int    `json:"rating"`
}

// Profile is the identity provider's view of the signed-in user.
type Profile struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	ImageURL  string `json:"image_url"`
}

// ListOptions pages and filters the interview list.
type ListOptions struct {
	Search string
	Limit  int
	Offset int
}
