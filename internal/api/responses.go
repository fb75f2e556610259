package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/hlog"

	"github.com/snarg/mockprep/internal/interview"
)

// Machine-readable error codes returned in ErrorResponse.Code.
const (
	ErrBadRequest       = "bad_request"
	ErrInvalidBody      = "invalid_body"
	ErrValidation       = "validation_failed"
	ErrUnauthorized     = "unauthorized"
	ErrMissingUser      = "missing_user"
	ErrNotFound         = "not_found"
	ErrAlreadyAnswered  = "already_answered"
	ErrGenerationFailed = "generation_failed"
	ErrTooLarge         = "payload_too_large"
	ErrUnavailable      = "unavailable"
	ErrInternal         = "internal_error"
)

// generationFailedMessage is all clients learn about a failed generation.
const generationFailedMessage = "Something went wrong, please try again later."

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Field  string `json:"field,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

// WriteErrorWithCode writes a JSON error response with a machine-readable code.
func WriteErrorWithCode(w http.ResponseWriter, status int, code, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

// WriteErrorDetail writes a JSON error response with a code and detail.
func WriteErrorDetail(w http.ResponseWriter, status int, code, msg, detail string) {
	WriteJSON(w, status, ErrorResponse{Error: msg, Code: code, Detail: detail})
}

// WriteServiceError maps an interview service error onto a response.
// Generation failures are logged in full but reported generically.
func WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *interview.ValidationError
	var ge *interview.GenerationError
	switch {
	case errors.As(err, &ve):
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: ve.Error(), Code: ErrValidation, Field: ve.Field})
	case errors.Is(err, interview.ErrNotFound):
		WriteErrorWithCode(w, http.StatusNotFound, ErrNotFound, "not found")
	case errors.Is(err, interview.ErrAlreadyAnswered):
		WriteErrorWithCode(w, http.StatusConflict, ErrAlreadyAnswered, "this question has already been answered")
	case errors.Is(err, interview.ErrRecordingsDisabled):
		WriteErrorWithCode(w, http.StatusServiceUnavailable, ErrUnavailable, err.Error())
	case errors.As(err, &ge):
		hlog.FromRequest(r).Error().Err(err).Str("stage", ge.Stage).Msg("generation failed")
		WriteErrorWithCode(w, http.StatusBadGateway, ErrGenerationFailed, generationFailedMessage)
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		WriteErrorWithCode(w, http.StatusInternalServerError, ErrInternal, "internal server error")
	}
}

// Pagination holds parsed pagination parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const maxPageSize = 200

// ParsePagination extracts limit and offset from query params with defaults.
// Returns an error if values are present but invalid.
func ParsePagination(r *http.Request) (Pagination, error) {
	p := Pagination{Limit: 50, Offset: 0}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("invalid limit %q: must be an integer", v)
		}
		if n < 1 || n > maxPageSize {
			return p, fmt.Errorf("invalid limit %d: must be between 1 and %d", n, maxPageSize)
		}
		p.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("invalid offset %q: must be an integer", v)
		}
		if n < 0 {
			return p, fmt.Errorf("invalid offset %d: must be >= 0", n)
		}
		p.Offset = n
	}
	return p, nil
}

// QueryInt extracts an integer query parameter. Returns 0, false if missing or invalid.
func QueryInt(r *http.Request, name string) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// QueryString extracts a non-empty string query parameter.
func QueryString(r *http.Request, name string) (string, bool) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return "", false
	}
	return v, true
}

// QueryStringList extracts a comma-separated list of strings from a query param.
func QueryStringList(r *http.Request, name string) []string {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// DecodeJSON reads and decodes a JSON request body into v.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return fmt.Errorf("missing request body")
	}
	return json.NewDecoder(r.Body).Decode(v)
}
