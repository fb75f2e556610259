package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/snarg/mockprep/internal/database"
	"github.com/snarg/mockprep/internal/interview"
)

// InterviewService is the domain surface the handlers need.
// *interview.Service implements it.
type InterviewService interface {
	CreateInterview(ctx context.Context, userID string, in interview.Input) (*database.Interview, error)
	UpdateInterview(ctx context.Context, userID, id string, in interview.Input) (*database.Interview, error)
	GetInterview(ctx context.Context, userID, id string) (*database.Interview, error)
	ListInterviews(ctx context.Context, userID string, opts interview.ListOptions) ([]database.Interview, int, error)
	DeleteInterview(ctx context.Context, userID, id string) error

	EvaluateAnswer(ctx context.Context, userID, interviewID string, in interview.AnswerInput) (*interview.Evaluation, error)
	SaveAnswer(ctx context.Context, userID, interviewID string, in interview.SaveAnswerInput) (*database.UserAnswer, error)
	AttachRecording(ctx context.Context, userID, answerID string, data []byte, contentType string) (*database.UserAnswer, error)
	OpenRecording(ctx context.Context, userID, answerID string) (*interview.Recording, error)
	Feedback(ctx context.Context, userID, interviewID string) (*interview.Report, error)

	SyncUser(ctx context.Context, p interview.Profile) (*database.User, bool, error)
	GetUser(ctx context.Context, userID string) (*database.User, error)
	QuestionCount() int
}

type InterviewsHandler struct {
	svc InterviewService
}

func NewInterviewsHandler(svc InterviewService) *InterviewsHandler {
	return &InterviewsHandler{svc: svc}
}

// InterviewList is the list response body.
type InterviewList struct {
	Interviews []database.Interview `json:"interviews"`
	Total      int                  `json:"total"`
	Limit      int                  `json:"limit"`
	Offset     int                  `json:"offset"`
}

// ListInterviews handles GET /interviews?search=&limit=&offset=.
func (h *InterviewsHandler) ListInterviews(w http.ResponseWriter, r *http.Request) {
	p, err := ParsePagination(r)
	if err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrBadRequest, err.Error())
		return
	}
	search, _ := QueryString(r, "search")

	list, total, err := h.svc.ListInterviews(r.Context(), UserID(r.Context()), interview.ListOptions{
		Search: search,
		Limit:  p.Limit,
		Offset: p.Offset,
	})
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []database.Interview{}
	}
	WriteJSON(w, http.StatusOK, InterviewList{Interviews: list, Total: total, Limit: p.Limit, Offset: p.Offset})
}

// CreateInterview handles POST /interviews. The question set is generated
// synchronously; the response carries the stored interview.
func (h *InterviewsHandler) CreateInterview(w http.ResponseWriter, r *http.Request) {
	var in interview.Input
	if err := DecodeJSON(r, &in); err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, ErrInvalidBody, "invalid request body", err.Error())
		return
	}
	iv, err := h.svc.CreateInterview(r.Context(), UserID(r.Context()), in)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/interviews/"+iv.ID)
	WriteJSON(w, http.StatusCreated, iv)
}

func (h *InterviewsHandler) GetInterview(w http.ResponseWriter, r *http.Request) {
	iv, err := h.svc.GetInterview(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, iv)
}

// UpdateInterview handles PUT /interviews/{id}; questions are regenerated.
func (h *InterviewsHandler) UpdateInterview(w http.ResponseWriter, r *http.Request) {
	var in interview.Input
	if err := DecodeJSON(r, &in); err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, ErrInvalidBody, "invalid request body", err.Error())
		return
	}
	iv, err := h.svc.UpdateInterview(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, iv)
}

func (h *InterviewsHandler) DeleteInterview(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteInterview(r.Context(), UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Routes registers interview routes on the given router.
func (h *InterviewsHandler) Routes(r chi.Router) {
	r.Get("/interviews", h.ListInterviews)
	r.Post("/interviews", h.CreateInterview)
	r.Get("/interviews/{id}", h.GetInterview)
	r.Put("/interviews/{id}", h.UpdateInterview)
	r.Delete("/interviews/{id}", h.DeleteInterview)
}
