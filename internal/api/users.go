package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/snarg/mockprep/internal/database"
	"github.com/snarg/mockprep/internal/interview"
)

type UsersHandler struct {
	svc InterviewService
}

func NewUsersHandler(svc InterviewService) *UsersHandler {
	return &UsersHandler{svc: svc}
}

// SyncResponse reports the stored profile and whether it was just created.
type SyncResponse struct {
	User    *database.User `json:"user"`
	Created bool           `json:"created"`
}

// SyncMe handles PUT /users/me. The body is the identity provider's profile;
// its id is ignored in favour of the authenticated user.
func (h *UsersHandler) SyncMe(w http.ResponseWriter, r *http.Request) {
	var p interview.Profile
	if err := DecodeJSON(r, &p); err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, ErrInvalidBody, "invalid request body", err.Error())
		return
	}
	p.ID = UserID(r.Context())

	u, created, err := h.svc.SyncUser(r.Context(), p)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	WriteJSON(w, status, SyncResponse{User: u, Created: created})
}

// GetMe handles GET /users/me.
func (h *UsersHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.GetUser(r.Context(), UserID(r.Context()))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, u)
}

func (h *UsersHandler) Routes(r chi.Router) {
	r.Get("/users/me", h.GetMe)
	r.Put("/users/me", h.SyncMe)
}
