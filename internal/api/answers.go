package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/snarg/mockprep/internal/interview"
)

type AnswersHandler struct {
	svc          InterviewService
	maxRecording int64
}

// NewAnswersHandler creates the answer handlers. maxRecording caps the size
// of uploaded recordings in bytes.
func NewAnswersHandler(svc InterviewService, maxRecording int64) *AnswersHandler {
	return &AnswersHandler{svc: svc, maxRecording: maxRecording}
}

// Evaluate handles POST /interviews/{id}/evaluations. Nothing is stored.
func (h *AnswersHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var in interview.AnswerInput
	if err := DecodeJSON(r, &in); err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, ErrInvalidBody, "invalid request body", err.Error())
		return
	}
	ev, err := h.svc.EvaluateAnswer(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, ev)
}

// Save handles POST /interviews/{id}/answers.
func (h *AnswersHandler) Save(w http.ResponseWriter, r *http.Request) {
	var in interview.SaveAnswerInput
	if err := DecodeJSON(r, &in); err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, ErrInvalidBody, "invalid request body", err.Error())
		return
	}
	a, err := h.svc.SaveAnswer(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, a)
}

// Feedback handles GET /interviews/{id}/feedback.
func (h *AnswersHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Feedback(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

// UploadRecording handles PUT /answers/{id}/recording with a multipart
// "recording" file field.
func (h *AnswersHandler) UploadRecording(w http.ResponseWriter, r *http.Request) {
	// multipart framing adds a little on top of the file itself
	r.Body = http.MaxBytesReader(w, r.Body, h.maxRecording+1<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteErrorWithCode(w, http.StatusRequestEntityTooLarge, ErrTooLarge,
				"recording exceeds "+strconv.FormatInt(h.maxRecording>>20, 10)+" MB")
			return
		}
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("recording")
	if err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrBadRequest, "missing recording file field")
		return
	}
	defer file.Close()
	if header.Size > h.maxRecording {
		WriteErrorWithCode(w, http.StatusRequestEntityTooLarge, ErrTooLarge,
			"recording exceeds "+strconv.FormatInt(h.maxRecording>>20, 10)+" MB")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "failed to read recording")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	a, err := h.svc.AttachRecording(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), data, contentType)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, a)
}

// DownloadRecording handles GET /answers/{id}/recording. Object storage
// backends redirect to a presigned URL; local storage streams the file.
func (h *AnswersHandler) DownloadRecording(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.OpenRecording(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	if rec.URL != "" {
		http.Redirect(w, r, rec.URL, http.StatusFound)
		return
	}
	defer rec.Body.Close()

	w.Header().Set("Content-Type", rec.ContentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rec.Body); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("recording stream interrupted")
	}
}

// Routes registers answer routes on the given router.
func (h *AnswersHandler) Routes(r chi.Router) {
	r.Post("/interviews/{id}/evaluations", h.Evaluate)
	r.Post("/interviews/{id}/answers", h.Save)
	r.Get("/interviews/{id}/feedback", h.Feedback)
	r.Put("/answers/{id}/recording", h.UploadRecording)
	r.Get("/answers/{id}/recording", h.DownloadRecording)
}
