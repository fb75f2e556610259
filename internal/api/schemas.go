package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/snarg/mockprep/internal/normalize"
)

// SchemasHandler serves the JSON Schemas model replies are validated against,
// and the OpenAPI document.
type SchemasHandler struct {
	questionCount func() int
	openapi       []byte
}

func NewSchemasHandler(questionCount func() int, openapi []byte) *SchemasHandler {
	return &SchemasHandler{questionCount: questionCount, openapi: openapi}
}

// GetSchema handles GET /schemas/{name}. For the question set, ?count=
// overrides the configured number of questions.
func (h *SchemasHandler) GetSchema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	n := 0
	if name == normalize.QuestionSetSchema {
		if h.questionCount != nil {
			n = h.questionCount()
		}
		if v, ok := QueryInt(r, "count"); ok {
			if v < 0 {
				WriteErrorWithCode(w, http.StatusBadRequest, ErrBadRequest, "count must be >= 0")
				return
			}
			n = v
		}
	}

	doc, err := normalize.Schema(name, n)
	if err != nil {
		WriteErrorWithCode(w, http.StatusNotFound, ErrNotFound, err.Error())
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	WriteJSON(w, http.StatusOK, doc)
}

// OpenAPI handles GET /openapi.yaml.
func (h *SchemasHandler) OpenAPI(w http.ResponseWriter, r *http.Request) {
	if len(h.openapi) == 0 {
		WriteErrorWithCode(w, http.StatusNotFound, ErrNotFound, "openapi document not bundled")
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	w.Write(h.openapi)
}

func (h *SchemasHandler) Routes(r chi.Router) {
	r.Get("/schemas/{name}", h.GetSchema)
	r.Get("/openapi.yaml", h.OpenAPI)
}
