package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/apperr"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/evaluation"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/service"
)

const maxPatchBytes = 1 << 20

type EvaluationHandler struct {
	svc *service.EvaluationService
}

func NewEvaluationHandler(svc *service.EvaluationService) *EvaluationHandler {
	return &EvaluationHandler{svc: svc}
}

func (h *EvaluationHandler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.ListAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeList(w, views)
}

func (h *EvaluationHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Get(r.Context(), chi.URLParam(r, "projectId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, "", view)
}

func (h *EvaluationHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPatchBytes))
	if err != nil {
		if tooLarge(err) {
			writeError(w, apperr.Validation("Request body too large"))
			return
		}
		writeError(w, apperr.Validation("Failed to read request body"))
		return
	}

	patch, err := evaluation.ParsePatch(body)
	if err != nil {
		writeError(w, err)
		return
	}

	view, err := h.svc.Upsert(r.Context(), chi.URLParam(r, "projectId"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, "Evaluation saved successfully", view)
}
