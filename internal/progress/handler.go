package progress

import (
	"errors"
	"net/http"

	"github.com/examprep/backend/internal/httpx"
	"github.com/examprep/backend/internal/middleware"
	"github.com/examprep/backend/internal/models"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		httpx.WriteJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	subjects, err := h.service.ListSubjectProgress(r.Context(), id.UserID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, models.ProgressResponse{Subjects: subjects})
}

// Reconcile is the completion-replay webhook. It applies a completed
// attempt that progress has not seen yet; redeliveries answer 200.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req models.ApplyCompletionRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	p, err := h.service.ApplyCompletedAttempt(r.Context(), req.AttemptID)
	if errors.Is(err, models.ErrAlreadyApplied) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, p)
}
