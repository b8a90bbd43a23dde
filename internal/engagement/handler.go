package engagement

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

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

type assignmentConflict struct {
	Error      string                   `json:"error"`
	Assignment *models.WeeklyAssignment `json:"assignment"`
}

func identity(w http.ResponseWriter, r *http.Request) (models.Identity, bool) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		httpx.WriteJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
	}
	return id, ok
}

// ── Streak & Daily Test ─────────────────────────────────

func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	st, err := h.service.GetState(r.Context(), id.UserID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, st)
}

func (h *Handler) DailyTest(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	resp, err := h.service.PeekDailyTest(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// ── Weekly Assignments ──────────────────────────────────

func (h *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req models.CreateAssignmentRequest
	if r.ContentLength != 0 {
		if err := httpx.Decode(r, &req); err != nil {
			httpx.WriteError(w, r, err)
			return
		}
	}

	a, err := h.service.CreateAssignment(r.Context(), id, req.TestID)
	if errors.Is(err, models.ErrAssignmentAlreadyActive) {
		httpx.WriteJSON(w, http.StatusConflict, assignmentConflict{Error: err.Error(), Assignment: a})
		return
	}
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, a)
}

func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	list, err := h.service.ListActiveAssignments(r.Context(), id.UserID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, models.AssignmentsResponse{Assignments: list})
}

func (h *Handler) CompleteAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	a, err := h.service.MarkAssignmentCompleted(r.Context(), id.UserID, mux.Vars(r)["id"])
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, a)
}
