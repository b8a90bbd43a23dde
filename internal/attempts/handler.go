package attempts

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

type dailyConflict struct {
	Error   string                       `json:"error"`
	Attempt *models.StartAttemptResponse `json:"attempt"`
}

func identity(w http.ResponseWriter, r *http.Request) (models.Identity, bool) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		httpx.WriteJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
	}
	return id, ok
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req models.StartAttemptRequest
	if r.ContentLength != 0 {
		if err := httpx.Decode(r, &req); err != nil {
			httpx.WriteError(w, r, err)
			return
		}
	}

	resp, err := h.service.StartAttempt(r.Context(), id, mux.Vars(r)["id"], req.IsDaily)
	if errors.Is(err, models.ErrDailyAlreadyStarted) {
		httpx.WriteJSON(w, http.StatusConflict, dailyConflict{Error: err.Error(), Attempt: resp})
		return
	}
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	status := http.StatusCreated
	if resp.Resumed {
		status = http.StatusOK
	}
	httpx.WriteJSON(w, status, resp)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	a, err := h.service.GetAttempt(r.Context(), id.UserID, mux.Vars(r)["id"])
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) RecordAnswer(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req models.RecordAnswerRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	if err := h.service.RecordAnswer(r.Context(), id.UserID, mux.Vars(r)["id"], req.QuestionID, req.Answer); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req models.SubmitAttemptRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	result, err := h.service.SubmitAttempt(r.Context(), id.UserID, mux.Vars(r)["id"], req.Answers, req.TimeTakenSeconds)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}
