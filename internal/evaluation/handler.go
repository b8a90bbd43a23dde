package evaluation

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/examprep/backend/internal/httpx"
	"github.com/examprep/backend/internal/middleware"
	"github.com/examprep/backend/internal/models"
)

// SecretHeader carries the shared secret on inbound evaluation webhooks.
const SecretHeader = "X-Webhook-Secret"

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Record is the webhook endpoint. Redeliveries of an already recorded
// evaluation answer 200 so the sender stops retrying.
func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	var req models.RecordEvaluationRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	e, err := h.service.RecordEvaluation(r.Context(), req)
	if errors.Is(err, models.ErrDuplicateEvaluation) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, e)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		httpx.WriteJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}
	e, err := h.service.GetEvaluation(r.Context(), id.UserID, mux.Vars(r)["id"])
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, e)
}
