// Package httpx holds the JSON and error-mapping helpers shared by the
// feature handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/examprep/backend/internal/models"
	"github.com/examprep/backend/internal/store"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Decode reads a JSON body into v and runs its validate tags. The error
// wraps models.ErrInvalidInput.
func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body", models.ErrInvalidInput)
	}
	return Validate(v)
}

func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", models.ErrInvalidInput, strings.Join(fields, "; "))
		}
		return fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	return nil
}

// Status maps a service error to its HTTP status.
func Status(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrForbidden), errors.Is(err, models.ErrAccessDenied), errors.Is(err, models.ErrNotEligible):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrTestInactive), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrDailyAlreadyStarted), errors.Is(err, models.ErrAssignmentAlreadyActive),
		errors.Is(err, models.ErrAssignmentCompleted), errors.Is(err, models.ErrAlreadyCompleted),
		errors.Is(err, models.ErrAttemptInProgress):
		return http.StatusConflict
	case errors.Is(err, models.ErrNotYetCompleted):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrTransient):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// WriteError writes {"error": ...}. Unmapped errors are logged and hidden
// behind a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := Status(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "component", "http", "path", r.URL.Path, "error", err)
		msg = "Internal server error"
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	WriteJSON(w, status, models.ErrorResponse{Error: msg})
}
