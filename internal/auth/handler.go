package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/examprep/backend/internal/httpx"
	"github.com/examprep/backend/internal/middleware"
	"github.com/examprep/backend/internal/models"
	"github.com/examprep/backend/internal/store"
)

// TokenTTL is how long issued tokens stay valid.
const TokenTTL = 72 * time.Hour

type Handler struct {
	store  store.Store
	secret []byte
	log    *slog.Logger
	now    func() time.Time
}

func NewHandler(s store.Store, secret []byte, log *slog.Logger) *Handler {
	return &Handler{
		store:  s,
		secret: secret,
		log:    log.With("component", "auth"),
		now:    time.Now,
	}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		httpx.WriteError(w, r, fmt.Errorf("%w: name must not be blank", models.ErrInvalidInput))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		httpx.WriteError(w, r, fmt.Errorf("hash password: %w", err))
		return
	}

	now := h.now().UTC()
	user := models.User{
		ID:        uuid.NewString(),
		Email:     req.Email,
		Name:      req.Name,
		Tier:      models.TierFree,
		Password:  string(hashed),
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = h.store.InTx(r.Context(), func(tx store.Tx) error {
		return tx.InsertUser(r.Context(), &user)
	})
	if errors.Is(err, store.ErrDuplicate) {
		httpx.WriteJSON(w, http.StatusConflict, models.ErrorResponse{Error: "An account with this email already exists"})
		return
	}
	if err != nil {
		httpx.WriteError(w, r, fmt.Errorf("create user: %w", err))
		return
	}

	token, err := middleware.IssueToken(h.secret, user.ID, user.Tier, TokenTTL)
	if err != nil {
		httpx.WriteError(w, r, fmt.Errorf("issue token: %w", err))
		return
	}

	h.log.Info("user registered", "user_id", user.ID)
	httpx.WriteJSON(w, http.StatusCreated, models.AuthResponse{Token: token, User: user})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	var user *models.User
	err := h.store.InTx(r.Context(), func(tx store.Tx) error {
		var err error
		user, err = tx.GetUserByEmail(r.Context(), req.Email)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		httpx.WriteJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid email or password"})
		return
	}
	if err != nil {
		httpx.WriteError(w, r, fmt.Errorf("get user: %w", err))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		httpx.WriteJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid email or password"})
		return
	}

	token, err := middleware.IssueToken(h.secret, user.ID, user.Tier, TokenTTL)
	if err != nil {
		httpx.WriteError(w, r, fmt.Errorf("issue token: %w", err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, models.AuthResponse{Token: token, User: *user})
}

func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		httpx.WriteJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	var user *models.User
	err := h.store.InTx(r.Context(), func(tx store.Tx) error {
		var err error
		user, err = tx.GetUser(r.Context(), id.UserID)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		httpx.WriteJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "User not found"})
		return
	}
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, user)
}
