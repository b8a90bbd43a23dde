package auth

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examprep/backend/internal/middleware"
	"github.com/examprep/backend/internal/models"
	"github.com/examprep/backend/internal/store/memory"
)

var secret = []byte("test-secret")

func newRouter() *mux.Router {
	h := NewHandler(memory.New(), secret, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := mux.NewRouter()
	r.HandleFunc("/auth/register", h.Register).Methods("POST")
	r.HandleFunc("/auth/login", h.Login).Methods("POST")
	r.Handle("/auth/me", middleware.Auth(secret)(http.HandlerFunc(h.GetCurrentUser))).Methods("GET")
	return r
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	return rec
}

func TestRegisterLoginMe(t *testing.T) {
	r := newRouter()

	rec := post(r, "/auth/register", `{"email":"Sam@Example.com","name":"Sam","password":"hunter22"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var reg models.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))
	assert.Equal(t, "sam@example.com", reg.User.Email)
	assert.Equal(t, models.TierFree, reg.User.Tier)
	assert.NotContains(t, rec.Body.String(), "hunter22")

	id, err := middleware.ParseToken(secret, reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, id.UserID)

	assert.Equal(t, http.StatusConflict, post(r, "/auth/register", `{"email":"sam@example.com","name":"Other","password":"password1"}`).Code)

	rec = post(r, "/auth/login", `{"email":"SAM@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var login models.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	me := httptest.NewRecorder()
	r.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Contains(t, me.Body.String(), reg.User.ID)
}

func TestLoginAndRegisterRejections(t *testing.T) {
	r := newRouter()
	require.Equal(t, http.StatusCreated, post(r, "/auth/register", `{"email":"a@b.co","name":"A","password":"longenough"}`).Code)

	tests := []struct {
		name string
		path string
		body string
		want int
		msg  string
	}{
		{"wrong password", "/auth/login", `{"email":"a@b.co","password":"nope-nope"}`, http.StatusUnauthorized, ""},
		{"unknown email", "/auth/login", `{"email":"x@b.co","password":"longenough"}`, http.StatusUnauthorized, ""},
		{"short password", "/auth/register", `{"email":"c@b.co","name":"C","password":"short"}`, http.StatusBadRequest, "Password failed min"},
		{"bad email", "/auth/register", `{"email":"nope","name":"C","password":"longenough"}`, http.StatusBadRequest, "Email failed email"},
		{"missing name", "/auth/register", `{"email":"d@b.co","password":"longenough"}`, http.StatusBadRequest, "Name failed required"},
		{"blank name", "/auth/register", `{"email":"d@b.co","name":"   ","password":"longenough"}`, http.StatusBadRequest, "invalid input: name must not be blank"},
		{"malformed body", "/auth/login", `{`, http.StatusBadRequest, "invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(r, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code)
			if tt.msg != "" {
				var body models.ErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Contains(t, body.Error, tt.msg)
			}
		})
	}
}
