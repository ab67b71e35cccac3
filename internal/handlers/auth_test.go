package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/fleet-dispatch/internal/auth"
	"github.com/ukydev/fleet-dispatch/internal/db"
	"github.com/ukydev/fleet-dispatch/internal/middleware"
	"github.com/ukydev/fleet-dispatch/internal/models"
)

func newAuthHandler(t *testing.T) (*AuthHandler, *db.MemoryUserCollection) {
	t.Helper()
	service, err := auth.NewService("test-secret", time.Hour)
	require.NoError(t, err)
	users := db.NewMemoryUserCollection()
	return NewAuthHandler(service, users), users
}

func registerBody() string {
	return `{"username":"dispatch1","email":"d@fleet.io","password":"longenough","first_name":"Dana","last_name":"Ops","role":"dispatcher"}`
}

func TestRegisterAndLogin(t *testing.T) {
	h, _ := newAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(registerBody()))
	rec := httptest.NewRecorder()
	h.Register(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.Token)
	assert.Equal(t, models.RoleDispatcher, created.User.Role)

	req = httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"username":"dispatch1","password":"longenough"}`))
	rec = httptest.NewRecorder()
	h.Login(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var loggedIn models.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loggedIn))
	assert.NotEmpty(t, loggedIn.Token)
	assert.NotEmpty(t, loggedIn.RefreshToken)
}

func TestLoginWrongPassword(t *testing.T) {
	h, _ := newAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(registerBody()))
	h.Register(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"username":"dispatch1","password":"wrongwrong"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginUnknownUser(t *testing.T) {
	h, _ := newAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"username":"ghost","password":"whatever1"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginValidation(t *testing.T) {
	h, _ := newAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":""}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/auth/login", nil)
	rec = httptest.NewRecorder()
	h.Login(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	h, _ := newAuthHandler(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"short username", `{"username":"ab","email":"a@b.io","password":"longenough","role":"viewer"}`, http.StatusBadRequest},
		{"bad email", `{"username":"valid","email":"nope","password":"longenough","role":"viewer"}`, http.StatusBadRequest},
		{"weak password", `{"username":"valid","email":"a@b.io","password":"short","role":"viewer"}`, http.StatusBadRequest},
		{"bad role", `{"username":"valid","email":"a@b.io","password":"longenough","role":"superuser"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.Register(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	h, _ := newAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(registerBody()))
	h.Register(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(registerBody()))
	rec := httptest.NewRecorder()
	h.Register(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetProfile(t *testing.T) {
	h, users := newAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(registerBody()))
	rec := httptest.NewRecorder()
	h.Register(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	stored, err := users.FindUserByUsername(context.Background(), "dispatch1")
	require.NoError(t, err)

	claims := &models.Claims{UserID: stored.ID.Hex(), Username: stored.Username, Role: stored.Role}
	ctx := context.WithValue(context.Background(), middleware.UserContextKey, claims)

	req = httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil).WithContext(ctx)
	rec = httptest.NewRecorder()
	h.GetProfile(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var user models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "dispatch1", user.Username)
	assert.Empty(t, user.PasswordHash)
}

func TestGetProfileNoContext(t *testing.T) {
	h, _ := newAuthHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil)
	rec := httptest.NewRecorder()
	h.GetProfile(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
