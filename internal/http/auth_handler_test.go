package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"groupwire/internal/domain"
	"groupwire/internal/repository"
	"groupwire/internal/service"
)

type fakeUserRepo struct {
	users map[string]domain.User
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return domain.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, repository.ErrUserNotFound
}

func newLoginRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	repo := &fakeUserRepo{users: map[string]domain.User{
		"u1": {ID: "u1", Email: "alice@example.com", Role: "member", PasswordHash: string(hash)},
	}}
	userSvc := service.NewUserService(nil, repo)
	jwtSvc := service.NewJWTService("secret", 15*time.Minute)
	h := NewAuthHandler(zap.NewNop(), userSvc, jwtSvc)

	r := gin.New()
	r.POST("/auth/login", h.Login)
	return r
}

func TestAuthHandler_LoginSuccess(t *testing.T) {
	r := newLoginRouter(t)

	body := `{"email":"alice@example.com","password":"hunter2"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "access_token") {
		t.Fatalf("expected token in response: %s", rec.Body.String())
	}
}

func TestAuthHandler_LoginBadCredentials(t *testing.T) {
	r := newLoginRouter(t)

	body := `{"email":"alice@example.com","password":"wrong"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthHandler_LoginMalformedBody(t *testing.T) {
	r := newLoginRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
