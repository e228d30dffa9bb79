package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"groupwire/internal/domain"
	"groupwire/internal/repository"
	"groupwire/internal/service"
)

// Razones de rechazo distinguibles para el cliente.
const (
	ReasonNoToken      = "no-token"
	ReasonInvalidToken = "invalid-token"
	ReasonUnknownUser  = "unknown-user"
)

// AuthError es un rechazo de conexión con razón distinguible.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "gateway: connection rejected: " + e.Reason
}

// AuthGate valida la credencial bearer de cada conexión entrante y resuelve
// la identidad referida antes de permitir operaciones de sala. No tiene
// otros efectos: no suscribe a ningún grupo.
type AuthGate struct {
	jwt   *service.JWTService
	users repository.UserRepository
}

func NewAuthGate(jwt *service.JWTService, users repository.UserRepository) *AuthGate {
	return &AuthGate{jwt: jwt, users: users}
}

// Authenticate extrae el token del header Authorization o del query param
// "token", lo valida y resuelve la identidad.
func (g *AuthGate) Authenticate(ctx context.Context, r *http.Request) (domain.User, *AuthError) {
	token := bearerToken(r)
	if token == "" {
		return domain.User{}, &AuthError{Reason: ReasonNoToken}
	}

	claims, err := g.jwt.ParseAccessToken(token)
	if err != nil {
		return domain.User{}, &AuthError{Reason: ReasonInvalidToken}
	}

	user, err := g.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return domain.User{}, &AuthError{Reason: ReasonUnknownUser}
		}
		return domain.User{}, &AuthError{Reason: ReasonUnknownUser}
	}

	user.PasswordHash = ""
	return user, nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header != "" && strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}
