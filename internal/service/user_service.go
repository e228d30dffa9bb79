package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"groupwire/internal/domain"
	"groupwire/internal/repository"
)

// UserService coordina autenticación de usuarios contra el repositorio.
type UserService struct {
	logger *zap.Logger
	users  repository.UserRepository
}

var ErrInvalidCredentials = errors.New("invalid credentials")

func NewUserService(logger *zap.Logger, users repository.UserRepository) *UserService {
	return &UserService{logger: logger, users: users}
}

// Authenticate valida email y password; devuelve el usuario sin exponer el hash.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	if s == nil || s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return domain.User{}, ErrInvalidCredentials
	}

	user.PasswordHash = ""
	return user, nil
}

// Resolve busca la identidad referida por un token ya validado.
func (s *UserService) Resolve(ctx context.Context, userID string) (domain.User, error) {
	if s == nil || s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	user.PasswordHash = ""
	return user, nil
}
