// auth.go — сервис аутентификации: логин, обновление и отзыв токенов,
// восстановление пароля по email.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bigkaa/user-module/internal/keycloak"
	"github.com/bigkaa/user-module/internal/repository"
)

// authGateway — операции Keycloak, используемые сервисом аутентификации.
type authGateway interface {
	Login(ctx context.Context, username, password string) (*keycloak.TokenPair, error)
	RefreshTokens(ctx context.Context, refreshToken string) (*keycloak.TokenPair, error)
	RevokeTokens(ctx context.Context, bearerToken, refreshToken string) error
	SendPasswordResetEmail(ctx context.Context, keycloakID string) error
}

// AuthService — сервис аутентификации.
type AuthService struct {
	gateway  authGateway
	users    repository.UserRepository
	profiles repository.UserProfileRepository
	logger   *slog.Logger
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(
	gateway authGateway,
	users repository.UserRepository,
	profiles repository.UserProfileRepository,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		gateway:  gateway,
		users:    users,
		profiles: profiles,
		logger:   logger.With(slog.String("component", "auth_service")),
	}
}

// Login выполняет вход по логину и паролю через ROPC.
// Любая ошибка провайдера отдаётся как ErrUnauthorized, без деталей.
func (s *AuthService) Login(ctx context.Context, username, password string) (*keycloak.TokenPair, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: логин и пароль обязательны", ErrValidation)
	}

	tokens, err := s.gateway.Login(ctx, username, password)
	if err != nil {
		s.logger.Warn("Неудачная попытка входа", slog.String("username", username))
		return nil, fmt.Errorf("%w: неверный логин или пароль", ErrUnauthorized)
	}

	return tokens, nil
}

// Refresh обменивает refresh-токен на новую пару токенов.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*keycloak.TokenPair, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: refresh-токен обязателен", ErrValidation)
	}

	tokens, err := s.gateway.RefreshTokens(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: сессия истекла", ErrUnauthorized)
	}
	return tokens, nil
}

// Logout отзывает refresh-токен, завершая сессию.
func (s *AuthService) Logout(ctx context.Context, bearerToken, refreshToken string) error {
	if refreshToken == "" {
		return fmt.Errorf("%w: refresh-токен обязателен", ErrValidation)
	}

	if err := s.gateway.RevokeTokens(ctx, bearerToken, refreshToken); err != nil {
		return fmt.Errorf("%w: завершение сессии: %w", ErrOperationFailed, err)
	}
	return nil
}

// SendUpdatePasswordEmail отправляет письмо установки пароля по email.
// Пользователям с уже подтверждённым email письмо не отправляется:
// сценарий предназначен для завершения первичной настройки учётной записи.
func (s *AuthService) SendUpdatePasswordEmail(ctx context.Context, email string) error {
	if email == "" {
		return fmt.Errorf("%w: email обязателен", ErrValidation)
	}

	profile, err := s.profiles.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: пользователь с email %s", ErrNotFound, email)
		}
		return err
	}

	user, err := s.users.GetByID(ctx, profile.UserID)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return fmt.Errorf("%w: email уже подтверждён", ErrValidation)
	}

	if err := s.gateway.SendPasswordResetEmail(ctx, user.KeycloakID); err != nil {
		return fmt.Errorf("%w: отправка письма: %w", ErrOperationFailed, err)
	}

	s.logger.Info("Письмо установки пароля отправлено",
		slog.String("user_id", user.ID.String()),
	)
	return nil
}
