package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/spec-kit/smart-support/internal/auth"
	"github.com/spec-kit/smart-support/internal/config"
	"github.com/spec-kit/smart-support/internal/domain"
	"github.com/spec-kit/smart-support/internal/store"
	apperrors "github.com/spec-kit/smart-support/pkg/util/errorutil"
)

// AuthService coordinates reporter registration and login, plus the
// ticket-scoped session tokens handed out at intake.
type AuthService struct {
	reporters  store.ReporterStore
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// NewAuthService builds the service.
func NewAuthService(cfg *config.Config, reporters store.ReporterStore) *AuthService {
	return &AuthService{
		reporters:  reporters,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// TokenManager exposes the manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// Register creates a reporter account and returns a bearer token.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (domain.Reporter, string, time.Time, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return domain.Reporter{}, "", time.Time{}, apperrors.NewValidationError("name is required", nil)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.Reporter{}, "", time.Time{}, apperrors.NewValidationError("email is not a valid address", nil)
	}
	if len(password) < 8 {
		return domain.Reporter{}, "", time.Time{}, apperrors.NewValidationError("password must be at least 8 characters", nil)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return domain.Reporter{}, "", time.Time{}, apperrors.MapError(err)
	}

	reporter := domain.Reporter{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	if err := s.reporters.CreateReporter(ctx, reporter); err != nil {
		return domain.Reporter{}, "", time.Time{}, mapStoreError(err)
	}

	token, expiresAt, err := s.tokenMgr.GenerateToken(reporter.Email, auth.SubjectReporter)
	if err != nil {
		return domain.Reporter{}, "", time.Time{}, apperrors.MapError(err)
	}
	return reporter, token, expiresAt, nil
}

// Login verifies credentials and returns a bearer token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, time.Time, error) {
	reporter, err := s.reporters.GetReporterByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return "", time.Time{}, mapStoreError(err)
	}
	if err := auth.ComparePassword(reporter.PasswordHash, password); err != nil {
		return "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := s.tokenMgr.GenerateToken(reporter.Email, auth.SubjectReporter)
	if err != nil {
		return "", time.Time{}, apperrors.MapError(err)
	}
	return token, expiresAt, nil
}

// IssueTicketToken creates a session token scoped to one ticket so the
// reporter can continue the conversation without an account.
func (s *AuthService) IssueTicketToken(ticketID string) (string, time.Time, error) {
	token, expiresAt, err := s.tokenMgr.GenerateToken(ticketID, auth.SubjectTicket)
	if err != nil {
		return "", time.Time{}, apperrors.MapError(err)
	}
	return token, expiresAt, nil
}
