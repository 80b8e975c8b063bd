// Package auth signs the operator in against the remote service and keeps
// the issued token so later sessions reuse it.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/datatypes"

	"receivables-conciliation-backend/internal/conciliation"
	"receivables-conciliation-backend/internal/models"
	"receivables-conciliation-backend/internal/repository"
)

var (
	ErrNotSignedIn        = errors.New("not signed in")
	ErrInvalidCredentials = errors.New("email and password are required")
)

type Gateway interface {
	Register(ctx context.Context, reg conciliation.Registration) (*conciliation.AuthResult, error)
	Login(ctx context.Context, creds conciliation.Credentials) (*conciliation.AuthResult, error)
	Me(ctx context.Context, authToken string) (*conciliation.User, error)
}

type AuthService struct {
	gateway     Gateway
	credentials *repository.CredentialRepository
	logger      *slog.Logger
}

func NewAuthService(gateway Gateway, credentials *repository.CredentialRepository, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		gateway:     gateway,
		credentials: credentials,
		logger:      logger.With("component", "auth"),
	}
}

// Register creates the account. A non-empty sessionToken links the records
// uploaded anonymously under it to the new organization.
func (s *AuthService) Register(ctx context.Context, name, email, password, sessionToken string) (*conciliation.AuthResult, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidCredentials)
	}
	if err := checkCredentials(email, password); err != nil {
		return nil, err
	}

	reg := conciliation.Registration{Name: name, Email: email, Password: password}
	if sessionToken != "" {
		reg.SessionToken = &sessionToken
	}

	res, err := s.gateway.Register(ctx, reg)
	if err != nil {
		return nil, err
	}
	if err := s.store(res); err != nil {
		return nil, err
	}

	if res.LinkedData != nil {
		s.logger.Info("account registered",
			"email", res.User.Email,
			"linked_receivables", res.LinkedData.Receivables,
			"linked_payments", res.LinkedData.Payments,
		)
	}
	return res, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*conciliation.AuthResult, error) {
	if err := checkCredentials(email, password); err != nil {
		return nil, err
	}

	res, err := s.gateway.Login(ctx, conciliation.Credentials{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	if err := s.store(res); err != nil {
		return nil, err
	}
	s.logger.Info("signed in", "email", res.User.Email)
	return res, nil
}

// Me returns the user authToken was issued for. A token this server
// stored at sign-in gets its user record refreshed.
func (s *AuthService) Me(ctx context.Context, authToken string) (*conciliation.User, error) {
	if authToken == "" {
		return nil, ErrNotSignedIn
	}

	user, err := s.gateway.Me(ctx, authToken)
	if err != nil {
		return nil, err
	}

	_, err = s.credentials.GetByToken(authToken)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		s.logger.Warn("failed to load credential", "error", err)
	default:
		if err := s.store(&conciliation.AuthResult{Token: authToken, User: *user}); err != nil {
			s.logger.Warn("failed to refresh credential", "error", err)
		}
	}
	return user, nil
}

// Logout forgets the stored credential for authToken.
func (s *AuthService) Logout(authToken string) error {
	if authToken == "" {
		return ErrNotSignedIn
	}

	err := s.credentials.DeleteByToken(authToken)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotSignedIn
	}
	return err
}

func (s *AuthService) store(res *conciliation.AuthResult) error {
	if res.Token == "" {
		return fmt.Errorf("%w: auth response carried no token", conciliation.ErrInvalidPayload)
	}
	user, err := json.Marshal(res.User)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	return s.credentials.Upsert(&models.Credential{
		Email:      res.User.Email,
		Token:      res.Token,
		UserRecord: datatypes.JSON(user),
	})
}

func checkCredentials(email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return ErrInvalidCredentials
	}
	return nil
}
