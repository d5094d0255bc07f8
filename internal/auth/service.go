package auth

import (
	"context"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/carewell-hms/carewell/internal/shared"
)

// Issuer signs access tokens.
type Issuer interface {
	Issue(user User) (string, time.Time, error)
}

// Token is an issued access token.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	issuer Issuer
}

// NewService constructs a new Service.
func NewService(repo Repository, issuer Issuer) *Service {
	return &Service{repo: repo, issuer: issuer}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates the credentials and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (Token, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return Token{}, err
	}
	signed, expires, err := s.issuer.Issue(*user)
	if err != nil {
		return Token{}, err
	}
	if err := s.repo.TouchLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		return Token{}, err
	}
	return Token{AccessToken: signed, TokenType: "Bearer", ExpiresAt: expires}, nil
}
