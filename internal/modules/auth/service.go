package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aristath/compass/internal/domain"
	"github.com/rs/zerolog"
)

// ErrInvalidCredentials is returned for a wrong email or password
var ErrInvalidCredentials = errors.New("invalid email or password")

// Session is the result of a successful sign up or sign in
type Session struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	User        *domain.User `json:"user"`
}

// Service implements sign up, sign in and current-user lookups
type Service struct {
	users  *UserRepository
	tokens *TokenManager
	now    func() time.Time
	log    zerolog.Logger
}

// NewService creates an auth service
func NewService(users *UserRepository, tokens *TokenManager, log zerolog.Logger) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		now:    time.Now,
		log:    log.With().Str("service", "auth").Logger(),
	}
}

// Tokens returns the token manager used by the middleware
func (s *Service) Tokens() *TokenManager {
	return s.tokens
}

// SignUp creates an account and returns a session for it
func (s *Service) SignUp(ctx context.Context, email, password string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(password) < minPasswordChars {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordChars)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Create(ctx, email, hash, s.now())
	if err != nil {
		return nil, err
	}
	return s.session(user)
}

// SignIn checks credentials and returns a new session
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	row, err := s.users.credentials(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !CheckPassword(row.PasswordHash, password) {
		s.log.Debug().Str("user_id", row.ID).Msg("Password mismatch")
		return nil, ErrInvalidCredentials
	}
	return s.session(&row.User)
}

// CurrentUser returns the user for userID
func (s *Service) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	return s.users.GetByID(ctx, userID)
}

func (s *Service) session(user *domain.User) (*Session, error) {
	token, err := s.tokens.Sign(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &Session{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.tokens.Expiry().Seconds()),
		User:        user,
	}, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email address", domain.ErrInvalidInput)
	}
	return email, nil
}
