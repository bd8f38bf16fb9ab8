package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/compass/internal/domain"
	testhelpers "github.com/aristath/compass/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	db, cleanup := testhelpers.NewTestDB(t, "app")
	t.Cleanup(cleanup)
	return NewService(NewUserRepository(db.Conn(), zerolog.Nop()), NewTokenManager("test-secret", time.Hour), zerolog.Nop())
}

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)

	token, err := m.Sign("user-1", "a@example.com")
	require.NoError(t, err)

	userID, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestTokenManager_RejectsExpiredAndForged(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	token, err := m.Sign("user-1", "a@example.com")
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = m.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewTokenManager("other-secret", time.Hour)
	_, err = other.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	require.NoError(t, err)

	assert.True(t, CheckPassword(hash, "correct horse battery"))
	assert.False(t, CheckPassword(hash, "wrong"))
}

func TestService_SignUpAndSignIn(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	session, err := s.SignUp(ctx, "  Investor@Example.com ", "long-enough")
	require.NoError(t, err)
	assert.Equal(t, "investor@example.com", session.User.Email)
	assert.Equal(t, "bearer", session.TokenType)
	assert.Equal(t, int64(3600), session.ExpiresIn)

	_, err = s.SignUp(ctx, "investor@example.com", "long-enough")
	assert.ErrorIs(t, err, ErrEmailTaken)

	signedIn, err := s.SignIn(ctx, "investor@example.com", "long-enough")
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, signedIn.User.ID)

	_, err = s.SignIn(ctx, "investor@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.SignIn(ctx, "nobody@example.com", "long-enough")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	user, err := s.CurrentUser(ctx, session.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "investor@example.com", user.Email)
}

func TestService_SignUpValidation(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.SignUp(ctx, "not-an-email", "long-enough")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = s.SignUp(ctx, "a@example.com", "short")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = s.CurrentUser(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestOptionalAuth(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	token, err := m.Sign("user-1", "a@example.com")
	require.NoError(t, err)

	var seen string
	handler := OptionalAuth(m, zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"valid token", "Bearer " + token, "user-1"},
		{"lowercase scheme", "bearer " + token, "user-1"},
		{"no header", "", ""},
		{"garbage token", "Bearer abc", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = "unset"
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, seen)
		})
	}
}

func TestRequireAuth(t *testing.T) {
	handler := RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(rec, req.WithContext(WithUserID(req.Context(), "user-1")))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
