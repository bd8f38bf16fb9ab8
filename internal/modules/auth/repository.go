package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/compass/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrEmailTaken is returned when signing up with an existing email
var ErrEmailTaken = errors.New("email already registered")

// UserRepository handles user database operations on app.db
type UserRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, log zerolog.Logger) *UserRepository {
	return &UserRepository{
		db:  db,
		log: log.With().Str("repo", "user").Logger(),
	}
}

type userRow struct {
	domain.User
	PasswordHash string
}

// Create inserts a user
func (r *UserRepository) Create(ctx context.Context, email, passwordHash string, now time.Time) (*domain.User, error) {
	user := &domain.User{
		ID:        uuid.NewString(),
		Email:     email,
		CreatedAt: now.UTC().Truncate(time.Second),
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)",
		user.ID, user.Email, passwordHash, user.CreatedAt.Unix(),
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	r.log.Info().Str("user_id", user.ID).Msg("User created")
	return user, nil
}

// credentials returns the user and password hash for email
func (r *UserRepository) credentials(ctx context.Context, email string) (*userRow, error) {
	return r.getOne(ctx, "SELECT id, email, password_hash, created_at FROM users WHERE email = ?", email)
}

// GetByID returns the user with id
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row, err := r.getOne(ctx, "SELECT id, email, password_hash, created_at FROM users WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	return &row.User, nil
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg string) (*userRow, error) {
	var row userRow
	var createdAt int64
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&row.ID, &row.Email, &row.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	row.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &row, nil
}
