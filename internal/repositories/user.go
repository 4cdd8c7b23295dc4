package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/shared"
)

// UserRepository stores admin accounts with bcrypt password hashes.
type UserRepository struct {
	db querier
}

// NewUserRepository creates a new UserRepository with the given database connection
func NewUserRepository(db querier) *UserRepository {
	return &UserRepository{db: db}
}

// Create hashes password and inserts the user.
func (r *UserRepository) Create(ctx context.Context, user *models.User, password string) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if err := user.Validate(); err != nil {
		return err
	}
	if len(password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", shared.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	id := shared.GenerateID()
	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx,
		"INSERT INTO users (id, email, name, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		id, user.Email, user.Name, string(hash), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	user.ID = id
	user.PasswordHash = string(hash)
	user.CreatedAt = models.Timestamp{Time: now}
	user.UpdatedAt = models.Timestamp{Time: now}
	return nil
}

// GetByEmail looks a user up case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, email, name, password_hash, created_at, updated_at FROM users WHERE email = ?",
		strings.ToLower(strings.TrimSpace(email)),
	)
	return r.scanOne(row, email)
}

// Get retrieves a user by id.
func (r *UserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, "SELECT id, email, name, password_hash, created_at, updated_at FROM users WHERE id = ?", id)
	return r.scanOne(row, id)
}

// Verify returns the user when password matches its stored hash.
func (r *UserRepository) Verify(ctx context.Context, email, password string) (*models.User, error) {
	user, err := r.GetByEmail(ctx, email)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, shared.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

func (r *UserRepository) scanOne(row *sql.Row, key string) (*models.User, error) {
	var (
		u                models.User
		created, updated time.Time
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &created, &updated); err != nil {
		return nil, notFound(err, "user", key)
	}
	u.CreatedAt = models.Timestamp{Time: created}
	u.UpdatedAt = models.Timestamp{Time: updated}
	return &u, nil
}
