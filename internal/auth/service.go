// Package auth implements password login against the users table and the
// login/logout HTTP handlers that create and destroy sessions.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"conference/internal/database"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials covers both an unknown username and a wrong password
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Service defines the authentication service interface
type Service interface {
	Authenticate(ctx context.Context, username, password string) (*User, error)
}

// service implements the Service interface
type service struct {
	db     database.Service
	logger *slog.Logger
}

// NewService creates a new authentication service
func NewService(db database.Service, logger *slog.Logger) Service {
	return &service{
		db:     db,
		logger: logger,
	}
}

// Authenticate checks username and password. Callers only see
// ErrInvalidCredentials for a mismatch; the log says which factor failed.
func (s *service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := s.getUserByUsername(ctx, username)
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.WarnContext(ctx, "Login failed: user not found", "username", username)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			s.logger.ErrorContext(ctx, "Stored password hash is unusable", "user_id", user.ID, "error", err)
		} else {
			s.logger.WarnContext(ctx, "Login failed: password mismatch", "username", username)
		}
		return nil, ErrInvalidCredentials
	}

	s.logger.InfoContext(ctx, "Login successful", "user_id", user.ID, "username", username)
	return user, nil
}

// getUserByUsername retrieves a user by exact username
func (s *service) getUserByUsername(ctx context.Context, username string) (*User, error) {
	query := `SELECT id, username, password_hash FROM users WHERE username = ?`

	var user User
	err := s.db.QueryRow(ctx, query, username).Scan(&user.ID, &user.Username, &user.PasswordHash)
	if err != nil {
		return nil, err
	}

	return &user, nil
}
