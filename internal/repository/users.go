// Package repository provides the PostgreSQL persistence of the study
// backend: accounts and uploaded documents.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/atinyakov/feynmind/internal/models"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// PostgresUserRepository stores accounts in the users table.
type PostgresUserRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresUserRepository creates a PostgresUserRepository with the given
// database connection.
func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{DB: db}
}

// CreateUser inserts a. A taken email yields models.ErrConflict.
func (r *PostgresUserRepository) CreateUser(ctx context.Context, a models.Account) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash) VALUES ($1, $2, $3, $4)`,
		a.ID, a.Name, a.Email, a.PasswordHash,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return models.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("CreateUser: %w", err)
	}
	return nil
}

// FindUserByEmail returns the account registered under email, or
// models.ErrNotFound.
func (r *PostgresUserRepository) FindUserByEmail(ctx context.Context, email string) (*models.Account, error) {
	var a models.Account
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash FROM users WHERE email = $1`,
		email,
	).Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("FindUserByEmail: %w", err)
	}
	return &a, nil
}
