package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopworks/fulfillment/internal/core/domain"
)

type MySQLUserAdapter struct {
	db *sql.DB
}

func NewMySQLUserAdapter(db *sql.DB) *MySQLUserAdapter {
	return &MySQLUserAdapter{db: db}
}

func (m *MySQLUserAdapter) CreateUser(ctx context.Context, u domain.User) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (m *MySQLUserAdapter) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return m.queryUser(ctx, `
		SELECT id, name, email, password_hash, created_at, updated_at
		FROM users WHERE id = ?`, id)
}

func (m *MySQLUserAdapter) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.queryUser(ctx, `
		SELECT id, name, email, password_hash, created_at, updated_at
		FROM users WHERE email = ?`, email)
}

func (m *MySQLUserAdapter) UpdateUser(ctx context.Context, u domain.User) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE users SET name = ?, email = ?, updated_at = NOW()
		WHERE id = ?`,
		u.Name, u.Email, u.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (m *MySQLUserAdapter) DeleteUser(ctx context.Context, id string) error {
	result, err := m.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (m *MySQLUserAdapter) queryUser(ctx context.Context, query string, arg any) (*domain.User, error) {
	var u domain.User
	err := m.db.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}
