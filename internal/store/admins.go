package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/websitelelo/websitelelo/internal/models"
)

var ErrAdminExists = errors.New("admin already exists")

// GetAdminByEmail returns nil, nil when no admin has that email.
func (s *Store) GetAdminByEmail(ctx context.Context, email string) (*models.Admin, error) {
	query := `SELECT id, email, password, created_at FROM admins WHERE email = ?`
	row := s.DB.QueryRowContext(ctx, query, normalizeEmail(email))

	var admin models.Admin
	if err := row.Scan(&admin.ID, &admin.Email, &admin.Password, &admin.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &admin, nil
}

// CreateAdmin stores an admin with an already hashed password.
func (s *Store) CreateAdmin(ctx context.Context, email, hashedPassword string) (*models.Admin, error) {
	email = normalizeEmail(email)
	existing, err := s.GetAdminByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrAdminExists, email)
	}

	query := `INSERT INTO admins (email, password) VALUES (?, ?)`
	if _, err := s.DB.ExecContext(ctx, query, email, hashedPassword); err != nil {
		return nil, err
	}
	return s.GetAdminByEmail(ctx, email)
}

// SetAdminPassword replaces the stored hash for email.
func (s *Store) SetAdminPassword(ctx context.Context, email, hashedPassword string) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE admins SET password = ? WHERE email = ?`, hashedPassword, normalizeEmail(email))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) CountAdmins(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins`).Scan(&n)
	return n, err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
