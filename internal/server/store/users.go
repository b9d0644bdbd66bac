package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wassertech/fieldsync/internal/common"
	"github.com/wassertech/fieldsync/internal/dbx"
)

// User is one back-office account.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	ClientID     string
}

// Users implements account storage over a dbx.DBTX.
type Users struct {
	db dbx.DBTX
}

// NewUsers constructs a repository bound to the given DBTX.
func NewUsers(db dbx.DBTX) *Users {
	return &Users{db: db}
}

// GetByEmail returns the account for the email, or common.ErrNotFound.
func (u *Users) GetByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := u.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, role, client_id FROM users WHERE email = $1
	`, email).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Role, &user.ClientID)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", email, err)
	}
	return &user, nil
}

// Create adds an account.
func (u *Users) Create(ctx context.Context, user *User) error {
	_, err := u.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, role, client_id)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.Email, user.PasswordHash, user.Role, user.ClientID)
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.Email, err)
	}
	return nil
}
