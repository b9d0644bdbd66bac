package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/wassertech/fieldsync/internal/dbx"
)

const (
	metaKeyCursor   = "last_sync_timestamp"
	metaKeyToken    = "session_token"
	metaKeyRole     = "session_role"
	metaKeyClientID = "session_client_id"
)

// Meta is the key-value metadata repository. It owns the sync cursor: the
// server watermark through which the local store is known to be current.
type Meta struct {
	db dbx.DBTX
}

// NewMeta returns a Meta repository bound to the given DBTX.
func NewMeta(db dbx.DBTX) *Meta {
	return &Meta{db: db}
}

func (m *Meta) get(ctx context.Context, key string) (string, error) {
	var value string
	err := m.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	return value, nil
}

func (m *Meta) set(ctx context.Context, key, value string) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}

// Cursor returns the last committed pull watermark in epoch milliseconds,
// or 0 if no pull has ever committed.
func (m *Meta) Cursor(ctx context.Context) (int64, error) {
	value, err := m.get(ctx, metaKeyCursor)
	if err != nil || value == "" {
		return 0, err
	}
	cursor, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt sync cursor %q: %w", value, err)
	}
	return cursor, nil
}

// SetCursor advances the watermark. Call only from inside the pull merge
// transaction, so the cursor moves iff the merge commits.
func (m *Meta) SetCursor(ctx context.Context, cursor int64) error {
	return m.set(ctx, metaKeyCursor, strconv.FormatInt(cursor, 10))
}

// ResetCursor rolls the watermark back to zero. This is the explicit
// full-resync entry point; nothing else ever moves the cursor backwards.
func (m *Meta) ResetCursor(ctx context.Context) error {
	return m.set(ctx, metaKeyCursor, "0")
}

// Token returns the stored session token, or "" if not logged in.
func (m *Meta) Token(ctx context.Context) (string, error) {
	return m.get(ctx, metaKeyToken)
}

// SetToken stores the session token.
func (m *Meta) SetToken(ctx context.Context, token string) error {
	return m.set(ctx, metaKeyToken, token)
}

// ClearToken forgets the session token.
func (m *Meta) ClearToken(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, metaKeyToken); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}

// Session returns the stored role and client scope of the signed-in user.
func (m *Meta) Session(ctx context.Context) (role, clientID string, err error) {
	role, err = m.get(ctx, metaKeyRole)
	if err != nil {
		return "", "", err
	}
	clientID, err = m.get(ctx, metaKeyClientID)
	if err != nil {
		return "", "", err
	}
	return role, clientID, nil
}

// SetSession stores the role and client scope returned by login.
func (m *Meta) SetSession(ctx context.Context, role, clientID string) error {
	if err := m.set(ctx, metaKeyRole, role); err != nil {
		return err
	}
	return m.set(ctx, metaKeyClientID, clientID)
}
