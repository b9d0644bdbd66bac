package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/wassertech/fieldsync/internal/common"
	"github.com/wassertech/fieldsync/internal/server/auth"
	"github.com/wassertech/fieldsync/internal/server/config"
	"github.com/wassertech/fieldsync/internal/server/store"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "test-secret"
	cfg.TokenValidityDuration = time.Minute
	return cfg
}

func TestLogin_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE email = \$1`).
		WithArgs("tech@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "role", "client_id"}).
			AddRow("u-1", "tech@example.com", hash, "ENGINEER", ""))

	svc := NewUserService(store.NewUsers(db), testConfig())

	session, err := svc.Login(context.Background(), "tech@example.com", "correct horse")
	require.NoError(t, err)
	require.Equal(t, "ENGINEER", session.Role)

	claims, err := auth.ParseToken(session.Token, []byte("test-secret"))
	require.NoError(t, err)
	require.Equal(t, "u-1", claims.UserID)
	require.Equal(t, "ENGINEER", claims.Role)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogin_WrongPassword(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	hash, err := HashPassword("right")
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE email = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "role", "client_id"}).
			AddRow("u-1", "tech@example.com", hash, "ENGINEER", ""))

	svc := NewUserService(store.NewUsers(db), testConfig())

	_, err = svc.Login(context.Background(), "tech@example.com", "wrong")
	require.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestLogin_UnknownEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE email = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "role", "client_id"}))

	svc := NewUserService(store.NewUsers(db), testConfig())

	_, err = svc.Login(context.Background(), "ghost@example.com", "whatever")
	require.ErrorIs(t, err, common.ErrInvalidCredentials)
}
