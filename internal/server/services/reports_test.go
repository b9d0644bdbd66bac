package services

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"

	"github.com/wassertech/fieldsync/internal/common"
	"github.com/wassertech/fieldsync/internal/server/auth"
)

func stubPresign(t *testing.T, putURL, getURL string) {
	t.Helper()

	origNewClient := newS3ClientFromConfig
	origNewPresign := newS3PresignClient
	origPut := presignPutObject
	origGet := presignGetObject
	t.Cleanup(func() {
		newS3ClientFromConfig = origNewClient
		newS3PresignClient = origNewPresign
		presignPutObject = origPut
		presignGetObject = origGet
	})

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return nil
	}
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return nil
	}
	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return &v4.PresignedHTTPRequest{URL: putURL}, nil
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return &v4.PresignedHTTPRequest{URL: getURL}, nil
	}
}

func TestUploadURL(t *testing.T) {
	stubPresign(t, "https://s3.example.com/put", "")

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewReportService(db, testConfig())

	key, url, err := svc.UploadURL(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, key)
	require.Contains(t, key, "reports/")
	require.Equal(t, "https://s3.example.com/put", url)
}

func TestDownloadURL(t *testing.T) {
	stubPresign(t, "", "https://s3.example.com/get")

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cols := []string{"id", "payload", "created_at_epoch", "updated_at_epoch",
		"is_archived", "archived_at_epoch", "origin", "client_id"}
	mock.ExpectQuery(`SELECT (.+) FROM reports WHERE id = \$1`).
		WithArgs("r-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("r-1", `{"clientId":"c-1","number":"R-1","fileKey":"reports/2026/1/1/abc","generatedAtEpoch":1000}`,
				500, 1000, false, nil, "FIELD", "c-1"))

	svc := NewReportService(db, testConfig())

	url, err := svc.DownloadURL(context.Background(), &auth.Claims{UserID: "u-1", Role: "ADMIN"}, "r-1")
	require.NoError(t, err)
	require.Equal(t, "https://s3.example.com/get", url)
}

func TestDownloadURL_ScopeEnforced(t *testing.T) {
	stubPresign(t, "", "https://s3.example.com/get")

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cols := []string{"id", "payload", "created_at_epoch", "updated_at_epoch",
		"is_archived", "archived_at_epoch", "origin", "client_id"}
	mock.ExpectQuery(`SELECT (.+) FROM reports WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("r-1", `{"clientId":"c-2","number":"R-1","fileKey":"k"}`, 500, 1000, false, nil, "FIELD", "c-2"))

	svc := NewReportService(db, testConfig())

	claims := &auth.Claims{UserID: "u-1", Role: "CLIENT", ClientID: "c-1"}
	_, err = svc.DownloadURL(context.Background(), claims, "r-1")
	require.ErrorIs(t, err, common.ErrForbidden)
}

func TestDownloadURL_MissingReport(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM reports WHERE id = \$1`).
		WillReturnError(sql.ErrNoRows)

	svc := NewReportService(db, testConfig())

	_, err = svc.DownloadURL(context.Background(), &auth.Claims{UserID: "u-1", Role: "ADMIN"}, "missing")
	require.ErrorIs(t, err, common.ErrNotFound)
}
