package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/wassertech/fieldsync/internal/client/models"
	"github.com/wassertech/fieldsync/internal/common"
	"github.com/wassertech/fieldsync/internal/policy"
	"github.com/wassertech/fieldsync/internal/server/auth"
	sc "github.com/wassertech/fieldsync/internal/server/config"
	"github.com/wassertech/fieldsync/internal/server/store"
	"github.com/wassertech/fieldsync/internal/wire"
)

// Seams for tests; production code uses the real AWS SDK entrypoints.
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// ReportService hands out presigned URLs for report PDFs. The files
// themselves never travel through sync; only the report metadata does.
type ReportService struct {
	db     *sql.DB
	config *sc.Config
}

// NewReportService constructs a ReportService.
func NewReportService(db *sql.DB, cfg *sc.Config) *ReportService {
	return &ReportService{db: db, config: cfg}
}

// newStorageKey produces a date-bucketed object key for a fresh upload.
func newStorageKey() string {
	d := time.Now()
	return fmt.Sprintf("reports/%d/%d/%d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *ReportService) getPresignClient() (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		awsconfig.WithRegion(s.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
	})

	return newS3PresignClient(client), nil
}

// UploadURL returns a fresh object key and a presigned PUT URL the caller
// uploads the PDF to before pushing the report record that references it.
func (s *ReportService) UploadURL(ctx context.Context) (key, url string, err error) {
	presignClient, err := s.getPresignClient()
	if err != nil {
		return "", "", err
	}

	bucket := s.config.S3Bucket
	key = newStorageKey()

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", "", err
	}

	return key, req.URL, nil
}

// DownloadURL returns a presigned GET URL for the report's stored PDF.
// CLIENT users can only fetch reports of their own client.
func (s *ReportService) DownloadURL(ctx context.Context, claims *auth.Claims, reportID string) (string, error) {
	row, err := store.NewRecords(s.db).Get(ctx, wire.KindReports, reportID)
	if err != nil {
		return "", err
	}
	if row == nil {
		return "", common.ErrNotFound
	}

	scope := policy.Scope{Role: policy.Role(claims.Role), ClientID: claims.ClientID}
	if !scope.VisibleClient(row.ClientID) {
		return "", common.ErrForbidden
	}

	rec, err := row.Record()
	if err != nil {
		return "", err
	}
	var report models.Report
	if err := models.DecodeFields(rec.Fields, &report); err != nil {
		return "", err
	}
	if report.FileKey == "" {
		return "", fmt.Errorf("report %s has no stored file: %w", reportID, common.ErrNotFound)
	}

	presignClient, err := s.getPresignClient()
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket
	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &report.FileKey,
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}
