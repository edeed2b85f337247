package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dmitrijs2005/signalrelay/internal/common"
	"github.com/dmitrijs2005/signalrelay/internal/logging"
	sc "github.com/dmitrijs2005/signalrelay/internal/server/config"
	"github.com/dmitrijs2005/signalrelay/internal/server/repositories/repomanager"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// exportLinkValidity is how long the download link of an export works.
const exportLinkValidity = 15 * time.Minute

// ExportResult locates an uploaded audit export.
type ExportResult struct {
	Key     string `json:"key"`
	URL     string `json:"url"`
	Entries int    `json:"entries"`
}

// AuditExporter writes the whole audit trail to S3 as JSON lines.
type AuditExporter struct {
	repomanager repomanager.RepositoryManager
	audit       *AuditService
	config      *sc.Config
	logger      logging.Logger
}

func NewAuditExporter(m repomanager.RepositoryManager, audit *AuditService, cfg *sc.Config, logger logging.Logger) *AuditExporter {
	return &AuditExporter{
		repomanager: m,
		audit:       audit,
		config:      cfg,
		logger:      logger.With("module", "export"),
	}
}

// Enabled reports whether a bucket is configured.
func (s *AuditExporter) Enabled() bool {
	return s.config.S3Bucket != ""
}

func exportKey(now time.Time) string {
	return fmt.Sprintf("audit/%d/%02d/%02d/%v.jsonl", now.Year(), now.Month(), now.Day(), uuid.New())
}

func (s *AuditExporter) getClient(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.config.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Export uploads every audit entry, newest first, and returns a presigned
// download link. Only admins may export.
func (s *AuditExporter) Export(ctx context.Context, adminID string) (*ExportResult, error) {
	if err := requireAdmin(ctx, s.repomanager, adminID); err != nil {
		return nil, err
	}
	if !s.Enabled() {
		return nil, common.ErrExportDisabled
	}

	logs, err := s.audit.AllLogs(ctx, 0)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range logs {
		if err := enc.Encode(e); err != nil {
			return nil, fmt.Errorf("%w: encode entry: %v", common.ErrorInternal, err)
		}
	}

	client, err := s.getClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3 config: %w", err)
	}

	bucket := s.config.S3Bucket
	key := exportKey(time.Now().UTC())

	if _, err := putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	}); err != nil {
		s.logger.Error(ctx, "audit export upload failed", "key", key, "error", err)
		return nil, fmt.Errorf("upload export: %w", err)
	}

	req, err := presignGetObject(newS3PresignClient(client), ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(exportLinkValidity))
	if err != nil {
		return nil, fmt.Errorf("presign export: %w", err)
	}

	s.logger.Info(ctx, "audit exported", "key", key, "entries", len(logs))
	return &ExportResult{Key: key, URL: req.URL, Entries: len(logs)}, nil
}
