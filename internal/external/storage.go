package external

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"postroom/internal/types"
)

// defaultPresignTTL bounds how long a presigned URL stays usable when the
// config leaves it unset.
const defaultPresignTTL = 15 * time.Minute

// S3StoreConfig holds the configuration for creating an S3Store.
type S3StoreConfig struct {
	Region      string
	Bucket      string
	PresignTTL  time.Duration
	EndpointURL string // non-empty for LocalStack / MinIO; forces path-style
	Logger      *slog.Logger
}

// S3Store implements ObjectStore with presigned S3 URLs. The API hands these
// URLs to clients and never proxies asset bytes itself.
type S3Store struct {
	presign *s3.PresignClient
	bucket  string
	ttl     time.Duration
	logger  *slog.Logger
}

// NewS3Store loads the ambient AWS configuration and builds a presigning
// client for the asset bucket.
func NewS3Store(ctx context.Context, cfg S3StoreConfig) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamStorage,
			"failed to load AWS configuration",
			err,
		)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	return NewS3StoreWithClient(s3.NewPresignClient(client), cfg), nil
}

// NewS3StoreWithClient creates an S3Store around an existing presign client.
// Useful in tests.
func NewS3StoreWithClient(presign *s3.PresignClient, cfg S3StoreConfig) *S3Store {
	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = defaultPresignTTL
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &S3Store{
		presign: presign,
		bucket:  cfg.Bucket,
		ttl:     ttl,
		logger:  logger,
	}
}

// PresignUpload returns a time-limited PUT URL for the given object key.
// The client must send the same Content-Type it presigned with.
func (s *S3Store) PresignUpload(ctx context.Context, key, contentType string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	resp, err := s.presign.PresignPutObject(ctx, input, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeUpstreamStorage,
			"failed to presign upload URL",
			err,
		)
	}

	s.logger.DebugContext(ctx, "upload URL presigned", "key", key)
	return resp.URL, nil
}

// PresignDownload returns a time-limited GET URL for the given object key.
func (s *S3Store) PresignDownload(ctx context.Context, key string) (string, error) {
	resp, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeUpstreamStorage,
			"failed to presign download URL",
			err,
		)
	}

	return resp.URL, nil
}

// Compile-time interface compliance check.
var _ ObjectStore = (*S3Store)(nil)
