// Package objectstore fronts the attachment blob store. Every
// attachment is a key in an S3-compatible bucket; this package never
// touches bytes directly, it only mints presigned URLs and checks
// existence, mirroring how the database package never touches bytes
// for rows it doesn't own.
package objectstore

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/pohodnya/mtchat/internal/config"
	"github.com/pohodnya/mtchat/internal/errors"
)

// Store mints presigned upload/download URLs for attachment objects.
// A nil Store is valid and always returns ErrDependencyUnavailable —
// callers never need a separate "object store configured" check.
type Store struct {
	client   *s3.Client
	presign  *s3.PresignClient
	bucket   string
	uploadTTL   time.Duration
	downloadTTL time.Duration
	publicEndpoint string
}

// New builds a Store from cfg. It returns (nil, nil) when no bucket is
// configured: the object store is optional infrastructure, and the
// rest of the system must degrade gracefully rather than fail startup.
func New(ctx context.Context, cfg config.ObjectStoreConfig) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInvalidConfiguration)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.InternalEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.InternalEndpoint)
			o.UsePathStyle = true
		}
	})

	uploadTTL := time.Duration(cfg.UploadTTLSecs) * time.Second
	if uploadTTL <= 0 {
		uploadTTL = 10 * time.Minute
	}
	downloadTTL := time.Duration(cfg.DownloadTTLSecs) * time.Second
	if downloadTTL <= 0 {
		downloadTTL = time.Hour
	}

	return &Store{
		client:         client,
		presign:        s3.NewPresignClient(client),
		bucket:         cfg.Bucket,
		uploadTTL:      uploadTTL,
		downloadTTL:    downloadTTL,
		publicEndpoint: cfg.PublicEndpoint,
	}, nil
}

// NewObjectKey generates a collision-resistant key for an attachment
// upload. Reuse of a key across dialogs is allowed; this is an
// existence probe, not an exclusivity ledger.
func NewObjectKey(dialogID string) string {
	return fmt.Sprintf("attachments/%s/%s", dialogID, uuid.NewString())
}

// PresignUpload returns a time-limited PUT URL and the key the caller
// must reference in the subsequent send-message call.
func (s *Store) PresignUpload(ctx context.Context, dialogID, contentType string) (url string, objectKey string, expiresAt time.Time, err error) {
	if s == nil {
		return "", "", time.Time{}, errors.New(errors.ErrDependencyUnavailable, "object store is not configured")
	}
	key := NewObjectKey(dialogID)
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.uploadTTL))
	if err != nil {
		return "", "", time.Time{}, errors.Wrap(err, errors.ErrObjectStoreError)
	}
	return req.URL, key, time.Now().Add(s.uploadTTL), nil
}

// PresignDownload returns a time-limited GET URL for an existing key.
func (s *Store) PresignDownload(ctx context.Context, objectKey string) (url string, expiresAt time.Time, err error) {
	if s == nil {
		return "", time.Time{}, errors.New(errors.ErrDependencyUnavailable, "object store is not configured")
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(s.downloadTTL))
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, errors.ErrObjectStoreError)
	}
	return req.URL, time.Now().Add(s.downloadTTL), nil
}

// Exists probes whether objectKey was actually uploaded, used right
// before a message referencing it is committed so a client can never
// reference a key it never finished uploading.
func (s *Store) Exists(ctx context.Context, objectKey string) (bool, error) {
	if s == nil {
		return false, errors.New(errors.ErrDependencyUnavailable, "object store is not configured")
	}
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return false, nil
	}
	return true, nil
}

// Configured reports whether attachment uploads are available at all,
// for the health endpoint and the upload handler's pre-flight check.
func (s *Store) Configured() bool {
	return s != nil
}
