// Package archive stores JSON reports in S3-compatible object storage.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/sbw-site/geotrack/internal/config"
)

const (
	defaultPathTemplate = "movement/{Y}/{m}/{d}/{H}/{filename}"
	defaultRegion       = "us-east-1"
)

// Archiver stores one object.
type Archiver interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// S3 writes objects to a single bucket.
type S3 struct {
	client *s3.Client
	bucket string
}

// NewS3 builds an S3 archiver from cfg. Custom endpoints (MinIO, R2) are
// addressed path-style unless configured otherwise.
func NewS3(cfg config.ArchiveConfig) (*S3, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("archive bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = defaultRegion
	}

	opts := s3.Options{
		Region:                     region,
		UsePathStyle:               cfg.PathStyle,
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		)
	}
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}
		opts.BaseEndpoint = aws.String(strings.TrimSuffix(endpoint, "/"))
		opts.UsePathStyle = true
	}

	return &S3{client: s3.New(opts), bucket: bucket}, nil
}

func (a *S3) Put(ctx context.Context, key string, body []byte, contentType string) error {
	key = normalizeKey(key)
	if key == "" {
		return errors.New("invalid object key")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", a.bucket, key, err)
	}
	return nil
}

// ObjectKey renders template for filename at the given time. Supported
// placeholders: {Y} {m} {d} {H} {M} {s} {filename}.
func ObjectKey(template, filename string, at time.Time) string {
	tpl := strings.TrimSpace(template)
	if tpl == "" {
		tpl = defaultPathTemplate
	}

	replacer := strings.NewReplacer(
		"{Y}", at.Format("2006"),
		"{m}", at.Format("01"),
		"{d}", at.Format("02"),
		"{H}", at.Format("15"),
		"{M}", at.Format("04"),
		"{s}", at.Format("05"),
		"{filename}", filename,
	)
	if key := normalizeKey(replacer.Replace(tpl)); key != "" {
		return key
	}
	return filename
}

func normalizeKey(key string) string {
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimSpace(strings.TrimPrefix(key, "/"))
	for strings.Contains(key, "//") {
		key = strings.ReplaceAll(key, "//", "/")
	}
	return key
}
