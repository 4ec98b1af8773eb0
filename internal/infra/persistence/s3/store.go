// Package s3 implements a persistence backend on an S3-compatible object store
// (AWS S3 or MinIO). Each bucket of a project is one object under a key prefix.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"twincore/internal/persistence/core"
	"twincore/pkg/domain"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

var _ core.Backend = (*Store)(nil)

// Store implements core.Backend using a single S3 bucket.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// Config holds explicit construction parameters. Credentials fall back to
// the default AWS chain when AccessKeyID is empty.
type Config struct {
	Region          string
	Bucket          string
	Prefix          string // object key prefix, usually the project name
	Endpoint        string // optional; if set enables custom endpoint (e.g. MinIO)
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	PathStyle       bool
}

// New creates an S3 backend from Config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &Store{client: client, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

// Driver returns the backend driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverS3 }

// Close is a no-op; the SDK client owns no closable resources.
func (s *Store) Close() error { return nil }

// Key returns the object key used for bucket.
func (s *Store) Key(bucket domain.Bucket) string {
	name := string(bucket) + ".json"
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Load fetches the object of bucket.
func (s *Store) Load(ctx context.Context, bucket domain.Bucket) ([]byte, error) {
	key := s.Key(bucket)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("s3://%s/%s: %w", s.bucket, key, core.ErrBucketNotFound)
		}
		return nil, err
	}
	defer func() { _ = out.Body.Close() }()
	return io.ReadAll(out.Body)
}

// Save overwrites the object of bucket. S3 object writes are atomic, so
// readers never observe a partial payload.
func (s *Store) Save(ctx context.Context, bucket domain.Bucket, payload []byte) error {
	key := s.Key(bucket)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Exists heads the object of bucket.
func (s *Store) Exists(ctx context.Context, bucket domain.Bucket) (bool, error) {
	key := s.Key(bucket)
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &key})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}
