package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"alcyxob/media-service/internal/config"
	"alcyxob/media-service/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config" // Alias config to avoid clash
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// S3Driver stores uploads in an S3-compatible bucket. Files are staged in the
// upload directory first; the staged copy is removed after a successful PUT.
type S3Driver struct {
	client        *s3.Client
	uploader      *manager.Uploader
	bucket        string
	region        string
	endpoint      string
	pathStyle     bool
	publicBaseURL string
	r2PublicHash  string
	log           *zap.SugaredLogger
}

// NewS3Driver builds the S3 client. Loading the SDK config does not touch
// the network.
func NewS3Driver(ctx context.Context, cfg config.S3Config, log *zap.SugaredLogger) (*S3Driver, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 storage requires a bucket")
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	region := cfg.Region
	if endpoint == "" && cfg.R2AccountID != "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2AccountID)
	}
	if region == "" {
		region = "auto"
	}

	opts := []func(*awsCfg.LoadOptions) error{awsCfg.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsCfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsSDKConfig, err := awsCfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsSDKConfig, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	log.Infow("S3 storage initialized", "endpoint", endpoint, "bucket", cfg.Bucket, "path_style", cfg.ForcePathStyle)

	return &S3Driver{
		client:        client,
		uploader:      manager.NewUploader(client),
		bucket:        cfg.Bucket,
		region:        region,
		endpoint:      endpoint,
		pathStyle:     cfg.ForcePathStyle,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		r2PublicHash:  cfg.R2PublicHash,
		log:           log,
	}, nil
}

func (d *S3Driver) Name() string { return domain.StorageS3 }

func (d *S3Driver) Describe(h Handle) Location {
	return Location{Storage: domain.StorageS3, StorageKey: h.Key, URL: d.PublicURLForKey(h.Key)}
}

func (d *S3Driver) Upload(ctx context.Context, h Handle) (Location, error) {
	f, err := os.Open(h.Path)
	if err != nil {
		return Location{}, fmt.Errorf("opening staged file: %w", err)
	}
	_, err = d.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(h.Key),
		Body:        f,
		ContentType: aws.String(h.ContentType),
	})
	f.Close()
	if err != nil {
		return Location{}, fmt.Errorf("put object %q: %w", h.Key, err)
	}

	if err := os.Remove(h.Path); err != nil {
		d.log.Warnw("Failed to remove staged file after upload", "key", h.Key, "error", err)
	}
	return d.Describe(h), nil
}

// PublicURLForKey prefers an explicit public base URL, then the Cloudflare R2
// public bucket domain, then the endpoint or AWS bucket/region pattern.
func (d *S3Driver) PublicURLForKey(key string) string {
	escaped := escapeKey(key)
	switch {
	case d.publicBaseURL != "":
		return d.publicBaseURL + "/" + escaped
	case d.r2PublicHash != "":
		return fmt.Sprintf("https://pub-%s.r2.dev/%s", d.r2PublicHash, escaped)
	case d.endpoint != "" && d.pathStyle:
		return fmt.Sprintf("%s/%s/%s", d.endpoint, d.bucket, escaped)
	case d.endpoint != "":
		scheme, host, ok := strings.Cut(d.endpoint, "://")
		if !ok {
			scheme, host = "https", d.endpoint
		}
		return fmt.Sprintf("%s://%s.%s/%s", scheme, d.bucket, host, escaped)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", d.bucket, d.region, escaped)
	}
}

func (d *S3Driver) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("get object %q: %w", key, err)
	}
	return out.Body, nil
}

func (d *S3Driver) Delete(ctx context.Context, key string) error {
	_, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %q: %w", key, err)
	}
	return nil
}
