// Package storage hands out presigned upload URLs for account profile images.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/spec-kit/marketplace-api/internal/config"
)

const profileImagePrefix = "profile-images"

var allowedContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// ErrUnsupportedContentType is returned for uploads that are not images we serve.
var ErrUnsupportedContentType = errors.New("unsupported content type")

// Upload describes where a client should PUT its image.
type Upload struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ImageStore presigns uploads into the profile image bucket.
type ImageStore struct {
	presign  *s3.PresignClient
	bucket   string
	endpoint string
	region   string
	ttl      time.Duration
	now      func() time.Time
}

// NewImageStore builds the S3 client from static credentials when provided, and the
// default AWS chain otherwise.
func NewImageStore(ctx context.Context, cfg config.StorageConfig) (*ImageStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	ttl := time.Duration(cfg.UploadTTLMinute) * time.Minute
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &ImageStore{
		presign:  s3.NewPresignClient(client),
		bucket:   cfg.Bucket,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		region:   cfg.Region,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// PresignProfileUpload returns a PUT URL for a new object under the account's prefix.
func (s *ImageStore) PresignProfileUpload(ctx context.Context, accountID, contentType string) (*Upload, error) {
	ext, ok := allowedContentTypes[contentType]
	if !ok {
		return nil, ErrUnsupportedContentType
	}

	key := fmt.Sprintf("%s/%s/%s%s", profileImagePrefix, accountID, uuid.NewString(), ext)
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}

	return &Upload{Key: key, URL: req.URL, ExpiresAt: s.now().Add(s.ttl)}, nil
}

// OwnsKey reports whether key was issued for accountID.
func (s *ImageStore) OwnsKey(accountID, key string) bool {
	prefix := profileImagePrefix + "/" + accountID + "/"
	return accountID != "" && strings.HasPrefix(key, prefix) && len(key) > len(prefix) && !strings.Contains(key, "..")
}

// PublicURL is the address the stored image is served from.
func (s *ImageStore) PublicURL(key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	if s.endpoint != "" {
		return s.endpoint + "/" + s.bucket + "/" + escaped
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, escaped)
}
