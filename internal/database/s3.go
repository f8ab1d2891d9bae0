package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"storyconnect-backend/config"
)

type MediaKind string

const (
	MediaImage     MediaKind = "image"
	MediaVideo     MediaKind = "video"
	MediaThumbnail MediaKind = "thumbnail"
)

func ParseMediaKind(s string) (MediaKind, error) {
	switch k := MediaKind(strings.ToLower(s)); k {
	case MediaImage, MediaVideo, MediaThumbnail:
		return k, nil
	}
	return "", fmt.Errorf("invalid media kind %q", s)
}

// Extension and content type used for uploads of each kind
func (k MediaKind) Extension() string {
	if k == MediaVideo {
		return ".mp4"
	}
	return ".jpg"
}

func (k MediaKind) ContentType() string {
	if k == MediaVideo {
		return "video/mp4"
	}
	return "image/jpeg"
}

// MediaStore wraps the S3-compatible bucket storage (Cloudflare R2 or MinIO)
// holding story media and thumbnails.
type MediaStore struct {
	client      *s3.Client
	presign     *s3.PresignClient
	mediaBucket string
	thumbBucket string
	urlTTL      time.Duration
}

// ConnectS3 initializes the S3-compatible client
func ConnectS3(cfg *config.Config) (*MediaStore, error) {
	ctx := context.Background()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)),
		awsconfig.WithRegion(cfg.S3Region),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	endpointURL := getEndpointURL(cfg.S3Endpoint, cfg.S3UseSSL)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpointURL)
		// path-style addressing is required for R2 and MinIO custom endpoints
		o.UsePathStyle = true
	})

	slog.Info("connected to S3-compatible storage",
		"endpoint", endpointURL, "region", cfg.S3Region,
		"media_bucket", cfg.S3BucketMedia, "thumb_bucket", cfg.S3BucketThumbs)

	return &MediaStore{
		client:      client,
		presign:     s3.NewPresignClient(client),
		mediaBucket: cfg.S3BucketMedia,
		thumbBucket: cfg.S3BucketThumbs,
		urlTTL:      cfg.MediaURLTTL,
	}, nil
}

// getEndpointURL constructs the full endpoint URL
func getEndpointURL(endpoint string, useSSL bool) string {
	if isURL(endpoint) {
		return endpoint
	}
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, endpoint)
}

func isURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

func (m *MediaStore) bucketFor(kind MediaKind) string {
	if kind == MediaThumbnail {
		return m.thumbBucket
	}
	return m.mediaBucket
}

// Ping checks that the media bucket is reachable.
func (m *MediaStore) Ping(ctx context.Context) error {
	_, err := m.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(m.mediaBucket)})
	return err
}

// PresignUpload generates a pre-signed PUT URL for a new object.
func (m *MediaStore) PresignUpload(ctx context.Context, kind MediaKind, key string, expiresIn time.Duration) (string, error) {
	request, err := m.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucketFor(kind)),
		Key:         aws.String(key),
		ContentType: aws.String(kind.ContentType()),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expiresIn
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned upload URL: %w", err)
	}
	return request.URL, nil
}

// ResolveRef turns a stored media reference into a fetchable URL. Absolute
// URLs are returned unchanged; storage keys are pre-signed for download.
func (m *MediaStore) ResolveRef(ctx context.Context, kind MediaKind, ref string) (string, error) {
	if ref == "" {
		return "", errors.New("empty media reference")
	}
	if isURL(ref) {
		return ref, nil
	}

	request, err := m.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucketFor(kind)),
		Key:    aws.String(ref),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = m.urlTTL
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned download URL: %w", err)
	}
	return request.URL, nil
}
