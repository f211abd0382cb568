// Package storage issues pre-signed S3 URLs for event posters.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

const (
	// MaxPosterSize is the maximum poster size accepted by the presigned PUT (5MB).
	MaxPosterSize = 5 * 1024 * 1024
	// FolderPosters is the S3 prefix for poster objects.
	FolderPosters = "posters"
)

// ErrUnsupportedType is returned for poster files that are not images.
var ErrUnsupportedType = errors.New("unsupported poster type")

var posterExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// S3Config holds S3 client configuration.
type S3Config struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	Endpoint             string // optional, for S3-compatible stores
	PostersBucket        string
	PublicBaseURL        string // optional CDN or bucket URL prefix
	PresignExpireMinutes int
}

// S3 signs poster uploads.
type S3 struct {
	presign *s3.PresignClient
	cfg     S3Config
}

// NewS3 creates an S3 client using credentials from config, the environment or the default chain.
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	accessKey, secretKey := cfg.AccessKeyID, cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
		logger.Info("S3 client using static credentials", zap.String("region", cfg.Region), zap.String("bucket", cfg.PostersBucket))
	} else {
		logger.Warn("S3 client using default credential chain")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3{presign: s3.NewPresignClient(client), cfg: cfg}, nil
}

// PosterContentType returns the MIME type for a poster filename, or ErrUnsupportedType.
func PosterContentType(filename string) (string, error) {
	ct, ok := posterExtensions[strings.ToLower(path.Ext(filename))]
	if !ok {
		return "", ErrUnsupportedType
	}
	return ct, nil
}

// PosterKey returns the object key posters/{event_id}/{filename}.
func PosterKey(eventID, filename string) string {
	return path.Join(FolderPosters, eventID, path.Base(filename))
}

// Upload is a pre-signed poster upload.
type Upload struct {
	UploadURL   string    `json:"upload_url"`
	PublicURL   string    `json:"public_url"`
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// PresignPoster returns a PUT URL for uploading a poster for the event.
func (s *S3) PresignPoster(ctx context.Context, eventID, filename string) (*Upload, error) {
	ct, err := PosterContentType(filename)
	if err != nil {
		return nil, err
	}
	key := PosterKey(eventID, filename)
	expires := s.PresignExpire()
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.PostersBucket),
		Key:         aws.String(key),
		ContentType: aws.String(ct),
	}, func(o *s3.PresignOptions) {
		o.Expires = expires
	})
	if err != nil {
		return nil, fmt.Errorf("presign put: %w", err)
	}
	return &Upload{
		UploadURL:   req.URL,
		PublicURL:   s.PublicURL(key),
		Key:         key,
		ContentType: ct,
		ExpiresAt:   time.Now().Add(expires).UTC(),
	}, nil
}

// PresignExpire returns the configured presign duration.
func (s *S3) PresignExpire() time.Duration {
	if s.cfg.PresignExpireMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(s.cfg.PresignExpireMinutes) * time.Minute
}

// PublicURL returns the public URL of an object.
func (s *S3) PublicURL(key string) string {
	if s.cfg.PublicBaseURL != "" {
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.PostersBucket, s.cfg.Region, key)
}
