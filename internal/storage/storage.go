// Package storage persists uploaded meme media on local disk or in an S3
// compatible bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/4xmen/memeboard/pkg/config"
)

// Backend saves media and returns the public URL clients should load.
type Backend interface {
	Save(ctx context.Context, name, contentType string, r io.Reader, size int64) (string, error)
	// Delete removes an object previously returned by Save. URLs the backend
	// does not own are ignored.
	Delete(ctx context.Context, url string) error
}

// New picks the backend named by cfg.StorageType.
func New(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.StorageType {
	case "", "local":
		return NewLocal(cfg.FileStoragePath, cfg.PublicBaseURL)
	case "s3":
		s3, err := NewS3(S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
			Bucket:    cfg.S3Bucket,
		})
		if err != nil {
			return nil, err
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure bucket %s: %w", cfg.S3Bucket, err)
		}
		return s3, nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.StorageType)
	}
}

// GenerateFilename returns "<uuid>_<unix seconds>.<ext>" keeping the extension
// of name, or jpg when it has none.
func GenerateFilename(name string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		ext = "jpg"
	}
	return fmt.Sprintf("%s_%d.%s", uuid.NewString(), time.Now().Unix(), ext)
}

// ContentType maps a file name to the MIME type stored with it.
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	default:
		return "application/octet-stream"
	}
}

// MediaType classifies a content type as image or video.
func MediaType(contentType string) string {
	if strings.HasPrefix(contentType, "video/") {
		return "video"
	}
	return "image"
}
