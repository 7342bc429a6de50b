package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Milan-Sharma1/vsp-backend/internal/config"
)

// Blob is a stored object: the URL clients fetch and the key used to
// release it later.
type Blob struct {
	URL string
	Key string
}

type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

type BlobStore interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (Blob, error)
	Release(ctx context.Context, key string) error
	// Walk calls fn for every object under prefix. Returning an error from fn
	// stops the walk.
	Walk(ctx context.Context, prefix string, fn func(ObjectInfo) error) error
}

// New builds the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (BlobStore, error) {
	switch cfg.Driver {
	case config.DriverMinio, "":
		return NewMinioStore(cfg)
	case config.DriverS3:
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func publicURL(cfg config.StorageConfig, key string) string {
	if cfg.PublicBaseURL != "" {
		return strings.TrimSuffix(cfg.PublicBaseURL, "/") + "/" + key
	}

	base := strings.TrimSuffix(cfg.Endpoint, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		if cfg.UseSSL {
			base = "https://" + base
		} else {
			base = "http://" + base
		}
	}
	return fmt.Sprintf("%s/%s/%s", base, cfg.Bucket, key)
}
