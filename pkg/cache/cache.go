package cache

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"websites-content-system/pkg/models"
)

// KeyPrefix namespaces every cache entry written by this service.
const KeyPrefix = "WEBSITES_CONTENT_SYSTEM"

// DefaultTTL is the staleness window for cached trees.
const DefaultTTL = 5 * time.Minute

// Cache stores serialized project trees. Get reports false for missing or
// expired entries.
type Cache interface {
	Get(ctx context.Context, key string, dst *models.ProjectTree) (bool, error)
	Set(ctx context.Context, key string, tree models.ProjectTree) error
	Delete(ctx context.Context, key string) error
	Available() bool
	Kind() string
}

// New returns a FileCache rooted at dir, or a MemoryCache when the directory
// cannot be used.
func New(dir string, ttl time.Duration, logger *zap.Logger) Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	fc, err := NewFileCache(dir, ttl)
	if err != nil {
		logger.Warn("File cache unavailable, using memory cache",
			zap.String("dir", dir), zap.Error(err))
		return NewMemoryCache(ttl)
	}
	logger.Info("Using file cache", zap.String("dir", dir), zap.Duration("ttl", ttl))
	return fc
}

// prefixedKey builds a filesystem-safe key.
func prefixedKey(key string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_").Replace(key)
	return KeyPrefix + "_" + safe
}
