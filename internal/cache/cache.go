package cache

import (
	"context"
	"time"
)

// BytesCache is the small key/value surface the services need from Redis.
// A missing key is reported as ok=false with a nil error.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
