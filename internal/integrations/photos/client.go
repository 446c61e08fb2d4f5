package photos

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("photo not found")

// Client resolves a catalog photo key into a public URL.
type Client interface {
	PhotoURL(ctx context.Context, key string) (string, error)
}
