package fake

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/BearBump/OrderBox/internal/integrations/photos"
)

// FakeClient: заглушка CDN для локального запуска: URL строится детерминированно по ключу.
type FakeClient struct {
	baseURL string
}

func New(baseURL string) *FakeClient {
	if baseURL == "" {
		baseURL = "https://photos.local"
	}
	return &FakeClient{baseURL: baseURL}
}

func (f *FakeClient) PhotoURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", photos.ErrNotFound
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return fmt.Sprintf("%s/%02x/%s.jpg", f.baseURL, h.Sum32()%256, key), nil
}
