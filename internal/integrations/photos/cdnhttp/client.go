package cdnhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/BearBump/OrderBox/internal/cache"
	"github.com/BearBump/OrderBox/internal/integrations/photos"
	"github.com/pkg/errors"
)

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client

	cache    cache.BytesCache
	cacheTTL time.Duration
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:9100"
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// WithCache кэширует найденные URL, чтобы список заказов не ходил в CDN на каждую позицию.
func (c *Client) WithCache(bc cache.BytesCache, ttl time.Duration) *Client {
	if bc != nil && ttl > 0 {
		c.cache = bc
		c.cacheTTL = ttl
	}
	return c
}

type respBody struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

func (c *Client) PhotoURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", photos.ErrNotFound
	}

	cacheKey := "orderbox:photo:" + key
	if c.cache != nil {
		if b, ok, err := c.cache.Get(ctx, cacheKey); err == nil && ok {
			return string(b), nil
		}
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", errors.Wrap(err, "parse base url")
	}
	u.Path = "/v1/photos/" + url.PathEscape(key)
	q := u.Query()
	if c.apiKey != "" {
		q.Set("apiKey", c.apiKey)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", errors.Wrap(err, "new request")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", photos.ErrNotFound
	}
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("photo cdn http %d", resp.StatusCode)
	}

	var rb respBody
	if err := json.NewDecoder(resp.Body).Decode(&rb); err != nil {
		return "", errors.Wrap(err, "decode")
	}
	if rb.URL == "" {
		return "", photos.ErrNotFound
	}

	if c.cache != nil {
		_ = c.cache.Set(ctx, cacheKey, []byte(rb.URL), c.cacheTTL)
	}
	return rb.URL, nil
}
