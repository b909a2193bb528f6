package assetproxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/paperdb/internal/common"
	"github.com/ternarybob/paperdb/internal/interfaces"
	"github.com/ternarybob/paperdb/internal/models"
)

var _ interfaces.AssetFetcher = (*Fetcher)(nil)

const (
	defaultTimeout   = 10 * time.Second
	defaultCacheSize = 128
	maxBodyBytes     = 16 << 20

	// TruncationMarker is appended when content is cut at max_chars.
	TruncationMarker = "\n\n[content truncated]"
)

// Fetcher retrieves static summary/source content over HTTP with a bounded
// timeout, a request rate cap, and a best-effort LRU cache. The snapshot is
// immutable, so cached bytes never go stale within a process.
type Fetcher struct {
	logger  arbor.ILogger
	client  *http.Client
	limiter *rate.Limiter
	cache   *lru.Cache[string, []byte]
}

// NewFetcher builds a fetcher from the proxy config section.
func NewFetcher(logger arbor.ILogger, cfg common.ProxyConfig) (*Fetcher, error) {
	timeout := defaultTimeout
	if cfg.FetchTimeout != "" {
		d, err := time.ParseDuration(cfg.FetchTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid fetch_timeout %q: %w", cfg.FetchTimeout, err)
		}
		timeout = d
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}

	return &Fetcher{
		logger:  logger,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(50), 100),
		cache:   cache,
	}, nil
}

func (f *Fetcher) fetch(ctx context.Context, assetURL string) ([]byte, error) {
	if data, ok := f.cache.Get(assetURL); ok {
		return data, nil
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrAssetFetchFailed, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s", models.ErrAssetFetchTimeout, assetURL)
		}
		return nil, fmt.Errorf("%w: %v", models.ErrAssetFetchFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", models.ErrAssetMissing, assetURL)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d from %s", models.ErrAssetFetchFailed, resp.StatusCode, assetURL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s", models.ErrAssetFetchTimeout, assetURL)
		}
		return nil, fmt.Errorf("%w: %v", models.ErrAssetFetchFailed, err)
	}

	f.cache.Add(assetURL, data)
	return data, nil
}

func isTimeout(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// FetchJSON retrieves and decodes a JSON asset.
func (f *Fetcher) FetchJSON(ctx context.Context, assetURL string, out interface{}) error {
	data, err := f.fetch(ctx, assetURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", models.ErrAssetFetchFailed, assetURL, err)
	}
	return nil
}

// FetchText retrieves a text asset (markdown).
func (f *Fetcher) FetchText(ctx context.Context, assetURL string) (string, error) {
	data, err := f.fetch(ctx, assetURL)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Truncate cuts s at maxChars runes and appends a visible marker. Zero or
// negative maxChars means no bound.
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars]) + TruncationMarker
}
