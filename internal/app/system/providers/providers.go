// Package providers proxies read-only legislative data sources
// (Congress.gov, LegiScan, BallotReady). Responses are passed through as
// opaque JSON and optionally cached.
package providers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	ErrNotConfigured = errors.New("data provider not configured")
	ErrNotFound      = errors.New("not found upstream")
	ErrUpstream      = errors.New("upstream provider error")
)

// KeyPlacement says how a source expects its API key.
type KeyPlacement int

const (
	KeyInQuery KeyPlacement = iota
	KeyInHeader
)

// Source is one upstream API.
type Source struct {
	Name      string
	BaseURL   string
	APIKey    string
	KeyName   string // query parameter or header carrying the key
	Placement KeyPlacement
	Fixed     url.Values // parameters added to every request
}

func (s Source) configured() bool {
	return s.BaseURL != "" && s.APIKey != ""
}

// Client fetches from Sources with an optional cache.
type Client struct {
	http  *http.Client
	cache Cache
	ttl   time.Duration
	log   *zap.Logger
}

// New builds a client. cache may be nil.
func New(httpClient *http.Client, cache Cache, ttl time.Duration, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Client{http: httpClient, cache: cache, ttl: ttl, log: logger}
}

// Fetch GETs {base}/{path}?query and returns the body. Cache hits skip the
// upstream call; cache failures are logged and otherwise ignored.
func (c *Client) Fetch(ctx context.Context, src Source, path string, query url.Values) (json.RawMessage, error) {
	if !src.configured() {
		return nil, fmt.Errorf("%s: %w", src.Name, ErrNotConfigured)
	}

	q := url.Values{}
	for k, v := range src.Fixed {
		q[k] = v
	}
	for k, v := range query {
		q[k] = v
	}
	target := strings.TrimRight(src.BaseURL, "/")
	if path != "" {
		target += "/" + strings.TrimLeft(path, "/")
	}
	// The cache key excludes the API key.
	key := cacheKey(src.Name, target, q)

	if c.cache != nil {
		if b, ok, err := c.cache.Get(ctx, key); err != nil {
			c.log.Warn("provider cache get failed", zap.String("source", src.Name), zap.Error(err))
		} else if ok {
			return b, nil
		}
	}

	if src.Placement == KeyInQuery {
		q.Set(src.KeyName, src.APIKey)
	}
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if src.Placement == KeyInHeader {
		req.Header.Set(src.KeyName, src.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", src.Name, ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", src.Name, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", src.Name, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%s: %w: status %d", src.Name, ErrUpstream, resp.StatusCode)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%s: %w: response is not JSON", src.Name, ErrUpstream)
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, body, c.ttl); err != nil {
			c.log.Warn("provider cache set failed", zap.String("source", src.Name), zap.Error(err))
		}
	}
	return body, nil
}

func cacheKey(name, target string, q url.Values) string {
	sum := sha256.Sum256([]byte(target + "?" + q.Encode()))
	return name + ":" + hex.EncodeToString(sum[:])
}
