package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type memCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.m[key]
	return b, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, val []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = map[string][]byte{}
	}
	c.m[key] = val
	return nil
}

func TestFetch_QueryKeyAndCache(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/v3/bill/118" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("api_key") != "k" || r.URL.Query().Get("format") != "json" {
			t.Errorf("query = %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"bills":[]}`))
	}))
	defer srv.Close()

	c := New(srv.Client(), &memCache{}, time.Minute, zap.NewNop())
	src := Congress(srv.URL+"/v3", "k")
	for i := 0; i < 2; i++ {
		b, err := c.Fetch(context.Background(), src, "bill/118", url.Values{"limit": {"5"}})
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if string(b) != `{"bills":[]}` {
			t.Errorf("body = %s", b)
		}
	}
	if calls != 1 {
		t.Errorf("upstream calls = %d, want 1 (second served from cache)", calls)
	}
}

func TestFetch_HeaderKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "br" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("x-api-key") != "" {
			t.Error("header key leaked into query")
		}
		_, _ = w.Write([]byte(`{"id":"42"}`))
	}))
	defer srv.Close()

	c := New(srv.Client(), nil, 0, zap.NewNop())
	if _, err := c.Fetch(context.Background(), BallotReady(srv.URL, "br"), "officials/42", nil); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
}

func TestFetch_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"not found", http.StatusNotFound, `{}`, ErrNotFound},
		{"server error", http.StatusInternalServerError, `{}`, ErrUpstream},
		{"not json", http.StatusOK, `<html>`, ErrUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := New(srv.Client(), nil, 0, zap.NewNop())
			_, err := c.Fetch(context.Background(), LegiScan(srv.URL, "k"), "", nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFetch_NotConfigured(t *testing.T) {
	c := New(nil, nil, 0, zap.NewNop())
	if _, err := c.Fetch(context.Background(), Congress("", ""), "bill", nil); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestPick(t *testing.T) {
	in := url.Values{"q": {"water"}, "state": {""}, "drop": {"x"}}
	got := Pick(in, "q", "state")
	if got.Encode() != "q=water" {
		t.Errorf("Pick = %q", got.Encode())
	}
}
