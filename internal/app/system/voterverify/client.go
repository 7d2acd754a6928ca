// Package voterverify is the HTTP client for the voter-file matching API.
package voterverify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/civichub/internal/app/system/verification"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

// Config configures the client. When TokenURL is set the client
// authenticates with OAuth2 client credentials, otherwise with APIKey.
type Config struct {
	BaseURL      string
	APIKey       string
	TokenURL     string
	ClientID     string
	ClientSecret string
	RPS          float64 // outbound requests per second; <=0 means 2
	Timeout      time.Duration
}

// Client calls POST {BaseURL}/verify-voter. It implements
// verification.Verifier.
type Client struct {
	base    string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// New builds a client. httpClient may be nil.
func New(cfg Config, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("voterverify: base URL is required")
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if cfg.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		// Token fetches reuse the base client (timeouts, test transports).
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		authed := cc.Client(ctx)
		authed.Timeout = httpClient.Timeout
		httpClient = authed
	}
	rps := cfg.RPS
	if rps <= 0 {
		rps = 2
	}
	return &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		log:     logger,
	}, nil
}

type verifyRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zipCode"`
	Phone     string `json:"phone,omitempty"`
	DobMonth  string `json:"dobMonth,omitempty"`
	DobDay    string `json:"dobDay,omitempty"`
	DobYear   string `json:"dobYear,omitempty"`
	VoterID   string `json:"voterId,omitempty"`
}

type verifyResponse struct {
	Success bool `json:"success"`
	Matches []struct {
		VoterID                string `json:"voterId"`
		FullName               string `json:"fullName"`
		Address                string `json:"address"`
		City                   string `json:"city"`
		State                  string `json:"state"`
		ZipCode                string `json:"zipCode"`
		ConstituentDescription string `json:"constituentDescription"`
		CongressionalDistrict  string `json:"congressionalDistrict"`
	} `json:"matches"`
	Error string `json:"error"`
}

// Verify sends one lookup. Non-2xx responses, undecodable bodies, and
// success=false all return an error.
func (c *Client) Verify(ctx context.Context, q verification.Query) ([]verification.Match, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("voterverify: rate wait: %w", err)
	}

	body := verifyRequest{
		FirstName: q.Entry.FirstName,
		LastName:  q.Entry.LastName,
		Address:   q.Entry.Address,
		City:      q.Entry.City,
		State:     q.Entry.State,
		ZipCode:   q.Entry.ZipCode,
	}
	if ref := q.Refinement; ref != nil {
		body.Phone = ref.Phone
		body.DobMonth = ref.DobMonth
		body.DobDay = ref.DobDay
		body.DobYear = ref.DobYear
		body.VoterID = ref.VoterID
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/verify-voter", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voterverify: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("voterverify: read body: %w", err)
	}
	c.log.Debug("voter lookup",
		zap.Int("status", resp.StatusCode),
		zap.Bool("refined", q.Refinement != nil),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("voterverify: unexpected status %d", resp.StatusCode)
	}

	var out verifyResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("voterverify: decode: %w", err)
	}
	// The API reports "no record" as success=false. It is an answer, not a
	// failure, so the flow still advances.
	if !out.Success {
		c.log.Info("voter lookup unsuccessful",
			zap.String("error", out.Error),
			zap.Int("matches", len(out.Matches)))
		return []verification.Match{}, nil
	}

	matches := make([]verification.Match, 0, len(out.Matches))
	for _, m := range out.Matches {
		matches = append(matches, verification.Match{
			ID:                     m.VoterID,
			FullName:               m.FullName,
			Address:                m.Address,
			City:                   m.City,
			State:                  m.State,
			ZipCode:                m.ZipCode,
			ConstituentDescription: m.ConstituentDescription,
			CongressionalDistrict:  m.CongressionalDistrict,
		})
	}
	return matches, nil
}
