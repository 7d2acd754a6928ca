// Package datasources proxies the legislative data providers to the
// browser. Each client keeps at most one in-flight search per endpoint;
// a newer search cancels the older one.
package datasources

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	uierrors "github.com/dalemusser/civichub/internal/app/features/errors"
	"github.com/dalemusser/civichub/internal/app/system/auth"
	"github.com/dalemusser/civichub/internal/app/system/latest"
	"github.com/dalemusser/civichub/internal/app/system/providers"
	"github.com/dalemusser/civichub/internal/app/system/ratelimit"
	"github.com/dalemusser/civichub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// ClientHeader lets a browser tab name itself so two tabs of the same caller
// do not cancel each other's searches.
const ClientHeader = "X-Client-Id"

// Channels tracked per client.
const (
	ChannelBills     = "bills"
	ChannelLegiScan  = "legiscan"
	ChannelOfficials = "officials"
)

type Handler struct {
	Client      *providers.Client
	Congress    providers.Source
	LegiScan    providers.Source
	BallotReady providers.Source
	Tracker     *latest.Tracker
	ErrLog      *uierrors.ErrorLogger
	Log         *zap.Logger
}

func NewHandler(client *providers.Client, congress, legiscan, ballotready providers.Source, tracker *latest.Tracker, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Client:      client,
		Congress:    congress,
		LegiScan:    legiscan,
		BallotReady: ballotready,
		Tracker:     tracker,
		ErrLog:      errLog,
		Log:         logger,
	}
}

// result is the body of every provider response. Seq lets the caller drop
// answers that arrive after a newer search was issued.
type result struct {
	Seq  uint64          `json:"seq"`
	Data json.RawMessage `json:"data"`
}

// clientKey scopes searches to the signed-in user, or to the address for
// anonymous callers. The tab id only splits searches within that scope, so
// naming another caller's tab cancels nothing of theirs.
func clientKey(r *http.Request) string {
	owner := "ip:" + ratelimit.ClientIP(r)
	if u, ok := auth.CurrentUser(r); ok {
		owner = "user:" + u.ID
	}
	if id := strings.TrimSpace(r.Header.Get(ClientHeader)); id != "" {
		return owner + "|tab:" + id
	}
	return owner
}

// fetch runs one tracked provider call on channel and writes its result.
func (h *Handler) fetch(w http.ResponseWriter, r *http.Request, channel string, src providers.Source, path string, q url.Values) {
	client := clientKey(r)
	ctx, seq, done := h.Tracker.Begin(r.Context(), client, channel)
	defer done()

	ctx, cancel := context.WithTimeout(ctx, timeouts.Long())
	defer cancel()

	data, err := h.Client.Fetch(ctx, src, path, q)

	// A newer search on this channel owns the response now.
	if !h.Tracker.Current(client, channel, seq) {
		h.Log.Debug("provider search superseded", zap.String("channel", channel), zap.Uint64("seq", seq))
		uierrors.Conflict(w, "superseded")
		return
	}

	switch {
	case err == nil:
		uierrors.WriteJSON(w, http.StatusOK, result{Seq: seq, Data: data})
	case errors.Is(err, providers.ErrNotConfigured):
		h.ErrLog.LogUpstream(w, r, http.StatusServiceUnavailable, "provider not configured", err, src.Name+" is not configured")
	case errors.Is(err, providers.ErrNotFound):
		uierrors.NotFound(w, "not found")
	default:
		h.ErrLog.LogUpstream(w, r, http.StatusBadGateway, "provider request failed", err, src.Name+" is unavailable, try again later")
	}
}
