// Package verify serves the voter-verification flows. Each flow keeps its
// state in its own signed cookie; nothing is written to the database until
// signup or a poll response consumes the verified identity.
package verify

import (
	"net/http"

	uierrors "github.com/dalemusser/civichub/internal/app/features/errors"
	"github.com/dalemusser/civichub/internal/app/system/auditlog"
	"github.com/dalemusser/civichub/internal/app/system/auth"
	"github.com/dalemusser/civichub/internal/app/system/ratelimit"
	"github.com/dalemusser/civichub/internal/app/system/verification"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

// Flows that own a verification cookie.
const (
	FlowSignup = "signup"
	FlowPoll   = "poll"
)

// flowMaxAge is how long an abandoned flow survives (seconds).
const flowMaxAge = 60 * 60

const stateKey = "state"

// ValidFlow reports whether flow names a known flow.
func ValidFlow(flow string) bool {
	return flow == FlowSignup || flow == FlowPoll
}

// CookieName is the cookie holding flow's state.
func CookieName(flow string) string { return "civichub-verify-" + flow }

// Handler owns the verification endpoints.
type Handler struct {
	Sessions        *auth.SessionManager
	Machine         *verification.Machine
	Lookups         *ratelimit.LookupLimiter
	RegistrationURL string
	ErrLog          *uierrors.ErrorLogger
	Audit           *auditlog.Logger
	Log             *zap.Logger
}

// NewHandler constructs a Handler. lookups may be nil to disable throttling.
func NewHandler(sm *auth.SessionManager, m *verification.Machine, lookups *ratelimit.LookupLimiter, registrationURL string, errLog *uierrors.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Sessions:        sm,
		Machine:         m,
		Lookups:         lookups,
		RegistrationURL: registrationURL,
		ErrLog:          errLog,
		Audit:           audit,
		Log:             logger,
	}
}

func (h *Handler) cookie(r *http.Request, flow string) *sessions.Session {
	sess, err := h.Sessions.GetNamedSession(r, CookieName(flow))
	if err != nil {
		// Tampered or stale cookie: start the flow over.
		h.Log.Debug("verification cookie decode failed", zap.String("flow", flow), zap.Error(err))
	}
	return sess
}

// Load returns flow's current state. A missing or unreadable cookie yields
// a fresh session in the initial state.
func (h *Handler) Load(r *http.Request, flow string) *verification.Session {
	raw, _ := h.cookie(r, flow).Values[stateKey].([]byte)
	s, err := verification.Decode(raw)
	if err != nil {
		h.Log.Warn("verification state decode failed", zap.String("flow", flow), zap.Error(err))
		return verification.NewSession()
	}
	return s
}

// Save writes s to flow's cookie. Encoding may shorten s.Matches so the
// cookie stays under the browser limit.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request, flow string, s *verification.Session) error {
	raw, err := s.Encode()
	if err != nil {
		return err
	}
	sess := h.cookie(r, flow)
	opts := *h.Sessions.Store().Options
	opts.MaxAge = flowMaxAge
	sess.Options = &opts
	sess.Values[stateKey] = raw
	return sess.Save(r, w)
}

// Clear deletes flow's cookie. Signup and poll responses call it once the
// identity has been persisted.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request, flow string) {
	sess := h.cookie(r, flow)
	opts := *h.Sessions.Store().Options
	opts.MaxAge = -1
	sess.Options = &opts
	delete(sess.Values, stateKey)
	if err := sess.Save(r, w); err != nil {
		h.Log.Warn("clear verification cookie failed", zap.String("flow", flow), zap.Error(err))
	}
}
