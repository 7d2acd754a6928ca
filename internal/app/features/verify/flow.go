package verify

import (
	"context"
	"errors"
	"net/http"
	"time"

	uierrors "github.com/dalemusser/civichub/internal/app/features/errors"
	"github.com/dalemusser/civichub/internal/app/system/timeouts"
	"github.com/dalemusser/civichub/internal/app/system/verification"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// stateView is what every endpoint returns.
type stateView struct {
	Flow string `json:"flow"`
	*verification.Session
	Enabled         bool   `json:"verificationEnabled"`
	RegistrationURL string `json:"registrationUrl,omitempty"`
}

func (h *Handler) flow(w http.ResponseWriter, r *http.Request) (string, bool) {
	flow := chi.URLParam(r, "flow")
	if !ValidFlow(flow) {
		uierrors.NotFound(w, "unknown verification flow")
		return "", false
	}
	return flow, true
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, flow string, s *verification.Session) {
	if err := h.Save(w, r, flow, s); err != nil {
		h.ErrLog.LogServerError(w, r, "save verification cookie failed", err, "Unable to save verification progress.")
		return
	}
	v := stateView{Flow: flow, Session: s, Enabled: h.Machine.Enabled()}
	if s.State == verification.StateNotFound {
		v.RegistrationURL = h.RegistrationURL
	}
	uierrors.WriteJSON(w, http.StatusOK, v)
}

// fail maps a machine error to a response. The session is not saved, so
// the client stays on the same step.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, flow string, err error) {
	var ve *verification.ValidationError
	var te *verification.TransitionError
	switch {
	case errors.As(err, &ve):
		uierrors.Validation(w, "please correct the highlighted fields", ve.Fields)
	case errors.Is(err, verification.ErrTermsNotAccepted):
		uierrors.Validation(w, err.Error(), []string{"termsAccepted"})
	case errors.Is(err, verification.ErrUnknownMatch):
		uierrors.Validation(w, err.Error(), []string{"matchId"})
	case errors.As(err, &te):
		uierrors.Conflict(w, err.Error())
	case errors.Is(err, verification.ErrLookupFailed):
		h.ErrLog.LogUpstream(w, r, http.StatusBadGateway, "voter lookup failed", err,
			"We could not reach the voter verification service. Please try again.")
	default:
		h.ErrLog.LogServerError(w, r, "verification step failed", err, "Verification failed.")
	}
	h.Log.Debug("verification step rejected", zap.String("flow", flow), zap.Error(err))
}

// lookupRetryAfter is the Retry-After sent once a client's hourly lookup
// budget is spent.
const lookupRetryAfter = 10 * time.Minute

// allowLookup applies the per-client lookup budget when lookups are live.
func (h *Handler) allowLookup(w http.ResponseWriter, r *http.Request) bool {
	if h.Lookups == nil || !h.Machine.Enabled() {
		return true
	}
	if !h.Lookups.Allow(r) {
		uierrors.TooManyRequests(w, lookupRetryAfter)
		return false
	}
	return true
}

// ServeState handles GET /api/verify/{flow}.
func (h *Handler) ServeState(w http.ResponseWriter, r *http.Request) {
	flow, ok := h.flow(w, r)
	if !ok {
		return
	}
	s := h.Load(r, flow)
	v := stateView{Flow: flow, Session: s, Enabled: h.Machine.Enabled()}
	if s.State == verification.StateNotFound {
		v.RegistrationURL = h.RegistrationURL
	}
	uierrors.WriteJSON(w, http.StatusOK, v)
}

// HandleSubmit handles POST /api/verify/{flow}/submit.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	flow, ok := h.flow(w, r)
	if !ok {
		return
	}
	var e verification.Entry
	if err := uierrors.DecodeJSON(w, r, &e); err != nil {
		uierrors.Write(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.allowLookup(w, r) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	s := h.Load(r, flow)
	if err := h.Machine.Submit(ctx, s, e); err != nil {
		h.fail(w, r, flow, err)
		return
	}
	if s.State == verification.StateVerified {
		h.Audit.VoterVerified(ctx, r, flow, false)
	}
	h.respond(w, r, flow, s)
}

// HandleSelect handles POST /api/verify/{flow}/select.
func (h *Handler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	flow, ok := h.flow(w, r)
	if !ok {
		return
	}
	var body struct {
		MatchID string `json:"matchId"`
	}
	if err := uierrors.DecodeJSON(w, r, &body); err != nil {
		uierrors.Write(w, http.StatusBadRequest, err.Error())
		return
	}
	s := h.Load(r, flow)
	if err := h.Machine.Select(s, body.MatchID); err != nil {
		h.fail(w, r, flow, err)
		return
	}
	h.Audit.VoterVerified(r.Context(), r, flow, false)
	h.respond(w, r, flow, s)
}

// HandleNotListed handles POST /api/verify/{flow}/not-listed.
func (h *Handler) HandleNotListed(w http.ResponseWriter, r *http.Request) {
	flow, ok := h.flow(w, r)
	if !ok {
		return
	}
	s := h.Load(r, flow)
	if err := h.Machine.NotListed(s); err != nil {
		h.fail(w, r, flow, err)
		return
	}
	h.respond(w, r, flow, s)
}

type refineRequest struct {
	verification.Refinement
	TermsAccepted bool `json:"termsAccepted"`
}

// HandleRefine handles POST /api/verify/{flow}/refine.
func (h *Handler) HandleRefine(w http.ResponseWriter, r *http.Request) {
	flow, ok := h.flow(w, r)
	if !ok {
		return
	}
	var body refineRequest
	if err := uierrors.DecodeJSON(w, r, &body); err != nil {
		uierrors.Write(w, http.StatusBadRequest, err.Error())
		return
	}
	s := h.Load(r, flow)
	// Terms and state are checked before spending a lookup.
	if s.State == verification.StateRefineSearch && body.TermsAccepted && !h.allowLookup(w, r) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	if err := h.Machine.Refine(ctx, s, body.Refinement, body.TermsAccepted); err != nil {
		h.fail(w, r, flow, err)
		return
	}
	switch s.State {
	case verification.StateVerified:
		h.Audit.VoterVerified(ctx, r, flow, true)
	case verification.StateNotFound:
		h.Audit.VoterNotFound(ctx, r, flow)
	}
	h.respond(w, r, flow, s)
}

// HandleReset handles POST /api/verify/{flow}/reset.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	flow, ok := h.flow(w, r)
	if !ok {
		return
	}
	s := h.Load(r, flow)
	h.Machine.Reset(s)
	h.respond(w, r, flow, s)
}
