package campaigns

import (
	"context"
	"errors"
	"net/http"
	"time"

	uierrors "github.com/dalemusser/civichub/internal/app/features/errors"
	"github.com/dalemusser/civichub/internal/app/policy/campaignpolicy"
	campaignstore "github.com/dalemusser/civichub/internal/app/store/campaigns"
	"github.com/dalemusser/civichub/internal/app/system/authz"
	"github.com/dalemusser/civichub/internal/app/system/timeouts"
	"github.com/dalemusser/civichub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// validationFailed writes a 400 for a campaignpolicy.ValidationError and
// reports whether err was one.
func validationFailed(w http.ResponseWriter, err error) bool {
	var ve *campaignpolicy.ValidationError
	if errors.As(err, &ve) {
		uierrors.Validation(w, ve.Error(), ve.Fields)
		return true
	}
	return false
}

// HandleCreate handles POST /api/campaigns.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor := authz.ActorFrom(r)
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		uierrors.Unauthorized(w)
		return
	}

	var in campaignpolicy.Input
	if err := uierrors.DecodeJSON(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode campaign body", err, "invalid request body")
		return
	}
	draft, err := campaignpolicy.ValidateCreate(in)
	if err != nil {
		if !validationFailed(w, err) {
			h.ErrLog.LogBadRequest(w, r, "validate campaign", err, err.Error())
		}
		return
	}
	if err := campaignpolicy.CanCreateAs(actor, draft.Owner); err != nil {
		h.ErrLog.LogForbidden(w, r, "create campaign for another owner", err.Error())
		return
	}

	var c models.Campaign
	draft.Apply(&c)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	c, err = h.Campaigns.Create(ctx, c)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "create campaign", err, "failed to create campaign")
		return
	}
	h.AuditLog.CampaignCreated(ctx, r, uid, c)
	uierrors.WriteJSON(w, http.StatusCreated, h.viewOf(c))
}

// HandleFork handles POST /api/campaigns/templates/{id}/fork.
func (h *Handler) HandleFork(w http.ResponseWriter, r *http.Request) {
	actor := authz.ActorFrom(r)
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		uierrors.Unauthorized(w)
		return
	}
	templateID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		uierrors.NotFound(w, campaignstore.ErrTemplateNotFound.Error())
		return
	}

	var in campaignpolicy.ForkInput
	if err := uierrors.DecodeJSON(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode fork body", err, "invalid request body")
		return
	}
	owner, start, end, err := campaignpolicy.ValidateFork(in, time.Now())
	if err != nil {
		if !validationFailed(w, err) {
			h.ErrLog.LogBadRequest(w, r, "validate fork", err, err.Error())
		}
		return
	}
	if err := campaignpolicy.CanCreateAs(actor, owner); err != nil {
		h.ErrLog.LogForbidden(w, r, "fork template for another owner", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	c, err := h.Campaigns.Fork(ctx, templateID, owner, start, end)
	if errors.Is(err, campaignstore.ErrTemplateNotFound) {
		uierrors.NotFound(w, err.Error())
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "fork campaign template", err, "failed to copy template")
		return
	}
	h.AuditLog.CampaignForked(ctx, r, uid, c)
	uierrors.WriteJSON(w, http.StatusCreated, h.viewOf(c))
}
