package campaigns

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/civichub/internal/app/features/errors"
	"github.com/dalemusser/civichub/internal/app/policy/campaignpolicy"
	campaignstore "github.com/dalemusser/civichub/internal/app/store/campaigns"
	"github.com/dalemusser/civichub/internal/app/system/authz"
	"github.com/dalemusser/civichub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// ServeCampaign handles GET /api/campaigns/{id}. Campaigns hidden from
// discovery are still readable by direct link.
func (h *Handler) ServeCampaign(w http.ResponseWriter, r *http.Request) {
	c, ok := h.load(w, r)
	if !ok {
		return
	}
	v := h.viewOf(c)

	if actor := authz.ActorFrom(r); actor.Authenticated {
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
		defer cancel()
		action, err := h.Campaigns.ActionFor(ctx, c.ID, actorKey(actor))
		if err != nil {
			h.Log.Warn("load campaign action", zap.String("campaign", c.ID.Hex()), zap.Error(err))
		}
		v.MyAction = action
	}
	uierrors.WriteJSON(w, http.StatusOK, v)
}

// HandleUpdate handles PUT /api/campaigns/{id}. Only the owner may edit;
// the owner and type are fixed.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	_, _, uid, _ := authz.UserCtx(r)
	c, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := campaignpolicy.CanEdit(authz.ActorFrom(r), c); err != nil {
		h.ErrLog.LogForbidden(w, r, "edit campaign not owned", err.Error())
		return
	}

	var in campaignpolicy.Input
	if err := uierrors.DecodeJSON(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode campaign body", err, "invalid request body")
		return
	}
	draft, err := campaignpolicy.ValidateUpdate(c, in)
	if err != nil {
		if !validationFailed(w, err) {
			h.ErrLog.LogBadRequest(w, r, "validate campaign", err, err.Error())
		}
		return
	}
	draft.Apply(&c)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	c, err = h.Campaigns.Update(ctx, c)
	if errors.Is(err, campaignstore.ErrNotFound) {
		uierrors.NotFound(w, err.Error())
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "update campaign", err, "failed to update campaign")
		return
	}
	h.AuditLog.CampaignUpdated(ctx, r, uid, c)
	uierrors.WriteJSON(w, http.StatusOK, h.viewOf(c))
}

// HandleDelete handles DELETE /api/campaigns/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	_, _, uid, _ := authz.UserCtx(r)
	c, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := campaignpolicy.CanEdit(authz.ActorFrom(r), c); err != nil {
		h.ErrLog.LogForbidden(w, r, "delete campaign not owned", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	err := h.Campaigns.Delete(ctx, c.ID)
	if errors.Is(err, campaignstore.ErrNotFound) {
		uierrors.NotFound(w, err.Error())
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "delete campaign", err, "failed to delete campaign")
		return
	}
	h.AuditLog.CampaignDeleted(ctx, r, uid, c)
	w.WriteHeader(http.StatusNoContent)
}
