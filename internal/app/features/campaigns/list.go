package campaigns

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/civichub/internal/app/features/errors"
	"github.com/dalemusser/civichub/internal/app/system/authz"
	"github.com/dalemusser/civichub/internal/app/system/normalize"
	"github.com/dalemusser/civichub/internal/app/system/paging"
	"github.com/dalemusser/civichub/internal/app/system/timeouts"
	"github.com/dalemusser/civichub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
)

// ServePublic handles GET /api/campaigns/public?groupSlug=&limit=&after=.
func (h *Handler) ServePublic(w http.ResponseWriter, r *http.Request) {
	groupSlug := normalize.QueryParam(query.Get(r, "groupSlug"))

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	items, next, err := h.Campaigns.ListPublic(ctx, groupSlug, paging.Parse(r))
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list public campaigns", err, "failed to load campaigns")
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, page{Items: h.viewsOf(items), Next: next})
}

// ServeMine handles GET /api/campaigns/mine: campaigns the caller owns
// personally plus those of the organization they represent.
func (h *Handler) ServeMine(w http.ResponseWriter, r *http.Request) {
	actor := authz.ActorFrom(r)
	if !actor.Authenticated {
		uierrors.Unauthorized(w)
		return
	}
	owners := []models.Owner{models.UserOwner(actor.UserID)}
	if actor.GroupSlug != "" {
		owners = append(owners, models.OrgOwner(actor.GroupSlug))
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	items, next, err := h.Campaigns.ListByOwners(ctx, owners, paging.Parse(r))
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list my campaigns", err, "failed to load campaigns")
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, page{Items: h.viewsOf(items), Next: next})
}

// ServeTemplates handles GET /api/campaigns/templates.
func (h *Handler) ServeTemplates(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	ts, err := h.Campaigns.ListTemplates(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list campaign templates", err, "failed to load templates")
		return
	}
	items := make([]templateView, 0, len(ts))
	for _, t := range ts {
		items = append(items, h.templateViewOf(t))
	}
	uierrors.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}
