package campaigns

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/civichub/internal/app/features/errors"
	campaignstore "github.com/dalemusser/civichub/internal/app/store/campaigns"
	"github.com/dalemusser/civichub/internal/app/system/authz"
	"github.com/dalemusser/civichub/internal/app/system/timeouts"
	"github.com/dalemusser/civichub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// actorKey identifies a signed-in actor in campaign_actions. Anonymous
// visitors have no key and are not deduplicated.
func actorKey(a authz.Actor) string {
	if !a.Authenticated {
		return ""
	}
	return "user:" + a.UserID
}

// HandleSupport handles POST /api/campaigns/{id}/support.
func (h *Handler) HandleSupport(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, models.ActionSupport)
}

// HandleOppose handles POST /api/campaigns/{id}/oppose.
func (h *Handler) HandleOppose(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, models.ActionOppose)
}

func (h *Handler) act(w http.ResponseWriter, r *http.Request, action string) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		uierrors.NotFound(w, campaignstore.ErrNotFound.Error())
		return
	}
	key := actorKey(authz.ActorFrom(r))

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	c, err := h.Campaigns.Act(ctx, id, key, action)
	switch {
	case errors.Is(err, campaignstore.ErrNotFound):
		uierrors.NotFound(w, err.Error())
		return
	case errors.Is(err, campaignstore.ErrDuplicateAction), errors.Is(err, campaignstore.ErrPaused):
		uierrors.Conflict(w, err.Error())
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "record campaign action", err, "failed to record your "+action)
		return
	}

	v := h.viewOf(c)
	if key != "" {
		v.MyAction = action
	}
	uierrors.WriteJSON(w, http.StatusOK, v)
}
