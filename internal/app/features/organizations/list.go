// internal/app/features/organizations/list.go
package organizations

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/civichub/internal/app/features/errors"
	"github.com/dalemusser/civichub/internal/app/system/normalize"
	"github.com/dalemusser/civichub/internal/app/system/timeouts"
	"github.com/dalemusser/civichub/internal/domain/models"
)

// ServeList handles GET /api/organizations?status=. Admin only.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	status := normalize.QueryParam(r.URL.Query().Get("status"))
	switch status {
	case "", models.OrgPending, models.OrgApproved, models.OrgRejected:
	default:
		uierrors.Validation(w, `status must be "pending", "approved" or "rejected"`, []string{"status"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	orgs, err := h.Orgs.List(ctx, status, 200)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list organizations", err, "failed to load organizations")
		return
	}
	items := make([]orgView, 0, len(orgs))
	for _, o := range orgs {
		items = append(items, viewOf(o))
	}
	uierrors.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}
