package organizations

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/civichub/internal/app/features/errors"
	organizationstore "github.com/dalemusser/civichub/internal/app/store/organizations"
	"github.com/dalemusser/civichub/internal/app/system/authz"
	"github.com/dalemusser/civichub/internal/app/system/timeouts"
	"github.com/dalemusser/civichub/internal/app/system/txn"
	"github.com/dalemusser/civichub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HandleApprove handles POST /api/organizations/{id}/approve.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, models.OrgApproved)
}

// HandleReject handles POST /api/organizations/{id}/reject.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, models.OrgRejected)
}

// review moves a pending organization to status. Approval also links the
// registering user to the organization's slug, in the same transaction.
func (h *Handler) review(w http.ResponseWriter, r *http.Request, status string) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		uierrors.NotFound(w, "organization not found")
		return
	}
	_, _, adminID, _ := authz.UserCtx(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var org models.Organization
	err = txn.Run(ctx, h.DB, h.Log, func(ctx context.Context) error {
		var err error
		org, err = h.Orgs.Review(ctx, id, status)
		if err != nil {
			return err
		}
		if status == models.OrgApproved {
			return h.Users.SetGroupSlug(ctx, org.AdminUserID, org.GroupSlug)
		}
		return nil
	})
	switch {
	case errors.Is(err, organizationstore.ErrNotFound):
		uierrors.NotFound(w, "organization not found")
		return
	case errors.Is(err, organizationstore.ErrNotPending):
		uierrors.Conflict(w, err.Error())
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "review organization", err, "failed to review organization")
		return
	}

	h.AuditLog.OrgReviewed(ctx, r, adminID, org)
	uierrors.WriteJSON(w, http.StatusOK, viewOf(org))
}
