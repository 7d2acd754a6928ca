// internal/app/features/organizations/new.go
package organizations

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	uierrors "github.com/dalemusser/civichub/internal/app/features/errors"
	organizationstore "github.com/dalemusser/civichub/internal/app/store/organizations"
	"github.com/dalemusser/civichub/internal/app/system/authz"
	"github.com/dalemusser/civichub/internal/app/system/inputval"
	"github.com/dalemusser/civichub/internal/app/system/normalize"
	"github.com/dalemusser/civichub/internal/app/system/timeouts"
	"github.com/dalemusser/civichub/internal/domain/models"
)

func (in registerInput) validate() []string {
	var bad []string
	name := strings.TrimSpace(in.Name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLen {
		bad = append(bad, "name")
	}
	if utf8.RuneCountInString(in.Description) > maxDescriptionLen {
		bad = append(bad, "description")
	}
	if w := strings.TrimSpace(in.Website); w != "" && !inputval.IsValidHTTPURL(w) {
		bad = append(bad, "website")
	}
	if s := normalize.State(in.State); s != "" && len(s) != 2 {
		bad = append(bad, "state")
	}
	return bad
}

// HandleRegister handles POST /api/organizations. The organization starts
// pending; the registering user represents it once an admin approves it.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		uierrors.Unauthorized(w)
		return
	}

	var in registerInput
	if err := uierrors.DecodeJSON(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode organization body", err, "invalid request body")
		return
	}
	if bad := in.validate(); len(bad) > 0 {
		uierrors.Validation(w, "organization details are invalid", bad)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if actor := authz.ActorFrom(r); actor.GroupSlug != "" {
		uierrors.Conflict(w, "you already represent an organization")
		return
	}

	org, err := h.Orgs.Create(ctx, models.Organization{
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		Website:     strings.TrimSpace(in.Website),
		State:       normalize.State(in.State),
		AdminUserID: uid,
	})
	switch {
	case errors.Is(err, organizationstore.ErrBadName):
		uierrors.Validation(w, err.Error(), []string{"name"})
		return
	case errors.Is(err, organizationstore.ErrDuplicateOrganization):
		uierrors.Conflict(w, err.Error())
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "create organization", err, "failed to register organization")
		return
	}

	h.AuditLog.OrgRegistered(ctx, r, uid, org)
	uierrors.WriteJSON(w, http.StatusCreated, viewOf(org))
}
