// internal/app/features/profile/profile.go
package profile

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/civichub/internal/app/features/errors"
	"github.com/dalemusser/civichub/internal/app/features/shared/views"
	nicknamestore "github.com/dalemusser/civichub/internal/app/store/nicknames"
	userstore "github.com/dalemusser/civichub/internal/app/store/users"
	"github.com/dalemusser/civichub/internal/app/system/authutil"
	"github.com/dalemusser/civichub/internal/app/system/authz"
	"github.com/dalemusser/civichub/internal/app/system/profilerules"
	"github.com/dalemusser/civichub/internal/app/system/timeouts"
	"github.com/dalemusser/civichub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// current loads the signed-in user. It writes the error response and
// returns nil when the user cannot be loaded.
func (h *Handler) current(ctx context.Context, w http.ResponseWriter, r *http.Request) *models.User {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		uierrors.Unauthorized(w)
		return nil
	}
	user, err := h.Users.GetByID(ctx, uid)
	if errors.Is(err, userstore.ErrNotFound) {
		uierrors.NotFound(w, "user not found")
		return nil
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load user", err, "a server error occurred")
		return nil
	}
	return user
}

// respond reloads the user and writes the profile view.
func (h *Handler) respond(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if u := h.current(ctx, w, r); u != nil {
		uierrors.WriteJSON(w, http.StatusOK, views.MeFrom(*u))
	}
}

func userID(r *http.Request) primitive.ObjectID {
	_, _, uid, _ := authz.UserCtx(r)
	return uid
}

// ServeProfile handles GET /api/profile.
func (h *Handler) ServeProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	h.respond(ctx, w, r)
}

// HandleNickname handles PUT /api/profile/nickname.
func (h *Handler) HandleNickname(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Nickname string `json:"nickname"`
	}
	if err := uierrors.DecodeJSON(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode nickname body", err, "invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	uid := userID(r)
	nick, old, err := h.Nicknames.Set(ctx, uid, in.Nickname)
	switch {
	case errors.Is(err, profilerules.ErrEmptyNickname):
		uierrors.Validation(w, err.Error(), []string{"nickname"})
		return
	case errors.Is(err, nicknamestore.ErrNicknameTaken):
		uierrors.Conflict(w, "that nickname is already taken")
		return
	case errors.Is(err, nicknamestore.ErrUserNotFound):
		uierrors.NotFound(w, "user not found")
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "set nickname", err, "failed to update nickname")
		return
	}
	if nick != old {
		h.AuditLog.NicknameChanged(ctx, r, uid, old, nick)
	}
	h.respond(ctx, w, r)
}

// HandleFields handles PUT /api/profile/fields.
func (h *Handler) HandleFields(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PublicProfileFields []string `json:"publicProfileFields"`
	}
	if err := uierrors.DecodeJSON(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode fields body", err, "invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	uid := userID(r)
	_, err := h.Users.SetVisibleFields(ctx, uid, in.PublicProfileFields)
	if !h.storeErr(w, r, err, "publicProfileFields") {
		return
	}
	h.AuditLog.ProfileUpdated(ctx, r, uid, "fields")
	h.respond(ctx, w, r)
}

// HandleSocial handles PUT /api/profile/social.
func (h *Handler) HandleSocial(w http.ResponseWriter, r *http.Request) {
	var in struct {
		SocialMedia map[string]string `json:"socialMedia"`
	}
	if err := uierrors.DecodeJSON(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode social body", err, "invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	uid := userID(r)
	_, err := h.Users.SetSocialMedia(ctx, uid, in.SocialMedia)
	if !h.storeErr(w, r, err, "socialMedia") {
		return
	}
	h.AuditLog.ProfileUpdated(ctx, r, uid, "social")
	h.respond(ctx, w, r)
}

// HandleBio handles PUT /api/profile/bio.
func (h *Handler) HandleBio(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Bio string `json:"bio"`
	}
	if err := uierrors.DecodeJSON(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode bio body", err, "invalid request body")
		return
	}
	bio, err := profilerules.NormalizeBio(in.Bio)
	if err != nil {
		uierrors.Validation(w, err.Error(), []string{"bio"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	uid := userID(r)
	if !h.storeErr(w, r, h.Users.SetBio(ctx, uid, bio), "bio") {
		return
	}
	h.AuditLog.ProfileUpdated(ctx, r, uid, "bio")
	h.respond(ctx, w, r)
}

// HandleChangePassword handles PUT /api/profile/password.
func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := uierrors.DecodeJSON(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode password body", err, "invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	user := h.current(ctx, w, r)
	if user == nil {
		return
	}
	if !authutil.CheckPassword(in.CurrentPassword, user.PasswordHash) {
		uierrors.Validation(w, "current password is incorrect", []string{"currentPassword"})
		return
	}
	if err := authutil.ValidatePassword(in.NewPassword); err != nil {
		uierrors.Validation(w, err.Error(), []string{"newPassword"})
		return
	}
	// Don't allow reusing the current password
	if authutil.CheckPassword(in.NewPassword, user.PasswordHash) {
		uierrors.Validation(w, "new password cannot be the same as your current password", []string{"newPassword"})
		return
	}

	hash, err := authutil.HashPassword(in.NewPassword)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "hash password failed", err, "failed to update password")
		return
	}
	if err := h.Users.SetPassword(ctx, user.ID, hash); err != nil {
		h.ErrLog.LogServerError(w, r, "update password failed", err, "failed to update password")
		return
	}
	h.AuditLog.ProfileUpdated(ctx, r, user.ID, "password")
	uierrors.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// storeErr maps a profile store error to a response. It reports true when
// err is nil.
func (h *Handler) storeErr(w http.ResponseWriter, r *http.Request, err error, field string) bool {
	var unknown *profilerules.UnknownKeysError
	switch {
	case err == nil:
		return true
	case errors.As(err, &unknown):
		uierrors.Validation(w, unknown.Error(), []string{field})
	case errors.Is(err, userstore.ErrNotFound):
		uierrors.NotFound(w, "user not found")
	default:
		h.ErrLog.LogServerError(w, r, "update profile", err, "failed to update profile")
	}
	return false
}
