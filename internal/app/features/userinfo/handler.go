// Package userinfo serves what other people and the signed-in browser may
// learn about a user: the session summary and public profiles.
package userinfo

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/civichub/internal/app/features/errors"
	nicknamestore "github.com/dalemusser/civichub/internal/app/store/nicknames"
	organizationstore "github.com/dalemusser/civichub/internal/app/store/organizations"
	userstore "github.com/dalemusser/civichub/internal/app/store/users"
	"github.com/dalemusser/civichub/internal/app/system/auth"
	"github.com/dalemusser/civichub/internal/app/system/profilerules"
	"github.com/dalemusser/civichub/internal/app/system/timeouts"
	"github.com/dalemusser/civichub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves user information.
type Handler struct {
	Users     *userstore.Store
	Nicknames *nicknamestore.Store
	Orgs      *organizationstore.Store
	ErrLog    *uierrors.ErrorLogger
	Log       *zap.Logger
}

// NewHandler creates a new userinfo handler.
func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:     userstore.New(db),
		Nicknames: nicknamestore.New(db, logger),
		Orgs:      organizationstore.New(db),
		ErrLog:    errLog,
		Log:       logger,
	}
}

type sessionInfo struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	ID              string `json:"id,omitempty"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Role            string `json:"role,omitempty"`
	GroupSlug       string `json:"groupSlug,omitempty"`
	IsVerified      bool   `json:"isVerified"`
}

// ServeUserInfo handles GET /api/user: the session summary the client uses
// to decide what to show. Anonymous visitors get isAuthenticated false.
func (h *Handler) ServeUserInfo(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		uierrors.WriteJSON(w, http.StatusOK, sessionInfo{})
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, sessionInfo{
		IsAuthenticated: true,
		ID:              user.ID,
		Name:            user.Name,
		Email:           user.LoginID,
		Role:            user.Role,
		GroupSlug:       user.GroupSlug,
		IsVerified:      user.IsVerified,
	})
}

// ServePublicProfile handles GET /api/u/{nickname}. Only the fields the
// user made visible are returned.
func (h *Handler) ServePublicProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	uid, err := h.Nicknames.Resolve(ctx, chi.URLParam(r, "nickname"))
	if errors.Is(err, nicknamestore.ErrNotFound) {
		uierrors.NotFound(w, "profile not found")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "resolve nickname", err, "a server error occurred")
		return
	}

	u, err := h.Users.GetByID(ctx, uid)
	if errors.Is(err, userstore.ErrNotFound) {
		uierrors.NotFound(w, "profile not found")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load profile user", err, "a server error occurred")
		return
	}

	uierrors.WriteJSON(w, http.StatusOK, profilerules.Public(*u, h.orgName(ctx, u.GroupSlug)))
}

// orgName is the display name of the user's approved organization, or "".
func (h *Handler) orgName(ctx context.Context, slug string) string {
	if slug == "" {
		return ""
	}
	org, err := h.Orgs.GetBySlug(ctx, slug)
	if err != nil {
		if !errors.Is(err, organizationstore.ErrNotFound) {
			h.Log.Warn("load organization for profile", zap.String("group_slug", slug), zap.Error(err))
		}
		return ""
	}
	if org.Status != models.OrgApproved {
		return ""
	}
	return org.Name
}
