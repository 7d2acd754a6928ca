// internal/app/features/login/handler.go
package login

import (
	"context"
	"errors"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/civichub/internal/app/features/errors"
	"github.com/dalemusser/civichub/internal/app/features/shared/views"
	loginstore "github.com/dalemusser/civichub/internal/app/store/logins"
	userstore "github.com/dalemusser/civichub/internal/app/store/users"
	"github.com/dalemusser/civichub/internal/app/system/auditlog"
	"github.com/dalemusser/civichub/internal/app/system/auth"
	"github.com/dalemusser/civichub/internal/app/system/authutil"
	"github.com/dalemusser/civichub/internal/app/system/normalize"
	"github.com/dalemusser/civichub/internal/app/system/ratelimit"
	"github.com/dalemusser/civichub/internal/app/system/timeouts"
	"github.com/dalemusser/civichub/internal/domain/models"
	"github.com/gorilla/securecookie"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler signs users in with email and password.
type Handler struct {
	Users      *userstore.Store
	Logins     *loginstore.Store
	SessionMgr *auth.SessionManager
	Limiter    *ratelimit.LoginLimiter
	ErrLog     *uierrors.ErrorLogger
	AuditLog   *auditlog.Logger
	Log        *zap.Logger
}

// NewHandler wires the login handler. limiter may be nil.
func NewHandler(db *mongo.Database, sessionMgr *auth.SessionManager, limiter *ratelimit.LoginLimiter, errLog *uierrors.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:      userstore.New(db),
		Logins:     loginstore.New(db),
		SessionMgr: sessionMgr,
		Limiter:    limiter,
		ErrLog:     errLog,
		AuditLog:   audit,
		Log:        logger,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

const badCredentials = "incorrect email or password"

// HandleLogin handles POST /api/login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := uierrors.DecodeJSON(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode login body", err, "invalid request body")
		return
	}
	email := normalize.Email(in.Email)
	var missing []string
	if email == "" {
		missing = append(missing, "email")
	}
	if in.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		uierrors.Validation(w, "email and password are required", missing)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if h.Limiter != nil {
		if ok, msg := h.Limiter.Check(r, email); !ok {
			h.AuditLog.LoginFailedRateLimit(ctx, r, email, "login")
			w.Header().Set("Retry-After", "60")
			uierrors.Write(w, http.StatusTooManyRequests, msg)
			return
		}
	}

	u, err := h.Users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, userstore.ErrNotFound):
		// Spend the same bcrypt time as a real check so response timing
		// does not reveal which emails have accounts.
		authutil.BurnCompare(in.Password)
		h.AuditLog.LoginFailedUserNotFound(ctx, r, email)
		uierrors.Write(w, http.StatusUnauthorized, badCredentials)
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "DB find user", err, "a server error occurred")
		return
	}

	if !authutil.CheckPassword(in.Password, u.PasswordHash) {
		h.AuditLog.LoginFailedWrongPassword(ctx, r, u.ID, email)
		uierrors.Write(w, http.StatusUnauthorized, badCredentials)
		return
	}

	if !StartSession(w, r, h.SessionMgr, u, h.Log) {
		uierrors.Write(w, http.StatusInternalServerError, "unable to create session, please try again")
		return
	}
	if h.Limiter != nil {
		h.Limiter.ResetEmail(email)
	}
	if err := h.Logins.CreateFrom(ctx, r, u.ID, models.LoginPassword); err != nil {
		h.Log.Warn("record login failed", zap.Error(err), zap.String("user_id", u.ID.Hex()))
	}
	h.AuditLog.LoginSuccess(ctx, r, u.ID, email)

	uierrors.WriteJSON(w, http.StatusOK, views.MeFrom(*u))
}

// StartSession writes an authenticated session cookie for u. Signup uses it
// too. It reports false when the cookie could not be saved.
func StartSession(w http.ResponseWriter, r *http.Request, sm *auth.SessionManager, u *models.User, logger *zap.Logger) bool {
	sess, err := sm.GetSession(r)
	if err != nil {
		var scErr securecookie.Error
		if errors.As(err, &scErr) && scErr.IsDecode() {
			logger.Warn("session cookie invalid, using fresh session",
				zap.Error(err),
				zap.String("user_id", u.ID.Hex()))
		} else {
			logger.Error("session store error during login, using fresh session",
				zap.Error(err),
				zap.String("user_id", u.ID.Hex()))
		}
	}

	auth.SignIn(sess, &auth.SessionUser{
		ID:         u.ID.Hex(),
		Name:       strings.TrimSpace(u.FirstName + " " + u.LastName),
		LoginID:    u.Email,
		Role:       u.Role,
		IsVerified: u.IsVerified,
	})
	if err := sess.Save(r, w); err != nil {
		logger.Error("save session failed", zap.Error(err), zap.String("user_id", u.ID.Hex()))
		return false
	}
	return true
}
