// Package signup creates accounts from a finished signup verification flow.
package signup

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/civichub/internal/app/features/errors"
	"github.com/dalemusser/civichub/internal/app/features/login"
	"github.com/dalemusser/civichub/internal/app/features/shared/views"
	"github.com/dalemusser/civichub/internal/app/features/verify"
	loginstore "github.com/dalemusser/civichub/internal/app/store/logins"
	userstore "github.com/dalemusser/civichub/internal/app/store/users"
	"github.com/dalemusser/civichub/internal/app/system/auditlog"
	"github.com/dalemusser/civichub/internal/app/system/auth"
	"github.com/dalemusser/civichub/internal/app/system/authutil"
	"github.com/dalemusser/civichub/internal/app/system/inputval"
	"github.com/dalemusser/civichub/internal/app/system/normalize"
	"github.com/dalemusser/civichub/internal/app/system/profilerules"
	"github.com/dalemusser/civichub/internal/app/system/timeouts"
	"github.com/dalemusser/civichub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Users      *userstore.Store
	Logins     *loginstore.Store
	SessionMgr *auth.SessionManager
	Flows      *verify.Handler
	ErrLog     *uierrors.ErrorLogger
	AuditLog   *auditlog.Logger
	Log        *zap.Logger
}

func NewHandler(db *mongo.Database, sessionMgr *auth.SessionManager, flows *verify.Handler, errLog *uierrors.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:      userstore.New(db),
		Logins:     loginstore.New(db),
		SessionMgr: sessionMgr,
		Flows:      flows,
		ErrLog:     errLog,
		AuditLog:   audit,
		Log:        logger,
	}
}

type signupRequest struct {
	Email               string   `json:"email"`
	Password            string   `json:"password"`
	PublicProfileFields []string `json:"publicProfileFields"`
}

// HandleSignup handles POST /api/signup. The identity comes from the
// signup verification cookie, which must be verified or not_found.
func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var in signupRequest
	if err := uierrors.DecodeJSON(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode signup body", err, "invalid request body")
		return
	}

	email := normalize.Email(in.Email)
	if !inputval.IsValidEmail(email) {
		uierrors.Validation(w, "a valid email address is required", []string{"email"})
		return
	}
	if err := authutil.ValidatePassword(in.Password); err != nil {
		uierrors.Validation(w, err.Error(), []string{"password"})
		return
	}
	fields, err := profilerules.NormalizeVisibleFields(in.PublicProfileFields)
	if err != nil {
		uierrors.Validation(w, err.Error(), []string{"publicProfileFields"})
		return
	}

	flow := h.Flows.Load(r, verify.FlowSignup)
	id, ok := flow.Outcome()
	if !ok {
		uierrors.Validation(w, "finish voter verification before creating an account", []string{"verification"})
		return
	}

	hash, err := authutil.HashPassword(in.Password)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "hash password", err, "a server error occurred")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.Create(ctx, models.User{
		Email:                  email,
		PasswordHash:           hash,
		Role:                   models.RoleUser,
		FirstName:              id.FirstName,
		LastName:               id.LastName,
		Address:                id.Address,
		City:                   id.City,
		State:                  id.State,
		ZipCode:                id.ZipCode,
		CongressionalDistrict:  id.CongressionalDistrict,
		ConstituentDescription: id.ConstituentDescription,
		VoterID:                id.VoterID,
		IsVerified:             id.IsVerified,
		PublicProfileFields:    fields,
	})
	switch {
	case errors.Is(err, userstore.ErrDuplicateEmail):
		uierrors.Conflict(w, "an account with this email already exists")
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "create user", err, "a server error occurred")
		return
	}

	h.Flows.Clear(w, r, verify.FlowSignup)
	if !login.StartSession(w, r, h.SessionMgr, &u, h.Log) {
		// The account exists; the client can sign in normally.
		h.Log.Warn("signup session not started", zap.String("user_id", u.ID.Hex()))
	}
	if err := h.Logins.CreateFrom(ctx, r, u.ID, models.LoginSignup); err != nil {
		h.Log.Warn("record signup login failed", zap.Error(err), zap.String("user_id", u.ID.Hex()))
	}
	h.AuditLog.Signup(ctx, r, u.ID, u.Email, u.IsVerified)

	uierrors.WriteJSON(w, http.StatusCreated, views.MeFrom(u))
}
