// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dalemusser/civichub/internal/app/store/audit"
	"github.com/dalemusser/civichub/internal/app/system/ratelimit"
	"github.com/dalemusser/civichub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
// Each value is "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), or "off".
type Config struct {
	// Auth covers signup, login, logout, and voter verification outcomes.
	Auth string
	// Admin covers organization review and admin promotion.
	Admin string
	// Activity covers campaign and profile changes.
	Activity string
}

// Logger provides convenience methods for logging audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}

	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.GroupSlug != "" {
		fields = append(fields, zap.String("group_slug", event.GroupSlug))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryAdmin:
		setting = l.config.Admin
	case audit.CategoryActivity:
		setting = l.config.Activity
	}
	if setting == "" {
		setting = "all"
	}

	if setting == "off" {
		return
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}

	if (setting == "all" || setting == "db") && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func requestEvent(r *http.Request, category, eventType string, success bool) audit.Event {
	e := audit.Event{Category: category, EventType: eventType, Success: success}
	if r != nil {
		e.IP = ratelimit.ClientIP(r)
		e.UserAgent = r.UserAgent()
	}
	return e
}

// --- Authentication Events ---

// Signup logs a new account. verified says whether voter verification
// resolved the identity.
func (l *Logger) Signup(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string, verified bool) {
	e := requestEvent(r, audit.CategoryAuth, audit.EventSignup, true)
	e.UserID = &userID
	e.Details = map[string]string{"email": email, "verified": strconv.FormatBool(verified)}
	l.Log(ctx, e)
}

// LoginSuccess logs a successful login.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	e := requestEvent(r, audit.CategoryAuth, audit.EventLoginSuccess, true)
	e.UserID = &userID
	e.Details = map[string]string{"email": email}
	l.Log(ctx, e)
}

// LoginFailedUserNotFound logs a failed login due to user not found.
func (l *Logger) LoginFailedUserNotFound(ctx context.Context, r *http.Request, attemptedEmail string) {
	e := requestEvent(r, audit.CategoryAuth, audit.EventLoginFailedUserNotFound, false)
	e.FailureReason = "user not found"
	e.Details = map[string]string{"attempted_email": attemptedEmail}
	l.Log(ctx, e)
}

// LoginFailedWrongPassword logs a failed login due to wrong password.
func (l *Logger) LoginFailedWrongPassword(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	e := requestEvent(r, audit.CategoryAuth, audit.EventLoginFailedWrongPassword, false)
	e.UserID = &userID
	e.FailureReason = "wrong password"
	e.Details = map[string]string{"email": email}
	l.Log(ctx, e)
}

// LoginFailedRateLimit logs a login refused by the rate limiter.
func (l *Logger) LoginFailedRateLimit(ctx context.Context, r *http.Request, email, limitType string) {
	e := requestEvent(r, audit.CategoryAuth, audit.EventLoginFailedRateLimit, false)
	e.FailureReason = "rate limit exceeded"
	e.Details = map[string]string{"email": email, "limit_type": limitType}
	l.Log(ctx, e)
}

// Logout logs a logout. userIDStr may be empty or malformed for stale sessions.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userIDStr string) {
	e := requestEvent(r, audit.CategoryAuth, audit.EventLogout, true)
	if oid, err := primitive.ObjectIDFromHex(userIDStr); err == nil {
		e.UserID = &oid
	}
	l.Log(ctx, e)
}

// VoterVerified logs a verification that reached the verified state.
func (l *Logger) VoterVerified(ctx context.Context, r *http.Request, flow string, refined bool) {
	e := requestEvent(r, audit.CategoryAuth, audit.EventVoterVerified, true)
	e.Details = map[string]string{"flow": flow, "refined": strconv.FormatBool(refined)}
	l.Log(ctx, e)
}

// VoterNotFound logs a refined search that matched nobody.
func (l *Logger) VoterNotFound(ctx context.Context, r *http.Request, flow string) {
	e := requestEvent(r, audit.CategoryAuth, audit.EventVoterNotFound, false)
	e.FailureReason = "no voter record"
	e.Details = map[string]string{"flow": flow}
	l.Log(ctx, e)
}

// --- Admin Events ---

// OrgRegistered logs an organization registration awaiting review.
func (l *Logger) OrgRegistered(ctx context.Context, r *http.Request, actorID primitive.ObjectID, org models.Organization) {
	e := requestEvent(r, audit.CategoryAdmin, audit.EventOrgRegistered, true)
	e.ActorID = &actorID
	e.GroupSlug = org.GroupSlug
	e.Details = map[string]string{"org_id": org.ID.Hex(), "org_name": org.Name}
	l.Log(ctx, e)
}

// OrgReviewed logs an approval or rejection. UserID is the organization's
// registering user.
func (l *Logger) OrgReviewed(ctx context.Context, r *http.Request, actorID primitive.ObjectID, org models.Organization) {
	eventType := audit.EventOrgRejected
	if org.Status == models.OrgApproved {
		eventType = audit.EventOrgApproved
	}
	e := requestEvent(r, audit.CategoryAdmin, eventType, true)
	e.ActorID = &actorID
	adminID := org.AdminUserID
	e.UserID = &adminID
	e.GroupSlug = org.GroupSlug
	e.Details = map[string]string{"org_id": org.ID.Hex(), "org_name": org.Name}
	l.Log(ctx, e)
}

// AdminPromoted logs a startup promotion of the configured admin email.
func (l *Logger) AdminPromoted(ctx context.Context, userID primitive.ObjectID, email string) {
	e := requestEvent(nil, audit.CategoryAdmin, audit.EventAdminPromoted, true)
	e.UserID = &userID
	e.Details = map[string]string{"email": email, "source": "config"}
	l.Log(ctx, e)
}

// --- Activity Events ---

func (l *Logger) campaignEvent(ctx context.Context, r *http.Request, eventType string, actorID primitive.ObjectID, c models.Campaign, extra map[string]string) {
	e := requestEvent(r, audit.CategoryActivity, eventType, true)
	e.ActorID = &actorID
	e.GroupSlug = c.Owner.GroupSlug
	e.Details = map[string]string{
		"campaign_id":   c.ID.Hex(),
		"campaign_type": string(c.Type),
		"owner_kind":    string(c.Owner.Kind),
	}
	for k, v := range extra {
		e.Details[k] = v
	}
	l.Log(ctx, e)
}

// CampaignCreated logs a new campaign.
func (l *Logger) CampaignCreated(ctx context.Context, r *http.Request, actorID primitive.ObjectID, c models.Campaign) {
	l.campaignEvent(ctx, r, audit.EventCampaignCreated, actorID, c, nil)
}

// CampaignUpdated logs an edit by the owner.
func (l *Logger) CampaignUpdated(ctx context.Context, r *http.Request, actorID primitive.ObjectID, c models.Campaign) {
	l.campaignEvent(ctx, r, audit.EventCampaignUpdated, actorID, c, nil)
}

// CampaignDeleted logs a hard delete.
func (l *Logger) CampaignDeleted(ctx context.Context, r *http.Request, actorID primitive.ObjectID, c models.Campaign) {
	l.campaignEvent(ctx, r, audit.EventCampaignDeleted, actorID, c, nil)
}

// CampaignForked logs a campaign created from a template.
func (l *Logger) CampaignForked(ctx context.Context, r *http.Request, actorID primitive.ObjectID, c models.Campaign) {
	extra := map[string]string{}
	if c.ForkedFrom != nil {
		extra["template_id"] = c.ForkedFrom.Hex()
	}
	l.campaignEvent(ctx, r, audit.EventCampaignForked, actorID, c, extra)
}

// NicknameChanged logs a nickname claim or rename.
func (l *Logger) NicknameChanged(ctx context.Context, r *http.Request, userID primitive.ObjectID, oldNick, newNick string) {
	e := requestEvent(r, audit.CategoryActivity, audit.EventNicknameChanged, true)
	e.UserID = &userID
	e.Details = map[string]string{"old": oldNick, "new": newNick}
	l.Log(ctx, e)
}

// ProfileUpdated logs a change to profile visibility or social handles.
func (l *Logger) ProfileUpdated(ctx context.Context, r *http.Request, userID primitive.ObjectID, what string) {
	e := requestEvent(r, audit.CategoryActivity, audit.EventProfileUpdated, true)
	e.UserID = &userID
	e.Details = map[string]string{"changed": what}
	l.Log(ctx, e)
}

// PictureUploaded logs a profile picture upload.
func (l *Logger) PictureUploaded(ctx context.Context, r *http.Request, userID primitive.ObjectID, key string, size int64) {
	e := requestEvent(r, audit.CategoryActivity, audit.EventPictureUploaded, true)
	e.UserID = &userID
	e.Details = map[string]string{"key": key, "size": strconv.FormatInt(size, 10)}
	l.Log(ctx, e)
}
