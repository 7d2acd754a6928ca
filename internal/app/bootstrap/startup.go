// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/civichub/internal/app/resources"
	"github.com/dalemusser/civichub/internal/app/store/audit"
	campaignstore "github.com/dalemusser/civichub/internal/app/store/campaigns"
	userstore "github.com/dalemusser/civichub/internal/app/store/users"
	"github.com/dalemusser/civichub/internal/app/system/auditlog"
	"github.com/dalemusser/civichub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. CivicHub
// seeds the starter campaign templates and promotes the configured admin.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if err := seedTemplates(ctx, deps, logger); err != nil {
		return err
	}
	return ensureAdmin(ctx, deps, appCfg.AdminEmail, newAuditLogger(appCfg, deps, logger), logger)
}

func configureTimeouts(appCfg AppConfig) {
	timeouts.Configure(timeouts.Config{
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
		Long:   appCfg.TimeoutLong,
	})
}

func newAuditLogger(appCfg AppConfig, deps DBDeps, logger *zap.Logger) *auditlog.Logger {
	return auditlog.New(audit.New(deps.MongoDatabase), logger, auditlog.Config{
		Auth:     appCfg.AuditLogAuth,
		Admin:    appCfg.AuditLogAdmin,
		Activity: appCfg.AuditLogActivity,
	})
}

func seedTemplates(ctx context.Context, deps DBDeps, logger *zap.Logger) error {
	tpls, err := resources.CampaignTemplates()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Long())
	defer cancel()
	inserted, err := campaignstore.New(deps.MongoDatabase, logger).SeedTemplates(ctx, tpls)
	if err != nil {
		return fmt.Errorf("seed campaign templates: %w", err)
	}
	logger.Info("campaign templates seeded",
		zap.Int("total", len(tpls)),
		zap.Int("inserted", inserted))
	return nil
}

// ensureAdmin promotes the account registered under email. A missing
// account is logged and skipped so a fresh deployment can start before
// anyone has signed up.
func ensureAdmin(ctx context.Context, deps DBDeps, email string, al *auditlog.Logger, logger *zap.Logger) error {
	if email == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()
	u, changed, err := userstore.New(deps.MongoDatabase).PromoteAdmin(ctx, email)
	switch {
	case errors.Is(err, userstore.ErrNotFound):
		logger.Warn("admin_email has no account yet; sign up and restart to promote", zap.String("email", email))
		return nil
	case err != nil:
		return fmt.Errorf("promote admin: %w", err)
	}

	if changed {
		al.AdminPromoted(ctx, u.ID, u.Email)
		logger.Info("promoted admin", zap.String("email", u.Email))
	}
	return nil
}
