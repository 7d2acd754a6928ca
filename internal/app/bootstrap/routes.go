// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	auditlogfeature "github.com/dalemusser/civichub/internal/app/features/auditlog"
	campaignsfeature "github.com/dalemusser/civichub/internal/app/features/campaigns"
	datasourcesfeature "github.com/dalemusser/civichub/internal/app/features/datasources"
	errorsfeature "github.com/dalemusser/civichub/internal/app/features/errors"
	healthfeature "github.com/dalemusser/civichub/internal/app/features/health"
	loginfeature "github.com/dalemusser/civichub/internal/app/features/login"
	logoutfeature "github.com/dalemusser/civichub/internal/app/features/logout"
	organizationsfeature "github.com/dalemusser/civichub/internal/app/features/organizations"
	profilefeature "github.com/dalemusser/civichub/internal/app/features/profile"
	signupfeature "github.com/dalemusser/civichub/internal/app/features/signup"
	userinfofeature "github.com/dalemusser/civichub/internal/app/features/userinfo"
	verifyfeature "github.com/dalemusser/civichub/internal/app/features/verify"
	userstore "github.com/dalemusser/civichub/internal/app/store/users"
	"github.com/dalemusser/civichub/internal/app/system/auth"
	"github.com/dalemusser/civichub/internal/app/system/latest"
	"github.com/dalemusser/civichub/internal/app/system/providers"
	"github.com/dalemusser/civichub/internal/app/system/ratelimit"
	"github.com/dalemusser/civichub/internal/app/system/verification"
	"github.com/dalemusser/civichub/internal/app/system/voterverify"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Background workers started by BuildHandler and stopped by Shutdown.
var (
	stopMu   sync.Mutex
	stoppers []func()
)

func onShutdown(fn func()) {
	stopMu.Lock()
	defer stopMu.Unlock()
	stoppers = append(stoppers, fn)
}

func stopBackground() {
	stopMu.Lock()
	defer stopMu.Unlock()
	for _, fn := range stoppers {
		fn()
	}
	stoppers = nil
}

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. At this point you have access to:
//   - coreCfg: WAFFLE core configuration (ports, env, timeouts, etc.)
//   - appCfg: app-specific configuration defined in AppConfig
//   - deps: any DB or backend clients bundled in DBDeps
//   - logger: the fully configured zap.Logger for this app
//
// CivicHub applies session middleware and mounts the JSON API under /api:
// auth, voter verification, campaigns, profiles, organizations, and the
// legislative data providers.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// LoadSessionUser fetches fresh user data on each request so role changes
	// and organization approvals take effect immediately.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(deps.MongoDatabase))

	errLog := errorsfeature.NewErrorLogger(logger)
	auditLog := newAuditLogger(appCfg, deps, logger)

	// Voter verification. With the feature off the machine verifies entries
	// as typed and no client is built.
	var verifier verification.Verifier
	if appCfg.VerificationEnabled {
		vc, err := voterverify.New(voterverify.Config{
			BaseURL:      appCfg.VoterAPIURL,
			APIKey:       appCfg.VoterAPIKey,
			TokenURL:     appCfg.VoterTokenURL,
			ClientID:     appCfg.VoterClientID,
			ClientSecret: appCfg.VoterClientSecret,
			RPS:          float64(appCfg.VoterAPIRPS),
			Timeout:      appCfg.TimeoutLong,
		}, nil, logger.Named("voterverify"))
		if err != nil {
			logger.Error("voter verification client init failed", zap.Error(err))
			return nil, err
		}
		verifier = vc
	}
	machine := verification.New(verifier, appCfg.VerificationEnabled)
	logger.Info("voter verification", zap.Bool("enabled", machine.Enabled()))

	loginLimiter := ratelimit.NewLoginLimiter()
	onShutdown(loginLimiter.Stop)
	lookupLimiter := ratelimit.NewLookupLimiter(appCfg.VoterLookupsPerHour)
	onShutdown(lookupLimiter.Stop)

	// Legislative data providers share one HTTP client and an optional
	// Redis cache.
	var cache providers.Cache
	if deps.Redis != nil {
		cache = providers.NewRedisCache(deps.Redis, "civichub:providers:")
	}
	providerClient := providers.New(&http.Client{Timeout: appCfg.TimeoutLong}, cache, appCfg.ProviderCacheTTL, logger.Named("providers"))

	// Cross-site SPA calls carry cookies, so unsafe /api requests need a
	// CSRF token and an Origin the CORS config trusts.
	csrfProtect, err := auth.CSRF(auth.CSRFConfig{
		SessionKey:     appCfg.SessionKey,
		Domain:         appCfg.SessionDomain,
		Secure:         secure,
		TrustedOrigins: originHosts(coreCfg.CORS.CORSAllowedOrigins),
	}, logger.Named("csrf"))
	if err != nil {
		logger.Error("csrf init failed", zap.Error(err))
		return nil, err
	}

	r := chi.NewRouter()

	// Global auth middleware: loads SessionUser into context if signed in.
	r.Use(sessionMgr.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, deps.Redis, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Locally stored profile pictures. S3 objects are served by the bucket
	// or CDN.
	if appCfg.StorageType == "local" {
		prefix := "/" + strings.Trim(appCfg.StorageLocalURL, "/")
		r.Handle(prefix+"/*", fileserver.Handler(prefix, appCfg.StorageLocalPath))
	}

	verifyHandler := verifyfeature.NewHandler(sessionMgr, machine, lookupLimiter, appCfg.VoterRegistrationURL, errLog, auditLog, logger)

	r.Route("/api", func(api chi.Router) {
		api.Use(csrfProtect)
		api.Get("/csrf", auth.ServeCSRFToken)

		// Authentication
		loginHandler := loginfeature.NewHandler(deps.MongoDatabase, sessionMgr, loginLimiter, errLog, auditLog, logger)
		api.Mount("/login", loginfeature.Routes(loginHandler))

		logoutHandler := logoutfeature.NewHandler(sessionMgr, auditLog, logger)
		api.Mount("/logout", logoutfeature.Routes(logoutHandler, sessionMgr))

		signupHandler := signupfeature.NewHandler(deps.MongoDatabase, sessionMgr, verifyHandler, errLog, auditLog, logger)
		api.Mount("/signup", signupfeature.Routes(signupHandler))

		// Voter verification flows (signup, poll)
		api.Mount("/verify", verifyfeature.Routes(verifyHandler))

		// Campaigns, templates, counters, and poll responses
		campaignsHandler := campaignsfeature.NewHandler(deps.MongoDatabase, verifyHandler, errLog, auditLog, logger)
		api.Mount("/campaigns", campaignsfeature.Routes(campaignsHandler, sessionMgr))

		// Own profile and public profiles
		profileHandler := profilefeature.NewHandler(deps.MongoDatabase, deps.Blobs, errLog, auditLog, logger)
		api.Mount("/profile", profilefeature.Routes(profileHandler, sessionMgr))

		// Organization registration and review
		orgHandler := organizationsfeature.NewHandler(deps.MongoDatabase, errLog, auditLog, logger)
		api.Mount("/organizations", organizationsfeature.Routes(orgHandler, sessionMgr))

		// Audit trail for site admins
		auditHandler := auditlogfeature.NewHandler(deps.MongoDatabase, errLog, logger)
		api.Mount("/admin/audit", auditlogfeature.Routes(auditHandler, sessionMgr))

		// Legislative data passthrough
		dsHandler := datasourcesfeature.NewHandler(providerClient,
			providers.Congress(appCfg.CongressAPIURL, appCfg.CongressAPIKey),
			providers.LegiScan(appCfg.LegiScanAPIURL, appCfg.LegiScanAPIKey),
			providers.BallotReady(appCfg.BallotReadyAPIURL, appCfg.BallotReadyAPIKey),
			latest.New(), errLog, logger)
		datasourcesfeature.MountRoutes(api, dsHandler)

		// Session user info and public profiles by nickname
		userinfoHandler := userinfofeature.NewHandler(deps.MongoDatabase, errLog, logger)
		userinfofeature.MountRoutes(api, userinfoHandler)
	})

	logger.Info("routes ready", zap.Duration("session_max_age", appCfg.SessionMaxAge.Round(time.Second)))
	return r, nil
}

// originHosts turns CORS origins ("https://app.example.org") into the host
// list the CSRF check compares Origin against. "*" is never trusted.
func originHosts(origins []string) []string {
	var hosts []string
	for _, o := range origins {
		u, err := url.Parse(strings.TrimSpace(o))
		if err != nil || u.Host == "" {
			continue
		}
		hosts = append(hosts, u.Host)
	}
	return hosts
}
