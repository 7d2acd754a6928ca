// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for CivicHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: CIVICHUB_MONGO_URI, CIVICHUB_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "civichub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "civichub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "720h", Desc: "Sign-in cookie lifetime (e.g., 24h, 720h)"},

	// Profile picture storage
	{Name: "storage_type", Default: "local", Desc: "Storage backend: 'local' or 's3'"},
	{Name: "storage_local_path", Default: "./uploads", Desc: "Local storage path for uploaded files"},
	{Name: "storage_local_url", Default: "/uploads", Desc: "URL prefix for serving local files"},
	{Name: "storage_s3_region", Default: "", Desc: "AWS region for S3"},
	{Name: "storage_s3_bucket", Default: "", Desc: "S3 bucket name"},
	{Name: "storage_s3_prefix", Default: "", Desc: "S3 key prefix"},
	{Name: "storage_s3_endpoint", Default: "", Desc: "Custom S3 endpoint (MinIO, LocalStack)"},
	{Name: "storage_public_url", Default: "", Desc: "Public base URL for stored files (CDN)"},

	// Voter verification
	{Name: "verification_enabled", Default: false, Desc: "Check voter entries against the voter file"},
	{Name: "voter_api_url", Default: "", Desc: "Voter-file matching API base URL"},
	{Name: "voter_api_key", Default: "", Desc: "Voter-file API key (X-API-Key)"},
	{Name: "voter_token_url", Default: "", Desc: "OAuth2 token URL; when set the API uses client credentials"},
	{Name: "voter_client_id", Default: "", Desc: "OAuth2 client ID for the voter-file API"},
	{Name: "voter_client_secret", Default: "", Desc: "OAuth2 client secret for the voter-file API"},
	{Name: "voter_api_rps", Default: 2, Desc: "Outbound voter-file requests per second"},
	{Name: "voter_lookups_per_hour", Default: 20, Desc: "Voter lookups allowed per client IP per hour"},
	{Name: "voter_registration_url", Default: "https://vote.gov", Desc: "Where unregistered voters are sent"},

	// Legislative data providers
	{Name: "congress_api_url", Default: "", Desc: "Congress.gov API base URL (blank for the public API)"},
	{Name: "congress_api_key", Default: "", Desc: "Congress.gov API key"},
	{Name: "legiscan_api_url", Default: "", Desc: "LegiScan API base URL (blank for the public API)"},
	{Name: "legiscan_api_key", Default: "", Desc: "LegiScan API key"},
	{Name: "ballotready_api_url", Default: "", Desc: "BallotReady API base URL (blank for the public API)"},
	{Name: "ballotready_api_key", Default: "", Desc: "BallotReady API key"},
	{Name: "redis_url", Default: "", Desc: "Redis URL for the provider cache (blank disables caching)"},
	{Name: "provider_cache_ttl", Default: "10m", Desc: "How long provider responses are cached"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_activity", Default: "all", Desc: "Campaign/profile event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Handler timeouts
	{Name: "timeout_short", Default: "5s", Desc: "Timeout for single-document reads"},
	{Name: "timeout_medium", Default: "10s", Desc: "Timeout for list queries and writes"},
	{Name: "timeout_long", Default: "30s", Desc: "Timeout for transactions and upstream calls"},

	// Admin bootstrap
	{Name: "admin_email", Default: "", Desc: "Email of an existing account to promote to admin on startup"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig merges .env files, config files,
// CIVICHUB_* environment variables and flags with precedence
// flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "CIVICHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),
		SessionMaxAge:    appValues.Duration("session_max_age", 30*24*time.Hour),

		// Storage
		StorageType:       appValues.String("storage_type"),
		StorageLocalPath:  appValues.String("storage_local_path"),
		StorageLocalURL:   appValues.String("storage_local_url"),
		StorageS3Region:   appValues.String("storage_s3_region"),
		StorageS3Bucket:   appValues.String("storage_s3_bucket"),
		StorageS3Prefix:   appValues.String("storage_s3_prefix"),
		StorageS3Endpoint: appValues.String("storage_s3_endpoint"),
		StoragePublicURL:  appValues.String("storage_public_url"),

		// Voter verification
		VerificationEnabled:  appValues.Bool("verification_enabled"),
		VoterAPIURL:          appValues.String("voter_api_url"),
		VoterAPIKey:          appValues.String("voter_api_key"),
		VoterTokenURL:        appValues.String("voter_token_url"),
		VoterClientID:        appValues.String("voter_client_id"),
		VoterClientSecret:    appValues.String("voter_client_secret"),
		VoterAPIRPS:          appValues.Int("voter_api_rps"),
		VoterLookupsPerHour:  appValues.Int("voter_lookups_per_hour"),
		VoterRegistrationURL: appValues.String("voter_registration_url"),

		// Providers
		CongressAPIURL:    appValues.String("congress_api_url"),
		CongressAPIKey:    appValues.String("congress_api_key"),
		LegiScanAPIURL:    appValues.String("legiscan_api_url"),
		LegiScanAPIKey:    appValues.String("legiscan_api_key"),
		BallotReadyAPIURL: appValues.String("ballotready_api_url"),
		BallotReadyAPIKey: appValues.String("ballotready_api_key"),
		RedisURL:          appValues.String("redis_url"),
		ProviderCacheTTL:  appValues.Duration("provider_cache_ttl", 10*time.Minute),

		// Audit logging
		AuditLogAuth:     appValues.String("audit_log_auth"),
		AuditLogAdmin:    appValues.String("audit_log_admin"),
		AuditLogActivity: appValues.String("audit_log_activity"),

		// Timeouts
		TimeoutShort:  appValues.Duration("timeout_short", 5*time.Second),
		TimeoutMedium: appValues.Duration("timeout_medium", 10*time.Second),
		TimeoutLong:   appValues.Duration("timeout_long", 30*time.Second),

		AdminEmail: appValues.String("admin_email"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// CivicHub checks the MongoDB URI and the settings whose absence would
// only show up on the first request that needs them.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	switch appCfg.StorageType {
	case "local":
	case "s3":
		if appCfg.StorageS3Bucket == "" {
			return fmt.Errorf("storage_type s3 requires storage_s3_bucket")
		}
	default:
		return fmt.Errorf("storage_type must be 'local' or 's3', got %q", appCfg.StorageType)
	}

	if appCfg.VerificationEnabled && appCfg.VoterAPIURL == "" {
		return fmt.Errorf("verification_enabled requires voter_api_url")
	}
	if appCfg.VoterTokenURL != "" && (appCfg.VoterClientID == "" || appCfg.VoterClientSecret == "") {
		return fmt.Errorf("voter_token_url requires voter_client_id and voter_client_secret")
	}

	if coreCfg != nil && coreCfg.Env == "prod" && appCfg.SessionKey == "dev-only-change-me-please-0123456789ABCDEF" {
		return fmt.Errorf("session_key must be changed in production")
	}
	return nil
}
