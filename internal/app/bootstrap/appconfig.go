// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig covers ports, TLS, logging, CORS and body limits.
// Everything CivicHub itself needs lives here and is loaded in LoadConfig.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session cookies
	SessionKey    string        // secret for signing cookies (must be strong in production)
	SessionName   string        // cookie name (default: civichub-session)
	SessionDomain string        // blank means current host
	SessionMaxAge time.Duration // lifetime of the sign-in cookie

	// Profile picture storage
	StorageType      string // "local" or "s3"
	StorageLocalPath string // directory for local uploads
	StorageLocalURL  string // URL prefix local uploads are served under

	// S3 configuration (only used if StorageType is "s3")
	StorageS3Region   string
	StorageS3Bucket   string
	StorageS3Prefix   string
	StorageS3Endpoint string // MinIO/LocalStack endpoint, blank for AWS
	StoragePublicURL  string // CDN base URL, blank for the bucket URL

	// Voter verification
	VerificationEnabled  bool
	VoterAPIURL          string
	VoterAPIKey          string
	VoterTokenURL        string // OAuth2 client-credentials token endpoint; blank means API key auth
	VoterClientID        string
	VoterClientSecret    string
	VoterAPIRPS          int
	VoterLookupsPerHour  int
	VoterRegistrationURL string // shown to voters who were not found

	// Legislative data providers
	CongressAPIURL    string
	CongressAPIKey    string
	LegiScanAPIURL    string
	LegiScanAPIKey    string
	BallotReadyAPIURL string
	BallotReadyAPIKey string
	RedisURL          string // optional provider cache
	ProviderCacheTTL  time.Duration

	// Audit logging: "all" (db+log), "db", "log", or "off"
	AuditLogAuth     string
	AuditLogAdmin    string
	AuditLogActivity string

	// Timeouts for handler DB and upstream calls
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration

	// AdminEmail is promoted to the admin role at startup if the account exists.
	AdminEmail string
}
