package auth

import (
	"crypto/sha256"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/csrf"
	"go.uber.org/zap"
	"golang.org/x/crypto/hkdf"
)

// CSRFHeader carries the token on POST, PUT, PATCH and DELETE requests.
const CSRFHeader = "X-CSRF-Token"

// CSRFConfig configures CSRF.
type CSRFConfig struct {
	// SessionKey is the session signing secret. The CSRF key is derived
	// from it.
	SessionKey string
	Domain     string
	Secure     bool
	// TrustedOrigins are the hosts (host[:port]) allowed to make unsafe
	// requests besides the API's own, typically the SPA's.
	TrustedOrigins []string
}

// CSRF returns middleware that rejects unsafe requests lacking a valid
// token or coming from an untrusted Origin. Clients fetch a token from
// ServeCSRFToken and echo it in CSRFHeader.
func CSRF(cfg CSRFConfig, logger *zap.Logger) (func(http.Handler) http.Handler, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(cfg.SessionKey), nil, []byte("civichub csrf")), key); err != nil {
		return nil, err
	}

	sameSite := csrf.SameSiteLaxMode
	if cfg.Secure {
		sameSite = csrf.SameSiteNoneMode
	}
	opts := []csrf.Option{
		csrf.CookieName("civichub-csrf"),
		csrf.Path("/"),
		csrf.Secure(cfg.Secure),
		csrf.HttpOnly(true),
		csrf.SameSite(sameSite),
		csrf.RequestHeader(CSRFHeader),
		csrf.TrustedOrigins(cfg.TrustedOrigins),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Info("csrf check failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("origin", r.Header.Get("Origin")),
				zap.Error(csrf.FailureReason(r)))
			writeJSONError(w, http.StatusForbidden, "invalid or missing CSRF token")
		})),
	}
	if cfg.Domain != "" {
		opts = append(opts, csrf.Domain(cfg.Domain))
	}
	protect := csrf.Protect(key, opts...)

	return func(next http.Handler) http.Handler {
		h := protect(next)
		if cfg.Secure {
			return h
		}
		// Local dev serves plain http, where Referer checks do not apply.
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
		})
	}, nil
}

// ServeCSRFToken handles GET /api/csrf. The token is returned in both the
// CSRFHeader response header and the body.
func ServeCSRFToken(w http.ResponseWriter, r *http.Request) {
	token := csrf.Token(r)
	w.Header().Set(CSRFHeader, token)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"csrfToken": token})
}
