package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/civichub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func newCSRFRouter(t *testing.T, trusted ...string) http.Handler {
	t.Helper()
	mw, err := auth.CSRF(auth.CSRFConfig{
		SessionKey:     "test-session-key-must-be-32-chars-long",
		TrustedOrigins: trusted,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("CSRF: %v", err)
	}
	r := chi.NewRouter()
	r.Use(mw)
	r.Get("/csrf", auth.ServeCSRFToken)
	r.Post("/campaigns/{id}/support", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

// fetchToken returns the token and the cookie that binds it.
func fetchToken(t *testing.T, h http.Handler) (string, []*http.Cookie) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/csrf", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /csrf = %d", rec.Code)
	}
	var body struct {
		CSRFToken string `json:"csrfToken"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if body.CSRFToken == "" || rec.Header().Get(auth.CSRFHeader) != body.CSRFToken {
		t.Fatalf("token missing: body %q header %q", body.CSRFToken, rec.Header().Get(auth.CSRFHeader))
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("no CSRF cookie set")
	}
	return body.CSRFToken, cookies
}

func post(h http.Handler, body, contentType, token, origin string, cookies []*http.Cookie) int {
	req := httptest.NewRequest(http.MethodPost, "/campaigns/c1/support", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set(auth.CSRFHeader, token)
	}
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestCSRF_RejectsCrossSiteRequests(t *testing.T) {
	h := newCSRFRouter(t)
	token, cookies := fetchToken(t, h)

	tests := []struct {
		name        string
		body        string
		contentType string
		token       string
		origin      string
		cookies     []*http.Cookie
	}{
		{"bodyless action, no token", "", "", "", "", cookies},
		{"text/plain form carrying JSON", `{"title":"x"}`, "text/plain", "", "https://evil.example", cookies},
		{"multipart form", "--b--", "multipart/form-data; boundary=b", "", "", cookies},
		{"token without cookie", "", "", token, "", nil},
		{"forged token", "", "", "bm90LWEtcmVhbC10b2tlbg==", "", cookies},
		{"valid token from untrusted origin", "", "", token, "https://evil.example", cookies},
	}
	for _, tt := range tests {
		if code := post(h, tt.body, tt.contentType, tt.token, tt.origin, tt.cookies); code != http.StatusForbidden {
			t.Errorf("%s: status = %d, want 403", tt.name, code)
		}
	}
}

func TestCSRF_AllowsTokenHolders(t *testing.T) {
	h := newCSRFRouter(t, "app.example.org")
	token, cookies := fetchToken(t, h)

	if code := post(h, "", "", token, "", cookies); code != http.StatusNoContent {
		t.Errorf("same-origin POST = %d, want 204", code)
	}
	if code := post(h, "", "", token, "http://app.example.org", cookies); code != http.StatusNoContent {
		t.Errorf("trusted origin POST = %d, want 204", code)
	}
}

func TestCSRF_SafeMethodsPass(t *testing.T) {
	h := newCSRFRouter(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/csrf", nil)
	req.Header.Set("Origin", "https://evil.example")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("GET = %d, want 200", rec.Code)
	}
}
