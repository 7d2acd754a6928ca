package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/civichub/internal/app/system/auth"
	"go.uber.org/zap"
)

func newTestSessionManager(t *testing.T) *auth.SessionManager {
	t.Helper()
	sm, err := auth.NewSessionManager(
		"test-session-key-must-be-32-chars-long",
		"test-session",
		"",
		24*time.Hour,
		false,
		zap.NewNop(),
	)
	if err != nil {
		t.Fatalf("failed to create session manager: %v", err)
	}
	return sm
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if called != nil {
			*called = true
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestNewSessionManager_EmptyKey(t *testing.T) {
	if _, err := auth.NewSessionManager("", "x", "", time.Hour, false, zap.NewNop()); err == nil {
		t.Error("expected error for empty session key")
	}
}

func TestRequireSignedIn_NoUser_Returns401JSON(t *testing.T) {
	sm := newTestSessionManager(t)

	rec := httptest.NewRecorder()
	sm.RequireSignedIn(okHandler(nil)).ServeHTTP(rec, httptest.NewRequest("GET", "/api/profile", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}
	if !strings.Contains(rec.Body.String(), `"error"`) {
		t.Errorf("expected error body, got %q", rec.Body.String())
	}
}

func TestRequireSignedIn_WithUser_Proceeds(t *testing.T) {
	sm := newTestSessionManager(t)

	called := false
	req := withTestUser(httptest.NewRequest("GET", "/api/profile", nil), "user")
	rec := httptest.NewRecorder()
	sm.RequireSignedIn(okHandler(&called)).ServeHTTP(rec, req)

	if !called || rec.Code != http.StatusOK {
		t.Errorf("expected handler to run with 200, got called=%v status=%d", called, rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	sm := newTestSessionManager(t)
	handler := sm.RequireRole("admin")(okHandler(nil))

	tests := []struct {
		name string
		role string
		want int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"wrong role", "user", http.StatusForbidden},
		{"admin", "admin", http.StatusOK},
		{"case insensitive", "ADMIN", http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/organizations", nil)
			if tc.role != "" {
				req = withTestUser(req, tc.role)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Errorf("role %q: expected status %d, got %d", tc.role, tc.want, rec.Code)
			}
		})
	}
}

func TestCurrentUser(t *testing.T) {
	if u, ok := auth.CurrentUser(httptest.NewRequest("GET", "/", nil)); ok || u != nil {
		t.Error("expected no user on a bare request")
	}

	req := withTestUser(httptest.NewRequest("GET", "/", nil), "admin")
	u, ok := auth.CurrentUser(req)
	if !ok || u == nil {
		t.Fatal("expected user in context")
	}
	if u.Role != "admin" {
		t.Errorf("expected role 'admin', got %q", u.Role)
	}
}

type stubFetcher struct {
	user *auth.SessionUser
	seen string
}

func (f *stubFetcher) FetchUser(_ context.Context, id string) *auth.SessionUser {
	f.seen = id
	return f.user
}

// signedInCookie signs a user in through the manager and returns the cookie.
func signedInCookie(t *testing.T, sm *auth.SessionManager, id string) *http.Cookie {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/login", nil)
	rec := httptest.NewRecorder()
	sess, _ := sm.GetSession(req)
	auth.SignIn(sess, &auth.SessionUser{ID: id, Name: "Ada", LoginID: "ada@example.com", Role: "user"})
	if err := sess.Save(req, rec); err != nil {
		t.Fatalf("save session: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected a session cookie")
	}
	return cookies[0]
}

func TestLoadSessionUser_FromCookie(t *testing.T) {
	sm := newTestSessionManager(t)
	cookie := signedInCookie(t, sm, "507f1f77bcf86cd799439011")

	var got *auth.SessionUser
	h := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.CurrentUser(r)
	}))
	req := httptest.NewRequest("GET", "/api/profile", nil)
	req.AddCookie(cookie)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil || got.ID != "507f1f77bcf86cd799439011" || got.LoginID != "ada@example.com" {
		t.Errorf("unexpected user from cookie: %+v", got)
	}
}

func TestLoadSessionUser_UsesFetcher(t *testing.T) {
	sm := newTestSessionManager(t)
	f := &stubFetcher{user: &auth.SessionUser{ID: "507f1f77bcf86cd799439011", Role: "admin", GroupSlug: "vote-org"}}
	sm.SetUserFetcher(f)
	cookie := signedInCookie(t, sm, "507f1f77bcf86cd799439011")

	var got *auth.SessionUser
	h := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.CurrentUser(r)
	}))
	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(cookie)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if f.seen != "507f1f77bcf86cd799439011" {
		t.Errorf("fetcher saw id %q", f.seen)
	}
	if got == nil || got.Role != "admin" || got.GroupSlug != "vote-org" {
		t.Errorf("expected fetched user, got %+v", got)
	}
}

func TestLoadSessionUser_FetcherNilSignsOut(t *testing.T) {
	sm := newTestSessionManager(t)
	sm.SetUserFetcher(&stubFetcher{})
	cookie := signedInCookie(t, sm, "507f1f77bcf86cd799439011")

	signedIn := true
	h := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, signedIn = auth.CurrentUser(r)
	}))
	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(cookie)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if signedIn {
		t.Error("expected request to be treated as signed out")
	}
}

func withTestUser(r *http.Request, role string) *http.Request {
	return auth.WithTestUser(r, &auth.SessionUser{
		ID:      "507f1f77bcf86cd799439011",
		Name:    "Test User",
		LoginID: "test@example.com",
		Role:    role,
	})
}
