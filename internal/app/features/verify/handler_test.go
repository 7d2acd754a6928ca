package verify_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	uierrors "github.com/dalemusser/civichub/internal/app/features/errors"
	"github.com/dalemusser/civichub/internal/app/features/verify"
	"github.com/dalemusser/civichub/internal/app/system/auditlog"
	"github.com/dalemusser/civichub/internal/app/system/ratelimit"
	"github.com/dalemusser/civichub/internal/app/system/verification"
	"github.com/dalemusser/civichub/internal/app/system/voterverify"
	"github.com/dalemusser/civichub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type stubVerifier struct {
	results [][]verification.Match
	err     error
	calls   int
}

func (s *stubVerifier) Verify(_ context.Context, _ verification.Query) ([]verification.Match, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.results) == 0 {
		return nil, nil
	}
	out := s.results[0]
	s.results = s.results[1:]
	return out, nil
}

type harness struct {
	t      *testing.T
	router chi.Router
	jar    *testutil.CookieJar
}

func newHarness(t *testing.T, v verification.Verifier, enabled bool, lookups *ratelimit.LookupLimiter) *harness {
	t.Helper()
	logger := zap.NewNop()
	h := verify.NewHandler(
		testutil.NewSessionManager(t),
		verification.New(v, enabled),
		lookups,
		"https://vote.example.org/register",
		uierrors.NewErrorLogger(logger),
		auditlog.New(nil, logger, auditlog.Config{}),
		logger,
	)
	return &harness{t: t, router: verify.Routes(h), jar: testutil.NewCookieJar()}
}

type view struct {
	Flow            string                 `json:"flow"`
	State           verification.State     `json:"state"`
	Matches         []verification.Match   `json:"matches"`
	Identity        *verification.Identity `json:"identity"`
	RegistrationURL string                 `json:"registrationUrl"`
	Enabled         bool                   `json:"verificationEnabled"`
	Error           string                 `json:"error"`
	Fields          []string               `json:"fields"`
}

func (h *harness) do(method, path string, body any) (int, view) {
	h.t.Helper()
	req := h.jar.Apply(testutil.JSONRequest(h.t, method, path, body))
	rec := testutil.NewRecorder()
	h.router.ServeHTTP(rec, req)
	h.jar.Keep(rec.ResponseRecorder)
	var v view
	rec.DecodeJSON(h.t, &v)
	return rec.Code, v
}

func entry() verification.Entry {
	return verification.Entry{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Address:   "12 Analytical Way",
		City:      "Springfield",
		State:     "il",
		ZipCode:   "62704",
	}
}

func TestFlow_ZeroMatchesRefineToVerified(t *testing.T) {
	stub := &stubVerifier{results: [][]verification.Match{
		{},
		{{ID: "IL-9", Address: "12 ANALYTICAL WAY", City: "SPRINGFIELD", State: "IL", ZipCode: "62704", ConstituentDescription: "Active"}},
	}}
	h := newHarness(t, stub, true, nil)

	code, v := h.do("POST", "/signup/submit", entry())
	if code != http.StatusOK || v.State != verification.StateSelection || len(v.Matches) != 0 {
		t.Fatalf("submit = %d %+v", code, v)
	}
	if !h.jar.Has(verify.CookieName(verify.FlowSignup)) {
		t.Fatal("flow cookie not set")
	}

	if code, v = h.do("POST", "/signup/not-listed", nil); v.State != verification.StateRefineSearch {
		t.Fatalf("not-listed = %d %+v", code, v)
	}

	code, v = h.do("POST", "/signup/refine", map[string]any{"dobYear": "1985"})
	if code != http.StatusBadRequest || len(v.Fields) != 1 || v.Fields[0] != "termsAccepted" {
		t.Fatalf("refine without terms = %d %+v", code, v)
	}
	if _, v = h.do("GET", "/signup", nil); v.State != verification.StateRefineSearch {
		t.Fatalf("blocked refine changed state to %s", v.State)
	}

	code, v = h.do("POST", "/signup/refine", map[string]any{"dobYear": "1985", "termsAccepted": true})
	if code != http.StatusOK || v.State != verification.StateVerified {
		t.Fatalf("refine = %d %+v", code, v)
	}
	if v.Identity == nil || v.Identity.VoterID != "IL-9" || !v.Identity.IsVerified || v.Identity.FirstName != "Ada" {
		t.Errorf("identity = %+v", v.Identity)
	}
	if stub.calls != 2 {
		t.Errorf("verifier calls = %d", stub.calls)
	}
}

func TestFlow_NotFoundThenReset(t *testing.T) {
	stub := &stubVerifier{results: [][]verification.Match{{{ID: "IL-1"}}, {}}}
	h := newHarness(t, stub, true, nil)

	h.do("POST", "/poll/submit", entry())
	h.do("POST", "/poll/not-listed", nil)
	code, v := h.do("POST", "/poll/refine", map[string]any{"termsAccepted": true})
	if code != http.StatusOK || v.State != verification.StateNotFound {
		t.Fatalf("refine = %d %+v", code, v)
	}
	if v.RegistrationURL == "" {
		t.Error("not_found should expose the registration URL")
	}

	_, v = h.do("POST", "/poll/reset", nil)
	if v.State != verification.StateInitial || len(v.Matches) != 0 || v.Identity != nil || v.RegistrationURL != "" {
		t.Errorf("reset = %+v", v)
	}

	// The signup flow is independent.
	if _, v = h.do("GET", "/signup", nil); v.State != verification.StateInitial {
		t.Errorf("signup flow state = %s", v.State)
	}
}

func TestSelect(t *testing.T) {
	stub := &stubVerifier{results: [][]verification.Match{{{ID: "IL-1"}, {ID: "IL-2", City: "PEORIA"}}}}
	h := newHarness(t, stub, true, nil)
	h.do("POST", "/signup/submit", entry())

	code, v := h.do("POST", "/signup/select", map[string]string{"matchId": "IL-404"})
	if code != http.StatusBadRequest {
		t.Errorf("unknown match = %d", code)
	}
	code, v = h.do("POST", "/signup/select", map[string]string{"matchId": "IL-2"})
	if code != http.StatusOK || v.State != verification.StateVerified || v.Identity.City != "PEORIA" {
		t.Errorf("select = %d %+v", code, v)
	}

	if code, _ = h.do("POST", "/signup/not-listed", nil); code != http.StatusConflict {
		t.Errorf("not-listed after verified = %d, want 409", code)
	}
}

func TestSubmit_ValidationAndDisabled(t *testing.T) {
	h := newHarness(t, nil, false, nil)

	bad := entry()
	bad.ZipCode = "627"
	code, v := h.do("POST", "/signup/submit", bad)
	if code != http.StatusBadRequest || len(v.Fields) == 0 {
		t.Errorf("invalid entry = %d %+v", code, v)
	}

	code, v = h.do("POST", "/signup/submit", entry())
	if code != http.StatusOK || v.State != verification.StateVerified || v.Enabled {
		t.Errorf("disabled submit = %d %+v", code, v)
	}
	if v.Identity == nil || v.Identity.State != "IL" || !v.Identity.IsVerified {
		t.Errorf("identity = %+v", v.Identity)
	}
}

func TestSubmit_VerifierErrorKeepsState(t *testing.T) {
	stub := &stubVerifier{err: errors.New("connection refused")}
	h := newHarness(t, stub, true, nil)

	code, _ := h.do("POST", "/signup/submit", entry())
	if code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", code)
	}
	if _, v := h.do("GET", "/signup", nil); v.State != verification.StateInitial {
		t.Errorf("state after failure = %s", v.State)
	}
}

func TestSubmit_LookupBudget(t *testing.T) {
	lookups := ratelimit.NewLookupLimiter(1)
	defer lookups.Stop()
	h := newHarness(t, &stubVerifier{}, true, lookups)

	if code, _ := h.do("POST", "/signup/submit", entry()); code != http.StatusOK {
		t.Fatalf("first submit = %d", code)
	}
	h.do("POST", "/signup/reset", nil)
	if code, _ := h.do("POST", "/signup/submit", entry()); code != http.StatusTooManyRequests {
		t.Errorf("second submit = %d, want 429", code)
	}
}

func TestUnknownFlow(t *testing.T) {
	h := newHarness(t, nil, false, nil)
	if code, _ := h.do("GET", "/checkout", nil); code != http.StatusNotFound {
		t.Errorf("status = %d", code)
	}
}

func TestFlow_FullVoterFileAnswerReachesSelection(t *testing.T) {
	matches := make([]verification.Match, verification.MaxMatches)
	for i := range matches {
		matches[i] = verification.Match{
			ID:                     fmt.Sprintf("IL-%09d", 400120+i*37),
			FullName:               fmt.Sprintf("ADA %c LOVELACE", 'A'+i),
			Address:                fmt.Sprintf("%d N ANALYTICAL WAY APT %d", 1200+i*4, i+1),
			City:                   "SPRINGFIELD",
			State:                  "IL",
			ZipCode:                fmt.Sprintf("627%02d", i),
			ConstituentDescription: fmt.Sprintf("Active registered voter, Sangamon County precinct %d, ward %d, since %d", 10+i, i%5+1, 2004+i),
			CongressionalDistrict:  "IL-13",
		}
	}
	h := newHarness(t, &stubVerifier{results: [][]verification.Match{matches}}, true, nil)

	code, v := h.do("POST", "/signup/submit", entry())
	if code != http.StatusOK || v.State != verification.StateSelection {
		t.Fatalf("submit = %d %+v", code, v)
	}
	if len(v.Matches) != verification.MaxMatches {
		t.Errorf("matches = %d, want %d", len(v.Matches), verification.MaxMatches)
	}

	// The cookie carries the list into the next request.
	code, v = h.do("POST", "/signup/select", map[string]string{"matchId": matches[9].ID})
	if code != http.StatusOK || v.State != verification.StateVerified {
		t.Fatalf("select = %d %+v", code, v)
	}
	if v.Identity == nil || v.Identity.VoterID != matches[9].ID {
		t.Errorf("identity = %+v", v.Identity)
	}
}

func TestFlow_UnsuccessfulLookupStillAdvances(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":false,"matches":[],"error":"no voter record found"}`))
	}))
	defer srv.Close()

	client, err := voterverify.New(voterverify.Config{BaseURL: srv.URL}, srv.Client(), zap.NewNop())
	if err != nil {
		t.Fatalf("voterverify.New: %v", err)
	}
	h := newHarness(t, client, true, nil)

	code, v := h.do("POST", "/signup/submit", entry())
	if code != http.StatusOK || v.State != verification.StateSelection || len(v.Matches) != 0 {
		t.Fatalf("submit = %d %+v", code, v)
	}
	h.do("POST", "/signup/not-listed", nil)
	code, v = h.do("POST", "/signup/refine", map[string]any{"voterId": "X9", "termsAccepted": true})
	if code != http.StatusOK || v.State != verification.StateNotFound {
		t.Fatalf("refine = %d %+v", code, v)
	}
	if v.RegistrationURL == "" {
		t.Error("not_found should carry the registration URL")
	}
}
