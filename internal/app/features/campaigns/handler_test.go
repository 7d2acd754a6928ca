package campaigns_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/dalemusser/civichub/internal/app/features/campaigns"
	uierrors "github.com/dalemusser/civichub/internal/app/features/errors"
	"github.com/dalemusser/civichub/internal/app/features/verify"
	campaignstore "github.com/dalemusser/civichub/internal/app/store/campaigns"
	"github.com/dalemusser/civichub/internal/app/system/auditlog"
	"github.com/dalemusser/civichub/internal/app/system/indexes"
	"github.com/dalemusser/civichub/internal/app/system/verification"
	"github.com/dalemusser/civichub/internal/domain/models"
	"github.com/dalemusser/civichub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type harness struct {
	t      *testing.T
	db     *mongo.Database
	fx     *testutil.Fixtures
	store  *campaignstore.Store
	router chi.Router
	jar    *testutil.CookieJar
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}
	logger := zap.NewNop()
	sm := testutil.NewSessionManager(t)
	errLog := uierrors.NewErrorLogger(logger)
	audit := auditlog.New(nil, logger, auditlog.Config{})

	flows := verify.NewHandler(sm, verification.New(nil, false), nil, "", errLog, audit, logger)
	r := chi.NewRouter()
	r.Mount("/api/verify", verify.Routes(flows))
	r.Mount("/api/campaigns", campaigns.Routes(campaigns.NewHandler(db, flows, errLog, audit, logger), sm))
	return &harness{
		t:      t,
		db:     db,
		fx:     testutil.NewFixtures(t, db),
		store:  campaignstore.New(db, logger),
		router: r,
		jar:    testutil.NewCookieJar(),
	}
}

// do sends a request as user; a zero TestUser means anonymous.
func (h *harness) do(user testutil.TestUser, method, path string, body any) *testutil.ResponseRecorder {
	h.t.Helper()
	req := h.jar.Apply(testutil.JSONRequest(h.t, method, path, body))
	if user.ID != "" {
		req = testutil.WithUser(req, user)
	}
	rec := testutil.NewRecorder()
	h.router.ServeHTTP(rec, req)
	h.jar.Keep(rec.ResponseRecorder)
	return rec
}

type campaignBody struct {
	ID             string       `json:"id"`
	Owner          models.Owner `json:"owner"`
	CampaignType   string       `json:"campaignType"`
	Position       string       `json:"position"`
	Reasoning      string       `json:"reasoning"`
	ReasoningHTML  string       `json:"reasoningHtml"`
	IsDiscoverable bool         `json:"isDiscoverable"`
	SupportCount   int64        `json:"supportCount"`
	OpposeCount    int64        `json:"opposeCount"`
	ForkedFrom     string       `json:"forkedFrom"`
	MyAction       string       `json:"myAction"`
}

type pageBody struct {
	Items []campaignBody `json:"items"`
	Next  string         `json:"next"`
}

func legislationBody(user testutil.TestUser) map[string]any {
	return map[string]any{
		"userId":       user.ID,
		"campaignType": "legislation",
		"bill":         map[string]any{"congress": 118, "type": "hr", "number": "1"},
		"position":     "support",
		"reasoning":    "Lower **energy** costs <script>alert(1)</script>",
		"startDate":    "2025-01-01",
		"endDate":      "2025-06-01",
	}
}

func TestCreate_Legislation(t *testing.T) {
	h := newHarness(t)
	user := testutil.RegularUser()

	rec := h.do(user, http.MethodPost, "/api/campaigns", legislationBody(user))
	rec.AssertStatus(t, http.StatusCreated)

	var got campaignBody
	rec.DecodeJSON(t, &got)
	if got.SupportCount != 0 || got.OpposeCount != 0 || !got.IsDiscoverable {
		t.Errorf("unexpected defaults %+v", got)
	}
	if got.Position != models.PositionSupport || got.Owner != models.UserOwner(user.ID) {
		t.Errorf("unexpected campaign %+v", got)
	}
	if !strings.Contains(got.ReasoningHTML, "<strong>energy</strong>") || strings.Contains(got.ReasoningHTML, "<script") {
		t.Errorf("reasoningHtml = %q", got.ReasoningHTML)
	}
}

func TestCreate_RequiresSignIn(t *testing.T) {
	h := newHarness(t)
	rec := h.do(testutil.TestUser{}, http.MethodPost, "/api/campaigns", legislationBody(testutil.RegularUser()))
	rec.AssertStatus(t, http.StatusUnauthorized)
}

func TestCreate_OwnerRules(t *testing.T) {
	h := newHarness(t)
	user := testutil.RegularUser()

	body := legislationBody(user)
	body["groupSlug"] = "vote-org"
	rec := h.do(user, http.MethodPost, "/api/campaigns", body)
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertContains(t, `"owner"`)

	// A valid owner that is not the caller.
	body = legislationBody(testutil.RegularUser())
	rec = h.do(user, http.MethodPost, "/api/campaigns", body)
	rec.AssertStatus(t, http.StatusForbidden)

	// Organization campaigns need the caller to represent the organization.
	body = legislationBody(user)
	delete(body, "userId")
	body["groupSlug"] = "vote-org"
	rec = h.do(testutil.OrgUser("vote-org"), http.MethodPost, "/api/campaigns", body)
	rec.AssertStatus(t, http.StatusCreated)
}

func TestUpdate_NotOwnerLeavesRecordUnchanged(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := testutil.RegularUser()
	c := h.fx.CreateCampaign(ctx, models.UserOwner(owner.ID), testutil.Bill(models.PositionSupport))

	body := legislationBody(owner)
	body["reasoning"] = "hijacked"
	rec := h.do(testutil.RegularUser(), http.MethodPut, "/api/campaigns/"+c.ID.Hex(), body)
	rec.AssertStatus(t, http.StatusForbidden)

	// Admins have no override.
	rec = h.do(testutil.AdminUser(), http.MethodPut, "/api/campaigns/"+c.ID.Hex(), body)
	rec.AssertStatus(t, http.StatusForbidden)

	after, err := h.store.GetByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if after.Reasoning != c.Reasoning || !after.UpdatedAt.Equal(c.UpdatedAt) {
		t.Errorf("record changed: %+v", after)
	}
}

func TestUpdate_Owner(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := testutil.RegularUser()
	c := h.fx.CreateCampaign(ctx, models.UserOwner(owner.ID), testutil.Bill(models.PositionSupport))
	if _, err := h.store.Increment(ctx, c.ID, models.ActionSupport); err != nil {
		t.Fatalf("Increment: %v", err)
	}

	body := legislationBody(owner)
	body["position"] = "oppose"
	body["reasoning"] = "Changed my mind"
	rec := h.do(owner, http.MethodPut, "/api/campaigns/"+c.ID.Hex(), body)
	rec.AssertStatus(t, http.StatusOK)

	var got campaignBody
	rec.DecodeJSON(t, &got)
	if got.Position != models.PositionOppose || got.Reasoning != "Changed my mind" || got.SupportCount != 1 {
		t.Errorf("unexpected update %+v", got)
	}

	body["campaignType"] = "issue"
	rec = h.do(owner, http.MethodPut, "/api/campaigns/"+c.ID.Hex(), body)
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertContains(t, "campaignType")
}

func TestDelete(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := testutil.RegularUser()
	c := h.fx.CreateCampaign(ctx, models.UserOwner(owner.ID), testutil.Bill(models.PositionSupport))

	rec := h.do(testutil.RegularUser(), http.MethodDelete, "/api/campaigns/"+c.ID.Hex(), nil)
	rec.AssertStatus(t, http.StatusForbidden)

	rec = h.do(owner, http.MethodDelete, "/api/campaigns/"+c.ID.Hex(), nil)
	rec.AssertStatus(t, http.StatusNoContent)

	rec = h.do(testutil.TestUser{}, http.MethodGet, "/api/campaigns/"+c.ID.Hex(), nil)
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestSupportOppose_Counters(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	c := h.fx.CreateCampaign(ctx, models.OrgOwner("vote-org"), testutil.Bill(models.PositionSupport))
	path := "/api/campaigns/" + c.ID.Hex()

	// Anonymous actions are counted every time.
	for want := int64(1); want <= 3; want++ {
		rec := h.do(testutil.TestUser{}, http.MethodPost, path+"/support", nil)
		rec.AssertStatus(t, http.StatusOK)
		var got campaignBody
		rec.DecodeJSON(t, &got)
		if got.SupportCount != want || got.OpposeCount != 0 {
			t.Fatalf("after %d supports: %+v", want, got)
		}
	}

	// Signed-in users act once per campaign.
	user := testutil.RegularUser()
	rec := h.do(user, http.MethodPost, path+"/oppose", nil)
	rec.AssertStatus(t, http.StatusOK)
	rec = h.do(user, http.MethodPost, path+"/support", nil)
	rec.AssertStatus(t, http.StatusConflict)

	rec = h.do(user, http.MethodGet, path, nil)
	var got campaignBody
	rec.DecodeJSON(t, &got)
	if got.SupportCount != 3 || got.OpposeCount != 1 || got.MyAction != models.ActionOppose {
		t.Errorf("unexpected counters %+v", got)
	}

	rec = h.do(testutil.TestUser{}, http.MethodPost, "/api/campaigns/507f1f77bcf86cd799439011/support", nil)
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestServePublic_FilterAndPaging(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	h.fx.CreateCampaign(ctx, models.OrgOwner("vote-org"), testutil.Bill(models.PositionSupport))
	h.fx.CreateCampaign(ctx, models.OrgOwner("vote-org"), testutil.Bill(models.PositionOppose))
	h.fx.CreateCampaign(ctx, models.OrgOwner("other-org"), testutil.Bill(models.PositionSupport))
	hidden := h.fx.CreateCampaign(ctx, models.OrgOwner("vote-org"), testutil.Bill(models.PositionSupport))
	if _, err := h.db.Collection("campaigns").UpdateByID(ctx, hidden.ID, map[string]any{"$set": map[string]any{"is_discoverable": false}}); err != nil {
		t.Fatalf("hide campaign: %v", err)
	}

	rec := h.do(testutil.TestUser{}, http.MethodGet, "/api/campaigns/public?groupSlug=vote-org&limit=1", nil)
	rec.AssertStatus(t, http.StatusOK)
	var first pageBody
	rec.DecodeJSON(t, &first)
	if len(first.Items) != 1 || first.Next == "" {
		t.Fatalf("first page = %+v", first)
	}

	rec = h.do(testutil.TestUser{}, http.MethodGet, "/api/campaigns/public?groupSlug=vote-org&limit=1&after="+first.Next, nil)
	var second pageBody
	rec.DecodeJSON(t, &second)
	if len(second.Items) != 1 || second.Next != "" || second.Items[0].ID == first.Items[0].ID {
		t.Errorf("second page = %+v", second)
	}
	for _, it := range append(first.Items, second.Items...) {
		if it.Owner.GroupSlug != "vote-org" || it.ID == hidden.ID.Hex() {
			t.Errorf("unexpected item %+v", it)
		}
	}
}

func TestServeMine(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	user := testutil.OrgUser("vote-org")
	h.fx.CreateCampaign(ctx, models.UserOwner(user.ID), testutil.Bill(models.PositionSupport))
	h.fx.CreateCampaign(ctx, models.OrgOwner("vote-org"), testutil.Bill(models.PositionSupport))
	h.fx.CreateCampaign(ctx, models.UserOwner(testutil.RegularUser().ID), testutil.Bill(models.PositionSupport))

	rec := h.do(user, http.MethodGet, "/api/campaigns/mine", nil)
	rec.AssertStatus(t, http.StatusOK)
	var got pageBody
	rec.DecodeJSON(t, &got)
	if len(got.Items) != 2 {
		t.Errorf("expected 2 owned campaigns, got %d", len(got.Items))
	}

	rec = h.do(testutil.TestUser{}, http.MethodGet, "/api/campaigns/mine", nil)
	rec.AssertStatus(t, http.StatusUnauthorized)
}

func TestFork(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	tpl := models.CampaignTemplate{Slug: "hr1-support", Name: "Support H.R. 1", Reasoning: "Template reasoning"}
	tpl.Type = tpl.PayloadSlots.Set(testutil.Bill(models.PositionSupport))
	if _, err := h.store.SeedTemplates(ctx, []models.CampaignTemplate{tpl}); err != nil {
		t.Fatalf("SeedTemplates: %v", err)
	}

	rec := h.do(testutil.TestUser{}, http.MethodGet, "/api/campaigns/templates", nil)
	rec.AssertStatus(t, http.StatusOK)
	var list struct {
		Items []struct {
			ID   string `json:"id"`
			Slug string `json:"slug"`
		} `json:"items"`
	}
	rec.DecodeJSON(t, &list)
	if len(list.Items) != 1 || list.Items[0].Slug != "hr1-support" {
		t.Fatalf("templates = %+v", list.Items)
	}
	tplID := list.Items[0].ID

	user := testutil.RegularUser()
	rec = h.do(user, http.MethodPost, "/api/campaigns/templates/"+tplID+"/fork", map[string]string{"userId": user.ID})
	rec.AssertStatus(t, http.StatusCreated)
	var got campaignBody
	rec.DecodeJSON(t, &got)
	if got.ForkedFrom != tplID || got.SupportCount != 0 || got.Reasoning != "Template reasoning" || got.Owner != models.UserOwner(user.ID) {
		t.Errorf("unexpected fork %+v", got)
	}

	rec = h.do(user, http.MethodPost, "/api/campaigns/templates/"+tplID+"/fork", map[string]string{"groupSlug": "vote-org"})
	rec.AssertStatus(t, http.StatusForbidden)

	rec = h.do(user, http.MethodPost, "/api/campaigns/templates/507f1f77bcf86cd799439011/fork", map[string]string{"userId": user.ID})
	rec.AssertStatus(t, http.StatusNotFound)
}

func pollPayload() models.PollPayload {
	return models.PollPayload{
		Title:      "Transit",
		Question:   "Should the city fund a new bus line?",
		AnswerType: models.AnswerSingleChoice,
		Choices:    []string{"Yes", "No"},
	}
}

func TestRespond_AnonymousNeedsVerification(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	c := h.fx.CreateCampaign(ctx, models.OrgOwner("vote-org"), pollPayload())
	path := "/api/campaigns/" + c.ID.Hex() + "/responses"

	rec := h.do(testutil.TestUser{}, http.MethodPost, path, map[string]any{"answers": []string{"Yes"}})
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertContains(t, "verification")

	rec = h.do(testutil.TestUser{}, http.MethodPost, "/api/verify/poll/submit", verification.Entry{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Address:   "12 Analytical Way",
		City:      "Springfield",
		State:     "IL",
		ZipCode:   "62704",
	})
	rec.AssertStatus(t, http.StatusOK)

	rec = h.do(testutil.TestUser{}, http.MethodPost, path, map[string]any{"answers": []string{"Maybe"}})
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertContains(t, "answers")

	rec = h.do(testutil.TestUser{}, http.MethodPost, path, map[string]any{"answers": []string{"Yes"}})
	rec.AssertStatus(t, http.StatusCreated)
	var got struct {
		IsVerified bool `json:"isVerified"`
		Results    struct {
			Total   int64            `json:"total"`
			Choices map[string]int64 `json:"choices"`
		} `json:"results"`
	}
	rec.DecodeJSON(t, &got)
	if !got.IsVerified || got.Results.Total != 1 || got.Results.Choices["Yes"] != 1 {
		t.Errorf("unexpected response %+v", got)
	}
	if h.jar.Has(verify.CookieName(verify.FlowPoll)) {
		t.Error("poll verification cookie should be cleared")
	}
}

func TestRespond_SignedInOnce(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := testutil.OrgUser("vote-org")
	c := h.fx.CreateCampaign(ctx, models.OrgOwner("vote-org"), pollPayload())
	path := "/api/campaigns/" + c.ID.Hex()

	user := testutil.RegularUser()
	rec := h.do(user, http.MethodPost, path+"/responses", map[string]any{"answers": []string{"No"}})
	rec.AssertStatus(t, http.StatusCreated)
	rec = h.do(user, http.MethodPost, path+"/responses", map[string]any{"answers": []string{"Yes"}})
	rec.AssertStatus(t, http.StatusConflict)

	rec = h.do(user, http.MethodGet, path+"/results", nil)
	rec.AssertStatus(t, http.StatusForbidden)

	rec = h.do(owner, http.MethodGet, path+"/results", nil)
	rec.AssertStatus(t, http.StatusOK)
	var got struct {
		Results struct {
			Total    int64 `json:"total"`
			Verified int64 `json:"verified"`
		} `json:"results"`
		Responses []struct {
			UserID string `json:"userId"`
		} `json:"responses"`
	}
	rec.DecodeJSON(t, &got)
	if got.Results.Total != 1 || got.Results.Verified != 1 || len(got.Responses) != 1 || got.Responses[0].UserID != user.ID {
		t.Errorf("unexpected results %+v", got)
	}
}

func TestRespond_NotAPoll(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	c := h.fx.CreateCampaign(ctx, models.OrgOwner("vote-org"), testutil.Bill(models.PositionSupport))

	rec := h.do(testutil.RegularUser(), http.MethodPost, "/api/campaigns/"+c.ID.Hex()+"/responses", map[string]any{"answers": []string{"Yes"}})
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertContains(t, "campaignType")
}
