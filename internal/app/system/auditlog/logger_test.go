package auditlog_test

import (
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/civichub/internal/app/store/audit"
	"github.com/dalemusser/civichub/internal/app/system/auditlog"
	"github.com/dalemusser/civichub/internal/domain/models"
	"github.com/dalemusser/civichub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_NilLogger(t *testing.T) {
	// nil logger should be a no-op (not panic)
	var logger *auditlog.Logger
	ctx, cancel := testutil.TestContext()
	defer cancel()
	req := httptest.NewRequest("GET", "/", nil)

	logger.Log(ctx, audit.Event{EventType: "test"})
	logger.LoginSuccess(ctx, req, primitive.NewObjectID(), "a@b.c")
	logger.Logout(ctx, req, "not-an-id")
}

func TestLogger_ZapOnly(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := auditlog.New(nil, zap.New(core), auditlog.Config{Auth: "log"})
	ctx, cancel := testutil.TestContext()
	defer cancel()

	req := httptest.NewRequest("POST", "/api/verify/signup/refine", nil)
	req.RemoteAddr = "10.0.0.9:5555"
	logger.VoterNotFound(ctx, req, "signup")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["event_type"] != audit.EventVoterNotFound || fields["detail_flow"] != "signup" || fields["ip"] != "10.0.0.9" {
		t.Errorf("unexpected fields %v", fields)
	}
	if entries[0].Level != zap.WarnLevel {
		t.Errorf("failed events should log at warn, got %v", entries[0].Level)
	}
}

func TestLogger_ConfigRouting(t *testing.T) {
	tests := []struct {
		name    string
		setting string
		wantDB  int
	}{
		{"off", "off", 0},
		{"log", "log", 0},
		{"db", "db", 1},
		{"all", "all", 1},
		{"default", "", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			store := audit.New(db)
			ctx, cancel := testutil.TestContext()
			defer cancel()

			logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Activity: tt.setting})
			userID := primitive.NewObjectID()
			logger.NicknameChanged(ctx, httptest.NewRequest("PUT", "/", nil), userID, "", "civic_voter")

			events, err := store.GetByUser(ctx, userID, 10)
			if err != nil {
				t.Fatalf("GetByUser failed: %v", err)
			}
			if len(events) != tt.wantDB {
				t.Errorf("stored %d events, want %d", len(events), tt.wantDB)
			}
		})
	}
}

func TestLogger_CampaignEvents(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Activity: "db"})
	actor := primitive.NewObjectID()
	templateID := primitive.NewObjectID()
	c := models.Campaign{ID: primitive.NewObjectID(), Owner: models.OrgOwner("vote-org"), ForkedFrom: &templateID}
	c.SetPayload(testutil.Bill(models.PositionSupport))

	logger.CampaignForked(ctx, httptest.NewRequest("POST", "/", nil), actor, c)

	events, err := store.Query(ctx, audit.QueryFilter{EventType: audit.EventCampaignForked})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.GroupSlug != "vote-org" || e.Details["template_id"] != templateID.Hex() || e.Details["campaign_type"] != "legislation" {
		t.Errorf("unexpected event %+v", e)
	}
	if e.ActorID == nil || *e.ActorID != actor {
		t.Errorf("actor not recorded: %+v", e.ActorID)
	}
}

func TestLogger_OrgReviewed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Admin: "db"})
	org := models.Organization{ID: primitive.NewObjectID(), Name: "Vote Org", GroupSlug: "vote-org", Status: models.OrgApproved, AdminUserID: primitive.NewObjectID()}
	logger.OrgReviewed(ctx, nil, primitive.NewObjectID(), org)

	events, _ := store.GetByUser(ctx, org.AdminUserID, 10)
	if len(events) != 1 || events[0].EventType != audit.EventOrgApproved {
		t.Errorf("expected org_approved for the registering user, got %+v", events)
	}
}
