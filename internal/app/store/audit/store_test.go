package audit_test

import (
	"testing"
	"time"

	"github.com/dalemusser/civichub/internal/app/store/audit"
	"github.com/dalemusser/civichub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Log_SetsIDAndTimestamp(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	before := time.Now().Add(-time.Second)
	err := store.Log(ctx, audit.Event{
		Category:  audit.CategoryActivity,
		EventType: audit.EventCampaignCreated,
		UserID:    &userID,
		Success:   true,
		Details:   map[string]string{"campaign_id": "abc", "campaign_type": "legislation"},
	})
	if err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := store.GetByUser(ctx, userID, 10)
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.ID.IsZero() {
		t.Error("expected ID to be generated")
	}
	if e.Timestamp.Before(before) {
		t.Errorf("expected timestamp to be set, got %v", e.Timestamp)
	}
	if e.Details["campaign_type"] != "legislation" {
		t.Errorf("details not stored: %v", e.Details)
	}
}

func TestStore_Query_Filters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	base := time.Now().Add(-time.Hour).UTC()
	events := []audit.Event{
		{Timestamp: base, Category: audit.CategoryAuth, EventType: audit.EventLoginSuccess, Success: true},
		{Timestamp: base.Add(time.Minute), Category: audit.CategoryAdmin, EventType: audit.EventOrgApproved, GroupSlug: "vote-org", Success: true},
		{Timestamp: base.Add(2 * time.Minute), Category: audit.CategoryActivity, EventType: audit.EventCampaignCreated, GroupSlug: "vote-org", Success: true},
		{Timestamp: base.Add(3 * time.Minute), Category: audit.CategoryActivity, EventType: audit.EventNicknameChanged, Success: true},
	}
	for _, e := range events {
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter audit.QueryFilter
		want   int
	}{
		{"all", audit.QueryFilter{}, 4},
		{"category", audit.QueryFilter{Category: audit.CategoryActivity}, 2},
		{"event type", audit.QueryFilter{EventType: audit.EventOrgApproved}, 1},
		{"group", audit.QueryFilter{GroupSlug: "vote-org"}, 2},
		{"limit", audit.QueryFilter{Limit: 3}, 3},
		{"offset", audit.QueryFilter{Offset: 3}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d events, want %d", len(got), tt.want)
			}
		})
	}

	start := base.Add(90 * time.Second)
	n, err := store.CountByFilter(ctx, audit.QueryFilter{StartTime: &start})
	if err != nil {
		t.Fatalf("CountByFilter failed: %v", err)
	}
	if n != 2 {
		t.Errorf("count since %v = %d, want 2", start, n)
	}

	recent, _ := store.GetRecent(ctx, 1)
	if len(recent) != 1 || recent[0].EventType != audit.EventNicknameChanged {
		t.Errorf("GetRecent should return newest first, got %+v", recent)
	}
}

func TestStore_GetFailedLogins(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_ = store.Log(ctx, audit.Event{Category: audit.CategoryAuth, EventType: audit.EventLoginFailedWrongPassword})
	_ = store.Log(ctx, audit.Event{Category: audit.CategoryAuth, EventType: audit.EventLoginFailedRateLimit})
	_ = store.Log(ctx, audit.Event{Category: audit.CategoryAuth, EventType: audit.EventLoginSuccess, Success: true})

	got, err := store.GetFailedLogins(ctx, time.Now().Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("GetFailedLogins failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 failed logins, got %d", len(got))
	}
}
