package pollresponsestore_test

import (
	"errors"
	"testing"

	pollresponsestore "github.com/dalemusser/civichub/internal/app/store/pollresponses"
	"github.com/dalemusser/civichub/internal/app/system/indexes"
	"github.com/dalemusser/civichub/internal/app/system/validators"
	"github.com/dalemusser/civichub/internal/domain/models"
	"github.com/dalemusser/civichub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func setup(t *testing.T) *pollresponsestore.Store {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("validators: %v", err)
	}
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("indexes: %v", err)
	}
	return pollresponsestore.New(db)
}

func TestCreate_OnePerRespondent(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cid := primitive.NewObjectID()
	key := pollresponsestore.VoterKey("IL-1")
	if _, err := store.Create(ctx, models.PollResponse{CampaignID: cid, RespondentKey: key, Answers: []string{"Yes"}, IsVerified: true}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	_, err := store.Create(ctx, models.PollResponse{CampaignID: cid, RespondentKey: key, Answers: []string{"No"}})
	if !errors.Is(err, pollresponsestore.ErrAlreadyResponded) {
		t.Fatalf("expected ErrAlreadyResponded, got %v", err)
	}

	// Same respondent on another poll is fine.
	if _, err := store.Create(ctx, models.PollResponse{CampaignID: primitive.NewObjectID(), RespondentKey: key, Answers: []string{"No"}}); err != nil {
		t.Errorf("other campaign: %v", err)
	}
	if _, err := store.Create(ctx, models.PollResponse{CampaignID: cid}); !errors.Is(err, pollresponsestore.ErrBadRespondent) {
		t.Errorf("expected ErrBadRespondent, got %v", err)
	}
}

func TestTally(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cid := primitive.NewObjectID()
	uid := primitive.NewObjectID()
	responses := []models.PollResponse{
		{CampaignID: cid, RespondentKey: pollresponsestore.UserKey(uid), UserID: &uid, Answers: []string{"Bus", "Rail"}, IsVerified: true},
		{CampaignID: cid, RespondentKey: pollresponsestore.AnonKey("a1"), Answers: []string{"Bus"}},
		{CampaignID: cid, RespondentKey: pollresponsestore.AnonKey("a2"), Answers: []string{"Bike"}},
	}
	for _, r := range responses {
		if _, err := store.Create(ctx, r); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	tally, err := store.Tally(ctx, cid)
	if err != nil {
		t.Fatalf("Tally failed: %v", err)
	}
	if tally.Total != 3 || tally.Verified != 1 {
		t.Errorf("total/verified = %d/%d", tally.Total, tally.Verified)
	}
	want := map[string]int64{"Bus": 2, "Rail": 1, "Bike": 1}
	for k, v := range want {
		if tally.Choices[k] != v {
			t.Errorf("choice %q = %d, want %d", k, tally.Choices[k], v)
		}
	}

	list, _ := store.ListByCampaign(ctx, cid, 0)
	if len(list) != 3 {
		t.Errorf("ListByCampaign = %d", len(list))
	}
}
