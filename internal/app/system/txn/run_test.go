package txn_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dalemusser/civichub/internal/app/system/txn"
	"github.com/dalemusser/civichub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func TestRun_CommitsWrites(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	coll := db.Collection("things")
	// Collections must exist before use inside a transaction on older servers.
	if err := db.CreateCollection(ctx, "things"); err != nil {
		t.Fatalf("CreateCollection failed: %v", err)
	}

	err := txn.Run(ctx, db, zap.NewNop(), func(ctx context.Context) error {
		if _, err := coll.InsertOne(ctx, bson.M{"_id": "a"}); err != nil {
			return err
		}
		_, err := coll.InsertOne(ctx, bson.M{"_id": "b"})
		return err
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	n, _ := coll.CountDocuments(ctx, bson.M{})
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

func TestRun_ReturnsCallbackError(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	boom := errors.New("boom")
	err := txn.Run(ctx, db, zap.NewNop(), func(ctx context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("expected callback error, got %v", err)
	}
}
