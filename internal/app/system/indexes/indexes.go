// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	steps := []struct {
		name string
		fn   func(context.Context, *mongo.Database) error
	}{
		{"users", ensureUsers},
		{"organizations", ensureOrganizations},
		{"nicknames", ensureNicknames},
		{"campaigns", ensureCampaigns},
		{"campaign_templates", ensureCampaignTemplates},
		{"campaign_actions", ensureCampaignActions},
		{"poll_responses", ensurePollResponses},
		{"audit_events", ensureAuditEvents},
		{"login_records", ensureLoginRecords},
	}
	for _, s := range steps {
		if err := s.fn(ctx, db); err != nil {
			problems = append(problems, s.name+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Reconcile a set of desired indexes for one collection                      */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique bool   `bson:"unique,omitempty"`
}

// desiredIndex is an IndexModel reduced to what reconciliation compares.
type desiredIndex struct {
	model  mongo.IndexModel
	name   string
	sig    string
	unique bool
}

func describe(m mongo.IndexModel) desiredIndex {
	d := desiredIndex{model: m, sig: keySig(m.Keys.(bson.D))}
	if m.Options != nil {
		if m.Options.Name != nil {
			d.name = *m.Options.Name
		}
		d.unique = m.Options.Unique != nil && *m.Options.Unique
	}
	return d
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

// isDuplicateKeyErr detects E11000 across driver error shapes and vendors.
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

// createFailure describes a failed CreateOne. A duplicate-key failure on a
// unique index means existing data violates it, so it names the finder query.
func createFailure(coll string, d desiredIndex, err error) string {
	if d.unique && isDuplicateKeyErr(err) {
		field := strings.SplitN(d.sig, ":", 2)[0]
		return fmt.Sprintf("%s(%s): cannot create unique index (duplicates present). Example finder:\n"+
			`db.%s.aggregate([{ $group: { _id: "$%s", n: { $sum: 1 } } }, { $match: { n: { $gt: 1 } } }])`,
			coll, d.name, coll, field)
	}
	return fmt.Sprintf("%s(%s): %v", coll, d.name, err)
}

func listIndexes(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	out := map[string]existingIndex{}
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		// A collection that does not exist yet has no indexes.
		return out
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		out[keySig(idx.Key)] = idx
	}
	return out
}

// ensureIndexSet makes each desired index exist under its name with its
// uniqueness. An index on the same keys is reused when it already matches,
// otherwise it is dropped and recreated.
func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string
	existing := listIndexes(ctx, coll)

	for _, m := range models {
		d := describe(m)
		start := time.Now()
		fields := []zap.Field{
			zap.String("collection", coll.Name()),
			zap.String("name", d.name),
			zap.String("keys", d.sig),
			zap.Bool("unique", d.unique),
		}

		if ex, ok := existing[d.sig]; ok {
			if ex.Unique == d.unique && (d.name == "" || ex.Name == d.name) {
				zap.L().Debug("reusing existing index", fields...)
				continue
			}
			// Renamed or uniqueness changed.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): drop %s failed: %v", coll.Name(), d.name, ex.Name, err))
				continue
			}
			zap.L().Info("dropped index to realign", append(fields, zap.String("old_name", ex.Name))...)
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			zap.L().Warn("index ensure failed", append(fields, zap.Error(err))...)
			errs = append(errs, createFailure(coll.Name(), d, err))
			continue
		}
		zap.L().Info("index ensured", append(fields, zap.Duration("took", time.Since(start)))...)
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collections                                                                */
/* -------------------------------------------------------------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("users")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			// login lookup; email_ci is the folded address
			Keys:    bson.D{{Key: "email_ci", Value: 1}},
			Options: options.Index().SetName("uniq_users_email_ci").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "group_slug", Value: 1}},
			Options: options.Index().SetName("idx_users_group_slug"),
		},
		{
			Keys:    bson.D{{Key: "role", Value: 1}},
			Options: options.Index().SetName("idx_users_role"),
		},
	})
}

func ensureOrganizations(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("organizations")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}},
			Options: options.Index().SetName("uniq_orgs_name_ci").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "group_slug", Value: 1}},
			Options: options.Index().SetName("uniq_orgs_group_slug").SetUnique(true),
		},
		{
			// admin review queue, newest first
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_orgs_status_created"),
		},
		{
			Keys:    bson.D{{Key: "admin_user_id", Value: 1}},
			Options: options.Index().SetName("idx_orgs_admin_user"),
		},
	})
}

// nicknames are keyed by _id; the user_id index keeps the mapping 1:1.
func ensureNicknames(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("nicknames")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetName("uniq_nicknames_user").SetUnique(true),
		},
	})
}

func ensureCampaigns(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("campaigns")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			// "my campaigns" for users
			Keys:    bson.D{{Key: "owner.user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_campaigns_owner_user_created"),
		},
		{
			// organization campaigns, public listing filtered by group
			Keys: bson.D{
				{Key: "owner.group_slug", Value: 1},
				{Key: "is_discoverable", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_campaigns_group_discoverable_created"),
		},
		{
			Keys:    bson.D{{Key: "is_discoverable", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_campaigns_discoverable_created"),
		},
		{
			Keys:    bson.D{{Key: "forked_from", Value: 1}},
			Options: options.Index().SetName("idx_campaigns_forked_from"),
		},
	})
}

func ensureCampaignTemplates(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("campaign_templates")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			// seed key, so reseeding upserts instead of duplicating
			Keys:    bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetName("uniq_templates_slug").SetUnique(true),
		},
	})
}

func ensureCampaignActions(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("campaign_actions")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "campaign_id", Value: 1}, {Key: "actor_key", Value: 1}},
			Options: options.Index().SetName("uniq_actions_campaign_actor").SetUnique(true),
		},
	})
}

func ensurePollResponses(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("poll_responses")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "campaign_id", Value: 1}, {Key: "respondent_key", Value: 1}},
			Options: options.Index().SetName("uniq_responses_campaign_respondent").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "campaign_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_responses_campaign_created"),
		},
	})
}

func ensureAuditEvents(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("audit_events")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "category", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_category_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_user_timestamp"),
		},
	})
}

func ensureLoginRecords(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("login_records")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_logins_user_created"),
		},
	})
}
