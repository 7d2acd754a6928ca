// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/civichub/internal/domain/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
//
// Collections written inside transactions (users, nicknames) must exist
// before the first transaction on servers older than 4.4.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	ensure("users", usersSchema())
	ensure("organizations", orgsSchema())
	ensure("nicknames", nicknamesSchema())
	ensure("campaigns", campaignsSchema())
	ensure("campaign_templates", nil)
	ensure("campaign_actions", campaignActionsSchema())
	ensure("poll_responses", pollResponsesSchema())
	ensure("audit_events", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
// Uses ListCollectionNames to avoid "created collection" log when it didn't.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		// NamespaceExists / already exists is fine (race or prior run).
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

func nonBlank() bson.M {
	return bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}
}

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"email", "email_ci", "password_hash", "role", "public_profile_fields"},
			"properties": bson.M{
				"email":                 nonBlank(),
				"email_ci":              nonBlank(),
				"password_hash":         nonBlank(),
				"role":                  bson.M{"enum": bson.A{models.RoleUser, models.RoleAdmin}},
				"group_slug":            bson.M{"bsonType": "string"},
				"is_verified":           bson.M{"bsonType": "bool"},
				"nickname":              bson.M{"bsonType": "string", "pattern": "^[a-z0-9_]{1,30}$"},
				"public_profile_fields": bson.M{"bsonType": "array", "items": bson.M{"bsonType": "string"}},
				"social_media":          bson.M{"bsonType": "object"},
			},
		},
	}
}

func orgsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "name_ci", "group_slug", "status", "admin_user_id"},
			"properties": bson.M{
				"name":          nonBlank(),
				"name_ci":       nonBlank(),
				"group_slug":    bson.M{"bsonType": "string", "pattern": "^[a-z0-9]+(-[a-z0-9]+)*$"},
				"status":        bson.M{"enum": bson.A{models.OrgPending, models.OrgApproved, models.OrgRejected}},
				"admin_user_id": bson.M{"bsonType": "objectId"},
			},
		},
	}
}

func nicknamesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"_id", "user_id", "created_at"},
			"properties": bson.M{
				"_id":        bson.M{"bsonType": "string", "pattern": "^[a-z0-9_]{1,30}$"},
				"user_id":    nonBlank(),
				"created_at": bson.M{"bsonType": "date"},
			},
		},
	}
}

func campaignsSchema() bson.M {
	typeEnum := bson.A{
		string(models.CampaignLegislation),
		string(models.CampaignIssue),
		string(models.CampaignCandidateAdvocacy),
		string(models.CampaignVoterPoll),
	}
	counter := bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0}

	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"owner", "campaign_type", "start_date", "end_date", "support_count", "oppose_count"},
			"properties": bson.M{
				"owner": bson.M{
					"bsonType": "object",
					"required": bson.A{"kind"},
					"properties": bson.M{
						"kind": bson.M{"enum": bson.A{string(models.OwnerOrganization), string(models.OwnerUser)}},
					},
				},
				"campaign_type":   bson.M{"enum": typeEnum},
				"start_date":      bson.M{"bsonType": "date"},
				"end_date":        bson.M{"bsonType": "date"},
				"is_discoverable": bson.M{"bsonType": "bool"},
				"support_count":   counter,
				"oppose_count":    counter,
			},
		},
	}
}

func campaignActionsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"campaign_id", "actor_key", "action", "created_at"},
			"properties": bson.M{
				"campaign_id": bson.M{"bsonType": "objectId"},
				"actor_key":   nonBlank(),
				"action":      bson.M{"enum": bson.A{models.ActionSupport, models.ActionOppose}},
				"created_at":  bson.M{"bsonType": "date"},
			},
		},
	}
}

func pollResponsesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"campaign_id", "respondent_key", "answers", "created_at"},
			"properties": bson.M{
				"campaign_id":    bson.M{"bsonType": "objectId"},
				"respondent_key": bson.M{"bsonType": "string", "pattern": "^(user|voter|anon):.+$"},
				"answers":        bson.M{"bsonType": "array", "minItems": 1, "items": bson.M{"bsonType": "string"}},
				"is_verified":    bson.M{"bsonType": "bool"},
				"created_at":     bson.M{"bsonType": "date"},
			},
		},
	}
}
