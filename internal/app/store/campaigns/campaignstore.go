// internal/app/store/campaigns/campaignstore.go
package campaignstore

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/dalemusser/civichub/internal/app/system/paging"
	"github.com/dalemusser/civichub/internal/app/system/txn"
	"github.com/dalemusser/civichub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var (
	ErrNotFound         = errors.New("campaign not found")
	ErrTemplateNotFound = errors.New("campaign template not found")
	ErrDuplicateAction  = errors.New("you have already acted on this campaign")
	ErrPaused           = errors.New("campaign is paused")
	ErrBadAction        = errors.New(`action must be "support"|"oppose"`)
)

type Store struct {
	db        *mongo.Database
	c         *mongo.Collection
	templates *mongo.Collection
	actions   *mongo.Collection
	responses *mongo.Collection
	log       *zap.Logger
}

func New(db *mongo.Database, logger *zap.Logger) *Store {
	return &Store{
		db:        db,
		c:         db.Collection("campaigns"),
		templates: db.Collection("campaign_templates"),
		actions:   db.Collection("campaign_actions"),
		responses: db.Collection("poll_responses"),
		log:       logger,
	}
}

// Create inserts c with fresh counters and timestamps.
func (s *Store) Create(ctx context.Context, c models.Campaign) (models.Campaign, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	c.ID = primitive.NewObjectID()
	c.SupportCount = 0
	c.OpposeCount = 0
	c.CreatedAt = now
	c.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, c); err != nil {
		return models.Campaign{}, err
	}
	return c, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Campaign, error) {
	var c models.Campaign
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return models.Campaign{}, ErrNotFound
	}
	if err != nil {
		return models.Campaign{}, err
	}
	return c, nil
}

// slotField is the sub-document that holds a payload of type t.
func slotField(t models.CampaignType) string {
	switch t {
	case models.CampaignLegislation:
		return "legislation"
	case models.CampaignIssue:
		return "issue"
	case models.CampaignCandidateAdvocacy:
		return "candidates"
	case models.CampaignVoterPoll:
		return "poll"
	}
	return ""
}

// Update writes the content fields of c. Owner, type and counters are not
// touched, so concurrent support/oppose increments are never lost.
func (s *Store) Update(ctx context.Context, c models.Campaign) (models.Campaign, error) {
	field := slotField(c.Type)
	payload := c.Payload()
	if field == "" || payload == nil {
		return models.Campaign{}, errors.New("campaign payload does not match its type")
	}
	set := bson.M{
		field:                payload,
		"reasoning":          c.Reasoning,
		"action_button_text": c.ActionButtonText,
		"start_date":         c.StartDate,
		"end_date":           c.EndDate,
		"is_discoverable":    c.IsDiscoverable,
		"is_paused":          c.IsPaused,
		"updated_at":         time.Now().UTC(),
	}
	var out models.Campaign
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": c.ID, "campaign_type": c.Type},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return models.Campaign{}, ErrNotFound
	}
	if err != nil {
		return models.Campaign{}, err
	}
	return out, nil
}

// Delete removes the campaign together with its recorded actions and poll
// responses.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	return txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			return err
		}
		if res.DeletedCount == 0 {
			return ErrNotFound
		}
		if _, err := s.actions.DeleteMany(ctx, bson.M{"campaign_id": id}); err != nil {
			return err
		}
		_, err = s.responses.DeleteMany(ctx, bson.M{"campaign_id": id})
		return err
	})
}

func (s *Store) list(ctx context.Context, filter bson.M, page paging.Page) ([]models.Campaign, string, error) {
	cur, err := s.c.Find(ctx, page.Merge(filter), page.FindOptions())
	if err != nil {
		return nil, "", err
	}
	defer cur.Close(ctx)
	out := []models.Campaign{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, "", err
	}
	next := paging.Trim(&out, page.Limit, func(c models.Campaign) paging.Cursor {
		return paging.Cursor{CreatedAt: c.CreatedAt, ID: c.ID}
	})
	return out, next, nil
}

// ListPublic returns discoverable campaigns, newest first. A non-empty
// groupSlug limits the list to that organization's campaigns.
func (s *Store) ListPublic(ctx context.Context, groupSlug string, page paging.Page) ([]models.Campaign, string, error) {
	filter := bson.M{"is_discoverable": true}
	if groupSlug != "" {
		filter["owner.kind"] = models.OwnerOrganization
		filter["owner.group_slug"] = groupSlug
	}
	return s.list(ctx, filter, page)
}

// ListByOwners returns every campaign owned by any of owners, newest first.
func (s *Store) ListByOwners(ctx context.Context, owners []models.Owner, page paging.Page) ([]models.Campaign, string, error) {
	var or []bson.M
	for _, o := range owners {
		switch o.Kind {
		case models.OwnerUser:
			or = append(or, bson.M{"owner.kind": models.OwnerUser, "owner.user_id": o.UserID})
		case models.OwnerOrganization:
			or = append(or, bson.M{"owner.kind": models.OwnerOrganization, "owner.group_slug": o.GroupSlug})
		}
	}
	if len(or) == 0 {
		return []models.Campaign{}, "", nil
	}
	return s.list(ctx, bson.M{"$or": or}, page)
}

func counterField(action string) (string, error) {
	switch action {
	case models.ActionSupport:
		return "support_count", nil
	case models.ActionOppose:
		return "oppose_count", nil
	}
	return "", ErrBadAction
}

// Increment adds exactly one to the support or oppose counter and returns
// the updated campaign.
func (s *Store) Increment(ctx context.Context, id primitive.ObjectID, action string) (models.Campaign, error) {
	field, err := counterField(action)
	if err != nil {
		return models.Campaign{}, err
	}
	var out models.Campaign
	err = s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{field: int64(1)}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return models.Campaign{}, ErrNotFound
	}
	if err != nil {
		return models.Campaign{}, err
	}
	return out, nil
}

// Act records a support/oppose action and bumps the counter. actorKey
// identifies a signed-in user; when it is set a second action on the same
// campaign fails with ErrDuplicateAction. Anonymous visitors pass "".
func (s *Store) Act(ctx context.Context, id primitive.ObjectID, actorKey, action string) (models.Campaign, error) {
	if _, err := counterField(action); err != nil {
		return models.Campaign{}, err
	}
	var out models.Campaign
	err := txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		c, err := s.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if c.IsPaused {
			return ErrPaused
		}
		if actorKey != "" {
			_, err := s.actions.InsertOne(ctx, models.CampaignAction{
				ID:         primitive.NewObjectID(),
				CampaignID: id,
				ActorKey:   actorKey,
				Action:     action,
				CreatedAt:  time.Now().UTC(),
			})
			if err != nil {
				if wafflemongo.IsDup(err) {
					return ErrDuplicateAction
				}
				return err
			}
		}
		out, err = s.Increment(ctx, id, action)
		return err
	})
	if err != nil {
		return models.Campaign{}, err
	}
	return out, nil
}

// ActionFor returns the action actorKey took on the campaign, or "".
func (s *Store) ActionFor(ctx context.Context, id primitive.ObjectID, actorKey string) (string, error) {
	var a models.CampaignAction
	err := s.actions.FindOne(ctx, bson.M{"campaign_id": id, "actor_key": actorKey}).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return a.Action, nil
}

// ListTemplates returns every template ordered by name.
func (s *Store) ListTemplates(ctx context.Context) ([]models.CampaignTemplate, error) {
	cur, err := s.templates.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.CampaignTemplate{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetTemplate(ctx context.Context, id primitive.ObjectID) (models.CampaignTemplate, error) {
	var t models.CampaignTemplate
	err := s.templates.FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if err == mongo.ErrNoDocuments {
		return models.CampaignTemplate{}, ErrTemplateNotFound
	}
	if err != nil {
		return models.CampaignTemplate{}, err
	}
	return t, nil
}

// SeedTemplates upserts templates by slug. Existing IDs are kept so forks
// keep pointing at the same template. It returns how many were inserted.
func (s *Store) SeedTemplates(ctx context.Context, templates []models.CampaignTemplate) (int, error) {
	inserted := 0
	now := time.Now().UTC()
	for _, t := range templates {
		field := slotField(t.Type)
		payload := t.Payload()
		if t.Slug == "" || field == "" || payload == nil {
			return inserted, errors.New("template " + t.Slug + " has no valid payload")
		}
		set := bson.M{
			"name":               t.Name,
			"campaign_type":      t.Type,
			field:                payload,
			"reasoning":          t.Reasoning,
			"action_button_text": t.ActionButtonText,
			"updated_at":         now,
		}
		unset := bson.M{}
		for _, other := range []string{"legislation", "issue", "candidates", "poll"} {
			if other != field {
				unset[other] = ""
			}
		}
		res, err := s.templates.UpdateOne(ctx,
			bson.M{"slug": t.Slug},
			bson.M{
				"$set":         set,
				"$unset":       unset,
				"$setOnInsert": bson.M{"_id": primitive.NewObjectID(), "created_at": now},
			},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return inserted, err
		}
		if res.UpsertedCount > 0 {
			inserted++
		}
	}
	return inserted, nil
}

// Fork copies a template into a new campaign owned by owner. The template
// is not modified.
func (s *Store) Fork(ctx context.Context, templateID primitive.ObjectID, owner models.Owner, start, end time.Time) (models.Campaign, error) {
	t, err := s.GetTemplate(ctx, templateID)
	if err != nil {
		return models.Campaign{}, err
	}
	payload := t.Payload()
	if payload == nil {
		return models.Campaign{}, ErrTemplateNotFound
	}
	if p, ok := payload.(models.PollPayload); ok {
		p.Choices = slices.Clone(p.Choices)
		payload = p
	}

	c := models.Campaign{
		Owner:            owner,
		Reasoning:        t.Reasoning,
		ActionButtonText: t.ActionButtonText,
		StartDate:        start,
		EndDate:          end,
		IsDiscoverable:   true,
		ForkedFrom:       &t.ID,
	}
	if c.ActionButtonText == "" {
		c.ActionButtonText = models.DefaultActionButtonText
	}
	c.SetPayload(payload)
	return s.Create(ctx, c)
}
