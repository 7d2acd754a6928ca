// internal/app/store/organizations/organizationstore.go
package organizationstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/civichub/internal/app/system/normalize"
	"github.com/dalemusser/civichub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var (
	ErrDuplicateOrganization = errors.New("an organization with this name already exists")
	ErrNotFound              = errors.New("organization not found")
	ErrNotPending            = errors.New("organization has already been reviewed")
	ErrBadName               = errors.New("organization name must contain a letter or digit")
)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("organizations")}
}

// Create registers an organization for review. The group slug is derived
// from the name and the status is always pending.
func (s *Store) Create(ctx context.Context, org models.Organization) (models.Organization, error) {
	now := time.Now().UTC()
	org.ID = primitive.NewObjectID()
	org.Name = normalize.Name(org.Name)
	org.NameCI = text.Fold(org.Name)
	org.GroupSlug = normalize.GroupSlug(org.Name)
	org.State = normalize.State(org.State)
	if org.GroupSlug == "" {
		return models.Organization{}, ErrBadName
	}
	org.Status = models.OrgPending
	org.CreatedAt = now
	org.UpdatedAt = now
	_, err := s.c.InsertOne(ctx, org)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.Organization{}, ErrDuplicateOrganization
		}
		return models.Organization{}, err
	}
	return org, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Organization, error) {
	var org models.Organization
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&org)
	if err == mongo.ErrNoDocuments {
		return models.Organization{}, ErrNotFound
	}
	if err != nil {
		return models.Organization{}, err
	}
	return org, nil
}

// GetBySlug loads an organization by its group slug.
func (s *Store) GetBySlug(ctx context.Context, slug string) (models.Organization, error) {
	var org models.Organization
	err := s.c.FindOne(ctx, bson.M{"group_slug": slug}).Decode(&org)
	if err == mongo.ErrNoDocuments {
		return models.Organization{}, ErrNotFound
	}
	if err != nil {
		return models.Organization{}, err
	}
	return org, nil
}

// List returns organizations, newest first. An empty status lists all.
func (s *Store) List(ctx context.Context, status string, limit int64) ([]models.Organization, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	orgs := []models.Organization{}
	if err := cur.All(ctx, &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

// Review moves a pending organization to approved or rejected and returns
// the updated record.
func (s *Store) Review(ctx context.Context, id primitive.ObjectID, status string) (models.Organization, error) {
	if status != models.OrgApproved && status != models.OrgRejected {
		return models.Organization{}, errors.New(`status must be "approved"|"rejected"`)
	}
	var org models.Organization
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": models.OrgPending},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&org)
	if err == mongo.ErrNoDocuments {
		if _, gerr := s.GetByID(ctx, id); gerr != nil {
			return models.Organization{}, gerr
		}
		return models.Organization{}, ErrNotPending
	}
	if err != nil {
		return models.Organization{}, err
	}
	return org, nil
}
