// internal/app/store/pollresponses/pollresponsestore.go
package pollresponsestore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/civichub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrAlreadyResponded = errors.New("this respondent has already answered the poll")
	ErrBadRespondent    = errors.New("respondent key is required")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("poll_responses")}
}

// Respondent keys. One response is kept per key per campaign.
func UserKey(id primitive.ObjectID) string { return "user:" + id.Hex() }
func VoterKey(voterID string) string       { return "voter:" + voterID }
func AnonKey(token string) string          { return "anon:" + token }

// Create stores a response. A second response with the same respondent key
// fails with ErrAlreadyResponded.
func (s *Store) Create(ctx context.Context, r models.PollResponse) (models.PollResponse, error) {
	if r.RespondentKey == "" {
		return models.PollResponse{}, ErrBadRespondent
	}
	r.ID = primitive.NewObjectID()
	r.CreatedAt = time.Now().UTC()
	if r.Answers == nil {
		r.Answers = []string{}
	}
	if _, err := s.c.InsertOne(ctx, r); err != nil {
		if wafflemongo.IsDup(err) {
			return models.PollResponse{}, ErrAlreadyResponded
		}
		return models.PollResponse{}, err
	}
	return r, nil
}

// ListByCampaign returns the newest responses for a poll.
func (s *Store) ListByCampaign(ctx context.Context, campaignID primitive.ObjectID, limit int64) ([]models.PollResponse, error) {
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cur, err := s.c.Find(ctx, bson.M{"campaign_id": campaignID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.PollResponse{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Tally is the per-choice count for one poll.
type Tally struct {
	Total    int64            `json:"total"`
	Verified int64            `json:"verified"`
	Choices  map[string]int64 `json:"choices"`
}

// Tally counts responses by answer. A multiple-choice response counts once
// for each answer it picked.
func (s *Store) Tally(ctx context.Context, campaignID primitive.ObjectID) (Tally, error) {
	t := Tally{Choices: map[string]int64{}}
	match := bson.M{"campaign_id": campaignID}

	total, err := s.c.CountDocuments(ctx, match)
	if err != nil {
		return t, err
	}
	t.Total = total
	verified, err := s.c.CountDocuments(ctx, bson.M{"campaign_id": campaignID, "is_verified": true})
	if err != nil {
		return t, err
	}
	t.Verified = verified

	cur, err := s.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$unwind", Value: "$answers"}},
		{{Key: "$group", Value: bson.M{"_id": "$answers", "n": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return t, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var row struct {
			ID string `bson:"_id"`
			N  int64  `bson:"n"`
		}
		if err := cur.Decode(&row); err != nil {
			return t, err
		}
		t.Choices[row.ID] = row.N
	}
	return t, cur.Err()
}
