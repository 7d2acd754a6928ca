// internal/domain/models/campaignaction.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Campaign actions a visitor can take.
const (
	ActionSupport = "support"
	ActionOppose  = "oppose"
)

// CampaignAction records that an authenticated user supported or opposed a
// campaign. (campaign_id, actor_key) is unique.
type CampaignAction struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	CampaignID primitive.ObjectID `bson:"campaign_id"`
	ActorKey   string             `bson:"actor_key"`
	Action     string             `bson:"action"`
	CreatedAt  time.Time          `bson:"created_at"`
}
