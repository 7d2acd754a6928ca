package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CampaignTemplate is an ownerless starter campaign. Templates are seeded
// at startup and only ever copied, never edited by users.
type CampaignTemplate struct {
	ID   primitive.ObjectID `bson:"_id"`
	Slug string             `bson:"slug"`
	Name string             `bson:"name"`
	Type CampaignType       `bson:"campaign_type"`

	PayloadSlots `bson:",inline"`

	Reasoning        string    `bson:"reasoning"`
	ActionButtonText string    `bson:"action_button_text"`
	CreatedAt        time.Time `bson:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at"`
}

// Payload returns the template's type-specific payload.
func (t *CampaignTemplate) Payload() CampaignPayload { return t.PayloadSlots.Payload(t.Type) }
