// internal/domain/models/pollresponse.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RespondentIdentity is the voter identity attached to a poll response by
// an anonymous respondent who went through verification.
type RespondentIdentity struct {
	FirstName              string `bson:"first_name" json:"firstName"`
	LastName               string `bson:"last_name" json:"lastName"`
	Address                string `bson:"address" json:"address"`
	City                   string `bson:"city" json:"city"`
	State                  string `bson:"state" json:"state"`
	ZipCode                string `bson:"zip_code" json:"zipCode"`
	ConstituentDescription string `bson:"constituent_description,omitempty" json:"constituentDescription,omitempty"`
}

// PollResponse is one respondent's answer to a voter poll campaign.
// RespondentKey is "user:<id>", "voter:<voterId>" or "anon:<uuid>".
type PollResponse struct {
	ID            primitive.ObjectID  `bson:"_id"`
	CampaignID    primitive.ObjectID  `bson:"campaign_id"`
	RespondentKey string              `bson:"respondent_key"`
	UserID        *primitive.ObjectID `bson:"user_id,omitempty"`
	Answers       []string            `bson:"answers"`
	Identity      *RespondentIdentity `bson:"identity,omitempty"`
	IsVerified    bool                `bson:"is_verified"`
	CreatedAt     time.Time           `bson:"created_at"`
}
