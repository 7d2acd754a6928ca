// internal/domain/models/organization.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Organization is an advocacy group. Campaigns owned by an organization
// reference it by GroupSlug.
type Organization struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Name        string             `bson:"name" json:"name"`
	NameCI      string             `bson:"name_ci" json:"-"` // ← always stored
	GroupSlug   string             `bson:"group_slug" json:"group_slug"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Website     string             `bson:"website,omitempty" json:"website,omitempty"`
	State       string             `bson:"state,omitempty" json:"state,omitempty"`
	Status      string             `bson:"status" json:"status"` // pending | approved | rejected
	AdminUserID primitive.ObjectID `bson:"admin_user_id" json:"admin_user_id"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// Organization approval states.
const (
	OrgPending  = "pending"
	OrgApproved = "approved"
	OrgRejected = "rejected"
)
