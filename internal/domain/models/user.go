// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a signed-up account. Organization representatives carry the
// approved organization's GroupSlug.
//
// NOTE:
//   - Nickname is mirrored by a document in the nicknames collection;
//     always change it through the nickname store, never directly.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string             `bson:"email" json:"email"`
	EmailCI      string             `bson:"email_ci" json:"-"` // lowercase, diacritics-stripped
	PasswordHash string             `bson:"password_hash" json:"-"`
	Role         string             `bson:"role" json:"role"` // user | admin
	GroupSlug    string             `bson:"group_slug,omitempty" json:"group_slug,omitempty"`

	// Identity, resolved through voter verification when enabled.
	FirstName              string `bson:"first_name" json:"first_name"`
	LastName               string `bson:"last_name" json:"last_name"`
	Address                string `bson:"address" json:"address"`
	City                   string `bson:"city" json:"city"`
	State                  string `bson:"state" json:"state"`
	ZipCode                string `bson:"zip_code" json:"zip_code"`
	CongressionalDistrict  string `bson:"congressional_district,omitempty" json:"congressional_district,omitempty"`
	ConstituentDescription string `bson:"constituent_description,omitempty" json:"constituent_description,omitempty"`
	VoterID                string `bson:"voter_id,omitempty" json:"-"`
	IsVerified             bool   `bson:"is_verified" json:"is_verified"`

	// Public profile
	Nickname            string            `bson:"nickname,omitempty" json:"nickname,omitempty"`
	PublicProfileFields []string          `bson:"public_profile_fields" json:"public_profile_fields"`
	SocialMedia         map[string]string `bson:"social_media,omitempty" json:"social_media,omitempty"`
	ProfilePicture      string            `bson:"profile_picture,omitempty" json:"profile_picture,omitempty"`
	Bio                 string            `bson:"bio,omitempty" json:"bio,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
