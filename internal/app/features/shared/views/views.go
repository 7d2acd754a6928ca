// Package views holds JSON view models shared by several features.
package views

import (
	"time"

	"github.com/dalemusser/civichub/internal/app/system/profilerules"
	"github.com/dalemusser/civichub/internal/domain/models"
)

// Me is the signed-in user's own record as returned by login, signup and
// the profile endpoints. Unlike a public profile it includes every field.
type Me struct {
	ID                     string            `json:"id"`
	Email                  string            `json:"email"`
	Role                   string            `json:"role"`
	GroupSlug              string            `json:"groupSlug,omitempty"`
	FirstName              string            `json:"firstName"`
	LastName               string            `json:"lastName"`
	Address                string            `json:"address"`
	City                   string            `json:"city"`
	State                  string            `json:"state"`
	ZipCode                string            `json:"zipCode"`
	CongressionalDistrict  string            `json:"congressionalDistrict,omitempty"`
	ConstituentDescription string            `json:"constituentDescription,omitempty"`
	IsVerified             bool              `json:"isVerified"`
	Nickname               string            `json:"nickname,omitempty"`
	PublicProfileFields    []string          `json:"publicProfileFields"`
	SocialMedia            map[string]string `json:"socialMedia"`
	ProfilePicture         string            `json:"profilePicture,omitempty"`
	Bio                    string            `json:"bio,omitempty"`
	CreatedAt              time.Time         `json:"createdAt"`
}

// MeFrom builds the view for u. Visible fields are normalized so the
// required ones are always listed.
func MeFrom(u models.User) Me {
	fields, err := profilerules.NormalizeVisibleFields(u.PublicProfileFields)
	if err != nil {
		fields = profilerules.RequiredFields
	}
	social := u.SocialMedia
	if social == nil {
		social = map[string]string{}
	}
	return Me{
		ID:                     u.ID.Hex(),
		Email:                  u.Email,
		Role:                   u.Role,
		GroupSlug:              u.GroupSlug,
		FirstName:              u.FirstName,
		LastName:               u.LastName,
		Address:                u.Address,
		City:                   u.City,
		State:                  u.State,
		ZipCode:                u.ZipCode,
		CongressionalDistrict:  u.CongressionalDistrict,
		ConstituentDescription: u.ConstituentDescription,
		IsVerified:             u.IsVerified,
		Nickname:               u.Nickname,
		PublicProfileFields:    fields,
		SocialMedia:            social,
		ProfilePicture:         u.ProfilePicture,
		Bio:                    u.Bio,
		CreatedAt:              u.CreatedAt,
	}
}
