// internal/app/features/organizations/types.go
package organizations

import (
	"time"

	"github.com/dalemusser/civichub/internal/domain/models"
)

// orgView is the JSON shape of an organization.
type orgView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	GroupSlug   string    `json:"groupSlug"`
	Description string    `json:"description,omitempty"`
	Website     string    `json:"website,omitempty"`
	State       string    `json:"state,omitempty"`
	Status      string    `json:"status"`
	AdminUserID string    `json:"adminUserId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func viewOf(o models.Organization) orgView {
	return orgView{
		ID:          o.ID.Hex(),
		Name:        o.Name,
		GroupSlug:   o.GroupSlug,
		Description: o.Description,
		Website:     o.Website,
		State:       o.State,
		Status:      o.Status,
		AdminUserID: o.AdminUserID.Hex(),
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

// registerInput is the body of POST /api/organizations.
type registerInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Website     string `json:"website"`
	State       string `json:"state"`
}

const (
	maxNameLen        = 200
	maxDescriptionLen = 2000
)
