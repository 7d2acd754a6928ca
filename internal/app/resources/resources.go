// internal/app/resources/resources.go
package resources

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/dalemusser/civichub/internal/domain/models"
)

// Embed the starter campaign templates seeded on startup.
//
//go:embed campaign_templates.json
var campaignTemplatesJSON []byte

type templateSeed struct {
	Slug             string                     `json:"slug"`
	Name             string                     `json:"name"`
	Type             models.CampaignType        `json:"campaignType"`
	Legislation      *models.LegislationPayload `json:"legislation"`
	Issue            *models.IssuePayload       `json:"issue"`
	Candidates       *models.CandidatePayload   `json:"candidates"`
	Poll             *models.PollPayload        `json:"poll"`
	Reasoning        string                     `json:"reasoning"`
	ActionButtonText string                     `json:"actionButtonText"`
}

// CampaignTemplates parses the embedded seed file. Each entry must carry
// the payload that matches its campaign type.
func CampaignTemplates() ([]models.CampaignTemplate, error) {
	var seeds []templateSeed
	if err := json.Unmarshal(campaignTemplatesJSON, &seeds); err != nil {
		return nil, fmt.Errorf("campaign templates: %w", err)
	}

	out := make([]models.CampaignTemplate, 0, len(seeds))
	for _, s := range seeds {
		t := models.CampaignTemplate{
			Slug: s.Slug,
			Name: s.Name,
			Type: s.Type,
			PayloadSlots: models.PayloadSlots{
				Legislation: s.Legislation,
				Issue:       s.Issue,
				Candidates:  s.Candidates,
				Poll:        s.Poll,
			},
			Reasoning:        s.Reasoning,
			ActionButtonText: s.ActionButtonText,
		}
		if t.Payload() == nil {
			return nil, fmt.Errorf("campaign template %q: missing %s payload", s.Slug, s.Type)
		}
		out = append(out, t)
	}
	return out, nil
}
