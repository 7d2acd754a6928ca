package campaigns

import (
	"time"

	"github.com/dalemusser/civichub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/civichub/internal/domain/models"
	"go.uber.org/zap"
)

// payloadView flattens a campaign payload into the JSON body. Only the
// fields of the campaign's type are set.
type payloadView struct {
	Bill               *models.Bill        `json:"bill,omitempty"`
	Position           string              `json:"position,omitempty"`
	IssueTitle         string              `json:"issueTitle,omitempty"`
	IssueSpecificTitle string              `json:"issueSpecificTitle,omitempty"`
	Candidate1         *models.Candidate   `json:"candidate1,omitempty"`
	Candidate2         *models.Candidate   `json:"candidate2,omitempty"`
	SelectedCandidate  int                 `json:"selectedCandidate,omitempty"`
	Poll               *models.PollPayload `json:"poll,omitempty"`
}

func payloadOf(p models.CampaignPayload) payloadView {
	var v payloadView
	switch p := p.(type) {
	case models.LegislationPayload:
		v.Bill = &p.Bill
		v.Position = p.Position
	case models.IssuePayload:
		v.IssueTitle = p.IssueTitle
		v.IssueSpecificTitle = p.IssueSpecificTitle
		v.Position = p.Position
	case models.CandidatePayload:
		v.Candidate1 = &p.Candidate1
		v.Candidate2 = &p.Candidate2
		v.SelectedCandidate = p.SelectedCandidate
	case models.PollPayload:
		v.Poll = &p
	}
	return v
}

type campaignView struct {
	ID           string              `json:"id"`
	Owner        models.Owner        `json:"owner"`
	CampaignType models.CampaignType `json:"campaignType"`
	payloadView

	Reasoning        string    `json:"reasoning"`
	ReasoningHTML    string    `json:"reasoningHtml"`
	ActionButtonText string    `json:"actionButtonText"`
	StartDate        time.Time `json:"startDate"`
	EndDate          time.Time `json:"endDate"`
	IsDiscoverable   bool      `json:"isDiscoverable"`
	IsPaused         bool      `json:"isPaused"`
	SupportCount     int64     `json:"supportCount"`
	OpposeCount      int64     `json:"opposeCount"`
	ForkedFrom       string    `json:"forkedFrom,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`

	// MyAction is the caller's recorded support/oppose, when signed in.
	MyAction string `json:"myAction,omitempty"`
}

type templateView struct {
	ID           string              `json:"id"`
	Slug         string              `json:"slug"`
	Name         string              `json:"name"`
	CampaignType models.CampaignType `json:"campaignType"`
	payloadView

	Reasoning        string `json:"reasoning"`
	ReasoningHTML    string `json:"reasoningHtml"`
	ActionButtonText string `json:"actionButtonText"`
}

// render turns reasoning markdown into sanitized HTML. A render failure is
// logged and yields empty HTML; the markdown source is still returned.
func (h *Handler) render(id, src string) string {
	out, err := htmlsanitize.RenderMarkdown(src)
	if err != nil {
		h.Log.Warn("render reasoning", zap.String("id", id), zap.Error(err))
		return ""
	}
	return out
}

func (h *Handler) viewOf(c models.Campaign) campaignView {
	v := campaignView{
		ID:               c.ID.Hex(),
		Owner:            c.Owner,
		CampaignType:     c.Type,
		payloadView:      payloadOf(c.Payload()),
		Reasoning:        c.Reasoning,
		ReasoningHTML:    h.render(c.ID.Hex(), c.Reasoning),
		ActionButtonText: c.ActionButtonText,
		StartDate:        c.StartDate,
		EndDate:          c.EndDate,
		IsDiscoverable:   c.IsDiscoverable,
		IsPaused:         c.IsPaused,
		SupportCount:     c.SupportCount,
		OpposeCount:      c.OpposeCount,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
	if c.ForkedFrom != nil {
		v.ForkedFrom = c.ForkedFrom.Hex()
	}
	return v
}

func (h *Handler) viewsOf(cs []models.Campaign) []campaignView {
	out := make([]campaignView, 0, len(cs))
	for _, c := range cs {
		out = append(out, h.viewOf(c))
	}
	return out
}

func (h *Handler) templateViewOf(t models.CampaignTemplate) templateView {
	return templateView{
		ID:               t.ID.Hex(),
		Slug:             t.Slug,
		Name:             t.Name,
		CampaignType:     t.Type,
		payloadView:      payloadOf(t.Payload()),
		Reasoning:        t.Reasoning,
		ReasoningHTML:    h.render(t.ID.Hex(), t.Reasoning),
		ActionButtonText: t.ActionButtonText,
	}
}

// page is the body of every paged list endpoint.
type page struct {
	Items []campaignView `json:"items"`
	Next  string         `json:"next,omitempty"`
}
