// Package campaignpolicy validates campaign input and decides who may
// create, edit, and delete campaigns.
//
// Authorization rules:
//   - An organization-owned campaign belongs to the users whose approved
//     organization has that group slug
//   - A user-owned campaign belongs to that user alone
//   - Admins get no override; ownership is the only write permission
//   - Anyone, signed in or not, may read a campaign and act on its counters
//
// Callers pass the acting identity in explicitly as an authz.Actor.
package campaignpolicy

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/civichub/internal/app/system/authz"
	"github.com/dalemusser/civichub/internal/domain/models"
)

// ErrForbidden is returned when the actor does not own the campaign.
var ErrForbidden = errors.New("you do not have permission to modify this campaign")

// ValidationError names every missing or malformed field.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing or invalid fields: " + strings.Join(e.Fields, ", ")
}

// PollInput is the poll part of Input.
type PollInput struct {
	Title       string   `json:"title"`
	Question    string   `json:"question"`
	AnswerType  string   `json:"answerType"`
	Choices     []string `json:"choices"`
	Description string   `json:"description"`
}

// Input is a campaign as submitted by a client. Only the fields for
// CampaignType are read.
type Input struct {
	GroupSlug    string              `json:"groupSlug"`
	UserID       string              `json:"userId"`
	CampaignType models.CampaignType `json:"campaignType"`

	Bill     *models.Bill `json:"bill"`
	Position string       `json:"position"`

	IssueTitle         string `json:"issueTitle"`
	IssueSpecificTitle string `json:"issueSpecificTitle"`

	Candidate1        *models.Candidate `json:"candidate1"`
	Candidate2        *models.Candidate `json:"candidate2"`
	SelectedCandidate int               `json:"selectedCandidate"`

	Poll *PollInput `json:"poll"`

	Reasoning        string `json:"reasoning"`
	ActionButtonText string `json:"actionButtonText"`
	StartDate        string `json:"startDate"`
	EndDate          string `json:"endDate"`
	IsDiscoverable   *bool  `json:"isDiscoverable"`
	IsPaused         *bool  `json:"isPaused"`
}

// Draft is validated input, ready to be applied to a campaign.
type Draft struct {
	Owner            models.Owner
	Payload          models.CampaignPayload
	Reasoning        string
	ActionButtonText string
	StartDate        time.Time
	EndDate          time.Time
	IsDiscoverable   bool
	IsPaused         bool
}

// Apply copies the draft onto c. Counters, IDs and timestamps are left alone.
func (d Draft) Apply(c *models.Campaign) {
	c.Owner = d.Owner
	c.SetPayload(d.Payload)
	c.Reasoning = d.Reasoning
	c.ActionButtonText = d.ActionButtonText
	c.StartDate = d.StartDate
	c.EndDate = d.EndDate
	c.IsDiscoverable = d.IsDiscoverable
	c.IsPaused = d.IsPaused
}

// ValidateCreate checks a new campaign. Exactly one of GroupSlug and UserID
// must be set. isDiscoverable defaults to true.
func ValidateCreate(in Input) (Draft, error) {
	var missing []string

	owner, ok := ParseOwner(in.GroupSlug, in.UserID)
	if !ok {
		missing = append(missing, "owner")
	}

	d, fields := validateBody(in, in.CampaignType)
	missing = append(missing, fields...)
	if len(missing) > 0 {
		return Draft{}, &ValidationError{Fields: missing}
	}
	d.Owner = owner
	d.IsDiscoverable = true
	if in.IsDiscoverable != nil {
		d.IsDiscoverable = *in.IsDiscoverable
	}
	if in.IsPaused != nil {
		d.IsPaused = *in.IsPaused
	}
	return d, nil
}

// ValidateUpdate checks a replacement for existing. The owner and type
// cannot change; omitted flags keep their current values.
func ValidateUpdate(existing models.Campaign, in Input) (Draft, error) {
	var missing []string
	if in.CampaignType != "" && in.CampaignType != existing.Type {
		missing = append(missing, "campaignType")
	}
	d, fields := validateBody(in, existing.Type)
	missing = append(missing, fields...)
	if len(missing) > 0 {
		return Draft{}, &ValidationError{Fields: missing}
	}
	d.Owner = existing.Owner
	d.IsDiscoverable = existing.IsDiscoverable
	if in.IsDiscoverable != nil {
		d.IsDiscoverable = *in.IsDiscoverable
	}
	d.IsPaused = existing.IsPaused
	if in.IsPaused != nil {
		d.IsPaused = *in.IsPaused
	}
	return d, nil
}

// ParseOwner builds the owner named by exactly one of groupSlug and userID.
func ParseOwner(groupSlug, userID string) (models.Owner, bool) {
	groupSlug = strings.TrimSpace(groupSlug)
	userID = strings.TrimSpace(userID)
	switch {
	case groupSlug != "" && userID == "":
		return models.OrgOwner(groupSlug), true
	case userID != "" && groupSlug == "":
		return models.UserOwner(userID), true
	}
	return models.Owner{}, false
}

// ForkDuration is how long a forked campaign runs when no end date is given.
const ForkDuration = 30 * 24 * time.Hour

// ForkInput names the owner and run dates of a campaign copied from a
// template.
type ForkInput struct {
	GroupSlug string `json:"groupSlug"`
	UserID    string `json:"userId"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// ValidateFork checks a fork request. A missing start date means today
// and a missing end date means ForkDuration after the start.
func ValidateFork(in ForkInput, now time.Time) (models.Owner, time.Time, time.Time, error) {
	var missing []string
	owner, ok := ParseOwner(in.GroupSlug, in.UserID)
	if !ok {
		missing = append(missing, "owner")
	}

	start := now.UTC().Truncate(24 * time.Hour)
	if strings.TrimSpace(in.StartDate) != "" {
		t, err := ParseDate(in.StartDate)
		if err != nil {
			missing = append(missing, "startDate")
		}
		start = t
	}
	end := start.Add(ForkDuration)
	if strings.TrimSpace(in.EndDate) != "" {
		t, err := ParseDate(in.EndDate)
		if err != nil {
			missing = append(missing, "endDate")
		}
		end = t
	}
	if len(missing) == 0 && !end.After(start) {
		missing = append(missing, "endDate")
	}
	if len(missing) > 0 {
		return models.Owner{}, time.Time{}, time.Time{}, &ValidationError{Fields: missing}
	}
	return owner, start, end, nil
}

func validateBody(in Input, t models.CampaignType) (Draft, []string) {
	var d Draft
	var missing []string

	switch t {
	case models.CampaignLegislation:
		d.Payload, missing = legislation(in)
	case models.CampaignIssue:
		d.Payload, missing = issue(in)
	case models.CampaignCandidateAdvocacy:
		d.Payload, missing = candidates(in)
	case models.CampaignVoterPoll:
		d.Payload, missing = poll(in)
	default:
		missing = append(missing, "campaignType")
	}

	d.Reasoning = strings.TrimSpace(in.Reasoning)
	if d.Reasoning == "" && t != models.CampaignVoterPoll {
		missing = append(missing, "reasoning")
	}

	d.ActionButtonText = strings.TrimSpace(in.ActionButtonText)
	if d.ActionButtonText == "" {
		d.ActionButtonText = models.DefaultActionButtonText
	}

	start, startErr := ParseDate(in.StartDate)
	end, endErr := ParseDate(in.EndDate)
	if startErr != nil {
		missing = append(missing, "startDate")
	}
	if endErr != nil {
		missing = append(missing, "endDate")
	}
	if startErr == nil && endErr == nil && !end.After(start) {
		missing = append(missing, "endDate")
	}
	d.StartDate, d.EndDate = start, end
	return d, missing
}

func legislation(in Input) (models.CampaignPayload, []string) {
	var missing []string
	p := models.LegislationPayload{}
	if in.Bill == nil {
		missing = append(missing, "bill")
	} else {
		b := *in.Bill
		b.Type = strings.ToUpper(strings.TrimSpace(b.Type))
		b.Number = strings.TrimSpace(b.Number)
		b.Title = strings.TrimSpace(b.Title)
		if b.Congress <= 0 {
			missing = append(missing, "bill.congress")
		}
		if !slices.Contains(models.BillTypes, b.Type) {
			missing = append(missing, "bill.type")
		}
		if n, err := strconv.Atoi(b.Number); err != nil || n <= 0 {
			missing = append(missing, "bill.number")
		}
		p.Bill = b
	}
	switch strings.ToLower(strings.TrimSpace(in.Position)) {
	case "support":
		p.Position = models.PositionSupport
	case "oppose":
		p.Position = models.PositionOppose
	default:
		missing = append(missing, "position")
	}
	return p, missing
}

func issue(in Input) (models.CampaignPayload, []string) {
	var missing []string
	p := models.IssuePayload{
		IssueTitle:         strings.TrimSpace(in.IssueTitle),
		IssueSpecificTitle: strings.TrimSpace(in.IssueSpecificTitle),
		Position:           strings.TrimSpace(in.Position),
	}
	if !slices.Contains(models.IssueTitles, p.IssueTitle) {
		missing = append(missing, "issueTitle")
	}
	if p.IssueSpecificTitle == "" {
		missing = append(missing, "issueSpecificTitle")
	}
	if p.Position == "" {
		missing = append(missing, "position")
	}
	return p, missing
}

func candidates(in Input) (models.CampaignPayload, []string) {
	var missing []string
	p := models.CandidatePayload{SelectedCandidate: in.SelectedCandidate}
	if in.Candidate1 == nil || strings.TrimSpace(in.Candidate1.Name) == "" {
		missing = append(missing, "candidate1.name")
	} else {
		p.Candidate1 = models.Candidate{Name: strings.TrimSpace(in.Candidate1.Name), Bio: strings.TrimSpace(in.Candidate1.Bio)}
	}
	if in.Candidate2 == nil || strings.TrimSpace(in.Candidate2.Name) == "" {
		missing = append(missing, "candidate2.name")
	} else {
		p.Candidate2 = models.Candidate{Name: strings.TrimSpace(in.Candidate2.Name), Bio: strings.TrimSpace(in.Candidate2.Bio)}
	}
	if p.SelectedCandidate != 1 && p.SelectedCandidate != 2 {
		missing = append(missing, "selectedCandidate")
	}
	return p, missing
}

func poll(in Input) (models.CampaignPayload, []string) {
	if in.Poll == nil {
		return models.PollPayload{}, []string{"poll.title", "poll.question", "poll.choices"}
	}
	var missing []string
	p := models.PollPayload{
		Title:       strings.TrimSpace(in.Poll.Title),
		Question:    strings.TrimSpace(in.Poll.Question),
		AnswerType:  strings.TrimSpace(in.Poll.AnswerType),
		Description: strings.TrimSpace(in.Poll.Description),
		Choices:     []string{},
	}
	if p.Title == "" {
		missing = append(missing, "poll.title")
	}
	if p.Question == "" {
		missing = append(missing, "poll.question")
	}
	switch p.AnswerType {
	case "":
		p.AnswerType = models.AnswerSingleChoice
	case models.AnswerSingleChoice, models.AnswerMultipleChoice:
	default:
		missing = append(missing, "poll.answerType")
	}
	for _, c := range in.Poll.Choices {
		if c = strings.TrimSpace(c); c != "" {
			p.Choices = append(p.Choices, c)
		}
	}
	if len(p.Choices) < 2 {
		missing = append(missing, "poll.choices")
	}
	return p, missing
}

// ParseDate accepts "2006-01-02" or RFC3339 and returns UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("date is required")
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t.UTC(), nil
}

// Owns reports whether the actor is the owner o refers to.
func Owns(a authz.Actor, o models.Owner) bool {
	if !a.Authenticated {
		return false
	}
	switch o.Kind {
	case models.OwnerOrganization:
		return o.GroupSlug != "" && a.GroupSlug == o.GroupSlug
	case models.OwnerUser:
		return o.UserID != "" && a.UserID == o.UserID
	}
	return false
}

// CanCreateAs returns ErrForbidden unless the actor may create campaigns
// owned by o.
func CanCreateAs(a authz.Actor, o models.Owner) error {
	if !Owns(a, o) {
		return ErrForbidden
	}
	return nil
}

// CanEdit returns ErrForbidden unless the actor owns c. Delete uses the
// same rule.
func CanEdit(a authz.Actor, c models.Campaign) error {
	if !Owns(a, c.Owner) {
		return ErrForbidden
	}
	return nil
}

// ValidateAnswers checks a poll response against the poll's choices.
// Answers are trimmed and deduplicated. A single-choice poll takes exactly
// one answer, a multiple-choice poll at least one.
func ValidateAnswers(p models.PollPayload, answers []string) ([]string, error) {
	out := make([]string, 0, len(answers))
	for _, a := range answers {
		a = strings.TrimSpace(a)
		if a == "" || slices.Contains(out, a) {
			continue
		}
		if !slices.Contains(p.Choices, a) {
			return nil, &ValidationError{Fields: []string{"answers"}}
		}
		out = append(out, a)
	}
	if len(out) == 0 || (p.AnswerType != models.AnswerMultipleChoice && len(out) != 1) {
		return nil, &ValidationError{Fields: []string{"answers"}}
	}
	return out, nil
}
