// internal/domain/models/campaign.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CampaignType tags which payload a campaign carries.
type CampaignType string

const (
	CampaignLegislation       CampaignType = "legislation"
	CampaignIssue             CampaignType = "issue"
	CampaignCandidateAdvocacy CampaignType = "candidate_advocacy"
	CampaignVoterPoll         CampaignType = "voter_poll"
)

// OwnerKind says whether an organization or a single user owns a campaign.
type OwnerKind string

const (
	OwnerOrganization OwnerKind = "organization"
	OwnerUser         OwnerKind = "user"
)

// Owner identifies the owner of a campaign. Exactly one of GroupSlug and
// UserID is set, matching Kind.
type Owner struct {
	Kind      OwnerKind `bson:"kind" json:"kind"`
	GroupSlug string    `bson:"group_slug,omitempty" json:"groupSlug,omitempty"`
	UserID    string    `bson:"user_id,omitempty" json:"userId,omitempty"`
}

// OrgOwner and UserOwner build well-formed owners.
func OrgOwner(groupSlug string) Owner { return Owner{Kind: OwnerOrganization, GroupSlug: groupSlug} }
func UserOwner(userID string) Owner   { return Owner{Kind: OwnerUser, UserID: userID} }

// Ref returns the owner reference for the owner's kind.
func (o Owner) Ref() string {
	if o.Kind == OwnerOrganization {
		return o.GroupSlug
	}
	return o.UserID
}

// Bill is a congressional bill reference.
type Bill struct {
	Congress int    `bson:"congress" json:"congress"`
	Type     string `bson:"type" json:"type"`
	Number   string `bson:"number" json:"number"`
	Title    string `bson:"title,omitempty" json:"title,omitempty"`
}

// Candidate is one side of a candidate advocacy campaign.
type Candidate struct {
	Name string `bson:"name" json:"name"`
	Bio  string `bson:"bio,omitempty" json:"bio,omitempty"`
}

// Poll answer types.
const (
	AnswerSingleChoice   = "single_choice"
	AnswerMultipleChoice = "multiple_choice"
)

// CampaignPayload is the type-specific part of a campaign. It is a closed
// set: LegislationPayload, IssuePayload, CandidatePayload, PollPayload.
type CampaignPayload interface {
	CampaignType() CampaignType
	isCampaignPayload()
}

type LegislationPayload struct {
	Bill     Bill   `bson:"bill" json:"bill"`
	Position string `bson:"position" json:"position"` // Support | Oppose
}

type IssuePayload struct {
	IssueTitle         string `bson:"issue_title" json:"issueTitle"`
	IssueSpecificTitle string `bson:"issue_specific_title" json:"issueSpecificTitle"`
	Position           string `bson:"position" json:"position"`
}

type CandidatePayload struct {
	Candidate1        Candidate `bson:"candidate1" json:"candidate1"`
	Candidate2        Candidate `bson:"candidate2" json:"candidate2"`
	SelectedCandidate int       `bson:"selected_candidate" json:"selectedCandidate"`
}

type PollPayload struct {
	Title       string   `bson:"title" json:"title"`
	Question    string   `bson:"question" json:"question"`
	AnswerType  string   `bson:"answer_type" json:"answerType"`
	Choices     []string `bson:"choices" json:"choices"`
	Description string   `bson:"description,omitempty" json:"description,omitempty"`
}

func (LegislationPayload) CampaignType() CampaignType { return CampaignLegislation }
func (IssuePayload) CampaignType() CampaignType       { return CampaignIssue }
func (CandidatePayload) CampaignType() CampaignType   { return CampaignCandidateAdvocacy }
func (PollPayload) CampaignType() CampaignType        { return CampaignVoterPoll }

func (LegislationPayload) isCampaignPayload() {}
func (IssuePayload) isCampaignPayload()       {}
func (CandidatePayload) isCampaignPayload()   {}
func (PollPayload) isCampaignPayload()        {}

// Legislation positions.
const (
	PositionSupport = "Support"
	PositionOppose  = "Oppose"
)

// PayloadSlots holds the type-specific sub-documents. At most one is set.
// It is embedded inline in Campaign and CampaignTemplate.
type PayloadSlots struct {
	Legislation *LegislationPayload `bson:"legislation,omitempty"`
	Issue       *IssuePayload       `bson:"issue,omitempty"`
	Candidates  *CandidatePayload   `bson:"candidates,omitempty"`
	Poll        *PollPayload        `bson:"poll,omitempty"`
}

// Payload returns the stored payload for t, or nil when the document is
// inconsistent.
func (s *PayloadSlots) Payload(t CampaignType) CampaignPayload {
	switch t {
	case CampaignLegislation:
		if s.Legislation != nil {
			return *s.Legislation
		}
	case CampaignIssue:
		if s.Issue != nil {
			return *s.Issue
		}
	case CampaignCandidateAdvocacy:
		if s.Candidates != nil {
			return *s.Candidates
		}
	case CampaignVoterPoll:
		if s.Poll != nil {
			return *s.Poll
		}
	}
	return nil
}

// Set stores p, clears the other slots, and returns p's type.
func (s *PayloadSlots) Set(p CampaignPayload) CampaignType {
	*s = PayloadSlots{}
	switch v := p.(type) {
	case LegislationPayload:
		s.Legislation = &v
	case IssuePayload:
		s.Issue = &v
	case CandidatePayload:
		s.Candidates = &v
	case PollPayload:
		s.Poll = &v
	default:
		return ""
	}
	return p.CampaignType()
}

// Campaign is one advocacy position. Only one of the payload sub-documents
// is stored; read it through Payload and replace it through SetPayload.
type Campaign struct {
	ID    primitive.ObjectID `bson:"_id"`
	Owner Owner              `bson:"owner"`
	Type  CampaignType       `bson:"campaign_type"`

	PayloadSlots `bson:",inline"`

	Reasoning        string    `bson:"reasoning"`
	ActionButtonText string    `bson:"action_button_text"`
	StartDate        time.Time `bson:"start_date"`
	EndDate          time.Time `bson:"end_date"`
	IsDiscoverable   bool      `bson:"is_discoverable"`
	IsPaused         bool      `bson:"is_paused"`
	SupportCount     int64     `bson:"support_count"`
	OpposeCount      int64     `bson:"oppose_count"`

	ForkedFrom *primitive.ObjectID `bson:"forked_from,omitempty"`
	CreatedAt  time.Time           `bson:"created_at"`
	UpdatedAt  time.Time           `bson:"updated_at"`
}

// Payload returns the campaign's type-specific payload.
func (c *Campaign) Payload() CampaignPayload { return c.PayloadSlots.Payload(c.Type) }

// SetPayload stores p and sets the campaign type to match.
func (c *Campaign) SetPayload(p CampaignPayload) { c.Type = c.PayloadSlots.Set(p) }

// DefaultActionButtonText is used when a campaign is saved without one.
const DefaultActionButtonText = "Take Action"

// IssueTitles is the fixed taxonomy for issue campaigns.
var IssueTitles = []string{
	"Agriculture",
	"Civil Rights",
	"Criminal Justice",
	"Economy",
	"Education",
	"Elections",
	"Energy",
	"Environment",
	"Foreign Policy",
	"Gun Policy",
	"Healthcare",
	"Housing",
	"Immigration",
	"Infrastructure",
	"Labor",
	"Taxes",
	"Technology",
	"Veterans",
}

// BillTypes are the congressional bill type codes accepted on legislation campaigns.
var BillTypes = []string{"HR", "S", "HJRES", "SJRES", "HCONRES", "SCONRES", "HRES", "SRES"}
