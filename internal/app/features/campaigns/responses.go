package campaigns

import (
	"context"
	"errors"
	"net/http"
	"time"

	uierrors "github.com/dalemusser/civichub/internal/app/features/errors"
	"github.com/dalemusser/civichub/internal/app/features/verify"
	"github.com/dalemusser/civichub/internal/app/policy/campaignpolicy"
	campaignstore "github.com/dalemusser/civichub/internal/app/store/campaigns"
	pollresponsestore "github.com/dalemusser/civichub/internal/app/store/pollresponses"
	"github.com/dalemusser/civichub/internal/app/system/auth"
	"github.com/dalemusser/civichub/internal/app/system/authz"
	"github.com/dalemusser/civichub/internal/app/system/timeouts"
	"github.com/dalemusser/civichub/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type respondRequest struct {
	Answers []string `json:"answers"`
}

type responseView struct {
	ID         string                  `json:"id"`
	CampaignID string                  `json:"campaignId"`
	Answers    []string                `json:"answers"`
	IsVerified bool                    `json:"isVerified"`
	Results    pollresponsestore.Tally `json:"results"`
}

// pollOf returns the poll payload of c, writing a 400 when c is not a
// voter poll.
func pollOf(w http.ResponseWriter, c models.Campaign) (models.PollPayload, bool) {
	p, ok := c.Payload().(models.PollPayload)
	if !ok {
		uierrors.Validation(w, "campaign is not a voter poll", []string{"campaignType"})
		return models.PollPayload{}, false
	}
	return p, true
}

// HandleRespond handles POST /api/campaigns/{id}/responses. Signed-in
// users answer as themselves. Anyone else must first finish the poll
// verification flow, whose cookie is cleared once the response is stored.
func (h *Handler) HandleRespond(w http.ResponseWriter, r *http.Request) {
	c, ok := h.load(w, r)
	if !ok {
		return
	}
	poll, ok := pollOf(w, c)
	if !ok {
		return
	}
	if c.IsPaused {
		uierrors.Conflict(w, campaignstore.ErrPaused.Error())
		return
	}

	var in respondRequest
	if err := uierrors.DecodeJSON(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode poll response", err, "invalid request body")
		return
	}
	answers, err := campaignpolicy.ValidateAnswers(poll, in.Answers)
	if err != nil {
		if !validationFailed(w, err) {
			h.ErrLog.LogBadRequest(w, r, "validate poll answers", err, err.Error())
		}
		return
	}

	resp := models.PollResponse{CampaignID: c.ID, Answers: answers}
	anonymous := true
	if u, signedIn := auth.CurrentUser(r); signedIn {
		_, _, uid, _ := authz.UserCtx(r)
		resp.RespondentKey = pollresponsestore.UserKey(uid)
		resp.UserID = &uid
		resp.IsVerified = u.IsVerified
		anonymous = false
	} else {
		id, done := h.Flows.Load(r, verify.FlowPoll).Outcome()
		if !done {
			uierrors.Validation(w, "verify your voter registration before answering", []string{"verification"})
			return
		}
		if id.VoterID != "" {
			resp.RespondentKey = pollresponsestore.VoterKey(id.VoterID)
		} else {
			resp.RespondentKey = pollresponsestore.AnonKey(uuid.NewString())
		}
		resp.IsVerified = id.IsVerified
		resp.Identity = &models.RespondentIdentity{
			FirstName:              id.FirstName,
			LastName:               id.LastName,
			Address:                id.Address,
			City:                   id.City,
			State:                  id.State,
			ZipCode:                id.ZipCode,
			ConstituentDescription: id.ConstituentDescription,
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	resp, err = h.Responses.Create(ctx, resp)
	if errors.Is(err, pollresponsestore.ErrAlreadyResponded) {
		uierrors.Conflict(w, err.Error())
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "store poll response", err, "failed to record your answer")
		return
	}
	if anonymous {
		h.Flows.Clear(w, r, verify.FlowPoll)
	}

	tally, err := h.Responses.Tally(ctx, c.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "tally poll", err, "failed to load poll results")
		return
	}
	uierrors.WriteJSON(w, http.StatusCreated, responseView{
		ID:         resp.ID.Hex(),
		CampaignID: c.ID.Hex(),
		Answers:    resp.Answers,
		IsVerified: resp.IsVerified,
		Results:    tally,
	})
}

// ServeResults handles GET /api/campaigns/{id}/results. Only the poll's
// owner sees the tally and the latest responses.
func (h *Handler) ServeResults(w http.ResponseWriter, r *http.Request) {
	c, ok := h.load(w, r)
	if !ok {
		return
	}
	if _, ok := pollOf(w, c); !ok {
		return
	}
	if err := campaignpolicy.CanEdit(authz.ActorFrom(r), c); err != nil {
		h.ErrLog.LogForbidden(w, r, "poll results of campaign not owned", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	tally, err := h.Responses.Tally(ctx, c.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "tally poll", err, "failed to load poll results")
		return
	}
	latest, err := h.Responses.ListByCampaign(ctx, c.ID, 100)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list poll responses", err, "failed to load poll results")
		return
	}

	type row struct {
		ID         string                     `json:"id"`
		Answers    []string                   `json:"answers"`
		IsVerified bool                       `json:"isVerified"`
		UserID     string                     `json:"userId,omitempty"`
		Identity   *models.RespondentIdentity `json:"identity,omitempty"`
		CreatedAt  time.Time                  `json:"createdAt"`
	}
	rows := make([]row, 0, len(latest))
	for _, pr := range latest {
		rw := row{
			ID:         pr.ID.Hex(),
			Answers:    pr.Answers,
			IsVerified: pr.IsVerified,
			Identity:   pr.Identity,
			CreatedAt:  pr.CreatedAt,
		}
		if pr.UserID != nil && *pr.UserID != primitive.NilObjectID {
			rw.UserID = pr.UserID.Hex()
		}
		rows = append(rows, rw)
	}
	uierrors.WriteJSON(w, http.StatusOK, map[string]any{"results": tally, "responses": rows})
}
