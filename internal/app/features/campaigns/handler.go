// Package campaigns serves campaign CRUD, discovery, templates, counters
// and voter poll responses.
package campaigns

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/civichub/internal/app/features/errors"
	"github.com/dalemusser/civichub/internal/app/features/verify"
	campaignstore "github.com/dalemusser/civichub/internal/app/store/campaigns"
	pollresponsestore "github.com/dalemusser/civichub/internal/app/store/pollresponses"
	"github.com/dalemusser/civichub/internal/app/system/auditlog"
	"github.com/dalemusser/civichub/internal/app/system/timeouts"
	"github.com/dalemusser/civichub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Campaigns *campaignstore.Store
	Responses *pollresponsestore.Store
	Flows     *verify.Handler
	ErrLog    *uierrors.ErrorLogger
	AuditLog  *auditlog.Logger
	Log       *zap.Logger
}

// NewHandler wires the campaign stores. flows supplies the poll
// verification cookie for anonymous poll responses.
func NewHandler(db *mongo.Database, flows *verify.Handler, errLog *uierrors.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Campaigns: campaignstore.New(db, logger),
		Responses: pollresponsestore.New(db),
		Flows:     flows,
		ErrLog:    errLog,
		AuditLog:  audit,
		Log:       logger,
	}
}

// load fetches the campaign named by the {id} URL param. It writes a 404
// or 500 and returns false when the campaign cannot be loaded.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (models.Campaign, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		uierrors.NotFound(w, campaignstore.ErrNotFound.Error())
		return models.Campaign{}, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	c, err := h.Campaigns.GetByID(ctx, id)
	if errors.Is(err, campaignstore.ErrNotFound) {
		uierrors.NotFound(w, err.Error())
		return models.Campaign{}, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load campaign", err, "failed to load campaign")
		return models.Campaign{}, false
	}
	return c, true
}
