// internal/app/features/profile/handler.go
package profile

import (
	uierrors "github.com/dalemusser/civichub/internal/app/features/errors"
	nicknamestore "github.com/dalemusser/civichub/internal/app/store/nicknames"
	userstore "github.com/dalemusser/civichub/internal/app/store/users"
	"github.com/dalemusser/civichub/internal/app/system/auditlog"
	"github.com/dalemusser/waffle/pantry/storage"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler owns the signed-in user's profile endpoints.
type Handler struct {
	Users     *userstore.Store
	Nicknames *nicknamestore.Store
	Blobs     storage.Store
	Log       *zap.Logger
	ErrLog    *uierrors.ErrorLogger
	AuditLog  *auditlog.Logger
}

// NewHandler constructs a Handler. blobs may be nil, which disables
// picture uploads.
func NewHandler(db *mongo.Database, blobs storage.Store, errLog *uierrors.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:     userstore.New(db),
		Nicknames: nicknamestore.New(db, logger),
		Blobs:     blobs,
		Log:       logger,
		ErrLog:    errLog,
		AuditLog:  audit,
	}
}
