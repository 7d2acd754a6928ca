// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown cleanly tears down background limiters and backend connections.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	stopBackground()

	if deps.Redis != nil {
		if err := deps.Redis.Close(); err != nil {
			logger.Warn("redis close failed", zap.Error(err))
		}
	}
	if deps.MongoClient != nil {
		logger.Info("disconnecting CivicHub MongoDB client")
		if err := deps.MongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}

// closeDeps releases whatever ConnectDB opened before it failed.
func closeDeps(deps DBDeps, logger *zap.Logger) {
	if deps.Redis != nil {
		_ = deps.Redis.Close()
	}
	if deps.MongoClient != nil {
		if err := deps.MongoClient.Disconnect(context.Background()); err != nil {
			logger.Warn("MongoDB disconnect failed", zap.Error(err))
		}
	}
}
