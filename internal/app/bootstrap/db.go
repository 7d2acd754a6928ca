// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/dalemusser/civichub/internal/app/system/indexes"
	"github.com/dalemusser/civichub/internal/app/system/providers"
	"github.com/dalemusser/civichub/internal/app/system/timeouts"
	"github.com/dalemusser/civichub/internal/app/system/validators"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/storage"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectDB connects to MongoDB, the optional Redis provider cache, and the
// profile picture store. Anything that fails here aborts startup.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	configureTimeouts(appCfg)

	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return DBDeps{}, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeouts.Ping())
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return DBDeps{}, fmt.Errorf("mongo ping: %w", err)
	}
	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase),
		zap.Uint64("max_pool", appCfg.MongoMaxPoolSize))

	deps := DBDeps{
		MongoClient:   client,
		MongoDatabase: client.Database(appCfg.MongoDatabase),
	}

	if appCfg.RedisURL != "" {
		rdb, err := providers.DialRedis(ctx, appCfg.RedisURL)
		if err != nil {
			_ = client.Disconnect(context.Background())
			return DBDeps{}, fmt.Errorf("redis: %w", err)
		}
		deps.Redis = rdb
		logger.Info("provider cache enabled", zap.Duration("ttl", appCfg.ProviderCacheTTL))
	}

	blobs, err := newPictureStore(ctx, appCfg)
	if err != nil {
		closeDeps(deps, logger)
		return DBDeps{}, fmt.Errorf("storage: %w", err)
	}
	deps.Blobs = blobs
	logger.Info("profile picture storage ready", zap.String("backend", blobs.Backend()))

	return deps, nil
}

// newPictureStore builds the profile picture backend. Public URLs come from
// storage_public_url when set, otherwise from the backend's own layout.
func newPictureStore(ctx context.Context, appCfg AppConfig) (storage.Store, error) {
	if appCfg.StorageType == "s3" {
		baseURL := strings.TrimRight(appCfg.StoragePublicURL, "/")
		if baseURL == "" && appCfg.StorageS3Endpoint != "" {
			baseURL = strings.TrimRight(appCfg.StorageS3Endpoint, "/") + "/" + appCfg.StorageS3Bucket
		}
		return storage.NewS3(ctx, storage.S3Config{
			Bucket:       appCfg.StorageS3Bucket,
			Region:       appCfg.StorageS3Region,
			Prefix:       appCfg.StorageS3Prefix,
			Endpoint:     appCfg.StorageS3Endpoint,
			UsePathStyle: appCfg.StorageS3Endpoint != "",
			BaseURL:      baseURL,
		})
	}
	return storage.NewLocal(storage.LocalConfig{
		BasePath: appCfg.StorageLocalPath,
		BaseURL:  "/" + strings.Trim(appCfg.StorageLocalURL, "/"),
	})
}

// EnsureSchema applies collection validators and indexes. Both are
// idempotent so every start runs them.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if err := validators.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		return fmt.Errorf("validators: %w", err)
	}
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		return fmt.Errorf("indexes: %w", err)
	}
	logger.Info("schema ensured")
	return nil
}
