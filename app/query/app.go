package query

import (
	"context"

	"github.com/canopy-network/postertoken/app/query/types"
	"github.com/canopy-network/postertoken/pkg/config"
	"github.com/canopy-network/postertoken/pkg/db/backend"
	"github.com/canopy-network/postertoken/pkg/logging"
	"github.com/canopy-network/postertoken/pkg/redis"
	"github.com/canopy-network/postertoken/pkg/utils"
	"go.uber.org/zap"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) (*types.App, config.Config) {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	store, err := backend.Open(ctx, logger, cfg, "query")
	if err != nil {
		logger.Fatal("Unable to open ledger store", zap.String("store", cfg.Store), zap.Error(err))
	}

	// Redis is optional for the query API; without it /ws answers 503.
	var redisClient *redis.Client
	if utils.Env("REDIS_ENABLED", "true") == "true" {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - live ledger feed will be disabled", zap.Error(err))
			redisClient = nil
		}
	} else {
		logger.Info("Redis disabled - live ledger feed will not be available")
	}

	app := &types.App{
		Store:          store,
		RedisClient:    redisClient,
		AppliedChannel: cfg.AppliedChannel,
		Logger:         logger,
	}

	return app, cfg
}
