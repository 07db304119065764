package types

import (
	"context"
	"net/http"
	"time"

	"github.com/canopy-network/postertoken/pkg/db"
	"github.com/canopy-network/postertoken/pkg/redis"
	"go.uber.org/zap"
)

type App struct {
	Store db.LedgerStore
	// RedisClient feeds the live websocket; nil disables it.
	RedisClient *redis.Client
	// AppliedChannel is the pub/sub channel the ledger worker publishes applied commands on.
	AppliedChannel string
	// Zap Logger
	Logger *zap.Logger
	// Server represents the HTTP server instance used to handle incoming client requests and manage HTTP routes.
	Server *http.Server
}

// Start starts the application.
func (a *App) Start(ctx context.Context) {
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Error("HTTP server stopped", zap.Error(err))
		}
	}()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = a.Server.Shutdown(shutdownCtx)

	if err := a.Store.Close(); err != nil {
		a.Logger.Error("Failed to close ledger store", zap.Error(err))
	}
	if a.RedisClient != nil {
		_ = a.RedisClient.Close()
	}

	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
