package workerledger

import (
	"context"
	"net/http"
	"time"

	"github.com/canopy-network/postertoken/pkg/audit"
	"github.com/canopy-network/postertoken/pkg/config"
	"github.com/canopy-network/postertoken/pkg/db"
	"github.com/canopy-network/postertoken/pkg/db/backend"
	"github.com/canopy-network/postertoken/pkg/ledger"
	"github.com/canopy-network/postertoken/pkg/logging"
	"github.com/canopy-network/postertoken/pkg/redis"
	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// App consumes post events from a Redis stream and applies them to the ledger store.
type App struct {
	Store       db.LedgerStore
	RedisClient *redis.Client
	Consumer    *redis.StreamConsumer
	Processor   *Processor

	// Auditor checks supply conservation on every Cron tick, according to CronSpec.
	Auditor  *audit.Auditor
	Cron     *cron.Cron
	CronSpec string

	// Logger is used to log messages, errors, and events during the application's lifecycle and operations.
	Logger *zap.Logger

	// Server answers liveness and readiness probes.
	Server *http.Server
}

// Initialize initializes the App.
func Initialize(ctx context.Context) *App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	store, err := backend.Open(ctx, logger, cfg, "ledger")
	if err != nil {
		logger.Fatal("Unable to open ledger store", zap.String("store", cfg.Store), zap.Error(err))
	}

	redisClient, err := redis.NewClient(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to connect to Redis", zap.Error(err))
	}

	consumer, err := redis.NewStreamConsumer(redisClient, redis.StreamConsumerConfig{
		Stream:   cfg.PostStream,
		Group:    cfg.PostGroup,
		Consumer: cfg.PostConsumer,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("Unable to create stream consumer", zap.Error(err))
	}

	engine := ledger.NewEngine(store, logger, ledger.EngineConfig{NoncePolicy: ledger.NoncePolicy(cfg.NoncePolicy)})

	app := &App{
		Store:       store,
		RedisClient: redisClient,
		Consumer:    consumer,
		Processor: &Processor{
			Engine:    engine,
			Publisher: redisClient,
			Channel:   cfg.AppliedChannel,
			Logger:    logger,
		},
		Auditor:  audit.NewAuditor(store, logger, cfg.AuditWorkers),
		CronSpec: cfg.AuditCron,
		Logger:   logger,
	}

	if err := app.SetupScheduler(ctx, cfg.AuditCron); err != nil {
		logger.Fatal("Invalid audit schedule", zap.String("cronSpec", cfg.AuditCron), zap.Error(err))
	}
	app.SetupServer(cfg.Addr)

	return app
}

// SetupServer sets up the probe server.
// Use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces.
func (a *App) SetupServer(addr string) {
	r := mux.NewRouter()

	r.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })).Methods(http.MethodGet)
	r.Handle("/readyz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.Ready(r.Context()) {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})).Methods(http.MethodGet)

	a.Server = &http.Server{Addr: addr, Handler: r}
}

// Ready reports whether the store and Redis both answer.
func (a *App) Ready(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.Store.Ping(ctx); err != nil {
		return false
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Health(ctx); err != nil {
			return false
		}
	}
	return true
}

// SetupScheduler registers the conservation audit.
func (a *App) SetupScheduler(ctx context.Context, cronSpec string) error {
	logger := logging.CronLogger{Logger: a.Logger}
	// Seconds field, optional
	a.Cron = cron.New(
		cron.WithSeconds(),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	_, err := a.Cron.AddFunc(cronSpec, func() {
		// keep each run bounded
		rctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		a.runAudit(rctx)
	})
	return err
}

func (a *App) runAudit(ctx context.Context) {
	report, err := a.Auditor.Run(ctx)
	if err != nil {
		a.Logger.Error("Audit failed", zap.Error(err))
		return
	}
	if !report.OK() {
		a.Logger.Error("Audit found ledger violations",
			zap.Int("violations", len(report.Violations)),
			zap.Int("tokens", len(report.Tokens)))
	}
}

// Start runs the consumer and blocks until the context is canceled.
func (a *App) Start(ctx context.Context) {
	a.Cron.Start()
	a.Logger.Info("Audit cron started", zap.String("cronSpec", a.CronSpec))

	go func() {
		a.Logger.Info("Starting probe server", zap.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Error("Probe server stopped", zap.Error(err))
		}
	}()

	if err := a.Consumer.Run(ctx, a.Processor.HandleMessage); err != nil && ctx.Err() == nil {
		a.Logger.Error("Stream consumer stopped", zap.Error(err))
	}
	a.Stop()
}

// Stop stops the scheduler and releases every connection.
func (a *App) Stop() {
	if a.Cron != nil {
		<-a.Cron.Stop().Done()
	}
	a.Auditor.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.Server != nil {
		_ = a.Server.Shutdown(shutdownCtx)
	}

	if err := a.Store.Close(); err != nil {
		a.Logger.Error("Failed to close ledger store", zap.Error(err))
	}
	if a.RedisClient != nil {
		_ = a.RedisClient.Close()
	}

	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
