// Package app provides the main application lifecycle management for the
// placement engine.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/linkdeck/placement-engine/internal/api"
	"github.com/linkdeck/placement-engine/internal/config"
	"github.com/linkdeck/placement-engine/internal/database"
	"github.com/linkdeck/placement-engine/internal/detector"
	"github.com/linkdeck/placement-engine/internal/generator"
	"github.com/linkdeck/placement-engine/internal/httpclient"
	"github.com/linkdeck/placement-engine/internal/ledger"
	"github.com/linkdeck/placement-engine/internal/logger"
	"github.com/linkdeck/placement-engine/internal/metrics"
	"github.com/linkdeck/placement-engine/internal/placement"
	"github.com/linkdeck/placement-engine/internal/ratelimit"
	"github.com/linkdeck/placement-engine/internal/scheduler"
	"github.com/linkdeck/placement-engine/internal/telemetry"
)

const (
	// DefaultShutdownTimeout is the default timeout for graceful shutdown
	DefaultShutdownTimeout = 30 * time.Second

	redisPingTimeout = 5 * time.Second
	idleTimeout      = 120 * time.Second
)

// App represents the placement engine with all its dependencies
type App struct {
	config      *config.Config
	logger      logger.Logger
	db          *sqlx.DB
	redisClient *redis.Client
	scheduler   *scheduler.Scheduler
	telemetry   *telemetry.Provider
	httpServer  *http.Server
	cron        *cron.Cron
	version     string
}

// Options contains configuration for creating a new App
type Options struct {
	ConfigPath string
	Version    string
}

// New creates a new App instance with all dependencies initialized
func New(opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	appLogger, err := logger.NewLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	appLogger = appLogger.With(
		logger.String("service", "placement-engine"),
		logger.String("version", opts.Version),
	)

	db, err := database.NewPostgresConnection(database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		_ = appLogger.Sync()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
		_ = db.Close()
		_ = appLogger.Sync()
		return nil, fmt.Errorf("connect to Redis: %w", pingErr)
	}

	provider := telemetry.NewProvider()

	sched, err := buildScheduler(cfg, db, redisClient, provider, appLogger)
	if err != nil {
		_ = db.Close()
		_ = redisClient.Close()
		_ = appLogger.Sync()
		return nil, err
	}

	a := &App{
		config:      cfg,
		logger:      appLogger,
		db:          db,
		redisClient: redisClient,
		scheduler:   sched,
		telemetry:   provider,
		version:     opts.Version,
	}
	a.buildHTTPServer()

	if cfg.Scheduler.Enabled {
		if cronErr := a.buildCron(); cronErr != nil {
			a.closeResources()
			return nil, cronErr
		}
	}

	return a, nil
}

// buildScheduler wires repositories, strategies and services into the
// placement scheduler
func buildScheduler(
	cfg *config.Config,
	db *sqlx.DB,
	redisClient *redis.Client,
	provider *telemetry.Provider,
	appLogger logger.Logger,
) (*scheduler.Scheduler, error) {
	// Without an API key the generator runs template-only; the AI path is
	// an enhancement, not a startup requirement.
	var aiClient generator.CompletionClient
	if cfg.AI.APIKey != "" {
		client, err := generator.NewOpenAIClient(generator.OpenAIConfig{
			BaseURL: cfg.AI.BaseURL,
			APIKey:  cfg.AI.APIKey,
			Model:   cfg.AI.Model,
			Timeout: cfg.AI.Timeout,
		}, appLogger)
		if err != nil {
			return nil, fmt.Errorf("create AI client: %w", err)
		}
		aiClient = client
	} else {
		appLogger.Warn("AI API key not configured, sentence generation is template-only")
	}
	gen := generator.New(aiClient, cfg.Placement.LinkRel, appLogger)

	externalClient := httpclient.NewClientWithTimeout(cfg.Placement.ExternalTimeout)

	opportunities := database.NewOpportunityRepository(db)
	instructions := database.NewInstructionRepository(db)
	attempts := database.NewAttemptRepository(db)
	users := database.NewUserRepository(db)
	domainMetrics := database.NewDomainMetricsRepository(db)

	deps := scheduler.Deps{
		Opportunities: opportunities,
		Instructions:  instructions,
		Attempts:      attempts,
		Users:         users,
		DomainMetrics: domainMetrics,
		Ledger:        ledger.NewService(database.NewLedgerRepository(db), appLogger),
		Detector:      detector.New(externalClient, cfg.Placement.ProbeTimeout, appLogger),
		WPStrategy: placement.NewWordPressStrategy(gen, externalClient, placement.WordPressStrategyConfig{
			RecentPosts: cfg.Placement.RecentPosts,
			SettleDelay: cfg.Placement.SettleDelay,
			MaxChars:    cfg.Placement.MaxSentenceChars,
		}, appLogger),
		InjStrategy: placement.NewInjectionStrategy(gen, instructions, cfg.Placement.MaxSentenceChars, appLogger),
		Limiter:     ratelimit.NewDomainLimiter(redisClient, cfg.Placement.DomainCooldown, appLogger),
		Metrics:     metrics.NewTracker(redisClient, appLogger),
		Telemetry:   provider,
	}

	return scheduler.New(deps, scheduler.Config{
		MaxLiveInstructions: cfg.Placement.MaxLiveInstructions,
	}, appLogger), nil
}

// buildHTTPServer configures the API server
func (a *App) buildHTTPServer() {
	router := api.NewRouter(
		a.scheduler,
		metrics.NewTracker(a.redisClient, a.logger),
		a.telemetry,
		a.db,
		a.redisClient,
		a.config,
		a.logger,
	)

	a.httpServer = &http.Server{
		Addr:         a.config.Server.Address,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
		IdleTimeout:  idleTimeout,
	}
}

// buildCron registers the periodic batch run
func (a *App) buildCron() error {
	c := cron.New()
	_, err := c.AddFunc(a.config.Scheduler.CronSpec, func() {
		a.logger.Info("Scheduled placement run starting")
		if runErr := a.scheduler.RunAll(context.Background()); runErr != nil {
			a.logger.Error("Scheduled placement run failed", logger.Error(runErr))
		}
	})
	if err != nil {
		return fmt.Errorf("register cron schedule %q: %w", a.config.Scheduler.CronSpec, err)
	}
	a.cron = c
	return nil
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		a.logger.Info("Starting API server",
			logger.String("address", a.config.Server.Address),
			logger.Bool("debug", a.config.Debug),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	if a.cron != nil {
		a.logger.Info("Starting placement scheduler",
			logger.String("cron_spec", a.config.Scheduler.CronSpec),
		)
		a.cron.Start()
	}

	return a.waitForShutdown(ctx, serverErr)
}

// waitForShutdown handles graceful shutdown
func (a *App) waitForShutdown(ctx context.Context, serverErr chan error) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var shutdownErr error

	select {
	case sig := <-sigChan:
		a.logger.Info("Shutting down gracefully",
			logger.String("signal", sig.String()),
		)
	case <-ctx.Done():
		a.logger.Info("Shutting down, context cancelled")
	case err := <-serverErr:
		a.logger.Error("Server error", logger.Error(err))
		shutdownErr = err
	}

	if a.cron != nil {
		cronCtx := a.cron.Stop()
		<-cronCtx.Done()
		a.logger.Info("Scheduler stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Server shutdown error", logger.Error(err))
	} else {
		a.logger.Info("HTTP server stopped")
	}

	a.logger.Info("Service stopped")
	return shutdownErr
}

// RunBatchOnce executes a single batch pass over all users with eligible
// opportunities, without starting the HTTP server
func (a *App) RunBatchOnce(ctx context.Context) error {
	return a.scheduler.RunAll(ctx)
}

// Close cleans up resources
func (a *App) Close() error {
	a.closeResources()
	return nil
}

func (a *App) closeResources() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("Failed to close database", logger.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("Failed to close Redis client", logger.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// Logger returns the application logger
func (a *App) Logger() logger.Logger {
	return a.logger
}
