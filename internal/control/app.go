package control

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pressly/goose/v3"

	"github.com/vietddude/doctrans/internal/core/config"
	redisclient "github.com/vietddude/doctrans/internal/infra/redis"
	"github.com/vietddude/doctrans/internal/infra/storage"
	"github.com/vietddude/doctrans/internal/infra/storage/memory"
	"github.com/vietddude/doctrans/internal/infra/storage/postgres"
	"github.com/vietddude/doctrans/internal/pipeline/health"
	"github.com/vietddude/doctrans/internal/pipeline/orchestrator"
	"github.com/vietddude/doctrans/internal/pipeline/recovery"
)

// App is the main application struct that wires the pipeline together and
// manages its lifecycle.
type App struct {
	cfg          *config.AppConfig
	orch         *orchestrator.Orchestrator
	handler      *recovery.Handler
	manager      *recovery.Manager
	healthMon    *health.Monitor
	healthServer *health.Server
	archive      storage.JobArchive
	db           *postgres.DB
	redisClient  *redisclient.Client
	log          *slog.Logger
}

// NewApp creates an App with all dependencies initialized.
func NewApp(cfg *config.AppConfig) (*App, error) {

	// 1. Initialize Storage
	var archive storage.JobArchive
	var db *postgres.DB

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		// Run migrations
		// Note: Goose needs direct *sql.DB which sqlx.DB wraps
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		archive = postgres.NewJobRepo(db)
		slog.Info("Using PostgreSQL job archive")
	} else {
		archive = memory.NewJobArchive()
		slog.Info("Using in-memory job archive")
	}

	// 2. Initialize Redis (download links are optional)
	var redisClient *redisclient.Client
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, download links disabled", "error", err)
			redisClient = nil
		}
	}

	// 3. Initialize Recovery
	handler := recovery.NewHandler()
	strategies := recovery.DefaultStrategies(recovery.StrategyConfig{
		MaxRetries:          cfg.Recovery.MaxRetries,
		BackoffFactor:       cfg.Recovery.BackoffFactor,
		FallbackServices:    cfg.Recovery.FallbackServices,
		LayoutAdjustmentCap: cfg.Recovery.LayoutAdjustmentCap,
		QualityFloor:        cfg.Recovery.QualityFloor,
		QualityStep:         cfg.Recovery.QualityStep,
	})
	manager := recovery.NewManager(recovery.ManagerConfig{
		MaxAttemptsPerJob: cfg.Recovery.MaxAttemptsPerJob,
		StrategyTimeout:   cfg.Recovery.StrategyTimeout.Std(),
	}, strategies)
	auto := recovery.NewAutoHandler(handler, manager)

	// 4. Initialize Collaborators
	parser := &textParser{proximity: cfg.Pipeline.ProximityThreshold}
	collab := orchestrator.Collaborators{
		Parsers:    &parserFactory{parser: parser},
		Layout:     &layoutAnalyzer{proximity: cfg.Pipeline.ProximityThreshold},
		Translator: newHTTPTranslator(cfg.Pipeline.TranslationServiceURL, cfg.Pipeline.SupportedLanguagePairs),
		Fitter:     &heuristicFitter{},
		Quality:    &scoringAssessor{},
		Packager: &filePackager{
			dir:   cfg.Download.Directory,
			ttl:   cfg.Download.LinkTTL.Std(),
			links: redisClient,
		},
	}

	// 5. Initialize Orchestrator
	orch := orchestrator.New(orchestrator.Config{
		MaxConcurrentJobs:       cfg.Pipeline.MaxConcurrentJobs,
		JobTimeout:              cfg.Pipeline.JobTimeout.Std(),
		SweepInterval:           cfg.Pipeline.SweepInterval.Std(),
		MaxJobHistory:           cfg.Pipeline.MaxJobHistory,
		MaxRetries:              cfg.Pipeline.MaxRetries,
		EnableQualityAssessment: !cfg.Pipeline.SkipQualityAssessment,
		QualityThreshold:        cfg.Pipeline.QualityThreshold,
	}, collab, auto, archive)

	// 6. Initialize Health Monitor
	pingers := make(map[string]health.Pinger)
	if db != nil {
		pingers["postgres"] = db
	}
	if redisClient != nil {
		pingers["redis"] = redisClient
	}
	healthMon := health.NewMonitor(orch, handler, manager, pingers)
	healthServer := health.NewServer(healthMon, cfg.Server.Port)

	return &App{
		cfg:          cfg,
		orch:         orch,
		handler:      handler,
		manager:      manager,
		healthMon:    healthMon,
		healthServer: healthServer,
		archive:      archive,
		db:           db,
		redisClient:  redisClient,
		log:          slog.Default(),
	}, nil
}

// Start starts the app and all its components.
func (a *App) Start(ctx context.Context) error {
	// Start Health Server
	go func() {
		if err := a.healthServer.Start(); err != nil && err != http.ErrServerClosed {
			a.log.Error("Health server failed", "error", err)
		}
	}()

	// Start DB Metrics Collector
	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}

	// Start Orchestrator (reclamation sweep)
	a.orch.Start()

	a.log.Info("App started", "port", a.cfg.Server.Port)
	return nil
}

// Stop stops the app.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping...")

	if err := a.orch.Stop(ctx); err != nil {
		a.log.Warn("Orchestrator did not drain in time", "error", err)
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}

	if err := a.archive.Close(); err != nil {
		a.log.Warn("Failed to close archive", "error", err)
	}

	return a.healthServer.Stop(ctx)
}

// Orchestrator exposes the job pipeline for the CLI.
func (a *App) Orchestrator() *orchestrator.Orchestrator {
	return a.orch
}

// Archive exposes the job archive for the CLI.
func (a *App) Archive() storage.JobArchive {
	return a.archive
}
