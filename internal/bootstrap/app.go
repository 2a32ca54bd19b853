package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"matching-backend/internal/analyses"
	"matching-backend/internal/anonymizer"
	"matching-backend/internal/audit"
	"matching-backend/internal/license"
	"matching-backend/internal/matcher/claude"
	"matching-backend/internal/queue"
	"matching-backend/internal/services/health"
	"matching-backend/internal/shared/config"
	"matching-backend/internal/shared/server"
	"matching-backend/internal/shared/storage/db"
	"matching-backend/internal/usage"
)

// App holds shared dependencies for the API server and the queue worker.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Queue  queue.Client

	AnalysesRepo      analyses.Repo
	UsageService      *usage.Service
	AnalysesService   *analyses.Service
	AnalysisProcessor AnalysisProcessor
	LicenseResolver   *license.Resolver

	AnalysisHandler *analyses.Handler
	UsageHandler    *usage.Handler
	WebhookHandler  *license.WebhookHandler
}

// AnalysisProcessor allows callers to override job processing for tests.
type AnalysisProcessor interface {
	ProcessAnalysis(ctx context.Context, jobID string) error
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx)
	if err != nil {
		return nil, err
	}

	resolver, err := buildLicenseResolver(cfg)
	if err != nil {
		return nil, err
	}

	scorer, err := buildScorer(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:          cfg,
		DB:              sqlDB,
		Queue:           queueClient,
		LicenseResolver: resolver,
	}

	var (
		analysisRepo analyses.Repo
		usageSvc     *usage.Service
		recorder     audit.Recorder
	)
	if sqlDB != nil {
		analysisRepo = &analyses.PGRepo{DB: sqlDB}
		usageSvc = usage.NewPostgresService(usage.NewPGStore(sqlDB))
		recorder = &audit.PGRecorder{DB: sqlDB}
	} else {
		analysisRepo = analyses.NewMemoryRepo()
		usageSvc = usage.NewService()
		recorder = audit.Nop{}
	}

	anonClient := anonymizer.NewClient(cfg.AnonymizerURL, cfg.AnonymizerAPIKey, cfg.AnonymizerLanguage)

	analysisSvc := &analyses.Service{
		Repo:       analysisRepo,
		Usage:      usageSvc,
		Anonymizer: anonClient,
		Scorer:     scorer,
		Queue:      queueClient,
		Audit:      recorder,
	}

	app.AnalysesRepo = analysisRepo
	app.UsageService = usageSvc
	app.AnalysesService = analysisSvc
	app.AnalysisProcessor = analysisSvc
	app.AnalysisHandler = analyses.NewHandler(analysisSvc)
	app.UsageHandler = usage.NewHandler(usageSvc)
	app.WebhookHandler = license.NewWebhookHandler(cfg.LicensingSecretKey, resolver)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		Health:          health.NewService(sqlDB),
		AnalysisHandler: app.AnalysisHandler,
		UsageHandler:    app.UsageHandler,
		WebhookHandler:  app.WebhookHandler,
		LicenseResolver: resolver,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return sqlDB, nil
}

func buildQueue(ctx context.Context) (queue.Client, error) {
	if strings.TrimSpace(os.Getenv("MB_SQS_QUEUE_URL")) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx)
}

// buildLicenseResolver returns nil when licensing credentials are not
// configured, which switches the license middleware into its dev bypass.
func buildLicenseResolver(cfg config.Config) (*license.Resolver, error) {
	if strings.TrimSpace(cfg.LicensingDevID) == "" ||
		strings.TrimSpace(cfg.LicensingProductID) == "" ||
		strings.TrimSpace(cfg.LicensingSecretKey) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: licensing credentials empty; running with license checks disabled")
			return nil, nil
		}
		return nil, fmt.Errorf("licensing credentials are required")
	}

	client, err := license.NewClient(cfg.LicensingBaseURL, cfg.LicensingDevID, cfg.LicensingProductID, cfg.LicensingSecretKey)
	if err != nil {
		return nil, err
	}
	return license.NewResolver(client, license.NewCache(cfg.LicenseCacheTTL)), nil
}

func buildScorer(cfg config.Config) (*claude.Client, error) {
	if strings.TrimSpace(cfg.AnthropicAPIKey) == "" && !isDevLike(cfg.Env) {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	return claude.NewClient(cfg.AnthropicAPIKey, cfg.MatchModel), nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
