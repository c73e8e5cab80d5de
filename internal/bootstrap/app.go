package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"patentvision-backend/internal/ai"
	"patentvision-backend/internal/ai/openai"
	"patentvision-backend/internal/analyses"
	"patentvision-backend/internal/scrape"
	"patentvision-backend/internal/shared/config"
	"patentvision-backend/internal/shared/server"
	"patentvision-backend/internal/shared/storage/db"
	"patentvision-backend/internal/shared/storage/object"
	localstore "patentvision-backend/internal/shared/storage/object/local"
	s3store "patentvision-backend/internal/shared/storage/object/s3"
)

// App holds shared dependencies.
type App struct {
	Config          config.Config
	Router          *gin.Engine
	DB              *sql.DB
	Store           object.ObjectStore
	AI              ai.Client
	AnalysesRepo    analyses.Repo
	AnalysesService *analyses.Service
	ScrapeService   *scrape.Service
	AnalysisHandler *analyses.Handler
	ScrapeHandler   *scrape.Handler
}

// Build prepares shared dependencies and the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	aiClient, err := buildAI(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		AI:     aiClient,
	}

	var repo analyses.Repo
	if sqlDB != nil {
		repo = &analyses.PGRepo{DB: sqlDB}
	} else {
		repo = analyses.NewMemoryRepo()
	}

	app.AnalysesRepo = repo
	app.AnalysesService = &analyses.Service{
		Repo:  repo,
		Store: store,
		AI:    aiClient,
		Media: analyses.NewMediaPersister(store),
	}
	app.ScrapeService = scrape.NewService()
	app.AnalysisHandler = analyses.NewHandler(app.AnalysesService)
	app.ScrapeHandler = scrape.NewHandler(app.ScrapeService)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		AnalysisHandler: app.AnalysisHandler,
		ScrapeHandler:   app.ScrapeHandler,
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

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.AWSRegion) == "" || strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires AWS_REGION and S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildAI(cfg config.Config) (ai.Client, error) {
	if cfg.AIProvider == "openai" && strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		return openai.NewClient(openai.Config{
			APIKey:     cfg.OpenAIAPIKey,
			Model:      cfg.AIModel,
			ImageModel: cfg.ImageModel,
			AudioModel: cfg.AudioModel,
			AudioVoice: cfg.AudioVoice,
		})
	}
	if !isDevLike(cfg.Env) && cfg.AIProvider == "openai" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	log.Printf("bootstrap: AI provider not configured; using placeholder client")
	return ai.PlaceholderClient{}, nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
