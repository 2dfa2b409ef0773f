package bootstrap

import (
	"context"
	"time"

	"triage_server/adapter/out/cache"
	"triage_server/adapter/out/mongodb"
	"triage_server/adapter/out/persistence"
	"triage_server/adapter/out/provider/gmail"
	"triage_server/config"
	"triage_server/core/agent/llm"
	"triage_server/core/port/out"
	"triage_server/core/service/auth"
	"triage_server/core/service/classification"
	"triage_server/core/service/sync"
	"triage_server/infra/database"
	"triage_server/pkg/logger"
	pkgcache "triage_server/pkg/cache"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// Dependencies holds every wired component of the process.
type Dependencies struct {
	Config  *config.Config
	DB      *pgxpool.Pool
	SQLDB   *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client

	// Repositories
	EmailRepo      out.EmailRepository
	ConnectionRepo out.ConnectionRepository
	ReportRepo     out.SyncReportRepository

	// Providers
	GmailProvider *gmail.Adapter

	// Cache
	Cache    *pkgcache.RedisCache
	SyncLock out.SyncLocker

	// Services
	CredentialService *auth.CredentialService
	Pipeline          *classification.Pipeline
	SyncService       *sync.Service

	// LLM
	LLMClient *llm.Client
}

// NewDependencies wires all components from config. The returned cleanup
// closes every connection that was opened, in reverse order.
func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()
	log := logger.With("bootstrap")

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// Database (pgxpool, used by the readiness probe)
	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	deps.DB = db
	cleanups = append(cleanups, func() { db.Close() })

	// Database (sqlx for the persistence adapters)
	sqlDB, err := database.NewSQLX(cfg.DatabaseURL)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.SQLDB = sqlDB
	cleanups = append(cleanups, func() { sqlDB.Close() })

	deps.EmailRepo = persistence.NewEmailAdapter(sqlDB)
	deps.ConnectionRepo = persistence.NewConnectionAdapter(sqlDB)

	// Redis (sync lock + stats cache)
	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.Redis = redisClient
	cleanups = append(cleanups, func() { redisClient.Close() })

	deps.Cache = pkgcache.NewRedisCache(redisClient)
	deps.SyncLock = cache.NewRedisSyncLock(redisClient)

	// MongoDB (sync run reports, optional)
	if cfg.MongoDBURL != "" {
		mongoClient, err := mongodb.NewClient(cfg.MongoDBURL, cfg.MongoDBName)
		if err != nil {
			log.Warn().Err(err).Msg("MongoDB connection failed, sync reports disabled")
		} else {
			deps.MongoDB = mongoClient
			cleanups = append(cleanups, func() {
				_ = mongoClient.Disconnect(context.Background())
			})

			reportAdapter := mongodb.NewReportAdapter(mongoClient.Database(cfg.MongoDBName))
			if err := reportAdapter.EnsureIndexes(context.Background()); err != nil {
				log.Warn().Err(err).Msg("failed to ensure report indexes")
			}
			deps.ReportRepo = reportAdapter
		}
	}

	// Gmail provider
	deps.GmailProvider = gmail.NewAdapter(&gmail.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})

	// Credentials
	deps.CredentialService = auth.NewCredentialService(
		deps.ConnectionRepo,
		cfg.GoogleClientID,
		cfg.GoogleClientSecret,
		cfg.GoogleRedirectURL,
	)

	// Classification pipeline. Without an API key the fallback validator is
	// nil and borderline messages are rejected deterministically.
	var fallback *classification.FallbackValidator
	if cfg.OpenAIAPIKey != "" {
		deps.LLMClient = llm.NewClientWithConfig(llm.ClientConfig{
			APIKey:    cfg.OpenAIAPIKey,
			Model:     cfg.LLMModel,
			MaxTokens: cfg.LLMMaxTokens,
		})
		fallback = classification.NewFallbackValidator(
			deps.LLMClient,
			time.Duration(cfg.LLMTimeoutSec)*time.Second,
			logger.With("fallback"),
		)
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set, borderline fallback disabled")
	}
	deps.Pipeline = classification.NewPipeline(fallback, logger.With("classification"))

	// Sync
	deps.SyncService = sync.NewService(
		deps.EmailRepo,
		deps.ConnectionRepo,
		deps.ReportRepo,
		deps.GmailProvider,
		deps.CredentialService,
		deps.Pipeline,
		deps.SyncLock,
	)

	log.Info().Msg("dependencies initialized")
	return deps, cleanup, nil
}
