// Package bootstrap wires adapters, services, and the pipeline together for
// the API and worker processes.
package bootstrap

import (
	"context"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"triage_server/adapter/out/commerce"
	"triage_server/adapter/out/mongodb"
	"triage_server/adapter/out/persistence"
	"triage_server/adapter/out/provider"
	"triage_server/config"
	"triage_server/core/agent/llm"
	"triage_server/core/agent/rag"
	"triage_server/core/port/out"
	"triage_server/core/service/agents"
	"triage_server/core/service/classify"
	"triage_server/core/service/pipeline"
	"triage_server/core/service/routing"
	"triage_server/core/service/safety"
	"triage_server/core/service/sentiment"
	"triage_server/core/service/threads"
	"triage_server/infra/database"
	"triage_server/internal/stream"
)

// Dependencies holds every constructed collaborator. Built once per process.
type Dependencies struct {
	Config  *config.Config
	Log     zerolog.Logger
	DB      *pgxpool.Pool
	SQLDB   *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client

	// Repositories
	MessageRepo    out.MessageRepository
	ThreadRepo     out.ThreadRepository
	RuleRepo       out.RuleRepository
	SettingsRepo   out.SettingsRepository
	ApprovalRepo   out.ApprovalRepository
	EscalationRepo out.EscalationRepository
	ActivityRepo   out.ActivityLogger
	BodyArchive    out.BodyArchive

	// Oracles and the grounding engine
	LLM            *llm.Client
	EmbeddingCache *rag.EmbeddingCache
	Grounding      *rag.Engine

	// External collaborators
	Commerce *commerce.Client
	Delivery out.DeliveryChannel

	// Stream
	Stream   *stream.RedisStream
	Producer *stream.Producer

	// Pipeline
	Pipeline *pipeline.Pipeline
}

func NewLogger(service string, development bool) zerolog.Logger {
	if development {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Str("service", service).Logger()
	}
	return zerolog.New(os.Stdout).
		With().Timestamp().Str("service", service).Logger()
}

// NewDependencies constructs the full graph. The returned cleanup closes
// every connection.
func NewDependencies(cfg *config.Config, log zerolog.Logger) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg, Log: log}

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	deps.DB = db

	sqlDB, err := database.NewSQLX(cfg.DatabaseURL)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	deps.SQLDB = sqlDB

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		db.Close()
		sqlDB.Close()
		return nil, nil, err
	}
	deps.Redis = redisClient

	// Mongo is optional; without it bodies stay in PostgreSQL only.
	if cfg.MongoDBURL != "" {
		mongoClient, err := mongodb.NewClient(cfg.MongoDBURL, cfg.MongoDBName)
		if err != nil {
			log.Warn().Err(err).Msg("mongodb unavailable, body archive disabled")
		} else {
			deps.MongoDB = mongoClient
			archive := mongodb.NewBodyArchiveAdapter(mongoClient.Database(cfg.MongoDBName))
			if err := archive.EnsureIndexes(context.Background()); err != nil {
				log.Warn().Err(err).Msg("failed to ensure body archive indexes")
			}
			deps.BodyArchive = archive
		}
	}

	// Repositories
	deps.MessageRepo = persistence.NewMessageAdapter(sqlDB)
	deps.ThreadRepo = persistence.NewThreadAdapter(sqlDB)
	deps.RuleRepo = persistence.NewRuleAdapter(sqlDB)
	deps.SettingsRepo = persistence.NewSettingsAdapter(sqlDB)
	deps.ApprovalRepo = persistence.NewApprovalAdapter(sqlDB)
	deps.EscalationRepo = persistence.NewEscalationAdapter(sqlDB)
	deps.ActivityRepo = persistence.NewActivityAdapter(sqlDB)

	// LLM oracles
	deps.LLM = llm.NewClientWithConfig(llm.ClientConfig{
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.LLMModel,
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: cfg.LLMTemperature,
	})
	classifierOracle := llm.NewClassifierOracle(deps.LLM)
	sentimentOracle := llm.NewSentimentOracle(deps.LLM)
	moderation := llm.NewModerationAdapter(deps.LLM)
	brandVoice := llm.NewBrandVoiceAdapter(deps.LLM)

	// Grounding: cached embeddings over the pgvector chunk store.
	deps.EmbeddingCache = rag.NewEmbeddingCache()
	embedder := rag.NewCachedEmbedder(rag.NewEmbedder(deps.LLM), deps.EmbeddingCache)
	deps.Grounding = rag.NewEngine(embedder, rag.NewPGChunkStore(db))

	// External collaborators
	deps.Commerce = commerce.NewClient(&commerce.Config{
		BaseURL: cfg.CommerceBaseURL,
		APIKey:  cfg.CommerceAPIKey,
		Timeout: time.Duration(cfg.CommerceTimeoutSec) * time.Second,
	}, log)

	mailbox := persistence.NewMailboxAdapter(sqlDB)
	deps.Delivery = provider.NewGmailDelivery(&provider.GmailDeliveryConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	}, mailbox, mailbox, log)

	// Stream
	deps.Stream = stream.NewRedisStream(redisClient, cfg.ConsumerGroup, log)
	deps.Producer = stream.NewProducer(deps.Stream)

	// Core services
	llmTimeout := cfg.LLMTimeout()
	linker := threads.NewLinker(deps.ThreadRepo, log)
	classifier := classify.NewClassifier(classifierOracle, deps.Grounding, llmTimeout, log)
	evaluator := sentiment.NewEvaluator(sentimentOracle, llmTimeout, log)
	router := routing.NewRouter(deps.RuleRepo, log)
	registry := agents.NewRegistry(&agents.RegistryDeps{
		LLM:         deps.LLM,
		Commerce:    deps.Commerce,
		Fulfillment: deps.Commerce,
	}, log)
	gate := safety.NewGate(moderation, brandVoice, sentimentOracle, llmTimeout, log)

	deps.Pipeline = pipeline.New(pipeline.Deps{
		Messages:    deps.MessageRepo,
		Settings:    deps.SettingsRepo,
		Approvals:   deps.ApprovalRepo,
		Escalations: deps.EscalationRepo,
		Activity:    deps.ActivityRepo,
		Bodies:      deps.BodyArchive,
		Delivery:    deps.Delivery,
		Linker:      linker,
		Classifier:  classifier,
		Sentiment:   evaluator,
		Router:      router,
		Agents:      registry,
		Safety:      gate,
	}, log)

	cleanup := func() {
		if deps.MongoDB != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = deps.MongoDB.Disconnect(ctx)
		}
		_ = deps.Redis.Close()
		_ = deps.SQLDB.Close()
		deps.DB.Close()
	}

	return deps, cleanup, nil
}
