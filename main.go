package main

import (
	"context"
	"log"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/eurocup-agent/server/internal/agent/graph"
	"github.com/eurocup-agent/server/internal/agent/graph/nodes"
	"github.com/eurocup-agent/server/internal/agent/graph/tools"
	"github.com/eurocup-agent/server/internal/agent/model"
	"github.com/eurocup-agent/server/internal/agent/repo"
	"github.com/eurocup-agent/server/internal/core"
	"github.com/eurocup-agent/server/internal/journal"
	"github.com/eurocup-agent/server/internal/qualification"
	"github.com/eurocup-agent/server/internal/rag"
	"github.com/eurocup-agent/server/internal/server"
	"github.com/eurocup-agent/server/internal/sqlagent"
	logx "github.com/eurocup-agent/server/pkg/logger"
	pkgpostgres "github.com/eurocup-agent/server/pkg/postgres"
	pkgredis "github.com/eurocup-agent/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the service, sourced from
// environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	Redis    pkgredis.Config
	Postgres pkgpostgres.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Router       model.RouterModelConfig
	Utility      model.UtilityModelConfig
	Prompt       model.PromptConfig
	Conversation model.ConversationConfig
	Knowledge    model.KnowledgeConfig
	SQLAgent     model.SQLAgentConfig
	Journal      model.JournalConfig

	// HTTP surface
	Server   server.Config
	Telegram server.TelegramConfig
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment)})

	rdb, err := cfg.Redis.New()
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise Redis client")
	}
	defer rdb.Close()

	db, err := cfg.Postgres.New()
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to connect to Postgres")
	}
	defer db.Close()

	ttl, err := time.ParseDuration(cfg.Conversation.TTL)
	if err != nil {
		logx.Fatal().Err(err).Str("ttl", cfg.Conversation.TTL).Msg("Invalid CONVERSATION_TTL")
	}
	schemaTTL, err := time.ParseDuration(cfg.SQLAgent.SchemaTTL)
	if err != nil {
		logx.Fatal().Err(err).Str("ttl", cfg.SQLAgent.SchemaTTL).Msg("Invalid SQL_AGENT_SCHEMA_TTL")
	}

	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		APIKey:        cfg.APIKey,
		BaseURL:       cfg.BaseURL,
		RouterConfig:  &cfg.Router,
		UtilityConfig: &cfg.Utility,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to create chat models")
	}

	// Knowledge base over the persistent vector store
	embedFn := chromem.NewEmbeddingFuncOpenAICompat(
		cfg.Knowledge.EmbeddingBaseURL, cfg.APIKey, cfg.Knowledge.EmbeddingModel, nil)
	store, err := rag.NewStore(cfg.Knowledge.DataDir, cfg.Knowledge.Collection, embedFn)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to open knowledge store")
	}
	knowledgeLoop := rag.NewLoop(cms.Router, store, rag.Config{
		CompetitionName:    cfg.Prompt.CompetitionName,
		TopK:               cfg.Knowledge.TopK,
		RelevanceThreshold: cfg.Knowledge.RelevanceThreshold,
		MaxRewrites:        cfg.Knowledge.MaxRewrites,
	})

	// Structured query agent over the tournament database
	sqlAgent := sqlagent.NewAgent(
		cms.Router,
		sqlagent.NewDBRunner(db, cfg.SQLAgent.MaxRows),
		sqlagent.NewSchemaCache(db, schemaTTL),
		sqlagent.Config{
			CompetitionName: cfg.Prompt.CompetitionName,
			MaxIterations:   cfg.SQLAgent.MaxIterations,
		},
	)

	reasoner := qualification.NewReasoner(cms.Utility, sqlAgent, qualification.Config{
		CompetitionName: cfg.Prompt.CompetitionName,
	})

	registry := tools.NewRegistry(
		tools.NewStructuredStrategy(sqlAgent),
		tools.NewKnowledgeStrategy(knowledgeLoop),
		tools.NewQualificationStrategy(reasoner),
	)

	runner, err := graph.BuildEngine(ctx, graph.Config{
		ChatModels:       cms,
		Prompt:           cfg.Prompt,
		Conversation:     cfg.Conversation,
		ConversationRepo: repo.NewRedisConversationRepository(rdb, ttl),
		Strategies:       registry,
		Journal:          journal.NewPostgresJournal(db, cfg.Journal),
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build answer graph")
	}

	srv := server.New(runner, server.NewTelegramNotifier(cfg.Telegram), cfg.Server)
	if err := srv.Start(); err != nil {
		logx.Fatal().Err(err).Msg("HTTP server stopped")
	}
}
