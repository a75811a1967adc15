package main

import (
	"github.com/sashabaranov/go-openai"
	"github.com/xaenox/relay-bot/internal/bot"
	"github.com/xaenox/relay-bot/internal/classifier"
	"github.com/xaenox/relay-bot/internal/gateway"
	"github.com/xaenox/relay-bot/internal/generation"
	"github.com/xaenox/relay-bot/internal/media"
	"github.com/xaenox/relay-bot/internal/moderation"
	"github.com/xaenox/relay-bot/internal/storage"
	"github.com/xaenox/relay-bot/internal/webhook"
	"github.com/xaenox/relay-bot/pkg/config"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		dbConfig := storage.DatabaseConfig{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			DBName:      cfg.Database.DBName,
			SSLMode:     cfg.Database.SSLMode,
			UseInMemory: cfg.Database.UseInMemory,
		}
		store, err = storage.NewPostgresStorage(dbConfig, logger)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Select the messaging channel adapter
	var sender gateway.Sender
	var fetcher gateway.MediaFetcher
	switch cfg.Gateway.Channel {
	case "telegram":
		tg, err := gateway.NewTelegramGateway(cfg.Gateway.TelegramToken, logger)
		if err != nil {
			logger.Fatal("Failed to create telegram gateway", zap.Error(err))
		}
		sender, fetcher = tg, tg
	default:
		hg := gateway.NewHTTPGateway(cfg.Gateway.BaseURL, cfg.Gateway.Token, logger)
		sender, fetcher = hg, hg
	}

	// One OpenAI client serves generation, moderation, and transcription
	client := openai.NewClient(cfg.OpenAI.APIKey)

	clf := classifier.New(cfg.Bot.ResetKeyword)
	resolver := media.NewResolver(fetcher, client, cfg.OpenAI.TranscriptionModel, logger)
	gate := moderation.NewGate(client, cfg.OpenAI.ModerationModel, cfg.Bot.FailOpenModeration, logger)
	generator := generation.NewClient(client, cfg.OpenAI.Model, cfg.OpenAI.MaxTokens, cfg.OpenAI.Temperature, logger)

	b := bot.New(store, clf, resolver, gate, generator, sender, bot.Options{
		ModerateReplies: cfg.Bot.ModerateReplies,
		ResetAckText:    cfg.Bot.ResetAckText,
		RejectionText:   cfg.Bot.RejectionText,
		FailureText:     cfg.Bot.FailureText,
	}, logger)

	// Start the webhook server
	server := webhook.NewServer(b, store, cfg.Server.VerifyToken, cfg.Server.AdminToken, logger)
	logger.Info("Starting webhook server", zap.String("address", cfg.Server.Address))
	if err := server.Start(cfg.Server.Address); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}
