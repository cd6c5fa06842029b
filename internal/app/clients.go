package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
	"github.com/yungbote/bloomquiz-backend/internal/platform/openai"
	"github.com/yungbote/bloomquiz-backend/internal/platform/storage"
	"github.com/yungbote/bloomquiz-backend/internal/platform/vectorstore"
	"github.com/yungbote/bloomquiz-backend/internal/realtime/bus"
)

type Clients struct {
	Bus      bus.Bus
	Store    storage.Store
	Vectors  vectorstore.Store
	Embedder openai.Embedder
	LLM      openai.JSONGenerator
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config, db *gorm.DB) (Clients, error) {
	log.Info("Wiring clients...")

	// Redis
	var b bus.Bus
	if cfg.RedisAddr != "" {
		rb, err := bus.NewRedisBus(ctx, log, bus.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Channel:  cfg.RedisChannel,
		})
		if err != nil {
			return Clients{}, fmt.Errorf("init redis event bus: %w", err)
		}
		b = rb
	} else {
		log.Info("REDIS_ADDR not set; job events stay in-process")
	}

	store, err := resolveObjectStore(ctx, log, cfg)
	if err != nil {
		closeBus(b)
		return Clients{}, err
	}

	vectors, err := resolveVectorStore(log, cfg, db)
	if err != nil {
		closeBus(b)
		return Clients{}, err
	}

	// Embeddings and chat may live on different OpenAI-compatible hosts.
	embedder, err := openai.NewClient(log, openai.Config{
		BaseURL:    cfg.EmbedBaseURL,
		APIKey:     cfg.EmbedAPIKey,
		EmbedModel: cfg.EmbedModel,
		Timeout:    cfg.LLMTimeout,
		MaxRetries: cfg.LLMMaxRetries,
	})
	if err != nil {
		closeBus(b)
		return Clients{}, fmt.Errorf("init embedding client: %w", err)
	}
	llm, err := openai.NewClient(log, openai.Config{
		BaseURL:    cfg.LLMBaseURL,
		APIKey:     cfg.LLMAPIKey,
		Model:      cfg.LLMModel,
		Timeout:    cfg.LLMTimeout,
		MaxRetries: cfg.LLMMaxRetries,
	})
	if err != nil {
		closeBus(b)
		return Clients{}, fmt.Errorf("init llm client: %w", err)
	}

	return Clients{
		Bus:      b,
		Store:    store,
		Vectors:  vectors,
		Embedder: embedder,
		LLM:      llm,
	}, nil
}

func closeBus(b bus.Bus) {
	if b != nil {
		_ = b.Close()
	}
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	closeBus(c.Bus)
}
