// Package bootstrap is the composition root shared by the HTTP and terminal front-ends.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hfzizz/nao-llm/internal/config"
	dbRedis "github.com/hfzizz/nao-llm/internal/db/redis"
	"github.com/hfzizz/nao-llm/internal/domain"
	"github.com/hfzizz/nao-llm/internal/repository/transcript"
	openaiTransport "github.com/hfzizz/nao-llm/internal/transport/openai"
	ollamaTransport "github.com/hfzizz/nao-llm/internal/transport/ollama"
	chatuc "github.com/hfzizz/nao-llm/internal/usecase/chat"
	"github.com/hfzizz/nao-llm/internal/usecase/conversation"
	embeddinguc "github.com/hfzizz/nao-llm/internal/usecase/embedding"
	"github.com/hfzizz/nao-llm/internal/usecase/generation"
	healthuc "github.com/hfzizz/nao-llm/internal/usecase/health"
	"github.com/hfzizz/nao-llm/internal/usecase/knowledge"
	"github.com/hfzizz/nao-llm/internal/usecase/retrieval"
)

// App holds the wired pipeline.
type App struct {
	Chat      *chatuc.Service
	Knowledge *knowledge.Index
	Health    *healthuc.Service
	Store     *conversation.Store

	closers []func() error
	logger  *zap.Logger
}

// generator is a generation backend with a health probe.
type generator interface {
	domain.Generator
	domain.HealthChecker
}

// Build wires every component from cfg and loads the knowledge base.
// A dataset that cannot be loaded fails the build.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	app := &App{logger: logger}
	ok := false
	defer func() {
		if !ok {
			_ = app.Close()
		}
	}()

	embedTimeout := time.Duration(cfg.Embedding.TimeoutSec) * time.Second

	// Local backend: OpenAI-compatible sentence embeddings -> Instrumented -> Instruction
	local := embeddinguc.NewInstrumentedEmbedder(
		openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:     cfg.Embedding.Local.APIKey,
			BaseURL:    cfg.Embedding.Local.BaseURL,
			Model:      cfg.Embedding.Local.Model,
			Dimensions: cfg.Embedding.Local.Dimensions,
			Logger:     logger,
		}),
		"local", cfg.Embedding.Local.Model, embedTimeout, logger,
	)

	// Remote backend is optional. Keep the interface nil rather than a typed nil pointer.
	var remote domain.Embedder
	var remoteChecker healthuc.ComponentChecker
	if !cfg.Embedding.Remote.Disabled {
		client, err := ollamaTransport.NewAPIClient(cfg.Embedding.Remote.Host, nil)
		if err != nil {
			return nil, fmt.Errorf("remote embedding client: %w", err)
		}
		instrumented := embeddinguc.NewInstrumentedEmbedder(
			ollamaTransport.NewEmbedder(client, cfg.Embedding.Remote.Model, logger),
			"remote", cfg.Embedding.Remote.Model, embedTimeout, logger,
		)
		remote, remoteChecker = instrumented, instrumented
	}

	queryEmbedder := embeddinguc.NewDualEmbedder(
		withInstruction(local, cfg.Embedding.Local.QueryInstruction), remote, embeddinguc.StageQuery, logger,
	)
	docEmbedder := embeddinguc.NewDualEmbedder(
		withInstruction(local, cfg.Embedding.Local.DocumentInstruction), remote, embeddinguc.StageDocument, logger,
	)
	logger.Info("Embedders created",
		zap.String("local_model", cfg.Embedding.Local.Model),
		zap.Bool("remote_enabled", queryEmbedder.RemoteEnabled()),
		zap.String("remote_model", cfg.Embedding.Remote.Model),
	)

	// Knowledge base
	loader := knowledge.NewLoader(docEmbedder, knowledge.LoaderConfig{
		Concurrency: cfg.Knowledge.LoadConcurrency,
		AllowEmpty:  cfg.Knowledge.AllowEmpty,
	}, logger)
	app.Knowledge = knowledge.NewIndex(loader, cfg.Knowledge.DatasetPath, logger)
	if _, err := app.Knowledge.Reload(ctx); err != nil {
		return nil, err
	}

	lw, rw := cfg.Retrieval.Weights()
	ranker, err := retrieval.NewRanker(retrieval.Weights{Local: lw, Remote: rw})
	if err != nil {
		return nil, err
	}

	// Conversation context store
	repo, err := app.openTranscripts(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.Store = conversation.NewStore(repo, cfg.Conversation.IdleTimeout())

	// Generation
	gen, err := buildGenerator(cfg.Generation, logger)
	if err != nil {
		return nil, err
	}
	composer, err := generation.NewComposer(gen, generation.Config{
		Persona:  cfg.Generation.Persona,
		Template: cfg.Generation.Template,
		Timeout:  time.Duration(cfg.Generation.TimeoutSec) * time.Second,
	}, logger)
	if err != nil {
		return nil, err
	}

	app.Chat = chatuc.New(queryEmbedder, app.Knowledge, ranker, app.Store, composer, chatuc.Config{
		TopK:            cfg.Retrieval.TopK,
		AssistantName:   cfg.Chat.AssistantName,
		DefaultSession:  cfg.Chat.DefaultSession,
		FarewellReply:   cfg.Chat.FarewellReply,
		FarewellWords:   cfg.Chat.FarewellWords,
		FarewellPhrases: cfg.Chat.FarewellPhrases,
		FallbackReply:   cfg.Chat.FallbackReply,
	}, logger)

	app.Health = healthuc.New(app.Store).
		WithComponent("local_embedding", local).
		WithComponent("remote_embedding", remoteChecker).
		WithComponent("generation", gen).
		WithDocuments(func() int { return app.Knowledge.Current().Len() })

	ok = true
	return app, nil
}

func withInstruction(e domain.Embedder, instruction string) domain.Embedder {
	if instruction == "" {
		return e
	}
	return domain.NewInstructionEmbedder(e, instruction)
}

func buildGenerator(cfg config.GenerationConfig, logger *zap.Logger) (generator, error) {
	switch cfg.Provider {
	case "openai":
		return openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Logger:      logger,
		}), nil
	case "ollama", "":
		client, err := ollamaTransport.NewAPIClient(cfg.Host, nil)
		if err != nil {
			return nil, fmt.Errorf("generation client: %w", err)
		}
		return ollamaTransport.NewGenerator(client, ollamaTransport.GeneratorConfig{
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Logger:      logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}

func (a *App) openTranscripts(ctx context.Context, cfg config.Config) (conversation.Repository, error) {
	c := cfg.Conversation
	switch c.Driver {
	case "file", "":
		repo, err := transcript.NewFileRepo(c.Dir)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case "badger":
		repo, err := transcript.OpenBadger(c.BadgerPath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, repo.Close)
		return repo, nil
	case "redis", "valkey":
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("context store: %w", err)
		}
		a.closers = append(a.closers, func() error { store.Close(); return nil })
		if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			return nil, fmt.Errorf("context store not ready: %w", err)
		}
		a.logger.Info("Connected to context store", zap.Strings("addrs", cfg.Database.Addrs))
		return transcript.NewKVRepo(store, c.KeyPrefix, c.Retention()), nil
	default:
		return nil, fmt.Errorf("unknown conversation driver %q", c.Driver)
	}
}

// RunJanitor forgets idle sessions every interval until ctx is done.
func (a *App) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.Chat.Prune(a.Store.IdleTimeout()); n > 0 {
				a.logger.Debug("Pruned idle sessions", zap.Int("pruned", n), zap.Int("active", a.Chat.Sessions()))
			}
		}
	}
}

// Close releases storage handles in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
