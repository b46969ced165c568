package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"ragchat/internal/chunker"
	"ragchat/internal/config"
	"ragchat/internal/dialog"
	"ragchat/internal/domain"
	"ragchat/internal/embedding/openai"
	"ragchat/internal/embedding/tfidf"
	"ragchat/internal/index"
	"ragchat/internal/llm"
	"ragchat/internal/logger"
	"ragchat/internal/metrics"
	"ragchat/internal/prompts"
	"ragchat/internal/retrieval"
	"ragchat/internal/summarizer"
	"ragchat/internal/task"
	"ragchat/internal/tokenizer"
	"ragchat/internal/vectorstore/memory"
	"ragchat/internal/vectorstore/qdrant"
)

// app holds every wired component of one process.
type app struct {
	cfg          *config.AppConfig
	log          *logger.Logger
	metrics      *metrics.Metrics
	prompts      *prompts.Registry
	index        *index.Index
	runner       *task.Runner
	orchestrator *dialog.Orchestrator

	closers []func() error
}

// buildApp wires the components described by cfg. logOut overrides the log
// destination; nil means stderr unless log.file is set.
func buildApp(ctx context.Context, cfg *config.AppConfig, logOut io.Writer) (_ *app, err error) {
	log, closeLog, err := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		Pretty:     cfg.Log.Pretty,
		File:       cfg.Log.File,
		Output:     logOut,
		WithCaller: cfg.Log.Caller,
	})
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, metrics: metrics.New(), closers: []func() error{closeLog}}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	if cfg.Metrics.Addr != "" {
		a.serveMetrics(cfg.Metrics.Addr)
	}

	a.prompts = prompts.New(log)
	a.prompts.LoadFile(cfg.Prompts.Path)
	unsubscribe := a.prompts.Subscribe(func(c prompts.Change) {
		a.metrics.PromptChangesTotal.Inc()
		log.Info().Str("prompt", c.Name).Msg("current prompt changed")
	})
	a.closers = append(a.closers, func() error { unsubscribe(); return nil })
	if cfg.Prompts.Watch {
		if err := a.prompts.Watch(ctx, cfg.Prompts.Path); err != nil {
			log.Warn().Err(err).Msg("prompt hot reload disabled")
		}
	}

	embedder, err := newEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	a.index = index.New(
		chunker.NewSentenceChunker(cfg.Chunker.SentencesPerChunk, cfg.Chunker.OverlapSentences),
		embedder,
		newStorage(cfg.VectorStore),
		index.WithPrefixConvention(cfg.Retrieval.PrefixConvention),
		index.WithSynopsis(summarizer.NewFrequency(), cfg.Retrieval.SynopsisSentences),
		index.WithLogger(log),
	)

	backend, err := llm.New(llm.Config{
		Provider:   cfg.LLM.Provider,
		BaseURL:    cfg.LLM.BaseURL,
		APIKeyEnv:  cfg.LLM.APIKeyEnv,
		Model:      cfg.LLM.Model,
		MaxTokens:  cfg.LLM.MaxTokens,
		Timeout:    cfg.LLM.Timeout(),
		MaxRetries: cfg.LLM.MaxRetries,
	})
	if err != nil {
		return nil, err
	}

	settings := dialog.NewSettings(cfg.LLM.Model)
	settings.SetTemperature(cfg.Dialog.Temperature)
	settings.SetDatabaseID(cfg.Dialog.Database)
	settings.SetJSONMode(cfg.Dialog.JSONMode)

	policy := dialog.CarryOver
	if cfg.Dialog.SummaryPolicy == config.SummaryResetOnEmpty {
		policy = dialog.ResetOnEmptyHistory
	}

	a.runner = task.NewRunner(log, a.metrics)
	a.orchestrator = dialog.New(
		a.prompts,
		retrieval.NewContextBuilder(a.index, cfg.Retrieval.PrefixConvention, log, a.metrics),
		summarizer.NewConversation(backend, settings.ModelID, log, a.metrics),
		backend,
		settings,
		a.runner,
		dialog.WithLogger(log),
		dialog.WithMetrics(a.metrics),
		dialog.WithTokenCounter(newTokenCounter(cfg.Dialog.TokenEncoding, log)),
		dialog.WithSummaryPolicy(policy),
		dialog.WithTopK(cfg.Retrieval.TopK),
	)
	return a, nil
}

// ingest loads files into the index when given and reports the index size
// the way the chat window announces it.
func (a *app) ingest(ctx context.Context, paths []string) (status, synopsis string, err error) {
	if len(paths) > 0 {
		rep, err := a.index.Ingest(ctx, paths)
		if err != nil {
			return "", "", fmt.Errorf("ingest failed: %w", err)
		}
		synopsis = rep.Synopsis
	}
	n, err := a.index.IndexSize(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("cannot read index size")
		return "Index unavailable: " + err.Error(), synopsis, nil
	}
	return fmt.Sprintf("Index loaded. Vectors in index: %d", n), synopsis, nil
}

// close waits for outstanding generations, then releases resources.
func (a *app) close() {
	if a.runner != nil {
		a.runner.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

func (a *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
}

func newEmbedder(cfg config.EmbedderConfig) (domain.Embedder, error) {
	switch cfg.Type {
	case "openai":
		return openai.NewClient(openai.Config{
			BaseURL:   cfg.OpenAI.BaseURL,
			APIKeyEnv: cfg.OpenAI.APIKeyEnv,
			Model:     cfg.OpenAI.Model,
			Timeout:   time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
		})
	default:
		return tfidf.NewEmbedder(), nil
	}
}

func newStorage(cfg config.VectorStoreConfig) domain.Storage {
	if cfg.Type != "qdrant" {
		return memory.NewStorage()
	}
	q := cfg.Qdrant
	return qdrant.NewStorage(qdrant.Config{
		URL:        q.URL,
		APIKey:     os.Getenv(q.APIKeyEnv),
		Collection: q.Collection,
		Timeout:    time.Duration(q.TimeoutSecs) * time.Second,
	})
}

func newTokenCounter(encoding string, log *logger.Logger) dialog.TokenCounter {
	if encoding == "approx" {
		return tokenizer.Approx{}
	}
	tk, err := tokenizer.New(encoding)
	if err != nil {
		log.Warn().Err(err).Str("encoding", encoding).Msg("token encoding unavailable, using estimate")
		return tokenizer.Approx{}
	}
	return tk
}
