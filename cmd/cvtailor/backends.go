package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Multitrix/cv-to-job-description/internal/config"
	"github.com/Multitrix/cv-to-job-description/internal/embeddings"
	"github.com/Multitrix/cv-to-job-description/internal/llm"
	"github.com/Multitrix/cv-to-job-description/internal/pipeline"
	"github.com/Multitrix/cv-to-job-description/internal/rewrite"
	"github.com/Multitrix/cv-to-job-description/internal/store"
)

// backends bundles the constructed pipeline with everything that needs
// closing when the command finishes
type backends struct {
	pipeline *pipeline.Pipeline
	closers  []func() error
}

func (b *backends) Close() {
	for _, close := range b.closers {
		_ = close()
	}
}

// newLogger builds the process logger; verbose switches to development
// output with debug level
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// buildBackends wires the embedder, snippet store, generation client, and
// pipeline from configuration. The Gemini API key is required; the vector
// store falls back to the in-process index when no Qdrant URL is configured.
func buildBackends(ctx context.Context, cfg *config.Config, log *zap.Logger) (*backends, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required (flag --api-key, config api_key, or environment)")
	}

	b := &backends{}

	embedder, err := embeddings.NewGemini(ctx, cfg.APIKey, "")
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	b.closers = append(b.closers, embedder.Close)

	var snippets store.Store
	if cfg.QdrantURL != "" {
		qdrant, err := store.NewQdrant(store.QdrantConfig{
			URL:              cfg.QdrantURL,
			CollectionPrefix: cfg.StorePrefix,
		}, embedder)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to create qdrant store: %w", err)
		}
		snippets = qdrant
	} else {
		log.Info("no qdrant URL configured, using in-process snippet index")
		snippets = store.NewMemory(embedder)
	}

	llmCfg := llm.DefaultConfig()
	if cfg.GenerateModel != "" {
		llmCfg.Model = cfg.GenerateModel
	}
	client, err := llm.NewGemini(ctx, llmCfg, cfg.APIKey)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to create generation client: %w", err)
	}
	b.closers = append(b.closers, client.Close)

	rewriter := rewrite.New(client, embedder, cfg.RewriteConfig(), log)
	b.pipeline = pipeline.New(snippets, embedder, rewriter, log, cfg.PipelineOptions())
	return b, nil
}

// loadConfig reads the optional config file, layers environment fallbacks,
// and validates the result
func loadConfig(path string) (*config.Config, error) {
	cfg := &config.Config{}
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg.FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
