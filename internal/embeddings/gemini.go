package embeddings

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/Multitrix/cv-to-job-description/internal/retry"
)

// DefaultModel is the default Gemini embedding model
const DefaultModel = "text-embedding-004"

// Gemini implements Embedder using the Gemini embedding API.
// Downstream correctness (index dimensionality, ranking) depends on
// embeddings existing, so failures are retried and then propagated.
type Gemini struct {
	client    *genai.Client
	model     string
	retryCfg  retry.Config
	dimension int
}

// NewGemini creates a Gemini-backed embedder. The API key is required; its
// absence is a fatal configuration error, not a retryable one.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Gemini{
		client:   client,
		model:    model,
		retryCfg: retry.DefaultConfig(),
	}, nil
}

// Embed returns one vector per input text, in order, using a single batch
// request per attempt.
func (g *Gemini) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	em := g.client.EmbeddingModel(g.model)

	var vectors [][]float32
	err := retry.Do(ctx, g.retryCfg, func() error {
		batch := em.NewBatch()
		for _, text := range texts {
			batch.AddContent(genai.Text(text))
		}

		resp, err := em.BatchEmbedContents(ctx, batch)
		if err != nil {
			return fmt.Errorf("batch embed failed: %w", err)
		}
		if len(resp.Embeddings) != len(texts) {
			return retry.NonRetryable(fmt.Errorf("embedding count mismatch: got %d for %d texts", len(resp.Embeddings), len(texts)))
		}

		vectors = make([][]float32, len(resp.Embeddings))
		for i, emb := range resp.Embeddings {
			vectors[i] = emb.Values
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if g.dimension == 0 && len(vectors) > 0 {
		g.dimension = len(vectors[0])
	}

	return vectors, nil
}

// Dimension returns the vector width observed on the first embedding call
func (g *Gemini) Dimension() int {
	return g.dimension
}

// Close releases the underlying client
func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
