// Package llm provides the text-generation client abstraction used by the
// bullet rewriter.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/Multitrix/cv-to-job-description/internal/retry"
)

// Client is an abstraction over chat-style single-turn generation providers
type Client interface {
	// Generate produces a completion for the user prompt under the given
	// system instruction.
	Generate(ctx context.Context, system, prompt string) (string, error)
	// Close releases any resources held by the client
	Close() error
}

// Config holds generation parameters. Near-deterministic output and a bounded
// length suit rewriting, where drift is the enemy.
type Config struct {
	Model           string
	Temperature     float32
	MaxOutputTokens int32
}

// DefaultConfig returns the default generation configuration
func DefaultConfig() Config {
	return Config{
		Model:           "gemini-2.5-flash",
		Temperature:     0.18,
		MaxOutputTokens: 160,
	}
}

// Gemini implements Client for Google Gemini
type Gemini struct {
	client   *genai.Client
	config   Config
	retryCfg retry.Config
}

// NewGemini creates a new Gemini generation client. A missing API key is a
// fatal configuration error.
func NewGemini(ctx context.Context, config Config, apiKey string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config.Model == "" {
		config = DefaultConfig()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		config: config,
		retryCfg: retry.Config{
			MaxAttempts:  4,
			InitialDelay: retry.DefaultConfig().InitialDelay,
			MaxDelay:     retry.DefaultConfig().MaxDelay,
		},
	}, nil
}

// Generate produces a completion for the prompt, retrying transient failures
func (g *Gemini) Generate(ctx context.Context, system, prompt string) (string, error) {
	model := g.client.GenerativeModel(g.config.Model)
	model.SetTemperature(g.config.Temperature)
	model.SetMaxOutputTokens(g.config.MaxOutputTokens)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	var text string
	err := retry.Do(ctx, g.retryCfg, func() error {
		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return fmt.Errorf("failed to generate content: %w", err)
		}
		text, err = extractTextFromResponse(resp)
		if err != nil {
			return retry.NonRetryable(err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return text, nil
}

// Close releases resources held by the client
func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// extractTextFromResponse extracts text from a Gemini API response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}

	return strings.Join(parts, ""), nil
}
