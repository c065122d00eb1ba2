// Package rewrite rephrases single resume bullets toward job-description
// language, then validates each result for semantic fidelity and absence of
// fabricated technologies before accepting it.
package rewrite

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Multitrix/cv-to-job-description/internal/embeddings"
	"github.com/Multitrix/cv-to-job-description/internal/llm"
	"github.com/Multitrix/cv-to-job-description/internal/rendering"
)

// Intensity controls how aggressively a bullet is restyled
type Intensity string

// Intensity tiers, decided per bullet by the pipeline
const (
	IntensityLight  Intensity = "light"
	IntensityMedium Intensity = "medium"
	IntensityHeavy  Intensity = "heavy"
)

// Outcome classifies how a bullet's final text was produced. Backend failure
// and gate rejection both fall back to the original, but they are different
// failure kinds and are observed differently.
type Outcome string

// Rewrite outcomes
const (
	OutcomeAccepted            Outcome = "accepted"
	OutcomeBackendFailure      Outcome = "backend_failure"
	OutcomeFidelityRejected    Outcome = "fidelity_rejected"
	OutcomeFabricationRejected Outcome = "fabrication_rejected"
)

// Result is the final text for one bullet plus how it was obtained. Text is
// LaTeX-escaped on every path, so output formatting is uniform regardless of
// which path executed.
type Result struct {
	Text    string
	Outcome Outcome
}

// APICallError represents a generation backend failure after retries
type APICallError struct {
	Message string
	Cause   error
}

func (e *APICallError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("rewrite backend error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("rewrite backend error: %s", e.Message)
}

func (e *APICallError) Unwrap() error {
	return e.Cause
}

// Config holds the rewriter's tunable threshold
type Config struct {
	// FidelityThreshold is the minimum cosine similarity between the original
	// and rewritten text. An empirical constant with no documented
	// derivation; kept configurable.
	FidelityThreshold float64
}

// DefaultConfig returns the standard fidelity threshold
func DefaultConfig() Config {
	return Config{FidelityThreshold: 0.78}
}

// Rewriter rewrites bullets through a two-gate accept/reject state machine:
// generate -> fidelity check -> fabrication check -> accept or fall back to
// the original.
type Rewriter struct {
	llm      llm.Client
	embedder embeddings.Embedder
	config   Config
	log      *zap.Logger
}

// New creates a Rewriter over the given generation and embedding backends
func New(client llm.Client, embedder embeddings.Embedder, config Config, log *zap.Logger) *Rewriter {
	if config.FidelityThreshold <= 0 {
		config = DefaultConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Rewriter{llm: client, embedder: embedder, config: config, log: log}
}

// Rewrite rephrases one bullet toward the job description under the given
// intensity. Any fallback path returns the escaped original. Context
// cancellation is not a fallback: it propagates so the caller can abort the
// whole run.
func (r *Rewriter) Rewrite(ctx context.Context, original, jobText string, candidateSkills []string, intensity Intensity) (Result, error) {
	prompt := buildPrompt(original, jobText, candidateSkills, intensity)

	generated, err := r.llm.Generate(ctx, systemPrompt, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		r.log.Warn("rewrite backend failed, keeping original",
			zap.Error(err),
			zap.String("intensity", string(intensity)))
		return r.fallback(OutcomeBackendFailure, original), nil
	}

	rewritten := collapseToSingleLine(generated)

	similarity, err := r.similarity(ctx, original, rewritten)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		// Without a similarity signal the fidelity gate cannot pass
		r.log.Warn("fidelity check unavailable, keeping original", zap.Error(err))
		return r.fallback(OutcomeBackendFailure, original), nil
	}

	if similarity < r.config.FidelityThreshold {
		r.log.Warn("rewrite rejected by fidelity gate",
			zap.Float64("similarity", similarity),
			zap.Float64("threshold", r.config.FidelityThreshold))
		return r.fallback(OutcomeFidelityRejected, original), nil
	}

	if !noNewTechnologies(original, rewritten, candidateSkills) {
		r.log.Warn("rewrite rejected by fabrication gate",
			zap.Strings("rewritten_technologies", ExtractTechnologies(rewritten)))
		return r.fallback(OutcomeFabricationRejected, original), nil
	}

	return Result{Text: rendering.EscapeLaTeX(rewritten), Outcome: OutcomeAccepted}, nil
}

// similarity embeds both texts in one batch and returns their cosine similarity
func (r *Rewriter) similarity(ctx context.Context, original, rewritten string) (float64, error) {
	vectors, err := r.embedder.Embed(ctx, []string{original, rewritten})
	if err != nil {
		return 0, &APICallError{Message: "failed to embed texts for fidelity check", Cause: err}
	}
	if len(vectors) != 2 {
		return 0, &APICallError{Message: fmt.Sprintf("expected 2 vectors, got %d", len(vectors))}
	}
	return embeddings.Cosine(vectors[0], vectors[1]), nil
}

// fallback escapes the original identically to the accept path
func (r *Rewriter) fallback(outcome Outcome, original string) Result {
	return Result{Text: rendering.EscapeLaTeX(original), Outcome: outcome}
}

// collapseToSingleLine normalizes internal newlines to spaces and trims
func collapseToSingleLine(text string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}
