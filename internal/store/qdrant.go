package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Multitrix/cv-to-job-description/internal/embeddings"
	"github.com/Multitrix/cv-to-job-description/internal/retry"
)

// upsertBatchSize bounds the number of points per write to respect backend
// request-size limits.
const upsertBatchSize = 100

var collectionNamePattern = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Qdrant is a minimal REST client to a Qdrant instance, one collection per
// namespace. Collections are created lazily with cosine distance, sized from
// the first observed embedding.
type Qdrant struct {
	baseURL    string
	apiKey     string
	prefix     string
	embedder   embeddings.Embedder
	httpClient *http.Client
	retryCfg   retry.Config

	mu      sync.Mutex
	created map[string]bool
}

// QdrantConfig configures the Qdrant store client
type QdrantConfig struct {
	URL              string
	APIKey           string
	CollectionPrefix string
	Timeout          time.Duration
}

// NewQdrant creates a Qdrant-backed store. A missing URL is a fatal
// configuration error.
func NewQdrant(cfg QdrantConfig, embedder embeddings.Embedder) (*Qdrant, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant URL is required")
	}
	if cfg.CollectionPrefix == "" {
		cfg.CollectionPrefix = "cv_snippets"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &Qdrant{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		prefix:     cfg.CollectionPrefix,
		embedder:   embedder,
		httpClient: &http.Client{Timeout: timeout},
		retryCfg:   retry.DefaultConfig(),
		created:    make(map[string]bool),
	}, nil
}

// collectionName maps a user namespace to its backing collection
func (q *Qdrant) collectionName(namespace string) string {
	return q.prefix + "_" + collectionNamePattern.ReplaceAllString(namespace, "-")
}

// pointID derives the deterministic UUID Qdrant requires from a snippet id.
// The derivation is pure, so re-upserting the same snippet overwrites its
// point instead of growing the collection.
func pointID(snippetID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(snippetID)).String()
}

// Upsert embeds all item texts in one batch and writes the vectors into the
// namespace's collection, creating it on first use. Empty input is a no-op.
func (q *Qdrant) Upsert(ctx context.Context, namespace string, items []Item) error {
	if len(items) == 0 {
		return nil
	}

	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = item.Text
	}

	vectors, err := q.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed %d items: %w", len(items), err)
	}

	collection := q.collectionName(namespace)
	if err := q.ensureCollection(ctx, collection, len(vectors[0])); err != nil {
		return err
	}

	points := make([]map[string]any, len(items))
	for i, item := range items {
		payload := make(map[string]any, len(item.Metadata)+2)
		for k, v := range item.Metadata {
			payload[k] = v
		}
		payload["_id"] = item.ID
		payload[MetadataTextKey] = item.Text

		points[i] = map[string]any{
			"id":      pointID(item.ID),
			"vector":  vectors[i],
			"payload": payload,
		}
	}

	for start := 0; start < len(points); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(points) {
			end = len(points)
		}
		body := map[string]any{"points": points[start:end]}
		url := fmt.Sprintf("%s/collections/%s/points?wait=true", q.baseURL, collection)
		if err := q.call(ctx, http.MethodPut, url, body, nil); err != nil {
			return fmt.Errorf("failed to upsert points %d..%d: %w", start, end, err)
		}
	}

	return nil
}

// Query embeds the query text and searches the namespace's collection
func (q *Qdrant) Query(ctx context.Context, namespace, queryText string, topK int, filter map[string]any) ([]Match, error) {
	vectors, err := q.embedder.Embed(ctx, []string{queryText})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	if topK <= 0 {
		topK = 10
	}

	request := map[string]any{
		"vector":       vectors[0],
		"limit":        topK,
		"with_payload": true,
	}
	if len(filter) > 0 {
		must := make([]map[string]any, 0, len(filter))
		for key, value := range filter {
			must = append(must, map[string]any{
				"key":   key,
				"match": map[string]any{"value": value},
			})
		}
		request["filter"] = map[string]any{"must": must}
	}

	var response struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", q.baseURL, q.collectionName(namespace))
	if err := q.call(ctx, http.MethodPost, url, request, &response); err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	matches := make([]Match, 0, len(response.Result))
	for _, result := range response.Result {
		id, _ := result.Payload["_id"].(string)
		matches = append(matches, Match{
			ID:       id,
			Score:    result.Score,
			Metadata: result.Payload,
		})
	}

	return matches, nil
}

// ensureCollection creates the collection if this client has not seen it yet.
// Qdrant answers 409 when the collection already exists; that is success.
func (q *Qdrant) ensureCollection(ctx context.Context, collection string, dimension int) error {
	q.mu.Lock()
	if q.created[collection] {
		q.mu.Unlock()
		return nil
	}
	q.mu.Unlock()

	if dimension <= 0 {
		return fmt.Errorf("invalid embedding dimension %d", dimension)
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	url := fmt.Sprintf("%s/collections/%s", q.baseURL, collection)
	if err := q.call(ctx, http.MethodPut, url, body, nil); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", collection, err)
	}

	q.mu.Lock()
	q.created[collection] = true
	q.mu.Unlock()
	return nil
}

// call issues one JSON request with the shared retry policy. 429 and 5xx
// responses are transient; other non-2xx responses (except the 409
// already-exists answer) are permanent.
func (q *Qdrant) call(ctx context.Context, method, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return retry.NonRetryable(err)
	}

	return retry.Do(ctx, q.retryCfg, func() error {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
		if err != nil {
			return retry.NonRetryable(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if q.apiKey != "" {
			req.Header.Set("api-key", q.apiKey)
		}

		resp, err := q.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("qdrant transient failure: %s", resp.Status)
		case resp.StatusCode == http.StatusConflict:
			return nil
		case resp.StatusCode >= 300:
			payload, _ := io.ReadAll(resp.Body)
			return retry.NonRetryable(fmt.Errorf("qdrant request failed: %s: %s", resp.Status, strings.TrimSpace(string(payload))))
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return retry.NonRetryable(fmt.Errorf("failed to decode qdrant response: %w", err))
		}
		return nil
	})
}
