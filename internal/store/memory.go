package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Multitrix/cv-to-job-description/internal/embeddings"
)

type memoryEntry struct {
	fingerprint string
	vector      []float32
	metadata    map[string]any
}

// Memory is an in-process Store implementation with the same observable
// behavior as the Qdrant backend. It backs tests and credential-free runs.
// Safe for concurrent use.
type Memory struct {
	embedder embeddings.Embedder

	mu         sync.RWMutex
	namespaces map[string]map[string]memoryEntry
}

// NewMemory creates an empty in-memory store over the given embedder
func NewMemory(embedder embeddings.Embedder) *Memory {
	return &Memory{
		embedder:   embedder,
		namespaces: make(map[string]map[string]memoryEntry),
	}
}

// Upsert embeds item texts in one batch and writes them keyed by id.
// Existing ids are overwritten; ids whose text fingerprint is unchanged skip
// re-embedding and keep their stored vector. Empty input is a no-op.
func (m *Memory) Upsert(ctx context.Context, namespace string, items []Item) error {
	if len(items) == 0 {
		return nil
	}

	fingerprints := make([]string, len(items))
	for i, item := range items {
		fingerprints[i] = embeddings.Fingerprint(item.Text)
	}

	// Embed only the items whose text actually changed
	m.mu.RLock()
	index := m.namespaces[namespace]
	var toEmbed []int
	for i, item := range items {
		if entry, ok := index[item.ID]; !ok || entry.fingerprint != fingerprints[i] {
			toEmbed = append(toEmbed, i)
		}
	}
	m.mu.RUnlock()

	vectors := make(map[int][]float32, len(toEmbed))
	if len(toEmbed) > 0 {
		texts := make([]string, len(toEmbed))
		for j, i := range toEmbed {
			texts[j] = items[i].Text
		}
		embedded, err := m.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed %d items: %w", len(texts), err)
		}
		for j, i := range toEmbed {
			vectors[i] = embedded[j]
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	index, ok := m.namespaces[namespace]
	if !ok {
		index = make(map[string]memoryEntry)
		m.namespaces[namespace] = index
	}

	for i, item := range items {
		vector, ok := vectors[i]
		if !ok {
			vector = index[item.ID].vector
		}
		metadata := make(map[string]any, len(item.Metadata)+1)
		for k, v := range item.Metadata {
			metadata[k] = v
		}
		metadata[MetadataTextKey] = item.Text
		index[item.ID] = memoryEntry{fingerprint: fingerprints[i], vector: vector, metadata: metadata}
	}

	return nil
}

// Query embeds the query text and returns the topK nearest snippets in the
// namespace by cosine similarity, optionally restricted by an exact-equality
// metadata filter.
func (m *Memory) Query(ctx context.Context, namespace, queryText string, topK int, filter map[string]any) ([]Match, error) {
	vectors, err := m.embedder.Embed(ctx, []string{queryText})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	queryVec := vectors[0]

	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]Match, 0)
	for id, entry := range m.namespaces[namespace] {
		if !matchesFilter(entry.metadata, filter) {
			continue
		}
		matches = append(matches, Match{
			ID:       id,
			Score:    embeddings.Cosine(queryVec, entry.vector),
			Metadata: entry.metadata,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})

	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}

	return matches, nil
}

// Count returns the number of snippets stored in a namespace
func (m *Memory) Count(namespace string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.namespaces[namespace])
}
