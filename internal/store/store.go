// Package store provides the per-user namespaced similarity index over
// embedded profile snippets.
package store

import "context"

// MetadataTextKey is the payload key under which the snippet's original text
// is kept so retrieval can reuse it without a second lookup.
const MetadataTextKey = "_text"

// Item is one snippet to index: a deterministic identifier, the raw text to
// embed, and attached metadata.
type Item struct {
	ID       string
	Text     string
	Metadata map[string]any
}

// Match is one nearest neighbor returned by a query
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// Store is a namespaced nearest-neighbor index. Namespaces partition users;
// no cross-namespace retrieval is possible. Upsert is idempotent under
// identical (id, text): re-ingesting an unchanged profile overwrites instead
// of duplicating.
type Store interface {
	Upsert(ctx context.Context, namespace string, items []Item) error
	Query(ctx context.Context, namespace, queryText string, topK int, filter map[string]any) ([]Match, error)
}

// matchesFilter reports whether metadata satisfies an exact-equality filter
func matchesFilter(metadata, filter map[string]any) bool {
	for key, want := range filter {
		if metadata[key] != want {
			return false
		}
	}
	return true
}
