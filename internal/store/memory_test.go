package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Multitrix/cv-to-job-description/internal/embeddings"
)

func newTestMemory() *Memory {
	return NewMemory(embeddings.NewHashing(128))
}

func TestMemoryUpsert_EmptyInputIsNoOp(t *testing.T) {
	m := newTestMemory()

	require.NoError(t, m.Upsert(context.Background(), "u1", nil))
	assert.Equal(t, 0, m.Count("u1"))
}

func TestMemoryUpsert_Idempotent(t *testing.T) {
	m := newTestMemory()
	items := []Item{
		{ID: "exp::e1::0", Text: "Built Go services", Metadata: map[string]any{"type": "experience"}},
		{ID: "skill::Go", Text: "Go", Metadata: map[string]any{"type": "skill"}},
	}

	require.NoError(t, m.Upsert(context.Background(), "u1", items))
	require.NoError(t, m.Upsert(context.Background(), "u1", items))

	assert.Equal(t, 2, m.Count("u1"))
}

// countingEmbedder counts how many texts get embedded
type countingEmbedder struct {
	*embeddings.Hashing
	embedded int
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.embedded += len(texts)
	return c.Hashing.Embed(ctx, texts)
}

func TestMemoryUpsert_UnchangedTextSkipsReembedding(t *testing.T) {
	embedder := &countingEmbedder{Hashing: embeddings.NewHashing(128)}
	m := NewMemory(embedder)
	items := []Item{
		{ID: "exp::e1::0", Text: "Built Go services"},
		{ID: "exp::e1::1", Text: "Ran incident response"},
	}

	require.NoError(t, m.Upsert(context.Background(), "u1", items))
	assert.Equal(t, 2, embedder.embedded)

	require.NoError(t, m.Upsert(context.Background(), "u1", items))
	assert.Equal(t, 2, embedder.embedded, "unchanged snippets are not re-embedded")

	items[1].Text = "Led incident response"
	require.NoError(t, m.Upsert(context.Background(), "u1", items))
	assert.Equal(t, 3, embedder.embedded, "only the changed snippet is re-embedded")
}

func TestMemoryQuery_RanksByRelevance(t *testing.T) {
	m := newTestMemory()
	require.NoError(t, m.Upsert(context.Background(), "u1", []Item{
		{ID: "a", Text: "built python backend services"},
		{ID: "b", Text: "watercolor landscape painting"},
	}))

	matches, err := m.Query(context.Background(), "u1", "python backend engineer", 10, nil)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "a", matches[0].ID)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
	assert.Equal(t, "built python backend services", matches[0].Metadata[MetadataTextKey])
}

func TestMemoryQuery_NamespaceIsolation(t *testing.T) {
	m := newTestMemory()
	require.NoError(t, m.Upsert(context.Background(), "u1", []Item{{ID: "a", Text: "go services"}}))

	matches, err := m.Query(context.Background(), "u2", "go services", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMemoryQuery_MetadataFilter(t *testing.T) {
	m := newTestMemory()
	require.NoError(t, m.Upsert(context.Background(), "u1", []Item{
		{ID: "a", Text: "go services", Metadata: map[string]any{"type": "experience"}},
		{ID: "b", Text: "go", Metadata: map[string]any{"type": "skill"}},
	}))

	matches, err := m.Query(context.Background(), "u1", "go", 10, map[string]any{"type": "skill"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b", matches[0].ID)
}

func TestMemoryQuery_TopKLimit(t *testing.T) {
	m := newTestMemory()
	require.NoError(t, m.Upsert(context.Background(), "u1", []Item{
		{ID: "a", Text: "go services"},
		{ID: "b", Text: "go tooling"},
		{ID: "c", Text: "go infra"},
	}))

	matches, err := m.Query(context.Background(), "u1", "go", 2, nil)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}
