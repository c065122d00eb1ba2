package jobdesc

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKeywords_SplitsOnCommasAndNewlines(t *testing.T) {
	keywords := DeriveKeywords("Python backend services, SQL\nKubernetes experience")

	assert.Equal(t, []string{"Python backend services", "SQL", "Kubernetes experience"}, keywords)
}

func TestDeriveKeywords_DropsShortTokens(t *testing.T) {
	keywords := DeriveKeywords("Go, ML, a, CI, Python")

	// tokens of length <= 2 are dropped, even meaningful ones
	assert.Equal(t, []string{"Python"}, keywords)
}

func TestDeriveKeywords_CappedAtFifty(t *testing.T) {
	var parts []string
	for i := 0; i < 80; i++ {
		parts = append(parts, fmt.Sprintf("keyword%02d", i))
	}

	keywords := DeriveKeywords(strings.Join(parts, ","))

	require.Len(t, keywords, MaxKeywords)
	assert.Equal(t, "keyword00", keywords[0], "order of first appearance preserved")
	assert.Equal(t, "keyword49", keywords[49])
}

func TestDeriveKeywords_Empty(t *testing.T) {
	assert.Empty(t, DeriveKeywords(""))
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.txt")
	require.NoError(t, os.WriteFile(path, []byte("Go backend engineer\n"), 0o600))

	text, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Go backend engineer", text)
}

func TestFromFile_Missing(t *testing.T) {
	_, err := FromFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestFromURL_ExtractsVisibleText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><head><style>.x{}</style></head><body>
			<nav>Home | Jobs</nav>
			<script>track()</script>
			<h1>Backend Engineer</h1>
			<p>Go, PostgreSQL, Kafka</p>
		</body></html>`))
	}))
	defer server.Close()

	text, err := FromURL(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Contains(t, text, "Backend Engineer")
	assert.Contains(t, text, "Go, PostgreSQL, Kafka")
	assert.NotContains(t, text, "track()")
	assert.NotContains(t, text, "Home | Jobs")
}

func TestFromURL_InvalidURL(t *testing.T) {
	_, err := FromURL(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestFromURL_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := FromURL(context.Background(), server.URL)
	assert.Error(t, err)
}
