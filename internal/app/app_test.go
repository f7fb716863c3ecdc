package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/w-h-a/brain/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	path := filepath.Join(t.TempDir(), "brain.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	cfg.Providers.Anthropic.ApiKey = "sk-ant-test"
	cfg.Providers.OpenAI.ApiKey = "sk-test"
	cfg.Store.Driver = "memory"
	cfg.Index.Driver = "memory"

	return cfg
}

func TestBuild_MemoryDrivers(t *testing.T) {
	cfg := testConfig(t)

	b, err := Build(cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.NoError(t, b.Close())
}

func TestBuild_SqliteStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Driver = "sqlite"
	cfg.Store.Location = filepath.Join(t.TempDir(), "brain.db")

	b, err := Build(cfg, nil)
	require.NoError(t, err)
	assert.NoError(t, b.Close())
}

func TestClassifier_Backends(t *testing.T) {
	cfg := testConfig(t)
	cfg.Classifier.Backends = []string{"openai", "anthropic"}

	g, err := Classifier(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"openai", "anthropic"}, g.Backends())
}

func TestClassifier_MissingApiKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Providers.Anthropic.ApiKey = ""

	_, err := Build(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "providers.anthropic.api_key")
}

func TestEmbedder_OllamaNeedsNoKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embedder.Backends = []string{"ollama"}

	g, err := Embedder(cfg, nil)
	require.NoError(t, err)

	backends := g.Backends()
	require.Len(t, backends, 1)
	assert.Equal(t, "ollama", backends[0])
}

func TestEmbedder_InvalidCacheLocation(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embedder.CacheURL = "not a url"

	_, err := Embedder(cfg, nil)
	assert.Error(t, err)
}

func TestStoreAndIndex_RequireLocation(t *testing.T) {
	cfg := testConfig(t)

	cfg.Store.Driver = "postgres"
	_, err := Store(cfg)
	assert.ErrorContains(t, err, "store.location")

	cfg.Index.Driver = "qdrant"
	cfg.Index.Location = ""
	_, err = Index(cfg)
	assert.ErrorContains(t, err, "index.location")
}

func TestConstruct_RecoversPanic(t *testing.T) {
	_, err := construct("broken", func() int { panic("boom") })
	assert.EqualError(t, err, "broken: boom")

	v, err := construct("fine", func() int { return 7 })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}
