package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Embedder   EmbedderConfig   `mapstructure:"embedder"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Store      StoreConfig      `mapstructure:"store"`
	Index      IndexConfig      `mapstructure:"index"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type PipelineConfig struct {
	ConfidenceThreshold int     `mapstructure:"confidence_threshold"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	TopK                int     `mapstructure:"top_k"`
	CallTimeoutSec      int     `mapstructure:"call_timeout_sec"`
}

type ClassifierConfig struct {
	Backends   []string `mapstructure:"backends"`
	TimeoutSec int      `mapstructure:"timeout_sec"`
}

type EmbedderConfig struct {
	Backends    []string `mapstructure:"backends"`
	TimeoutSec  int      `mapstructure:"timeout_sec"`
	CacheURL    string   `mapstructure:"cache_url"`
	CacheTTLSec int      `mapstructure:"cache_ttl_sec"`
}

type ProvidersConfig struct {
	Anthropic ProviderConfig `mapstructure:"anthropic"`
	OpenAI    ProviderConfig `mapstructure:"openai"`
	Google    ProviderConfig `mapstructure:"google"`
	Ollama    ProviderConfig `mapstructure:"ollama"`
}

type ProviderConfig struct {
	ApiKey         string `mapstructure:"api_key"`
	Location       string `mapstructure:"location"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	// Dimensions is the expected embedding length; zero accepts any.
	Dimensions int `mapstructure:"dimensions"`
}

type StoreConfig struct {
	Driver   string `mapstructure:"driver"`
	Location string `mapstructure:"location"`
}

type IndexConfig struct {
	Driver     string `mapstructure:"driver"`
	Location   string `mapstructure:"location"`
	ApiKey     string `mapstructure:"api_key"`
	Collection string `mapstructure:"collection"`
	VectorSize int    `mapstructure:"vector_size"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

var (
	storeDrivers      = []string{"memory", "sqlite", "postgres", "redis"}
	indexDrivers      = []string{"memory", "postgres", "qdrant", "milvus", "neo4j"}
	classifierOptions = []string{"anthropic", "openai", "google"}
	embedderOptions   = []string{"openai", "google", "ollama"}
)

// Load reads brain.yaml (or the file at path when given) and BRAIN_* env vars
// on top of the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	if len(path) > 0 {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("brain")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/brain")
	}

	v.SetEnvPrefix("BRAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := bindProviderEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pipeline.confidence_threshold", 60)
	v.SetDefault("pipeline.similarity_threshold", 0.85)
	v.SetDefault("pipeline.top_k", 5)
	v.SetDefault("pipeline.call_timeout_sec", 10)

	v.SetDefault("classifier.backends", []string{"anthropic", "openai"})
	v.SetDefault("classifier.timeout_sec", 20)

	v.SetDefault("embedder.backends", []string{"openai"})
	v.SetDefault("embedder.timeout_sec", 10)
	v.SetDefault("embedder.cache_url", "")
	v.SetDefault("embedder.cache_ttl_sec", 86400)

	v.SetDefault("providers.anthropic.api_key", "")
	v.SetDefault("providers.anthropic.model", "claude-3-haiku-20240307")
	v.SetDefault("providers.openai.api_key", "")
	v.SetDefault("providers.openai.model", "gpt-4o-mini")
	v.SetDefault("providers.openai.embedding_model", "text-embedding-3-small")
	v.SetDefault("providers.openai.dimensions", 1536)
	v.SetDefault("providers.google.api_key", "")
	v.SetDefault("providers.google.model", "gemini-1.5-flash")
	v.SetDefault("providers.google.embedding_model", "text-embedding-004")
	v.SetDefault("providers.google.dimensions", 768)
	v.SetDefault("providers.ollama.location", "http://localhost:11434")
	v.SetDefault("providers.ollama.embedding_model", "nomic-embed-text")
	v.SetDefault("providers.ollama.dimensions", 768)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.location", "./brain.db")

	v.SetDefault("index.driver", "memory")
	v.SetDefault("index.location", "")
	v.SetDefault("index.api_key", "")
	v.SetDefault("index.collection", "brain_notes")
	v.SetDefault("index.vector_size", 1536)

	v.SetDefault("server.address", ":8080")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_path", "stdout")
}

// bindProviderEnv also accepts the vendors' conventional variable names.
func bindProviderEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"providers.anthropic.api_key": {"BRAIN_PROVIDERS_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"},
		"providers.openai.api_key":    {"BRAIN_PROVIDERS_OPENAI_API_KEY", "OPENAI_API_KEY"},
		"providers.google.api_key":    {"BRAIN_PROVIDERS_GOOGLE_API_KEY", "GOOGLE_API_KEY"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Pipeline.ConfidenceThreshold < 0 || c.Pipeline.ConfidenceThreshold > 100 {
		return fmt.Errorf("invalid pipeline.confidence_threshold '%d': must be between 0 and 100", c.Pipeline.ConfidenceThreshold)
	}
	if c.Pipeline.SimilarityThreshold <= 0 || c.Pipeline.SimilarityThreshold > 1 {
		return fmt.Errorf("invalid pipeline.similarity_threshold '%f': must be in (0, 1]", c.Pipeline.SimilarityThreshold)
	}
	if c.Pipeline.TopK < 1 {
		return fmt.Errorf("invalid pipeline.top_k '%d': must be >= 1", c.Pipeline.TopK)
	}
	if len(c.Classifier.Backends) == 0 {
		return errors.New("classifier.backends must name at least one backend")
	}
	for _, name := range c.Classifier.Backends {
		if !contains(classifierOptions, name) {
			return fmt.Errorf("unknown classifier backend '%s'", name)
		}
	}
	for _, name := range c.Embedder.Backends {
		if !contains(embedderOptions, name) {
			return fmt.Errorf("unknown embedder backend '%s'", name)
		}
	}
	if !contains(storeDrivers, c.Store.Driver) {
		return fmt.Errorf("unknown store.driver '%s'", c.Store.Driver)
	}
	if !contains(indexDrivers, c.Index.Driver) {
		return fmt.Errorf("unknown index.driver '%s'", c.Index.Driver)
	}
	return nil
}

func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Pipeline.CallTimeoutSec) * time.Second
}

func (c *Config) ClassifierTimeout() time.Duration {
	return time.Duration(c.Classifier.TimeoutSec) * time.Second
}

func (c *Config) EmbedderTimeout() time.Duration {
	return time.Duration(c.Embedder.TimeoutSec) * time.Second
}

func (c *Config) EmbeddingCacheTTL() time.Duration {
	return time.Duration(c.Embedder.CacheTTLSec) * time.Second
}

// Provider returns the settings of the named provider.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	switch name {
	case "anthropic":
		return c.Providers.Anthropic, true
	case "openai":
		return c.Providers.OpenAI, true
	case "google":
		return c.Providers.Google, true
	case "ollama":
		return c.Providers.Ollama, true
	}
	return ProviderConfig{}, false
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
