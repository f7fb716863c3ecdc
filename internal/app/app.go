package app

import (
	"errors"
	"fmt"

	"github.com/w-h-a/brain"
	"github.com/w-h-a/brain/classifier"
	"github.com/w-h-a/brain/embedder"
	"github.com/w-h-a/brain/embedder/cache"
	googleembedder "github.com/w-h-a/brain/embedder/google"
	"github.com/w-h-a/brain/embedder/ollama"
	openaiembedder "github.com/w-h-a/brain/embedder/openai"
	"github.com/w-h-a/brain/generator"
	"github.com/w-h-a/brain/generator/anthropic"
	googlegenerator "github.com/w-h-a/brain/generator/google"
	openaigenerator "github.com/w-h-a/brain/generator/openai"
	"github.com/w-h-a/brain/index"
	memoryindex "github.com/w-h-a/brain/index/memory"
	"github.com/w-h-a/brain/index/milvus"
	"github.com/w-h-a/brain/index/neo4j"
	postgresindex "github.com/w-h-a/brain/index/postgres"
	"github.com/w-h-a/brain/index/qdrant"
	"github.com/w-h-a/brain/internal/config"
	"github.com/w-h-a/brain/store"
	memorystore "github.com/w-h-a/brain/store/memory"
	postgresstore "github.com/w-h-a/brain/store/postgres"
	redisstore "github.com/w-h-a/brain/store/redis"
	"github.com/w-h-a/brain/store/sqlite"
	"go.uber.org/zap"
)

const classifierSystem = "You sort short personal notes into a fixed set of categories. Reply with a single JSON object and nothing else."

// Build assembles the pipeline described by cfg. Missing credentials and
// unreachable stores are reported as errors rather than panics.
func Build(cfg *config.Config, logger *zap.Logger) (*brain.Brain, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cls, err := Classifier(cfg, logger)
	if err != nil {
		return nil, err
	}

	emb, err := Embedder(cfg, logger)
	if err != nil {
		return nil, err
	}

	s, err := Store(cfg)
	if err != nil {
		return nil, err
	}

	idx, err := Index(cfg)
	if err != nil {
		if closer, ok := s.(interface{ Close() error }); ok {
			closer.Close()
		}
		return nil, err
	}

	b := brain.New(
		cls,
		emb,
		s,
		idx,
		brain.WithConfidenceThreshold(cfg.Pipeline.ConfidenceThreshold),
		brain.WithDedup(brain.DedupConfig{
			SimilarityThreshold: cfg.Pipeline.SimilarityThreshold,
			TopK:                cfg.Pipeline.TopK,
			CallTimeout:         cfg.CallTimeout(),
		}),
		brain.WithLogger(logger),
	)

	return b, nil
}

func Classifier(cfg *config.Config, logger *zap.Logger) (*classifier.Gateway, error) {
	backends := make([]classifier.Backend, 0, len(cfg.Classifier.Backends))

	for _, name := range cfg.Classifier.Backends {
		provider, ok := cfg.Provider(name)
		if !ok {
			return nil, fmt.Errorf("unknown classifier backend '%s'", name)
		}

		if len(provider.ApiKey) == 0 {
			return nil, fmt.Errorf("classifier backend '%s' requires providers.%s.api_key", name, name)
		}

		opts := []generator.Option{
			generator.WithApiKey(provider.ApiKey),
			generator.WithModel(provider.Model),
			generator.WithLocation(provider.Location),
			generator.WithSystem(classifierSystem),
			generator.WithJSONOutput(true),
		}

		gen, err := construct(name, func() generator.Generator {
			switch name {
			case "anthropic":
				return anthropic.NewGenerator(opts...)
			case "openai":
				return openaigenerator.NewGenerator(opts...)
			default:
				return googlegenerator.NewGenerator(opts...)
			}
		})
		if err != nil {
			return nil, err
		}

		backends = append(backends, classifier.Backend{Name: name, Generator: gen})
	}

	if len(backends) == 0 {
		return nil, errors.New("classifier.backends must name at least one backend")
	}

	return classifier.New(
		backends,
		classifier.WithTimeout(cfg.ClassifierTimeout()),
		classifier.WithLogger(logger.Named("classifier")),
	), nil
}

func Embedder(cfg *config.Config, logger *zap.Logger) (*embedder.Gateway, error) {
	backends := make([]embedder.Backend, 0, len(cfg.Embedder.Backends))

	for _, name := range cfg.Embedder.Backends {
		provider, ok := cfg.Provider(name)
		if !ok {
			return nil, fmt.Errorf("unknown embedder backend '%s'", name)
		}

		if name != "ollama" && len(provider.ApiKey) == 0 {
			return nil, fmt.Errorf("embedder backend '%s' requires providers.%s.api_key", name, name)
		}

		opts := []embedder.Option{
			embedder.WithApiKey(provider.ApiKey),
			embedder.WithModel(provider.EmbeddingModel),
		}

		e, err := construct(name, func() embedder.Embedder {
			switch name {
			case "openai":
				return openaiembedder.NewEmbedder(opts...)
			case "google":
				return googleembedder.NewEmbedder(opts...)
			default:
				return ollama.NewEmbedder(append(opts, embedder.WithLocation(provider.Location))...)
			}
		})
		if err != nil {
			return nil, err
		}

		if len(cfg.Embedder.CacheURL) > 0 {
			e, err = construct("embedding cache", func() embedder.Embedder {
				return cache.NewEmbedder(
					e,
					cache.WithLocation(cfg.Embedder.CacheURL),
					cache.WithNamespace(name+":"+provider.EmbeddingModel),
					cache.WithTTL(cfg.EmbeddingCacheTTL()),
					cache.WithLogger(logger.Named("embedding_cache")),
				)
			})
			if err != nil {
				return nil, err
			}
		}

		backends = append(backends, embedder.Backend{
			Name:       name,
			Embedder:   e,
			Dimensions: provider.Dimensions,
		})
	}

	if len(backends) == 0 {
		return nil, errors.New("embedder.backends must name at least one backend")
	}

	return embedder.NewGateway(
		backends,
		embedder.WithTimeout(cfg.EmbedderTimeout()),
		embedder.WithLogger(logger.Named("embedder")),
	), nil
}

func Store(cfg *config.Config) (store.Store, error) {
	driver := cfg.Store.Driver

	if driver != "memory" && len(cfg.Store.Location) == 0 {
		return nil, fmt.Errorf("store driver '%s' requires store.location", driver)
	}

	opts := []store.Option{
		store.WithLocation(cfg.Store.Location),
	}

	return construct(driver, func() store.Store {
		switch driver {
		case "memory":
			return memorystore.NewStore(opts...)
		case "sqlite":
			return sqlite.NewStore(opts...)
		case "postgres":
			return postgresstore.NewStore(opts...)
		case "redis":
			return redisstore.NewStore(opts...)
		}
		panic(fmt.Sprintf("unknown store driver '%s'", driver))
	})
}

func Index(cfg *config.Config) (index.Index, error) {
	driver := cfg.Index.Driver

	if driver != "memory" && len(cfg.Index.Location) == 0 {
		return nil, fmt.Errorf("index driver '%s' requires index.location", driver)
	}

	opts := []index.Option{
		index.WithLocation(cfg.Index.Location),
		index.WithApiKey(cfg.Index.ApiKey),
		index.WithCollection(cfg.Index.Collection),
		index.WithVectorSize(cfg.Index.VectorSize),
	}

	return construct(driver, func() index.Index {
		switch driver {
		case "memory":
			return memoryindex.NewIndex(opts...)
		case "postgres":
			return postgresindex.NewIndex(opts...)
		case "qdrant":
			return qdrant.NewIndex(opts...)
		case "milvus":
			return milvus.NewIndex(opts...)
		case "neo4j":
			return neo4j.NewIndex(opts...)
		}
		panic(fmt.Sprintf("unknown index driver '%s'", driver))
	})
}

// construct turns a constructor panic into an error.
func construct[T any](name string, fn func() T) (t T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: %v", name, r)
		}
	}()
	return fn(), nil
}
