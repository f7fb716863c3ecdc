package brain

import (
	"github.com/w-h-a/brain/internal/service/dedup"
	"go.uber.org/zap"
)

type DedupConfig = dedup.Config

func DefaultDedupConfig() DedupConfig {
	return dedup.DefaultConfig()
}

type Option func(*Options)

type Options struct {
	ConfidenceThreshold int
	Dedup               DedupConfig
	Logger              *zap.Logger
}

func WithConfidenceThreshold(threshold int) Option {
	return func(o *Options) {
		o.ConfidenceThreshold = threshold
	}
}

// WithDedup sets the similarity threshold, top-k, per-call timeout and text
// separator used when resolving notes against existing records.
func WithDedup(config DedupConfig) Option {
	return func(o *Options) {
		o.Dedup = config
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		ConfidenceThreshold: 60,
		Dedup:               dedup.DefaultConfig(),
		Logger:              zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	return options
}
