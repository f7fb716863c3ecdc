package ingest

import "go.uber.org/zap"

type Option func(*Options)

type Options struct {
	ConfidenceThreshold int
	Logger              *zap.Logger
}

func WithConfidenceThreshold(threshold int) Option {
	return func(o *Options) {
		o.ConfidenceThreshold = threshold
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
