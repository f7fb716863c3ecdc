package cache

import (
	"time"

	"go.uber.org/zap"
)

type Option func(*Options)

type Options struct {
	// Location is a redis URL, e.g. redis://localhost:6379/0.
	Location  string
	Namespace string
	TTL       time.Duration
	Logger    *zap.Logger
}

func WithLocation(location string) Option {
	return func(o *Options) {
		o.Location = location
	}
}

// WithNamespace keeps vectors of different backends apart.
func WithNamespace(namespace string) Option {
	return func(o *Options) {
		o.Namespace = namespace
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(o *Options) {
		o.TTL = ttl
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		TTL:    24 * time.Hour,
		Logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	return options
}
