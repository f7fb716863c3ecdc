package embedder

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Option func(*Options)

type Options struct {
	ApiKey   string
	Model    string
	Location string
	Context  context.Context
}

func WithApiKey(apiKey string) Option {
	return func(o *Options) {
		o.ApiKey = apiKey
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// WithLocation sets the base URL of self-hosted backends.
func WithLocation(location string) Option {
	return func(o *Options) {
		o.Location = location
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		Context: context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

type GatewayOption func(*GatewayOptions)

type GatewayOptions struct {
	Timeout time.Duration
	Logger  *zap.Logger
}

func WithTimeout(timeout time.Duration) GatewayOption {
	return func(o *GatewayOptions) {
		o.Timeout = timeout
	}
}

func WithLogger(logger *zap.Logger) GatewayOption {
	return func(o *GatewayOptions) {
		o.Logger = logger
	}
}

func NewGatewayOptions(opts ...GatewayOption) GatewayOptions {
	options := GatewayOptions{
		Timeout: 10 * time.Second,
		Logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	return options
}
