package generator

import "context"

type Option func(*Options)

type Options struct {
	ApiKey      string
	Model       string
	Location    string
	System      string
	MaxTokens   int
	Temperature float32
	JSONOutput  bool
	Context     context.Context
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

// WithLocation points the client at a compatible endpoint instead of the
// vendor default. Ignored by providers without a configurable base URL.
func WithLocation(location string) Option {
	return func(o *Options) {
		o.Location = location
	}
}

// WithSystem sets the system instruction sent ahead of every prompt.
func WithSystem(system string) Option {
	return func(o *Options) {
		o.System = system
	}
}

func WithMaxTokens(maxTokens int) Option {
	return func(o *Options) {
		o.MaxTokens = maxTokens
	}
}

func WithTemperature(temperature float32) Option {
	return func(o *Options) {
		o.Temperature = temperature
	}
}

// WithJSONOutput asks the provider for a bare JSON object where it supports it.
func WithJSONOutput(enabled bool) Option {
	return func(o *Options) {
		o.JSONOutput = enabled
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		MaxTokens:   1000,
		Temperature: 0.1,
		Context:     context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
