package classifier

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Option func(*Options)

type Options struct {
	Timeout time.Duration
	Prompt  string
	Logger  *zap.Logger
	Context context.Context
}

func WithTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.Timeout = timeout
	}
}

// WithPrompt replaces the classification prompt. The template must contain {message}.
func WithPrompt(prompt string) Option {
	return func(o *Options) {
		o.Prompt = prompt
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		Timeout: 20 * time.Second,
		Prompt:  defaultPrompt,
		Logger:  zap.NewNop(),
		Context: context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	return options
}
