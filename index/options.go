package index

import "context"

type Option func(*Options)

type Options struct {
	Location   string
	ApiKey     string
	Collection string
	VectorSize int
	Context    context.Context
}

func WithLocation(loc string) Option {
	return func(o *Options) {
		o.Location = loc
	}
}

func WithApiKey(key string) Option {
	return func(o *Options) {
		o.ApiKey = key
	}
}

// WithCollection names the collection, table or vector index that holds entries.
func WithCollection(collection string) Option {
	return func(o *Options) {
		o.Collection = collection
	}
}

func WithVectorSize(size int) Option {
	return func(o *Options) {
		o.VectorSize = size
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		Collection: "brain_notes",
		Context:    context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

type QueryOption func(*QueryOptions)

type QueryOptions struct {
	TopK    int
	Backend string
}

func WithTopK(k int) QueryOption {
	return func(o *QueryOptions) {
		o.TopK = k
	}
}

// WithBackend restricts a query to vectors produced by the named embedding backend.
func WithBackend(backend string) QueryOption {
	return func(o *QueryOptions) {
		o.Backend = backend
	}
}

func NewQueryOptions(opts ...QueryOption) QueryOptions {
	options := QueryOptions{
		TopK: 5,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
