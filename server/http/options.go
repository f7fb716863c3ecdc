package http

import (
	"context"
	"net/http"

	"github.com/w-h-a/brain/server"
)

const defaultMaxNoteBytes int64 = 64 << 10

type Middleware func(h http.Handler) http.Handler

type middlewareKey struct{}

type maxNoteBytesKey struct{}

// WithMiddleware wraps every route. The first middleware given runs first.
func WithMiddleware(ms ...Middleware) server.Option {
	return func(o *server.Options) {
		existing, _ := MiddlewareFrom(o.Context)
		o.Context = context.WithValue(o.Context, middlewareKey{}, append(append([]Middleware(nil), existing...), ms...))
	}
}

func MiddlewareFrom(ctx context.Context) ([]Middleware, bool) {
	ms, ok := ctx.Value(middlewareKey{}).([]Middleware)
	return ms, ok
}

// WithMaxNoteBytes caps the size of a POST /v1/notes body.
func WithMaxNoteBytes(n int64) server.Option {
	return func(o *server.Options) {
		o.Context = context.WithValue(o.Context, maxNoteBytesKey{}, n)
	}
}

func maxNoteBytesFrom(ctx context.Context) int64 {
	if n, ok := ctx.Value(maxNoteBytesKey{}).(int64); ok && n > 0 {
		return n
	}
	return defaultMaxNoteBytes
}
