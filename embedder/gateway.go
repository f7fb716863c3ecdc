package embedder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/w-h-a/brain/internal/metrics"
	"go.uber.org/zap"
)

var (
	ErrUnavailable      = errors.New("embedding unavailable")
	ErrInvalidEmbedding = errors.New("invalid embedding")
)

// Embedding is a vector plus the backend that produced it. Vectors from
// different backends live in different spaces and must never be compared.
type Embedding struct {
	Values  []float32
	Backend string
}

type Backend struct {
	Name     string
	Embedder Embedder
	// Dimensions is the expected vector length. Zero accepts any non-empty vector.
	Dimensions int
}

type Attempt struct {
	Backend  string
	Duration time.Duration
	Err      error
}

type UnavailableError struct {
	Attempts []Attempt
}

func (e *UnavailableError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Backend, a.Err))
	}
	return fmt.Sprintf("%s: all backends failed [%s]", ErrUnavailable, strings.Join(parts, "; "))
}

func (e *UnavailableError) Unwrap() error {
	return ErrUnavailable
}

type Gateway struct {
	options  GatewayOptions
	backends []Backend
}

func (g *Gateway) Embed(ctx context.Context, text string) (Embedding, error) {
	attempts := make([]Attempt, 0, len(g.backends))

	for i, backend := range g.backends {
		if err := ctx.Err(); err != nil {
			attempts = append(attempts, Attempt{Backend: backend.Name, Err: err})
			break
		}

		start := time.Now()
		values, err := g.attempt(ctx, backend, text)
		elapsed := time.Since(start)

		attempts = append(attempts, Attempt{Backend: backend.Name, Duration: elapsed, Err: err})
		metrics.BackendDuration.WithLabelValues(metrics.CapabilityEmbedder, backend.Name).Observe(elapsed.Seconds())

		if err != nil {
			metrics.BackendAttempts.WithLabelValues(metrics.CapabilityEmbedder, backend.Name, metrics.OutcomeFailure).Inc()
			g.options.Logger.Warn("embedder backend failed",
				zap.String("backend", backend.Name),
				zap.Int("position", i),
				zap.Duration("duration", elapsed),
				zap.Error(err),
			)
			continue
		}

		metrics.BackendAttempts.WithLabelValues(metrics.CapabilityEmbedder, backend.Name, metrics.OutcomeSuccess).Inc()
		g.options.Logger.Debug("embedder backend succeeded",
			zap.String("backend", backend.Name),
			zap.Int("position", i),
			zap.Duration("duration", elapsed),
			zap.Int("dimensions", len(values)),
		)

		return Embedding{Values: values, Backend: backend.Name}, nil
	}

	g.options.Logger.Error("all embedder backends failed", zap.Int("attempts", len(attempts)))

	return Embedding{}, &UnavailableError{Attempts: attempts}
}

func (g *Gateway) attempt(ctx context.Context, backend Backend, text string) ([]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.options.Timeout)
	defer cancel()

	values, err := backend.Embedder.Embed(callCtx, text)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	if err := validate(values, backend.Dimensions); err != nil {
		return nil, err
	}

	return values, nil
}

func validate(values []float32, dimensions int) error {
	if len(values) == 0 {
		return fmt.Errorf("%w: empty vector", ErrInvalidEmbedding)
	}
	if dimensions > 0 && len(values) != dimensions {
		return fmt.Errorf("%w: got %d dimensions, want %d", ErrInvalidEmbedding, len(values), dimensions)
	}
	for i, v := range values {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: non-finite value at position %d", ErrInvalidEmbedding, i)
		}
	}
	return nil
}

// Close closes every backend that holds connections.
func (g *Gateway) Close() error {
	var errs []error
	for _, b := range g.backends {
		if closer, ok := b.Embedder.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", b.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (g *Gateway) Backends() []string {
	names := make([]string, 0, len(g.backends))
	for _, b := range g.backends {
		names = append(names, b.Name)
	}
	return names
}

func NewGateway(backends []Backend, opts ...GatewayOption) *Gateway {
	if len(backends) == 0 {
		panic("at least one embedder backend is required")
	}

	for _, b := range backends {
		if b.Embedder == nil || len(b.Name) == 0 {
			panic("embedder backend requires a name and an embedder")
		}
	}

	options := NewGatewayOptions(opts...)

	return &Gateway{
		options:  options,
		backends: append([]Backend(nil), backends...),
	}
}
