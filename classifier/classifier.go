package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/w-h-a/brain/generator"
	"github.com/w-h-a/brain/internal/metrics"
	"go.uber.org/zap"
)

// Backend is one named entry in the fallback chain.
type Backend struct {
	Name      string
	Generator generator.Generator
}

// Gateway tries backends strictly in order, one at a time, and returns the
// first structurally valid classification. A failed backend is never retried.
type Gateway struct {
	options  Options
	backends []Backend
}

func (g *Gateway) Classify(ctx context.Context, text string) (Result, error) {
	if len(strings.TrimSpace(text)) == 0 {
		return Result{}, errors.New("note text is required")
	}

	prompt := buildPrompt(g.options.Prompt, text)
	attempts := make([]Attempt, 0, len(g.backends))

	for i, backend := range g.backends {
		if err := ctx.Err(); err != nil {
			attempts = append(attempts, Attempt{Backend: backend.Name, Err: err})
			break
		}

		start := time.Now()
		result, err := g.attempt(ctx, backend, prompt)
		elapsed := time.Since(start)

		attempts = append(attempts, Attempt{Backend: backend.Name, Duration: elapsed, Err: err})
		metrics.BackendDuration.WithLabelValues(metrics.CapabilityClassifier, backend.Name).Observe(elapsed.Seconds())

		if err != nil {
			metrics.BackendAttempts.WithLabelValues(metrics.CapabilityClassifier, backend.Name, metrics.OutcomeFailure).Inc()
			g.options.Logger.Warn("classifier backend failed",
				zap.String("backend", backend.Name),
				zap.Int("position", i),
				zap.Duration("duration", elapsed),
				zap.Error(err),
			)
			continue
		}

		metrics.BackendAttempts.WithLabelValues(metrics.CapabilityClassifier, backend.Name, metrics.OutcomeSuccess).Inc()
		g.options.Logger.Info("classifier backend succeeded",
			zap.String("backend", backend.Name),
			zap.Int("position", i),
			zap.Duration("duration", elapsed),
			zap.String("category", result.Category.String()),
			zap.Int("confidence", result.Confidence),
		)

		result.Backend = backend.Name
		result.Attempts = attempts

		return result, nil
	}

	g.options.Logger.Error("all classifier backends failed", zap.Int("attempts", len(attempts)))

	return Result{}, &UnavailableError{Attempts: attempts}
}

func (g *Gateway) attempt(ctx context.Context, backend Backend, prompt string) (Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.options.Timeout)
	defer cancel()

	raw, err := backend.Generator.Generate(callCtx, prompt)
	if err != nil {
		return Result{}, fmt.Errorf("generate: %w", err)
	}

	return parseResponse(raw)
}

func (g *Gateway) Backends() []string {
	names := make([]string, 0, len(g.backends))
	for _, b := range g.backends {
		names = append(names, b.Name)
	}
	return names
}

func New(backends []Backend, opts ...Option) *Gateway {
	if len(backends) == 0 {
		panic("at least one classifier backend is required")
	}

	for _, b := range backends {
		if b.Generator == nil || len(b.Name) == 0 {
			panic("classifier backend requires a name and a generator")
		}
	}

	options := NewOptions(opts...)

	return &Gateway{
		options:  options,
		backends: append([]Backend(nil), backends...),
	}
}
