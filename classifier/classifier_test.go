package classifier

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeGenerator struct {
	response string
	err      error
	block    bool
	calls    atomic.Int32
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.response, f.err
}

const projectsResponse = `{"category": "Projects", "name": "Q4 budget", "confidence": 82}`

func TestClassify_PrimarySucceeds(t *testing.T) {
	primary := &fakeGenerator{response: projectsResponse}
	secondary := &fakeGenerator{response: `{"category": "Ideas", "confidence": 99}`}

	g := New([]Backend{
		{Name: "anthropic", Generator: primary},
		{Name: "openai", Generator: secondary},
	})

	result, err := g.Classify(context.Background(), "Call Sarah about Q4 budget")
	require.NoError(t, err)

	assert.Equal(t, Projects, result.Category)
	assert.Equal(t, "Q4 budget", result.Name())
	assert.Equal(t, 82, result.Confidence)
	assert.Equal(t, "anthropic", result.Backend)
	assert.Len(t, result.Attempts, 1)
	assert.EqualValues(t, 0, secondary.calls.Load())
}

func TestClassify_TimeoutsFallThroughToTertiary(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	primary := &fakeGenerator{block: true}
	secondary := &fakeGenerator{block: true}
	tertiary := &fakeGenerator{response: projectsResponse}

	g := New(
		[]Backend{
			{Name: "anthropic", Generator: primary},
			{Name: "openai", Generator: secondary},
			{Name: "google", Generator: tertiary},
		},
		WithTimeout(20*time.Millisecond),
		WithLogger(zap.New(core)),
	)

	result, err := g.Classify(context.Background(), "Call Sarah about Q4 budget")
	require.NoError(t, err)

	assert.Equal(t, "google", result.Backend)
	assert.Equal(t, Projects, result.Category)
	require.Len(t, result.Attempts, 3)
	assert.ErrorIs(t, result.Attempts[0].Err, context.DeadlineExceeded)
	assert.ErrorIs(t, result.Attempts[1].Err, context.DeadlineExceeded)
	assert.NoError(t, result.Attempts[2].Err)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "classifier backend failed", entries[0].Message)
	assert.Equal(t, "anthropic", entries[0].ContextMap()["backend"])
	assert.Equal(t, "classifier backend failed", entries[1].Message)
	assert.Equal(t, "openai", entries[1].ContextMap()["backend"])
	assert.Equal(t, "classifier backend succeeded", entries[2].Message)

	assert.EqualValues(t, 1, primary.calls.Load())
	assert.EqualValues(t, 1, secondary.calls.Load())
}

func TestClassify_MalformedOutputFallsThrough(t *testing.T) {
	primary := &fakeGenerator{response: `{"category": "Finance", "confidence": 90}`}
	secondary := &fakeGenerator{response: projectsResponse}

	g := New([]Backend{
		{Name: "anthropic", Generator: primary},
		{Name: "openai", Generator: secondary},
	})

	result, err := g.Classify(context.Background(), "Call Sarah about Q4 budget")
	require.NoError(t, err)

	assert.Equal(t, "openai", result.Backend)
	require.Len(t, result.Attempts, 2)
	assert.ErrorIs(t, result.Attempts[0].Err, ErrInvalidResponse)
}

func TestClassify_AllBackendsFail(t *testing.T) {
	g := New([]Backend{
		{Name: "anthropic", Generator: &fakeGenerator{err: errors.New("rate limited")}},
		{Name: "openai", Generator: &fakeGenerator{response: "not json"}},
	})

	_, err := g.Classify(context.Background(), "Call Sarah about Q4 budget")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)

	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	require.Len(t, unavailable.Attempts, 2)
	assert.Equal(t, "anthropic", unavailable.Attempts[0].Backend)
	assert.Equal(t, "openai", unavailable.Attempts[1].Backend)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestClassify_SameResponsesSelectSameBackend(t *testing.T) {
	primary := &fakeGenerator{response: "garbage"}
	secondary := &fakeGenerator{response: projectsResponse}
	tertiary := &fakeGenerator{response: `{"category": "Ideas", "confidence": 70}`}

	g := New([]Backend{
		{Name: "anthropic", Generator: primary},
		{Name: "openai", Generator: secondary},
		{Name: "google", Generator: tertiary},
	})

	for i := 0; i < 5; i++ {
		result, err := g.Classify(context.Background(), "Call Sarah about Q4 budget")
		require.NoError(t, err)
		assert.Equal(t, "openai", result.Backend)
		assert.Equal(t, Projects, result.Category)
	}

	assert.EqualValues(t, 0, tertiary.calls.Load())
}

func TestClassify_RejectsEmptyText(t *testing.T) {
	g := New([]Backend{{Name: "anthropic", Generator: &fakeGenerator{response: projectsResponse}}})

	_, err := g.Classify(context.Background(), "   ")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestNew_PanicsWithoutBackends(t *testing.T) {
	assert.Panics(t, func() { New(nil) })
	assert.Panics(t, func() { New([]Backend{{Name: "x"}}) })
}
