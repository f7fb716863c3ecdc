package openai

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/w-h-a/brain/generator"
)

func chatServer(t *testing.T, finishReason, content string, seen *map[string]any) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		body := map[string]any{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		*seen = body

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": finishReason,
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestGenerate_JSONModeAndSystem(t *testing.T) {
	var seen map[string]any
	srv := chatServer(t, "stop", `{"category":"Ideas","confidence":70}`, &seen)

	g := NewGenerator(
		generator.WithApiKey("sk-test"),
		generator.WithLocation(srv.URL),
		generator.WithSystem("reply with json"),
		generator.WithJSONOutput(true),
	)

	out, err := g.Generate(t.Context(), "classify this")
	require.NoError(t, err)
	assert.Equal(t, `{"category":"Ideas","confidence":70}`, out)

	assert.Equal(t, defaultModel, seen["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, seen["response_format"])

	messages, ok := seen["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "classify this", messages[1].(map[string]any)["content"])
}

func TestGenerate_Truncated(t *testing.T) {
	var seen map[string]any
	srv := chatServer(t, "length", `{"category":"Ide`, &seen)

	g := NewGenerator(generator.WithApiKey("sk-test"), generator.WithLocation(srv.URL))

	_, err := g.Generate(t.Context(), "classify this")
	assert.ErrorIs(t, err, generator.ErrTruncated)
	assert.Nil(t, seen["response_format"])
}

func TestGenerate_Empty(t *testing.T) {
	var seen map[string]any
	srv := chatServer(t, "stop", "", &seen)

	g := NewGenerator(generator.WithApiKey("sk-test"), generator.WithLocation(srv.URL))

	_, err := g.Generate(t.Context(), "classify this")
	assert.ErrorIs(t, err, generator.ErrEmptyResponse)
}

func TestNewGenerator_RequiresKey(t *testing.T) {
	assert.Panics(t, func() { NewGenerator() })
}
