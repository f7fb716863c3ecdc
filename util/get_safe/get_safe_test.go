package getsafe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	payload := map[string]any{"item_id": "i1", "score": 0.5}

	assert.Equal(t, "i1", String(payload, "item_id"))
	assert.Equal(t, "", String(payload, "score"))
	assert.Equal(t, "", String(payload, "missing"))
	assert.Equal(t, "", String(nil, "item_id"))
}

func TestFloat64(t *testing.T) {
	payload := map[string]any{"a": 0.5, "b": float32(0.25), "c": int64(2), "d": "x"}

	assert.Equal(t, 0.5, Float64(payload, "a"))
	assert.Equal(t, 0.25, Float64(payload, "b"))
	assert.Equal(t, 2.0, Float64(payload, "c"))
	assert.Equal(t, 0.0, Float64(payload, "d"))
	assert.Equal(t, 0.0, Float64(payload, "missing"))
}
