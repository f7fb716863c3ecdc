package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type rawResult struct {
	Category   *string         `json:"category"`
	Name       *string         `json:"name"`
	Status     *string         `json:"status"`
	NextAction *string         `json:"next_action"`
	Notes      *string         `json:"notes"`
	Confidence json.RawMessage `json:"confidence"`
}

// parseResponse validates raw model output. Category must be in the closed set
// and confidence must be a number; anything else is ErrInvalidResponse.
func parseResponse(responseText string) (Result, error) {
	payload := extractObject(responseText)

	var raw rawResult
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return Result{}, fmt.Errorf("%w: %v (response: %s)", ErrInvalidResponse, err, truncate(responseText, 256))
	}

	if raw.Category == nil {
		return Result{}, fmt.Errorf("%w: missing category", ErrInvalidResponse)
	}

	category, ok := ParseCategory(*raw.Category)
	if !ok {
		return Result{}, fmt.Errorf("%w: unknown category %q", ErrInvalidResponse, *raw.Category)
	}

	confidence, err := parseConfidence(raw.Confidence)
	if err != nil {
		return Result{}, err
	}

	fields := map[string]string{}
	setField(fields, FieldName, raw.Name)
	setField(fields, FieldStatus, raw.Status)
	setField(fields, FieldNextAction, raw.NextAction)
	setField(fields, FieldNotes, raw.Notes)

	return Result{
		Category:   category,
		Fields:     fields,
		Confidence: confidence,
	}, nil
}

func parseConfidence(raw json.RawMessage) (int, error) {
	text := strings.TrimSpace(string(raw))
	if len(text) == 0 || text == "null" {
		return 0, fmt.Errorf("%w: missing confidence", ErrInvalidResponse)
	}

	// quoted values are rejected: the contract is a number
	if text[0] != '-' && (text[0] < '0' || text[0] > '9') {
		return 0, fmt.Errorf("%w: confidence is not a number: %s", ErrInvalidResponse, text)
	}

	value, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: confidence is not a number: %s", ErrInvalidResponse, text)
	}

	return clampConfidence(value), nil
}

func clampConfidence(value float64) int {
	rounded := int(math.Round(value))
	if rounded < 0 {
		return 0
	}
	if rounded > 100 {
		return 100
	}
	return rounded
}

func setField(fields map[string]string, key string, value *string) {
	if value == nil {
		return
	}
	trimmed := strings.TrimSpace(*value)
	if len(trimmed) == 0 {
		return
	}
	fields[key] = trimmed
}

func extractObject(responseText string) string {
	text := strings.TrimSpace(responseText)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	// Only prose around a single object is tolerated; a JSON array or other
	// non-object top level is left intact so decoding rejects it.
	if strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[") {
		return text
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}

	return text
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + fmt.Sprintf("... [truncated, total_length=%d]", len(s))
}
