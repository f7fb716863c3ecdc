package ingest

import (
	"fmt"
	"math"

	"github.com/w-h-a/brain/classifier"
	"github.com/w-h-a/brain/internal/service/dedup"
)

const snippetLength = 50

type Reply struct {
	Filed    bool   `json:"filed"`
	Category string `json:"category,omitempty"`
	Summary  string `json:"summary,omitempty"`
}

func replyFor(text string, outcome Outcome) Reply {
	switch {
	case outcome.Filed:
		return filedReply(outcome)
	case outcome.Reason == ReasonLowConfidence:
		return Reply{
			Summary: fmt.Sprintf("Low confidence (%d%%) - not saved. Please rephrase \"%s\".", outcome.Classification.Confidence, snippet(text)),
		}
	case outcome.Reason == ReasonEmptyNote:
		return Reply{Summary: "Empty note - not saved."}
	default:
		return Reply{
			Summary: "Could not classify this note right now - not saved. Please resend it.",
		}
	}
}

func filedReply(outcome Outcome) Reply {
	label := outcome.Classification.Category.Label()

	var summary string
	if outcome.Resolution.Action == dedup.ActionUpdated {
		summary = fmt.Sprintf("Updated existing %s item (similarity: %d%%)", label, int(math.Round(outcome.Resolution.Similarity*100)))
	} else {
		summary = fmt.Sprintf("Saved as %s (confidence: %d%%)", label, outcome.Classification.Confidence)
	}

	if name := outcome.Classification.Fields[classifier.FieldName]; len(name) > 0 {
		summary += "\n" + name
	}

	return Reply{
		Filed:    true,
		Category: label,
		Summary:  summary,
	}
}

func snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= snippetLength {
		return text
	}
	return string(runes[:snippetLength])
}
