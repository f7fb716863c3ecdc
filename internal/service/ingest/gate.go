package ingest

import "github.com/w-h-a/brain/classifier"

// Admit reports whether a classification is confident enough to be filed.
func Admit(result classifier.Result, threshold int) bool {
	return result.Confidence >= threshold
}
