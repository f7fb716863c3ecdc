package dedup

import "time"

type Config struct {
	SimilarityThreshold float64
	TopK                int
	CallTimeout         time.Duration
	TextSeparator       string
}

func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.85,
		TopK:                5,
		CallTimeout:         10 * time.Second,
		TextSeparator:       "\n\n",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = d.SimilarityThreshold
	}
	if c.TopK < 1 {
		c.TopK = d.TopK
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = d.CallTimeout
	}
	if len(c.TextSeparator) == 0 {
		c.TextSeparator = d.TextSeparator
	}
	return c
}
