package domain

import "math"

// GenerationParams configure a generation handle.
type GenerationParams struct {
	// Temperature controls sampling randomness.
	Temperature float64

	// MaxTokens caps the response length. Zero uses the provider default.
	MaxTokens int
}

// RoundedTemperature is the temperature at two decimal places, as used in
// handle cache keys.
func (p GenerationParams) RoundedTemperature() float64 {
	return math.Round(p.Temperature*100) / 100
}

// Answer is a grounded response with the passages it was built from.
type Answer struct {
	Text    string
	Sources []ScoredChunk
}
