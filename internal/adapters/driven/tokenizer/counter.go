// Package tokenizer measures text in model tokens for context budgeting.
//
// Counts come from a tiktoken BPE encoding when one can be loaded. tiktoken
// fetches encodings on first use, so offline machines get a character
// estimate of about four characters per token instead.
package tokenizer

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// DefaultEncoding is used by GPT-4 and GPT-3.5 class models and is a fair
// approximation for other providers.
const DefaultEncoding = "cl100k_base"

// charsPerToken is the estimator's ratio.
const charsPerToken = 4

// Ensure Counter implements the interface.
var _ driven.TokenCounter = (*Counter)(nil)

// Counter counts and truncates text in tokens.
type Counter struct {
	enc *tiktoken.Tiktoken
}

// New loads the named encoding, falling back to the estimator when it
// cannot be loaded. An empty name selects DefaultEncoding.
func New(encoding string) *Counter {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		logger.Warn("tokenizer: encoding %s unavailable, estimating tokens from length: %v", encoding, err)
		return NewEstimator()
	}
	return &Counter{enc: enc}
}

// ForModel loads the encoding tiktoken associates with model, or
// DefaultEncoding for models it does not know.
func ForModel(model string) *Counter {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return New(DefaultEncoding)
	}
	return &Counter{enc: enc}
}

// NewEstimator returns a counter that never loads an encoding.
func NewEstimator() *Counter {
	return &Counter{}
}

// Exact reports whether counts come from a real encoding.
func (c *Counter) Exact() bool {
	return c.enc != nil
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c.enc == nil {
		return (utf8.RuneCountInString(text) + charsPerToken - 1) / charsPerToken
	}
	return len(c.enc.Encode(text, nil, nil))
}

// Truncate returns the longest prefix of text within maxTokens. The result
// is always valid UTF-8.
func (c *Counter) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	if c.enc == nil {
		limit := maxTokens * charsPerToken
		if utf8.RuneCountInString(text) <= limit {
			return text
		}
		return string([]rune(text)[:limit])
	}

	tokens := c.enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	out := c.enc.Decode(tokens[:maxTokens])
	// A token boundary can fall inside a multi-byte rune.
	for len(out) > 0 && !utf8.ValidString(out) {
		out = out[:len(out)-1]
	}
	return out
}
