package rag

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"tasfish/internal/logging"
)

const defaultEncoding = "cl100k_base"

// TokenCounter counts tokens with tiktoken. The encoding is loaded on first
// use; when it cannot be loaded the counter estimates four characters per
// token.
type TokenCounter struct {
	encoding string
	logger   logging.Logger

	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewTokenCounter returns a lazily initialised counter.
func NewTokenCounter(logger logging.Logger) *TokenCounter {
	return &TokenCounter{encoding: defaultEncoding, logger: logging.OrNop(logger)}
}

// EstimateTokens is the fallback used when no encoding is available.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// Count returns the token count of text.
func (c *TokenCounter) Count(text string) int {
	if c == nil {
		return EstimateTokens(text)
	}
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(c.encoding)
		if err != nil {
			c.logger.Warn("tiktoken encoding %s unavailable, estimating tokens: %v", c.encoding, err)
			return
		}
		c.enc = enc
	})
	if c.enc == nil {
		return EstimateTokens(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}
