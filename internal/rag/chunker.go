package rag

import (
	"fmt"
	"strings"
)

// ChunkerConfig holds chunking configuration. Sizes are in words.
type ChunkerConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

// Chunker splits text into fixed-size word windows. Consecutive windows
// share exactly ChunkOverlap words.
type Chunker struct {
	config ChunkerConfig
}

// NewChunker validates the window sizes.
func NewChunker(config ChunkerConfig) (*Chunker, error) {
	if config.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}
	if config.ChunkOverlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d", config.ChunkOverlap)
	}
	if config.ChunkSize <= config.ChunkOverlap {
		return nil, fmt.Errorf("chunk size %d must exceed overlap %d", config.ChunkSize, config.ChunkOverlap)
	}
	return &Chunker{config: config}, nil
}

// Split returns the word windows of text. Empty text yields no chunks.
func (c *Chunker) Split(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	step := c.config.ChunkSize - c.config.ChunkOverlap
	chunks := make([]string, 0, c.ExpectedChunks(len(words)))
	for start := 0; ; start += step {
		end := start + c.config.ChunkSize
		if end >= len(words) {
			chunks = append(chunks, strings.Join(words[start:], " "))
			break
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}

// ExpectedChunks is the number of windows Split produces for n words:
// ceil((n-overlap)/(size-overlap)), or one window when n <= size.
func (c *Chunker) ExpectedChunks(n int) int {
	switch {
	case n <= 0:
		return 0
	case n <= c.config.ChunkSize:
		return 1
	}
	step := c.config.ChunkSize - c.config.ChunkOverlap
	return (n - c.config.ChunkOverlap + step - 1) / step
}
