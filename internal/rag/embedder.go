package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"net/http"
	"strings"
	"time"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"

	fisherrors "tasfish/internal/errors"
	"tasfish/internal/httpclient"
	"tasfish/internal/logging"
)

// EmbedderConfig holds embedding configuration.
type EmbedderConfig struct {
	Provider   string // "hash" or "openai"
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
	CacheSize  int
	Timeout    time.Duration
}

// Embedder generates text embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// NewEmbedder builds the configured embedder.
func NewEmbedder(config EmbedderConfig, logger logging.Logger) (Embedder, error) {
	switch config.Provider {
	case "", "hash":
		return NewHashEmbedder(config.Dimensions), nil
	case "openai":
		return newOpenAIEmbedder(config, logger)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", config.Provider)
	}
}

// HashEmbedder maps words and word bigrams into a fixed number of buckets
// and normalises the result. It needs no network and is deterministic, so
// identical text always lands on the identical vector.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder returns a hashing embedder with dims buckets.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 256
	}
	return &HashEmbedder{dims: dims}
}

func (h *HashEmbedder) Dimensions() int { return h.dims }

func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, w := range words {
		h.add(vec, w, 1)
		if i > 0 {
			h.add(vec, words[i-1]+" "+w, 0.5)
		}
	}
	normalize(vec)
	return vec, nil
}

func (h *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := h.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (h *HashEmbedder) add(vec []float32, token string, weight float32) {
	sum := fnv.New64a()
	_, _ = sum.Write([]byte(token))
	v := sum.Sum64()
	idx := int(v % uint64(h.dims))
	if v&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

func normalize(vec []float32) {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		// chromem rejects zero vectors; give empty text a fixed direction.
		vec[0] = 1
		return
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
}

// openaiEmbedder calls an OpenAI-compatible /embeddings endpoint.
type openaiEmbedder struct {
	config     EmbedderConfig
	httpClient *http.Client
	cache      *lru.Cache[string, []float32]
	logger     logging.Logger
	retry      fisherrors.RetryConfig
}

func newOpenAIEmbedder(config EmbedderConfig, logger logging.Logger) (*openaiEmbedder, error) {
	if config.Model == "" {
		config.Model = "text-embedding-3-small"
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if config.CacheSize <= 0 {
		config.CacheSize = 1024
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai embeddings need an API key")
	}

	cache, err := lru.New[string, []float32](config.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	logger = logging.OrNop(logger)
	return &openaiEmbedder{
		config:     config,
		httpClient: httpclient.NewWithCircuitBreaker(config.Timeout, logger, "openai-embeddings"),
		cache:      cache,
		logger:     logger,
		retry:      fisherrors.DefaultRetryConfig(),
	}, nil
}

func (e *openaiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}
	embeddings, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (e *openaiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts provided")
	}
	if len(texts) > 100 {
		return nil, fmt.Errorf("batch size exceeds limit: %d > 100", len(texts))
	}

	results := make([][]float32, len(texts))
	var uncachedIndices []int
	var uncachedTexts []string
	for i, text := range texts {
		if cached, ok := e.cache.Get(text); ok {
			results[i] = cached
			continue
		}
		uncachedIndices = append(uncachedIndices, i)
		uncachedTexts = append(uncachedTexts, text)
	}
	if len(uncachedTexts) == 0 {
		return results, nil
	}

	embeddings, err := fisherrors.RetryWithResult(ctx, e.retry, func(ctx context.Context) ([][]float32, error) {
		return e.callAPI(ctx, uncachedTexts)
	}, e.logger)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}

	for i, idx := range uncachedIndices {
		vec := embeddings[i]
		normalize(vec)
		e.cache.Add(texts[idx], vec)
		results[idx] = vec
	}
	return results, nil
}

func (e *openaiEmbedder) Dimensions() int {
	if e.config.Dimensions > 0 {
		return e.config.Dimensions
	}
	return 1536
}

func (e *openaiEmbedder) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := map[string]any{
		"model": e.config.Model,
		"input": texts,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(e.config.BaseURL, "/")+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.config.APIKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := httpclient.ReadAllWithLimit(resp.Body, httpclient.DefaultResponseLimit)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &fisherrors.StatusError{Provider: "openai-embeddings", StatusCode: resp.StatusCode, Body: string(data)}
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	embeddings := make([][]float32, len(texts))
	for _, item := range apiResp.Data {
		if item.Index < 0 || item.Index >= len(embeddings) {
			return nil, fmt.Errorf("invalid index: %d", item.Index)
		}
		embeddings[item.Index] = item.Embedding
	}
	for i, vec := range embeddings {
		if len(vec) == 0 {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}
	return embeddings, nil
}
