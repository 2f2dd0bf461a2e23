package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// cachingClient memoises successful completions by prompt. Routing prompts
// repeat often and are generated at low temperature, so a hit is safe to
// reuse.
type cachingClient struct {
	base  Client
	cache *lru.Cache[string, Response]
}

// WrapWithCache adds an LRU response cache of the given size. A
// non-positive size returns client unchanged.
func WrapWithCache(client Client, size int) (Client, error) {
	if size <= 0 {
		return client, nil
	}
	cache, err := lru.New[string, Response](size)
	if err != nil {
		return nil, fmt.Errorf("create response cache: %w", err)
	}
	return &cachingClient{base: client, cache: cache}, nil
}

func (c *cachingClient) Model() string { return c.base.Model() }

func (c *cachingClient) Complete(ctx context.Context, req Request) (Response, error) {
	key := cacheKey(c.base.Model(), req)
	if resp, ok := c.cache.Get(key); ok {
		return resp, nil
	}
	resp, err := c.base.Complete(ctx, req)
	if err != nil {
		return Response{}, err
	}
	c.cache.Add(key, resp)
	return resp, nil
}

func cacheKey(model string, req Request) string {
	temperature := "default"
	if req.Temperature != nil {
		temperature = fmt.Sprintf("%.3f", *req.Temperature)
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%s\x00%s\x00%s\x00%d", model, req.System, req.Prompt, temperature, req.MaxTokens)))
	return hex.EncodeToString(sum[:])
}
