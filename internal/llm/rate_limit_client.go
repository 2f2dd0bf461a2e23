package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// rateLimitedClient spaces out provider calls to stay under a quota.
type rateLimitedClient struct {
	base    Client
	limiter *rate.Limiter
}

// WrapWithRateLimit limits client to perMinute requests with the given
// burst. A non-positive perMinute returns client unchanged.
func WrapWithRateLimit(client Client, perMinute, burst int) Client {
	if perMinute <= 0 {
		return client
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimitedClient{
		base:    client,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60), burst),
	}
}

func (c *rateLimitedClient) Model() string { return c.base.Model() }

func (c *rateLimitedClient) Complete(ctx context.Context, req Request) (Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Response{}, fmt.Errorf("llm rate limit: %w", err)
	}
	return c.base.Complete(ctx, req)
}
