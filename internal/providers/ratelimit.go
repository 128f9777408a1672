package providers

import (
	"context"

	"golang.org/x/time/rate"
)

// defaultRequestsPerSecond paces outbound provider calls client-side, ahead
// of hitting a vendor's own 429s. It is intentionally conservative: a
// single coding-agent loop issues at most a few requests per turn, so the
// limiter exists to smooth bursts (e.g. rapid retries after a transient
// error) rather than to approximate a real account-level quota.
const defaultRequestsPerSecond = 4

// RateLimited wraps p so that Stream calls block on a client-side token
// bucket before reaching the network, rather than relying solely on
// RetryDo to absorb 429s after the fact.
func RateLimited(p Provider, requestsPerSecond float64, burst int) Provider {
	if requestsPerSecond <= 0 {
		requestsPerSecond = defaultRequestsPerSecond
	}
	if burst <= 0 {
		burst = 1
	}
	return &rateLimitedProvider{
		Provider: p,
		limiter:  rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

type rateLimitedProvider struct {
	Provider
	limiter *rate.Limiter
}

func (p *rateLimitedProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.Provider.Stream(ctx, req)
}
