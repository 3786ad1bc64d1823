// internal/antidetect/antidetect.go
package antidetect

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

// UserAgentRotator picks user agents from a fixed list
type UserAgentRotator struct {
	agents []string
}

// NewUserAgentRotator creates a new user agent rotator
func NewUserAgentRotator(agents []string) *UserAgentRotator {
	if len(agents) == 0 {
		agents = getDefaultUserAgents()
	}
	return &UserAgentRotator{
		agents: agents,
	}
}

// GetRandom returns a random user agent
func (r *UserAgentRotator) GetRandom() string {
	return r.agents[rand.Intn(len(r.agents))]
}

// RateLimiter paces result-page loads
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows one page every interval with the given burst
func NewRateLimiter(interval time.Duration, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Wait waits for permission to proceed
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.limiter.Wait(ctx)
}

// Helper functions
func getDefaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36 Edg/123.0.0.0",
	}
}
