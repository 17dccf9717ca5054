package warehouse

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucketRateLimiter implements rate limiting using token bucket algorithm
type TokenBucketRateLimiter struct {
	limiters map[string]*sourceLimiter
	mu       sync.RWMutex
}

type sourceLimiter struct {
	limiter   *rate.Limiter
	limit     int
	remaining int
	resetTime time.Time
	mu        sync.Mutex
}

// NewTokenBucketRateLimiter creates a new rate limiter
func NewTokenBucketRateLimiter() *TokenBucketRateLimiter {
	return &TokenBucketRateLimiter{
		limiters: make(map[string]*sourceLimiter),
	}
}

// RegisterSource registers a data source with specific rate limits
func (r *TokenBucketRateLimiter) RegisterSource(source string, requestsPerHour int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Convert to requests per second
	rps := float64(requestsPerHour) / 3600.0
	burst := requestsPerHour / 360 // Allow burst of ~10s worth
	if burst < 10 {
		burst = 10
	}

	r.limiters[source] = &sourceLimiter{
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
		limit:     requestsPerHour,
		remaining: requestsPerHour,
		resetTime: time.Now().Add(time.Hour),
	}
}

// Allow checks if a request is allowed
func (r *TokenBucketRateLimiter) Allow(ctx context.Context, source string) (bool, error) {
	limiter := r.getLimiter(source)
	if limiter == nil {
		return true, nil // No limit configured
	}

	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	allowed := limiter.limiter.Allow()
	if allowed && limiter.remaining > 0 {
		limiter.remaining--
	}

	// Reset if hour has passed
	if time.Now().After(limiter.resetTime) {
		limiter.remaining = limiter.limit
		limiter.resetTime = time.Now().Add(time.Hour)
	}

	return allowed, nil
}

// Wait blocks until a request is allowed
func (r *TokenBucketRateLimiter) Wait(ctx context.Context, source string) error {
	limiter := r.getLimiter(source)
	if limiter == nil {
		return nil
	}

	return limiter.limiter.Wait(ctx)
}

// GetStatus returns current rate limit status
func (r *TokenBucketRateLimiter) GetStatus(source string) *RateLimitStatus {
	limiter := r.getLimiter(source)
	if limiter == nil {
		return &RateLimitStatus{
			Limit:     999999,
			Remaining: 999999,
			Reset:     time.Now().Add(time.Hour),
		}
	}

	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	return &RateLimitStatus{
		Limit:     limiter.limit,
		Remaining: limiter.remaining,
		Reset:     limiter.resetTime,
	}
}

func (r *TokenBucketRateLimiter) getLimiter(source string) *sourceLimiter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limiters[source]
}

// MemoryCredentialVault implements in-memory credential storage
type MemoryCredentialVault struct {
	credentials map[string]*Credentials
	mu          sync.RWMutex
}

// NewMemoryCredentialVault creates an in-memory vault
func NewMemoryCredentialVault() *MemoryCredentialVault {
	return &MemoryCredentialVault{
		credentials: make(map[string]*Credentials),
	}
}

// Store saves credentials
func (v *MemoryCredentialVault) Store(ctx context.Context, sourceName string, creds *Credentials) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.credentials[sourceName] = creds
	return nil
}

// Retrieve gets stored credentials
func (v *MemoryCredentialVault) Retrieve(ctx context.Context, sourceName string) (*Credentials, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	creds, exists := v.credentials[sourceName]
	if !exists {
		return nil, fmt.Errorf("credentials not found for source: %s", sourceName)
	}

	return creds, nil
}

// Delete removes stored credentials
func (v *MemoryCredentialVault) Delete(ctx context.Context, sourceName string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	delete(v.credentials, sourceName)
	return nil
}

// List returns all stored source names
func (v *MemoryCredentialVault) List(ctx context.Context) ([]string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	sources := make([]string, 0, len(v.credentials))
	for source := range v.credentials {
		sources = append(sources, source)
	}
	return sources, nil
}
