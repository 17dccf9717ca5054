package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/beaconflow/beaconflow/internal/models"
)

// CacheConfig holds response cache configuration
type CacheConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// DefaultCacheConfig returns default cache configuration
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Addr: "localhost:6379",
		TTL:  15 * time.Minute,
	}
}

// ResponseCache caches agent responses in Redis keyed by normalized
// query text. A cache failure is never an error for callers; misses
// and storage problems just fall through to the LLM.
type ResponseCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewResponseCache creates a Redis-backed response cache
func NewResponseCache(config *CacheConfig) (*ResponseCache, error) {
	if config == nil {
		config = DefaultCacheConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &ResponseCache{
		client: client,
		ttl:    config.TTL,
	}, nil
}

// cacheKey derives a stable key from agent id and normalized query
func cacheKey(agentID, query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	normalized = strings.Join(strings.Fields(normalized), " ")

	sum := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("agent:%s:resp:%s", agentID, hex.EncodeToString(sum[:16]))
}

// Get looks up a cached response. The second return value reports a hit.
func (c *ResponseCache) Get(ctx context.Context, agentID, query string) (*models.AgentResponse, bool) {
	data, err := c.client.Get(ctx, cacheKey(agentID, query)).Bytes()
	if err != nil {
		return nil, false // redis.Nil and transport errors both mean miss
	}

	var resp models.AgentResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, false
	}

	resp.Metadata.Cached = true
	return &resp, true
}

// Set stores a response. Errors are returned for observability but
// callers treat them as non-fatal.
func (c *ResponseCache) Set(ctx context.Context, agentID, query string, resp *models.AgentResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	if err := c.client.Set(ctx, cacheKey(agentID, query), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store response: %w", err)
	}

	return nil
}

// Invalidate removes all cached responses for an agent
func (c *ResponseCache) Invalidate(ctx context.Context, agentID string) error {
	iter := c.client.Scan(ctx, 0, fmt.Sprintf("agent:%s:resp:*", agentID), 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Close closes the Redis connection
func (c *ResponseCache) Close() error {
	return c.client.Close()
}
