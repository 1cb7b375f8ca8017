package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/rueidis"

	"github.com/Shivanand-hulikatti/registration-ledger/internal/clock"
)

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.Mutex
	clock   clock.Clock
	entries map[string]time.Time
}

// NewMemoryCache constructs an empty MemoryCache.
func NewMemoryCache(c clock.Clock) *MemoryCache {
	return &MemoryCache{clock: c, entries: make(map[string]time.Time)}
}

func (m *MemoryCache) Set(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = m.clock.Now().Add(ttl)
	return nil
}

func (m *MemoryCache) Has(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	if !m.clock.Now().Before(exp) {
		delete(m.entries, key)
		return false, nil
	}
	return true, nil
}

// ValkeyCache stores session markers in Valkey or Redis so that every server
// instance sees them.
type ValkeyCache struct {
	client rueidis.Client
}

// NewValkeyCache wraps an existing client.
func NewValkeyCache(client rueidis.Client) *ValkeyCache {
	return &ValkeyCache{client: client}
}

func (c *ValkeyCache) Set(ctx context.Context, key string, ttl time.Duration) error {
	cmd := c.client.B().Set().Key(key).Value("1").Ex(ttl).Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey set: %w", err)
	}
	return nil
}

func (c *ValkeyCache) Has(ctx context.Context, key string) (bool, error) {
	v, err := c.client.Do(ctx, c.client.B().Get().Key(key).Build()).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return false, nil
		}
		return false, fmt.Errorf("valkey get: %w", err)
	}
	return v == "1", nil
}

// DialValkey connects a rueidis client and checks it with PING.
func DialValkey(ctx context.Context, addr, password string) (rueidis.Client, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{addr},
		Password:    password,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to valkey: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping valkey: %w", err)
	}
	return client, nil
}
