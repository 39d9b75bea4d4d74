package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-monolith/mono"
	"github.com/redis/go-redis/v9"
)

const (
	namePrefix = "roomchat:name:"
	nameTTL    = 10 * time.Minute
)

// Module owns the Redis client and the name cache.
type Module struct {
	redisAddr string
	client    *redis.Client
	names     *NameCache
}

// Compile-time interface checks
var _ mono.Module = (*Module)(nil)

// NewModule creates a new cache module.
func NewModule(redisAddr string) *Module {
	return &Module{redisAddr: redisAddr}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "cache"
}

// Init connects to Redis.
func (m *Module) Init(_ mono.ServiceContainer) error {
	m.client = redis.NewClient(&redis.Options{
		Addr:         m.redisAddr,
		PoolSize:     50,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := m.client.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	m.names = NewNameCache(m.client, namePrefix, nameTTL)
	log.Printf("[cache] Connected to Redis at %s", m.redisAddr)
	return nil
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	return nil
}

// Stop closes the Redis connection.
func (m *Module) Stop(_ context.Context) error {
	if m.client != nil {
		if err := m.client.Close(); err != nil {
			return fmt.Errorf("failed to close Redis connection: %w", err)
		}
	}
	log.Println("[cache] Module stopped")
	return nil
}

// Names returns the name cache instance.
func (m *Module) Names() *NameCache {
	return m.names
}
