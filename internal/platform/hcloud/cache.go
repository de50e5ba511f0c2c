package hcloud

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Factory builds a client for a credential name and region.
type Factory func(credential, region string) (Cloud, error)

type cacheKey struct {
	credential string
	region     string
}

// ClientCache is a bounded cache of clients keyed by (credential, region).
// It is the only state shared between workflows.
type ClientCache struct {
	mu      sync.Mutex
	clients *lru.Cache[cacheKey, Cloud]
	factory Factory
}

// NewClientCache returns a cache holding at most size clients.
func NewClientCache(size int, factory Factory) (*ClientCache, error) {
	if factory == nil {
		return nil, fmt.Errorf("client factory is required")
	}
	clients, err := lru.New[cacheKey, Cloud](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create client cache: %w", err)
	}
	return &ClientCache{clients: clients, factory: factory}, nil
}

// Get returns the cached client for (credential, region), building it on a miss.
func (c *ClientCache) Get(credential, region string) (Cloud, error) {
	key := cacheKey{credential: credential, region: region}

	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients.Get(key); ok {
		return client, nil
	}
	client, err := c.factory(credential, region)
	if err != nil {
		return nil, fmt.Errorf("failed to build client for credential %q in %s: %w", credential, region, err)
	}
	c.clients.Add(key, client)
	return client, nil
}

// Invalidate drops the client for (credential, region), forcing a rebuild on
// the next Get. Used after a credential is rejected.
func (c *ClientCache) Invalidate(credential, region string) {
	c.mu.Lock()
	c.clients.Remove(cacheKey{credential: credential, region: region})
	c.mu.Unlock()
}

// Len returns the number of cached clients.
func (c *ClientCache) Len() int {
	return c.clients.Len()
}
