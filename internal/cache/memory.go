package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryClient implementa Client sobre go-cache.
// Útil para desarrollo y testing. El mutex cubre las operaciones compuestas
// (GetDel, sets) para dar la misma atomicidad por key que Redis.
type memoryClient struct {
	prefix string
	mu     sync.Mutex
	c      *gocache.Cache
}

// NewMemory crea un cliente de cache en memoria.
func NewMemory(prefix string) *memoryClient {
	return &memoryClient{
		prefix: prefix,
		c:      gocache.New(gocache.NoExpiration, time.Minute),
	}
}

func (c *memoryClient) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

func ttlOrNoExpire(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.NoExpiration
	}
	return ttl
}

func (c *memoryClient) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.c.Get(c.key(key))
	if !ok {
		return "", ErrNotFound
	}
	s, ok := v.(string)
	if !ok {
		return "", ErrNotFound
	}
	return s, nil
}

func (c *memoryClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.c.Set(c.key(key), value, ttlOrNoExpire(ttl))
	return nil
}

func (c *memoryClient) GetDel(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := c.key(key)
	v, ok := c.c.Get(k)
	if !ok {
		return "", ErrNotFound
	}
	c.c.Delete(k)
	s, ok := v.(string)
	if !ok {
		return "", ErrNotFound
	}
	return s, nil
}

func (c *memoryClient) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.c.Delete(c.key(key))
	return nil
}

func (c *memoryClient) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.c.Get(c.key(key))
	return ok, nil
}

func (c *memoryClient) SAdd(ctx context.Context, key string, ttl time.Duration, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	k := c.key(key)
	set := map[string]struct{}{}
	v, exp, ok := c.c.GetWithExpiration(k)
	if ok {
		if prev, ok := v.(map[string]struct{}); ok {
			for m := range prev {
				set[m] = struct{}{}
			}
		}
	}
	for _, m := range members {
		set[m] = struct{}{}
	}
	// ttl > 0 renueva, igual que EXPIRE en Redis; ttl 0 conserva el
	// TTL restante del set.
	eff := ttlOrNoExpire(ttl)
	if ttl <= 0 && ok && !exp.IsZero() {
		eff = time.Until(exp)
	}
	c.c.Set(k, set, eff)
	return nil
}

func (c *memoryClient) SRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	k := c.key(key)
	v, exp, ok := c.c.GetWithExpiration(k)
	if !ok {
		return nil
	}
	set, ok := v.(map[string]struct{})
	if !ok {
		return nil
	}
	for _, m := range members {
		delete(set, m)
	}
	// Conservar el TTL restante del set
	ttl := gocache.NoExpiration
	if !exp.IsZero() {
		ttl = time.Until(exp)
	}
	c.c.Set(k, set, ttl)
	return nil
}

func (c *memoryClient) SMembers(ctx context.Context, key string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.c.Get(c.key(key))
	if !ok {
		return []string{}, nil
	}
	set, ok := v.(map[string]struct{})
	if !ok {
		return []string{}, nil
	}
	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	return out, nil
}

func (c *memoryClient) Ping(ctx context.Context) error {
	return nil
}

func (c *memoryClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.c.Flush()
	return nil
}
