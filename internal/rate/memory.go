package rate

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter: ventana fija en proceso. Para despliegues de un solo nodo y
// para tests; en multi-nodo usar RedisLimiter.
type MemoryLimiter struct {
	mu     sync.Mutex
	max    int64
	window time.Duration
	hits   map[string]*memWindow

	now func() time.Time
}

type memWindow struct {
	start time.Time
	count int64
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		max:    int64(max),
		window: window,
		hits:   make(map[string]*memWindow),
		now:    time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	winStart := now.Truncate(l.window)

	w, ok := l.hits[key]
	if !ok || w.start.Before(winStart) {
		w = &memWindow{start: winStart}
		l.hits[key] = w
	}
	w.count++

	remaining := l.max - w.count
	if remaining < 0 {
		remaining = 0
	}
	ttl := w.start.Add(l.window).Sub(now)

	res := Result{
		Allowed:     w.count <= l.max,
		Remaining:   remaining,
		CurrentHits: w.count,
		WindowTTL:   ttl,
	}
	if !res.Allowed {
		res.RetryAfter = ttl
	}

	// Limpieza oportunista de ventanas viejas
	if len(l.hits) > 4096 {
		for k, win := range l.hits {
			if win.start.Before(winStart) {
				delete(l.hits, k)
			}
		}
	}
	return res, nil
}
