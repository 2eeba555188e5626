package limiter

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps its counters in process. Used when no Redis is
// configured, so limits are per instance.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	config  Config
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]*window),
		config:  cfg.withDefaults(),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.config.Window)}
		l.windows[key] = w
	}

	w.count++
	if w.count > l.config.MaxAttempts {
		return ErrLimited
	}

	return nil
}

// StartCleanup drops closed windows every interval until Stop is called
func (l *MemoryLimiter) StartCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)

	zap.L().Debug("Limiter cleanup attached", zap.Duration("tick_every", interval))

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-l.stop:
				return
			case <-ticker.C:
				l.sweep()
			}
		}
	}()
}

func (l *MemoryLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, k)
		}
	}
}

func (l *MemoryLimiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}
