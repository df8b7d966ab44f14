// Package ratelimit ограничивает частоту запросов пользователей к ассистенту.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter решает, можно ли выполнить очередной запрос для ключа.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Noop пропускает все запросы.
type Noop struct{}

// Allow всегда разрешает запрос.
func (Noop) Allow(context.Context, string) (bool, error) { return true, nil }

// MemoryLimiter реализует скользящее окно в памяти процесса.
type MemoryLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
}

// NewMemoryLimiter создаёт ограничитель на limit запросов за window.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// Allow учитывает запрос и сообщает, укладывается ли он в лимит.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	valid := l.inWindow(l.requests[key], now)

	if len(valid) >= l.limit {
		l.requests[key] = valid
		return false, nil
	}

	l.requests[key] = append(valid, now)
	return true, nil
}

// Cleanup удаляет устаревшие отметки и пустые ключи.
func (l *MemoryLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, requests := range l.requests {
		valid := l.inWindow(requests, now)
		if len(valid) == 0 {
			delete(l.requests, key)
			continue
		}
		l.requests[key] = valid
	}
}

// StartCleanup периодически вызывает Cleanup до отмены контекста.
func (l *MemoryLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Cleanup()
			}
		}
	}()
}

func (l *MemoryLimiter) inWindow(requests []time.Time, now time.Time) []time.Time {
	start := now.Add(-l.window)
	var valid []time.Time
	for _, t := range requests {
		if t.After(start) {
			valid = append(valid, t)
		}
	}
	return valid
}
