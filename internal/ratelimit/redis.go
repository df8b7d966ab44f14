package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "storefront:ratelimit:"

type counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisLimiter реализует фиксированное окно на счётчиках Redis и работает
// одинаково для нескольких экземпляров сервиса.
type RedisLimiter struct {
	client *redis.Client
	store  counter
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter подключается к Redis по URL и проверяет соединение.
func NewRedisLimiter(ctx context.Context, redisURL string, limit int, window time.Duration) (*RedisLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return newRedisLimiter(client, limit, window), nil
}

func newRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	l := &RedisLimiter{client: client, limit: limit, window: window, now: time.Now}
	if client != nil {
		l.store = client
	}
	return l
}

// Allow увеличивает счётчик текущего окна и сравнивает его с лимитом.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 || l.window <= 0 {
		return true, nil
	}

	slot := l.now().UnixNano() / int64(l.window)
	k := keyPrefix + key + ":" + strconv.FormatInt(slot, 10)

	n, err := l.store.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("incr %s: %w", k, err)
	}
	if n == 1 {
		if err := l.store.Expire(ctx, k, l.window).Err(); err != nil {
			return false, fmt.Errorf("expire %s: %w", k, err)
		}
	}

	return n <= int64(l.limit), nil
}

// Close закрывает соединение с Redis.
func (l *RedisLimiter) Close() error {
	if l.client == nil {
		return nil
	}
	return l.client.Close()
}
