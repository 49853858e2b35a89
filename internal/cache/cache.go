// Пакет cache — кэш списочных ответов в Redis.
// Кэш сквозной: недоступность Redis не ломает запросы,
// промахи и ошибки просто приводят к походу в базу.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss — ключ отсутствует в кэше.
var ErrMiss = errors.New("промах кэша")

// Cache — обёртка над Redis-клиентом.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New создаёт кэш поверх Redis.
// addr — host:port, password может быть пустым.
func New(addr, password string, ttl time.Duration, logger *slog.Logger) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	return &Cache{
		client: client,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "cache")),
	}
}

// Get возвращает закэшированное значение по ключу.
// Отсутствие ключа — ErrMiss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("ошибка чтения из кэша: %w", err)
	}
	return val, nil
}

// Set сохраняет значение с TTL кэша.
func (c *Cache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		return fmt.Errorf("ошибка записи в кэш: %w", err)
	}
	return nil
}

// InvalidatePrefix удаляет все ключи с указанным префиксом.
// Вызывается после мутаций, чтобы списки не отдавали устаревшие данные.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) error {
	iter := c.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("ошибка сканирования ключей: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("ошибка удаления ключей: %w", err)
	}

	c.logger.Debug("Кэш инвалидирован",
		slog.String("prefix", prefix),
		slog.Int("keys", len(keys)),
	)
	return nil
}

// Close закрывает подключение к Redis.
func (c *Cache) Close() error {
	return c.client.Close()
}

// CheckReady проверяет доступность Redis через ping.
// Реализует интерфейс handlers.ReadinessChecker.
func (c *Cache) CheckReady() (string, string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		return "fail", fmt.Sprintf("Redis недоступен: %v", err)
	}
	return "ok", "подключение активно"
}
