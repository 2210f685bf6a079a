package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mmeshcher/eduhive-ledger/internal/model"
)

const cacheKeyPrefix = "catalog:course:"

type cmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Cache кэширует ответы каталога в Redis. Ошибки Redis не ломают запрос:
// курс берётся из источника напрямую.
type Cache struct {
	source Source
	store  cmdable
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedis подключается к Redis по URL и проверяет соединение.
func NewRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewCache оборачивает источник каталога кэшем.
func NewCache(source Source, store cmdable, ttl time.Duration, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		source: source,
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

// GetCourse возвращает курс из кэша или из источника с последующим сохранением в кэш.
func (c *Cache) GetCourse(ctx context.Context, courseID string) (*model.Course, error) {
	key := cacheKeyPrefix + courseID

	raw, err := c.store.Get(ctx, key).Result()
	switch {
	case err == nil:
		var course model.Course
		if jsonErr := json.Unmarshal([]byte(raw), &course); jsonErr == nil {
			return &course, nil
		}
		c.logger.Warn("drop malformed catalog cache entry", zap.String("courseID", courseID))
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("catalog cache read failed", zap.Error(err), zap.String("courseID", courseID))
	}

	course, err := c.source.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(course)
	if err != nil {
		return course, nil
	}
	if err := c.store.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("catalog cache write failed", zap.Error(err), zap.String("courseID", courseID))
	}

	return course, nil
}
