package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DevChiJay/url-shortener-with-QR/internal/models"
)

// CacheRepository кэш записей для горячего пути редиректа
type CacheRepository interface {
	Get(ctx context.Context, code string) (*models.Url, error)
	Set(ctx context.Context, code string, url *models.Url, ttl time.Duration) error
	Delete(ctx context.Context, codes ...string) error
}

type cacheRepository struct {
	redis *RedisDB
}

func NewCacheRepository(redis *RedisDB) CacheRepository {
	return &cacheRepository{redis: redis}
}

func (r *cacheRepository) Get(ctx context.Context, code string) (*models.Url, error) {
	data, err := r.redis.Client.Get(ctx, r.key(code)).Bytes()
	if err != nil {
		return nil, err
	}

	var url models.Url
	if err := json.Unmarshal(data, &url); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached url: %w", err)
	}

	return &url, nil
}

func (r *cacheRepository) Set(ctx context.Context, code string, url *models.Url, ttl time.Duration) error {
	if ttl <= 0 {
		// Запись уже истекла, кэшировать нечего
		return nil
	}

	data, err := json.Marshal(url)
	if err != nil {
		return fmt.Errorf("failed to marshal url: %w", err)
	}

	return r.redis.Client.Set(ctx, r.key(code), data, ttl).Err()
}

func (r *cacheRepository) Delete(ctx context.Context, codes ...string) error {
	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = r.key(code)
	}
	return r.redis.Client.Del(ctx, keys...).Err()
}

func (r *cacheRepository) key(code string) string {
	return "url:" + code
}
