package services

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/redis/go-redis/v9"
)

const imageOverridesKey = "luxemap:image_overrides"

// IImageOverrides maps property ids to replacement image URLs. Fixture
// data is never touched; overrides are applied to copies at read time.
type IImageOverrides interface {
	All(ctx context.Context) (map[string]string, error)
	Set(ctx context.Context, propertyID, url string) error
}

// NewImageOverrides is Redis-backed when rdb is set so that a worker
// process can publish results to the API process.
func NewImageOverrides(rdb *redis.Client) IImageOverrides {
	if rdb == nil {
		return &memoryImageOverrides{urls: map[string]string{}}
	}
	return &redisImageOverrides{rdb: rdb}
}

type redisImageOverrides struct {
	rdb *redis.Client
}

func (o *redisImageOverrides) All(ctx context.Context) (map[string]string, error) {
	urls, err := o.rdb.HGetAll(ctx, imageOverridesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read image overrides: %w", err)
	}
	return urls, nil
}

func (o *redisImageOverrides) Set(ctx context.Context, propertyID, url string) error {
	if err := o.rdb.HSet(ctx, imageOverridesKey, propertyID, url).Err(); err != nil {
		return fmt.Errorf("failed to store image override for %s: %w", propertyID, err)
	}
	return nil
}

type memoryImageOverrides struct {
	mu   sync.RWMutex
	urls map[string]string
}

func (o *memoryImageOverrides) All(ctx context.Context) (map[string]string, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return maps.Clone(o.urls), nil
}

func (o *memoryImageOverrides) Set(ctx context.Context, propertyID, url string) error {
	o.mu.Lock()
	o.urls[propertyID] = url
	o.mu.Unlock()
	return nil
}
