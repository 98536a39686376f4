package services

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"luxemap/estates/internal/fixtures"
)

// ISavedService keeps each visitor's set of saved (hearted) properties.
type ISavedService interface {
	Toggle(ctx context.Context, visitorID, propertyID string) (bool, error)
	List(ctx context.Context, visitorID string) ([]string, error)
	Forget(ctx context.Context, visitorID string) error
}

func savedKey(visitorID string) string {
	return "luxemap:saved:" + visitorID
}

// NewSavedService uses Redis when rdb is set, otherwise process memory.
// ttl bounds how long an untouched set survives.
func NewSavedService(catalog *fixtures.Catalog, rdb *redis.Client, ttl time.Duration) ISavedService {
	if rdb == nil {
		return &memorySavedService{catalog: catalog, sets: map[string]map[string]struct{}{}}
	}
	return &redisSavedService{catalog: catalog, rdb: rdb, ttl: ttl}
}

type redisSavedService struct {
	catalog *fixtures.Catalog
	rdb     *redis.Client
	ttl     time.Duration
}

// toggleScript flips membership atomically and refreshes the TTL.
var toggleScript = redis.NewScript(`
if redis.call("SISMEMBER", KEYS[1], ARGV[1]) == 1 then
  redis.call("SREM", KEYS[1], ARGV[1])
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
  return 0
end
redis.call("SADD", KEYS[1], ARGV[1])
redis.call("PEXPIRE", KEYS[1], ARGV[2])
return 1
`)

func (s *redisSavedService) Toggle(ctx context.Context, visitorID, propertyID string) (bool, error) {
	if !s.catalog.HasProperty(propertyID) {
		return false, fmt.Errorf("%w: %s", ErrPropertyNotFound, propertyID)
	}
	saved, err := toggleScript.Run(ctx, s.rdb, []string{savedKey(visitorID)}, propertyID, s.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to toggle saved property: %w", err)
	}
	return saved == 1, nil
}

func (s *redisSavedService) List(ctx context.Context, visitorID string) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, savedKey(visitorID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list saved properties: %w", err)
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *redisSavedService) Forget(ctx context.Context, visitorID string) error {
	return s.rdb.Del(ctx, savedKey(visitorID)).Err()
}

type memorySavedService struct {
	catalog *fixtures.Catalog
	mu      sync.Mutex
	sets    map[string]map[string]struct{}
}

func (s *memorySavedService) Toggle(ctx context.Context, visitorID, propertyID string) (bool, error) {
	if !s.catalog.HasProperty(propertyID) {
		return false, fmt.Errorf("%w: %s", ErrPropertyNotFound, propertyID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.sets[visitorID]
	if _, ok := set[propertyID]; ok {
		delete(set, propertyID)
		return false, nil
	}
	if set == nil {
		set = map[string]struct{}{}
		s.sets[visitorID] = set
	}
	set[propertyID] = struct{}{}
	return true, nil
}

func (s *memorySavedService) List(ctx context.Context, visitorID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sets[visitorID]))
	for id := range s.sets[visitorID] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *memorySavedService) Forget(ctx context.Context, visitorID string) error {
	s.mu.Lock()
	delete(s.sets, visitorID)
	s.mu.Unlock()
	return nil
}
