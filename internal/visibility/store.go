package visibility

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Store persists clinic settings.
type Store interface {
	Get(ctx context.Context, orgID string) (*Settings, error)
	Set(ctx context.Context, s *Settings) error
}

// RedisStore keeps settings as JSON under clinic:settings:<org>.
type RedisStore struct {
	redis *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		panic("visibility: redis client required")
	}
	return &RedisStore{redis: client}
}

func (s *RedisStore) key(orgID string) string {
	return fmt.Sprintf("clinic:settings:%s", orgID)
}

// Get retrieves clinic settings, returning defaults if none are stored.
func (s *RedisStore) Get(ctx context.Context, orgID string) (*Settings, error) {
	data, err := s.redis.Get(ctx, s.key(orgID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return DefaultSettings(orgID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("visibility: get settings: %w", err)
	}

	var out Settings
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("visibility: unmarshal settings: %w", err)
	}
	return &out, nil
}

func (s *RedisStore) Set(ctx context.Context, settings *Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("visibility: marshal settings: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(settings.OrgID), data, 0).Err(); err != nil {
		return fmt.Errorf("visibility: set settings: %w", err)
	}
	return nil
}

type MemoryStore struct {
	mu       sync.RWMutex
	settings map[string]Settings
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{settings: make(map[string]Settings)}
}

func (s *MemoryStore) Get(_ context.Context, orgID string) (*Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.settings[orgID]
	if !ok {
		return DefaultSettings(orgID), nil
	}
	return &v, nil
}

func (s *MemoryStore) Set(_ context.Context, settings *Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[settings.OrgID] = *settings
	return nil
}
