package advisory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/tbourn/go-crm-backend/internal/domain"
	"github.com/tbourn/go-crm-backend/internal/repo"
)

// MemoryStore keeps entries in process memory. Each fingerprint is an
// independent map slot, so unrelated keys never serialize on one lock.
type MemoryStore struct {
	entries sync.Map // fingerprint -> domain.CacheEntry
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Load(_ context.Context, fp string) (domain.CacheEntry, bool, error) {
	v, ok := s.entries.Load(fp)
	if !ok {
		return domain.CacheEntry{}, false, nil
	}
	return v.(domain.CacheEntry), true, nil
}

func (s *MemoryStore) Save(_ context.Context, e domain.CacheEntry) error {
	s.entries.Store(e.Fingerprint, e)
	return nil
}

// DBStore keeps entries in the ai_cache table.
type DBStore struct {
	DB *gorm.DB
}

func (s DBStore) Load(ctx context.Context, fp string) (domain.CacheEntry, bool, error) {
	e, err := repo.GetCacheEntry(ctx, s.DB, fp)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.CacheEntry{}, false, nil
	}
	if err != nil {
		return domain.CacheEntry{}, false, err
	}
	return *e, true, nil
}

func (s DBStore) Save(ctx context.Context, e domain.CacheEntry) error {
	return repo.UpsertCacheEntry(ctx, s.DB, &e)
}

const redisKeyPrefix = "crm:advice:%s"

// RedisStore keeps entries in Redis as JSON. Keys carry a PX expiry equal to
// the entry's remaining lifetime, so Redis reclaims them on its own while
// Cache still judges freshness from ExpiresAt.
type RedisStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// NewRedisStoreFromAddr dials addr and pings it once.
func NewRedisStoreFromAddr(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	return NewRedisStore(client), nil
}

func redisKey(fp string) string { return fmt.Sprintf(redisKeyPrefix, fp) }

func (s *RedisStore) Load(ctx context.Context, fp string) (domain.CacheEntry, bool, error) {
	raw, err := s.client.Get(ctx, redisKey(fp)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.CacheEntry{}, false, nil
	}
	if err != nil {
		return domain.CacheEntry{}, false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	var e domain.CacheEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return domain.CacheEntry{}, false, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return e, true, nil
}

func (s *RedisStore) Save(ctx context.Context, e domain.CacheEntry) error {
	ttl := e.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(e.Fingerprint), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error { return s.client.Close() }
