package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// RedisGenerationStore keeps each generation as a JSON value and indexes
// them per user in a sorted set scored by creation time.
type RedisGenerationStore struct {
	client *backend.Client
	prefix string
	now    func() time.Time
}

// RedisOption configures a RedisGenerationStore.
type RedisOption func(*RedisGenerationStore)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisGenerationStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// NewRedisGenerationStore connects to redis at address and verifies the
// connection.
func NewRedisGenerationStore(ctx context.Context, address, password string, db int, opts ...RedisOption) (*RedisGenerationStore, error) {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", address, err)
	}
	return NewRedisGenerationStoreFromClient(rdb, opts...), nil
}

// NewRedisGenerationStoreFromClient wraps an existing client.
func NewRedisGenerationStoreFromClient(client *backend.Client, opts ...RedisOption) *RedisGenerationStore {
	s := &RedisGenerationStore{
		client: client,
		prefix: "mindmapd",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisGenerationStore) key(id string) string {
	return s.prefix + ":generation:" + id
}

func (s *RedisGenerationStore) indexKey(userID string) string {
	return s.prefix + ":user:" + userID + ":generations"
}

// Save implements GenerationStore.
func (s *RedisGenerationStore) Save(ctx context.Context, g Generation) (Generation, error) {
	g = prepare(g, s.now())

	data, err := json.Marshal(g)
	if err != nil {
		return Generation{}, fmt.Errorf("failed to marshal generation: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(g.ID), data, 0)
	pipe.ZAdd(ctx, s.indexKey(g.UserID), backend.Z{
		Score:  float64(g.CreatedAt.UnixMicro()),
		Member: g.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return Generation{}, fmt.Errorf("failed to save to redis: %w", err)
	}
	return g, nil
}

// List implements GenerationStore. Index entries whose value has gone
// missing are skipped.
func (s *RedisGenerationStore) List(ctx context.Context, userID string) ([]Generation, error) {
	userID = NormalizeUser(userID)

	ids, err := s.client.ZRevRange(ctx, s.indexKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}

	out := []Generation{}
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load generations: %w", err)
	}

	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var g Generation
		if err := json.Unmarshal([]byte(raw), &g); err != nil {
			return nil, fmt.Errorf("failed to unmarshal generation: %w", err)
		}
		out = append(out, g)
	}
	sortNewestFirst(out)
	return out, nil
}

// Get implements GenerationStore.
func (s *RedisGenerationStore) Get(ctx context.Context, userID, id string) (Generation, error) {
	userID = NormalizeUser(userID)

	val, err := s.client.Get(ctx, s.key(id)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return Generation{}, ErrNotFound
		}
		return Generation{}, fmt.Errorf("failed to get from redis: %w", err)
	}

	var g Generation
	if err := json.Unmarshal([]byte(val), &g); err != nil {
		return Generation{}, fmt.Errorf("failed to unmarshal generation: %w", err)
	}
	if g.UserID != userID {
		return Generation{}, ErrNotFound
	}
	return g, nil
}

// Delete implements GenerationStore.
func (s *RedisGenerationStore) Delete(ctx context.Context, userID, id string) error {
	g, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(g.ID))
	pipe.ZRem(ctx, s.indexKey(g.UserID), g.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	return nil
}

// Close closes the redis client.
func (s *RedisGenerationStore) Close() error {
	return s.client.Close()
}

var _ GenerationStore = (*RedisGenerationStore)(nil)
