package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const statsMaxRetries = 5

func statsKey(storeID string) string {
	return fmt.Sprintf("%s:%s", StatsKey, storeID)
}

// MemoryStatsStore keeps stats in process memory.
type MemoryStatsStore struct {
	mu    sync.Mutex
	model SavingsModel
	now   func() time.Time
	stats map[string]BookkeeperStats
}

func NewMemoryStatsStore(model SavingsModel) *MemoryStatsStore {
	return &MemoryStatsStore{model: model, now: time.Now, stats: make(map[string]BookkeeperStats)}
}

func (s *MemoryStatsStore) Load(_ context.Context, storeID string) (BookkeeperStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats[storeID], nil
}

func (s *MemoryStatsStore) Accumulate(_ context.Context, storeID string, delta StatsDelta) (BookkeeperStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.model.Apply(s.stats[storeID], delta, s.now())
	s.stats[storeID] = next
	return next, nil
}

// RedisStatsStore keeps stats as a JSON value under aiBookkeeperStats:{store}.
// Accumulation is a read-modify-write guarded by WATCH.
type RedisStatsStore struct {
	client redis.UniversalClient
	model  SavingsModel
	now    func() time.Time
}

func NewRedisStatsStore(client redis.UniversalClient, model SavingsModel) *RedisStatsStore {
	return &RedisStatsStore{client: client, model: model, now: time.Now}
}

func (s *RedisStatsStore) Load(ctx context.Context, storeID string) (BookkeeperStats, error) {
	raw, err := s.client.Get(ctx, statsKey(storeID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return BookkeeperStats{}, nil
	}
	if err != nil {
		return BookkeeperStats{}, fmt.Errorf("redis stats load: %w", err)
	}
	return decodeStats(raw)
}

func (s *RedisStatsStore) Accumulate(ctx context.Context, storeID string, delta StatsDelta) (BookkeeperStats, error) {
	key := statsKey(storeID)
	var next BookkeeperStats

	txf := func(tx *redis.Tx) error {
		current := BookkeeperStats{}
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if current, err = decodeStats(raw); err != nil {
				return err
			}
		}
		next = s.model.Apply(current, delta, s.now())
		payload, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	}

	for i := 0; i < statsMaxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return next, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return BookkeeperStats{}, fmt.Errorf("redis stats accumulate: %w", err)
	}
	return BookkeeperStats{}, fmt.Errorf("redis stats accumulate: %w", redis.TxFailedErr)
}

func decodeStats(raw []byte) (BookkeeperStats, error) {
	var st BookkeeperStats
	if err := json.Unmarshal(raw, &st); err != nil {
		return BookkeeperStats{}, fmt.Errorf("decode stats: %w", err)
	}
	return st, nil
}
