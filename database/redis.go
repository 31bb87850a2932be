package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/leonovk/wg-rest-api/models"
	"github.com/redis/go-redis/v9"
)

// ConnectRedis opens a client and checks it with a PING.
func ConnectRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// RedisStatStore keeps peer statistics and events in two hashes keyed by
// public key. It implements repositories.StatRepository.
type RedisStatStore struct {
	rdb       *redis.Client
	statsKey  string
	eventsKey string
}

// NewRedisStatStore stores its hashes under "<prefix>:stats" and
// "<prefix>:events".
func NewRedisStatStore(rdb *redis.Client, prefix string) *RedisStatStore {
	return &RedisStatStore{
		rdb:       rdb,
		statsKey:  prefix + ":stats",
		eventsKey: prefix + ":events",
	}
}

func (s *RedisStatStore) LoadStats(ctx context.Context) (map[string]models.PeerStat, error) {
	raw, err := s.rdb.HGetAll(ctx, s.statsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	stats := make(map[string]models.PeerStat, len(raw))
	for publicKey, value := range raw {
		var stat models.PeerStat
		if err := json.Unmarshal([]byte(value), &stat); err != nil {
			return nil, fmt.Errorf("decode stat for %s: %w", publicKey, err)
		}
		stats[publicKey] = stat
	}
	return stats, nil
}

func (s *RedisStatStore) SaveStats(ctx context.Context, stats map[string]models.PeerStat) error {
	if len(stats) == 0 {
		return nil
	}
	fields := make(map[string]any, len(stats))
	for publicKey, stat := range stats {
		value, err := json.Marshal(stat)
		if err != nil {
			return fmt.Errorf("encode stat for %s: %w", publicKey, err)
		}
		fields[publicKey] = string(value)
	}
	if err := s.rdb.HSet(ctx, s.statsKey, fields).Err(); err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	return nil
}

func (s *RedisStatStore) LoadEvents(ctx context.Context) (map[string]models.EventKind, error) {
	raw, err := s.rdb.HGetAll(ctx, s.eventsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	events := make(map[string]models.EventKind, len(raw))
	for publicKey, kind := range raw {
		events[publicKey] = models.EventKind(kind)
	}
	return events, nil
}

func (s *RedisStatStore) SaveEvents(ctx context.Context, events map[string]models.EventKind) error {
	if len(events) == 0 {
		return nil
	}
	fields := make(map[string]any, len(events))
	for publicKey, kind := range events {
		fields[publicKey] = string(kind)
	}
	if err := s.rdb.HSet(ctx, s.eventsKey, fields).Err(); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	return nil
}
