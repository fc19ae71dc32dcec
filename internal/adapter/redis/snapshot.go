// Package redis caches the latest gage and alert snapshots so a restarted
// server can answer before its first poll completes.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/glof-monitor/internal/config"
	"github.com/couchcryptid/glof-monitor/internal/domain"
	goredis "github.com/go-redis/redis/v8"
)

const (
	keyPrefix = "glof:"
	alertsKey = keyPrefix + "alerts"
)

// SnapshotStore reads and writes JSON snapshots with a TTL.
type SnapshotStore struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewClient creates a Redis client from config.
func NewClient(cfg *config.Config) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// NewSnapshotStore wraps client. Snapshots expire after ttl.
func NewSnapshotStore(client *goredis.Client, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{client: client, ttl: ttl}
}

func gageKey(gageID string) string {
	return keyPrefix + "gage:" + gageID
}

// SaveGageStatus stores the latest status of a gage.
func (s *SnapshotStore) SaveGageStatus(ctx context.Context, st domain.GageStatus) error {
	return s.set(ctx, gageKey(st.Gage.ID), st)
}

// LoadGageStatus returns the cached status of a gage. ok is false when no
// unexpired snapshot exists.
func (s *SnapshotStore) LoadGageStatus(ctx context.Context, gageID string) (domain.GageStatus, bool, error) {
	var st domain.GageStatus
	ok, err := s.get(ctx, gageKey(gageID), &st)
	return st, ok, err
}

// SaveAlerts stores the latest alert summary.
func (s *SnapshotStore) SaveAlerts(ctx context.Context, sum domain.AlertSummary) error {
	return s.set(ctx, alertsKey, sum)
}

// LoadAlerts returns the cached alert summary.
func (s *SnapshotStore) LoadAlerts(ctx context.Context) (domain.AlertSummary, bool, error) {
	var sum domain.AlertSummary
	ok, err := s.get(ctx, alertsKey, &sum)
	return sum, ok, err
}

// Ping checks connectivity.
func (s *SnapshotStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *SnapshotStore) Close() error {
	return s.client.Close()
}

func (s *SnapshotStore) set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("serialize snapshot %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *SnapshotStore) get(ctx context.Context, key string, dst any) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return true, nil
}
