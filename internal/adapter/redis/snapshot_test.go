package redis

import (
	"context"
	"testing"
	"time"

	"github.com/couchcryptid/glof-monitor/internal/config"
	"github.com/couchcryptid/glof-monitor/internal/domain"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableStore points at a closed port so every command fails fast.
func unreachableStore(t *testing.T) *SnapshotStore {
	t.Helper()
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	s := NewSnapshotStore(client, time.Minute)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGageKey(t *testing.T) {
	assert.Equal(t, "glof:gage:15052500", gageKey("15052500"))
}

func TestNewClient_Options(t *testing.T) {
	client := NewClient(&config.Config{RedisAddr: "cache:6379", RedisPassword: "secret", RedisDB: 3})
	t.Cleanup(func() { _ = client.Close() })

	opts := client.Options()
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 3, opts.DB)
}

func TestSnapshotStore_ErrorsAreWrapped(t *testing.T) {
	s := unreachableStore(t)
	ctx := context.Background()

	err := s.SaveGageStatus(ctx, domain.GageStatus{Gage: domain.Gage{ID: "15052500"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis set glof:gage:15052500")

	_, ok, err := s.LoadGageStatus(ctx, "15052500")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "redis get glof:gage:15052500")

	_, _, err = s.LoadAlerts(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "glof:alerts")

	require.Error(t, s.Ping(ctx))
}
