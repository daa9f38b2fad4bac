package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestFileRepliedStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replied.json")
	ctx := context.Background()

	s := OpenFileRepliedStore(path, nil)
	fresh, err := s.MarkReplied(ctx, "c1")
	require.NoError(t, err)
	require.True(t, fresh)

	fresh, err = s.MarkReplied(ctx, "c1")
	require.NoError(t, err)
	require.False(t, fresh)

	_, err = s.MarkReplied(ctx, "c2")
	require.NoError(t, err)

	reopened := OpenFileRepliedStore(path, nil)
	require.Equal(t, 2, reopened.Len())
	ok, err := reopened.HasReplied(ctx, "c2")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = reopened.HasReplied(ctx, "c3")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFileRepliedStoreCorruptStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replied.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	s := OpenFileRepliedStore(path, nil)
	require.Zero(t, s.Len())

	fresh, err := s.MarkReplied(context.Background(), "c1")
	require.NoError(t, err)
	require.True(t, fresh)
}

type fakeRedis struct {
	keys   map[string]time.Duration
	err    error
	closed bool
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, _ interface{}, ttl time.Duration) *redis.BoolCmd {
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.keys[k]; ok {
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestRedisRepliedStore(t *testing.T) {
	client := &fakeRedis{keys: make(map[string]time.Duration)}
	s := newRedisRepliedStore(client, "replied:", time.Hour)
	ctx := context.Background()

	fresh, err := s.MarkReplied(ctx, "c1")
	require.NoError(t, err)
	require.True(t, fresh)
	require.Equal(t, time.Hour, client.keys["replied:c1"])

	fresh, err = s.MarkReplied(ctx, "c1")
	require.NoError(t, err)
	require.False(t, fresh)

	ok, err := s.HasReplied(ctx, "c1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Close())
	require.True(t, client.closed)
}

func TestRedisRepliedStoreError(t *testing.T) {
	client := &fakeRedis{keys: make(map[string]time.Duration), err: errors.New("connection refused")}
	s := newRedisRepliedStore(client, "replied:", time.Hour)

	_, err := s.MarkReplied(context.Background(), "c1")
	require.Error(t, err)
	_, err = s.HasReplied(context.Background(), "c1")
	require.Error(t, err)
}
