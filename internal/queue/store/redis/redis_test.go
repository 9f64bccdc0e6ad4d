package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue/store"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue/store/storetest"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	s := miniredis.RunT(t)
	c := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	return s, c
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		_, c := newTestRedis(t)
		return New(c, "test")
	})
}

func TestStore_KeyLayout(t *testing.T) {
	mr, c := newTestRedis(t)
	s := New(c, "")
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	now := time.Now()
	st := queue.DefaultSettings("jobs", "http://localhost/jobs", now)
	require.NoError(t, s.Insert(ctx, st))
	_, err := s.Queue(st.URL).Add(ctx, "hello", now, now)
	require.NoError(t, err)

	assert.True(t, mr.Exists("{sqsmock}:settings"))
	assert.Equal(t, st.URL, mr.HGet("{sqsmock}:names", "jobs"))
	assert.True(t, mr.Exists("sqsmock:{http://localhost/jobs}:body"))

	require.NoError(t, s.Drop(ctx, st.URL))
	assert.False(t, mr.Exists("sqsmock:{http://localhost/jobs}:body"))
	assert.Empty(t, mr.HGet("{sqsmock}:names", "jobs"))
}

func TestStore_DropKeepsForeignName(t *testing.T) {
	mr, c := newTestRedis(t)
	s := New(c, "")
	ctx := context.Background()

	now := time.Now()
	live := queue.DefaultSettings("jobs", "http://localhost/jobs", now)
	require.NoError(t, s.Insert(ctx, live))

	// A settings entry whose name has since been claimed by another URL.
	stale := queue.DefaultSettings("jobs", "http://old-host/jobs", now)
	raw, err := encodeSettings(stale)
	require.NoError(t, err)
	mr.HSet("{sqsmock}:settings", stale.URL, raw)

	require.NoError(t, s.Drop(ctx, stale.URL))
	assert.Equal(t, live.URL, mr.HGet("{sqsmock}:names", "jobs"))

	got, err := s.FindByName(ctx, "jobs")
	require.NoError(t, err)
	assert.Equal(t, live.URL, got.URL)

	_, err = s.FindByURL(ctx, stale.URL)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Drop(ctx, "http://localhost/never"))
}
