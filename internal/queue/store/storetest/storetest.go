// Package storetest is the behavioral suite every store backend must pass.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue/store"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

var base = time.UnixMilli(1_700_000_000_000).UTC()

// Run executes the full suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"SettingsRoundTrip", testSettingsRoundTrip},
		{"InsertDuplicate", testInsertDuplicate},
		{"Update", testUpdate},
		{"ListPrefix", testListPrefix},
		{"Drop", testDrop},
		{"LeaseLifecycle", testLeaseLifecycle},
		{"DelayedMessage", testDelayedMessage},
		{"AckConditional", testAckConditional},
		{"TouchConditional", testTouchConditional},
		{"Clean", testClean},
		{"QueueIsolation", testQueueIsolation},
		{"ConcurrentLeaseExclusive", testConcurrentLease},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func settings(name string) queue.Settings {
	return queue.DefaultSettings(name, "http://localhost/"+name, base)
}

func lease(t *testing.T, q store.MessageQueue, now time.Time, visibility time.Duration) *queue.Message {
	t.Helper()
	m, err := q.Lease(context.Background(), queue.LeaseOptions{
		Now:           now,
		VisibleUntil:  now.Add(visibility),
		ReceiptHandle: uuid.NewString(),
	})
	require.NoError(t, err)
	return m
}

func testSettingsRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	want := settings("orders")
	want.Policy = `{"Version":"2012-10-17"}`
	require.NoError(t, s.Insert(ctx, want))

	byName, err := s.FindByName(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, want.URL, byName.URL)
	assert.Equal(t, want.VisibilityTimeout, byName.VisibilityTimeout)
	assert.Equal(t, want.MaximumMessageSize, byName.MaximumMessageSize)
	assert.Equal(t, want.Policy, byName.Policy)
	assert.True(t, want.Created.Equal(byName.Created))

	byURL, err := s.FindByURL(ctx, want.URL)
	require.NoError(t, err)
	assert.Equal(t, "orders", byURL.Name)

	_, err = s.FindByName(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.FindByURL(ctx, "http://localhost/missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testInsertDuplicate(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, settings("dup")))

	err := s.Insert(ctx, settings("dup"))
	assert.ErrorIs(t, err, store.ErrExists)

	sameURL := settings("other")
	sameURL.URL = "http://localhost/dup"
	assert.ErrorIs(t, s.Insert(ctx, sameURL), store.ErrExists)
}

func testUpdate(t *testing.T, s store.Store) {
	ctx := context.Background()
	st := settings("upd")
	require.NoError(t, s.Insert(ctx, st))

	vis := 120
	redrive := `{"maxReceiveCount":5}`
	ok, err := s.Update(ctx, st.URL, queue.AttributeSet{VisibilityTimeout: &vis, RedrivePolicy: &redrive})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.FindByURL(ctx, st.URL)
	require.NoError(t, err)
	assert.Equal(t, 120, got.VisibilityTimeout)
	assert.Equal(t, redrive, got.RedrivePolicy)
	assert.Equal(t, queue.DefaultDelaySeconds, got.DelaySeconds)

	ok, err = s.Update(ctx, "http://localhost/nope", queue.AttributeSet{VisibilityTimeout: &vis})
	require.NoError(t, err)
	assert.False(t, ok)
}

func testListPrefix(t *testing.T, s store.Store) {
	ctx := context.Background()
	for _, n := range []string{"beta", "alphaX", "alpha"} {
		require.NoError(t, s.Insert(ctx, settings(n)))
	}

	got, err := s.List(ctx, "alpha")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alpha", got[0].Name)
	assert.Equal(t, "alphaX", got[1].Name)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := s.List(ctx, "gamma")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testDrop(t *testing.T, s store.Store) {
	ctx := context.Background()
	st := settings("gone")
	require.NoError(t, s.Insert(ctx, st))
	_, err := s.Queue(st.URL).Add(ctx, "bye", base, base)
	require.NoError(t, err)

	require.NoError(t, s.Drop(ctx, st.URL))

	_, err = s.FindByURL(ctx, st.URL)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Nil(t, lease(t, s.Queue(st.URL), base.Add(time.Hour), time.Minute))

	// The name is free again.
	require.NoError(t, s.Insert(ctx, st))
}

func testLeaseLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	q := s.Queue("http://localhost/life")

	id, err := q.Add(ctx, "payload", base, base)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	first := lease(t, q, base, 30*time.Second)
	require.NotNil(t, first)
	assert.Equal(t, id, first.ID)
	assert.Equal(t, "payload", first.Body)
	assert.Equal(t, 1, first.Tries)
	assert.NotEmpty(t, first.ReceiptHandle)
	assert.True(t, first.SentAt.Equal(base))
	assert.True(t, first.FirstClaimedAt.Equal(base))
	assert.True(t, first.VisibleAt.Equal(base.Add(30*time.Second)))

	// Still in flight.
	assert.Nil(t, lease(t, q, base.Add(29*time.Second), 30*time.Second))

	later := base.Add(31 * time.Second)
	second := lease(t, q, later, 30*time.Second)
	require.NotNil(t, second)
	assert.Equal(t, id, second.ID)
	assert.Equal(t, 2, second.Tries)
	assert.NotEqual(t, first.ReceiptHandle, second.ReceiptHandle)
	assert.True(t, second.FirstClaimedAt.Equal(base), "first claim time must not move")
}

func testDelayedMessage(t *testing.T, s store.Store) {
	ctx := context.Background()
	q := s.Queue("http://localhost/delayed")

	_, err := q.Add(ctx, "later", base, base.Add(10*time.Second))
	require.NoError(t, err)

	assert.Nil(t, lease(t, q, base.Add(9*time.Second), time.Second))
	assert.NotNil(t, lease(t, q, base.Add(10*time.Second), time.Second))
}

func testAckConditional(t *testing.T, s store.Store) {
	ctx := context.Background()
	q := s.Queue("http://localhost/ack")

	_, err := q.Add(ctx, "x", base, base)
	require.NoError(t, err)
	first := lease(t, q, base, time.Second)
	require.NotNil(t, first)

	// Lease expires and is taken again; the first handle is stale now.
	second := lease(t, q, base.Add(2*time.Second), time.Second)
	require.NotNil(t, second)

	ok, err := q.Ack(ctx, first.ReceiptHandle, base.Add(2*time.Second))
	require.NoError(t, err)
	assert.False(t, ok, "stale handle must not match")

	ok, err = q.Ack(ctx, second.ReceiptHandle, base.Add(2*time.Second))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = q.Ack(ctx, second.ReceiptHandle, base.Add(2*time.Second))
	require.NoError(t, err)
	assert.False(t, ok, "already deleted")

	assert.Nil(t, lease(t, q, base.Add(time.Hour), time.Second))

	ok, err = q.Ack(ctx, "never-issued", base)
	require.NoError(t, err)
	assert.False(t, ok)
}

func testTouchConditional(t *testing.T, s store.Store) {
	ctx := context.Background()
	q := s.Queue("http://localhost/touch")

	_, err := q.Add(ctx, "x", base, base)
	require.NoError(t, err)
	m := lease(t, q, base, time.Second)
	require.NotNil(t, m)

	ok, err := q.Touch(ctx, m.ReceiptHandle, base.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Nil(t, lease(t, q, base.Add(30*time.Second), time.Second), "extended lease still active")
	again := lease(t, q, base.Add(61*time.Second), time.Second)
	require.NotNil(t, again)

	ok, err = q.Touch(ctx, m.ReceiptHandle, base.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok, "stale handle")

	ok, err = q.Ack(ctx, again.ReceiptHandle, base.Add(61*time.Second))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = q.Touch(ctx, again.ReceiptHandle, base.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok, "deleted message")
}

func testClean(t *testing.T, s store.Store) {
	ctx := context.Background()
	q := s.Queue("http://localhost/clean")

	_, err := q.Add(ctx, "old", base, base)
	require.NoError(t, err)
	_, err = q.Add(ctx, "acked", base.Add(time.Hour), base.Add(time.Hour))
	require.NoError(t, err)
	_, err = q.Add(ctx, "fresh", base.Add(2*time.Hour), base.Add(2*time.Hour))
	require.NoError(t, err)

	// Lease and ack "acked"; "old" is only visible from base so take it first.
	now := base.Add(90 * time.Minute)
	var acked *queue.Message
	for i := 0; i < 2; i++ {
		m := lease(t, q, now, time.Hour)
		require.NotNil(t, m)
		if m.Body == "acked" {
			acked = m
		}
	}
	require.NotNil(t, acked)
	ok, err := q.Ack(ctx, acked.ReceiptHandle, now)
	require.NoError(t, err)
	require.True(t, ok)

	n, err := q.Clean(ctx, base.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = q.Clean(ctx, base.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)

	m := lease(t, q, base.Add(3*time.Hour), time.Second)
	require.NotNil(t, m)
	assert.Equal(t, "fresh", m.Body)
	assert.Nil(t, lease(t, q, base.Add(3*time.Hour), time.Second))
}

func testQueueIsolation(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := s.Queue("http://localhost/a")
	b := s.Queue("http://localhost/b")

	_, err := a.Add(ctx, "for-a", base, base)
	require.NoError(t, err)

	assert.Nil(t, lease(t, b, base, time.Second))
	m := lease(t, a, base, time.Second)
	require.NotNil(t, m)
	assert.Equal(t, "for-a", m.Body)

	ok, err := b.Ack(ctx, m.ReceiptHandle, base)
	require.NoError(t, err)
	assert.False(t, ok, "handle belongs to another queue")
}

func testConcurrentLease(t *testing.T, s store.Store) {
	ctx := context.Background()
	q := s.Queue("http://localhost/race")

	const messages = 10
	const workers = 25
	for i := 0; i < messages; i++ {
		_, err := q.Add(ctx, "m", base, base)
		require.NoError(t, err)
	}

	var (
		mu   sync.Mutex
		seen = map[string]int{}
		wg   sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := q.Lease(ctx, queue.LeaseOptions{
				Now:           base,
				VisibleUntil:  base.Add(time.Minute),
				ReceiptHandle: uuid.NewString(),
			})
			if err != nil || m == nil {
				return
			}
			mu.Lock()
			seen[m.ID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, messages)
	for id, n := range seen {
		assert.Equal(t, 1, n, "message %s leased twice", id)
	}
}
