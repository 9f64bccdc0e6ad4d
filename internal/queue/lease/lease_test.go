package lease

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aridsondez/AWS-SQS-MOCK/internal/awserr"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue/store"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue/store/memory"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// spyQueue fails Ack for one handle and counts Touch calls.
type spyQueue struct {
	store.MessageQueue
	failHandle string
	touches    int
}

func (s *spyQueue) Ack(ctx context.Context, handle string, now time.Time) (bool, error) {
	if handle == s.failHandle {
		return false, errors.New("connection reset by peer")
	}
	return s.MessageQueue.Ack(ctx, handle, now)
}

func (s *spyQueue) Touch(ctx context.Context, handle string, until time.Time) (bool, error) {
	s.touches++
	return s.MessageQueue.Touch(ctx, handle, until)
}

func newTestManager(t *testing.T, mutate func(*queue.Settings)) (*Manager, *clockwork.FakeClock, *spyQueue) {
	t.Helper()
	settings := queue.DefaultSettings("jobs", "http://localhost/jobs", epoch)
	if mutate != nil {
		mutate(&settings)
	}
	clock := clockwork.NewFakeClockAt(epoch)
	spy := &spyQueue{MessageQueue: memory.New().Queue(settings.URL)}
	return NewManager(spy, settings, clock), clock, spy
}

func intp(v int) *int { return &v }

func TestEnqueue(t *testing.T) {
	m, _, _ := newTestManager(t, nil)

	res, err := m.Enqueue(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, res.MessageID)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", res.MD5OfBody)
}

func TestEnqueue_Delay(t *testing.T) {
	ctx := context.Background()

	t.Run("explicit", func(t *testing.T) {
		m, clock, _ := newTestManager(t, nil)
		_, err := m.Enqueue(ctx, "later", intp(10))
		require.NoError(t, err)

		msg, err := m.Lease(ctx, nil)
		require.NoError(t, err)
		assert.Nil(t, msg)

		clock.Advance(10 * time.Second)
		msg, err = m.Lease(ctx, nil)
		require.NoError(t, err)
		assert.NotNil(t, msg)
	})

	t.Run("queue default", func(t *testing.T) {
		m, clock, _ := newTestManager(t, func(s *queue.Settings) { s.DelaySeconds = 5 })
		_, err := m.Enqueue(ctx, "later", nil)
		require.NoError(t, err)

		clock.Advance(4 * time.Second)
		msg, err := m.Lease(ctx, nil)
		require.NoError(t, err)
		assert.Nil(t, msg)

		clock.Advance(time.Second)
		msg, err = m.Lease(ctx, nil)
		require.NoError(t, err)
		assert.NotNil(t, msg)
	})

	t.Run("zero overrides queue default", func(t *testing.T) {
		m, _, _ := newTestManager(t, func(s *queue.Settings) { s.DelaySeconds = 5 })
		_, err := m.Enqueue(ctx, "now", intp(0))
		require.NoError(t, err)
		msg, err := m.Lease(ctx, nil)
		require.NoError(t, err)
		assert.NotNil(t, msg)
	})
}

func TestLease(t *testing.T) {
	ctx := context.Background()
	m, clock, _ := newTestManager(t, nil)

	msg, err := m.Lease(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, msg, "empty queue is not an error")

	sent, err := m.Enqueue(ctx, "work", nil)
	require.NoError(t, err)

	first, err := m.Lease(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, sent.MessageID, first.ID)
	assert.Equal(t, 1, first.Tries)
	assert.True(t, first.VisibleAt.Equal(epoch.Add(30*time.Second)))
	assert.True(t, first.FirstClaimedAt.Equal(epoch))

	again, err := m.Lease(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, again, "leased message is invisible")

	clock.Advance(30 * time.Second)
	second, err := m.Lease(ctx, intp(5))
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, 2, second.Tries)
	assert.NotEqual(t, first.ReceiptHandle, second.ReceiptHandle)
	assert.True(t, second.FirstClaimedAt.Equal(epoch))
	assert.True(t, second.VisibleAt.Equal(epoch.Add(35*time.Second)))
}

func TestLeaseN(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t, nil)
	for i := 0; i < 3; i++ {
		_, err := m.Enqueue(ctx, "m", nil)
		require.NoError(t, err)
	}

	msgs, err := m.LeaseN(ctx, 10, nil)
	require.NoError(t, err)
	assert.Len(t, msgs, 3)

	msgs, err = m.LeaseN(ctx, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestAcknowledge(t *testing.T) {
	ctx := context.Background()
	m, clock, _ := newTestManager(t, nil)
	_, err := m.Enqueue(ctx, "x", nil)
	require.NoError(t, err)

	stale, err := m.Lease(ctx, intp(1))
	require.NoError(t, err)
	clock.Advance(time.Second)
	current, err := m.Lease(ctx, intp(1))
	require.NoError(t, err)

	require.NoError(t, m.Acknowledge(ctx, stale.ReceiptHandle), "stale handle is a no-op")
	clock.Advance(time.Second)
	still, err := m.Lease(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, still, "stale ack must not delete")

	require.NoError(t, m.Acknowledge(ctx, still.ReceiptHandle))
	require.NoError(t, m.Acknowledge(ctx, still.ReceiptHandle), "double ack is a no-op")
	require.NoError(t, m.Acknowledge(ctx, current.ReceiptHandle))

	clock.Advance(time.Hour)
	gone, err := m.Lease(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestAcknowledgeBatch(t *testing.T) {
	ctx := context.Background()
	m, _, spy := newTestManager(t, nil)
	for i := 0; i < 3; i++ {
		_, err := m.Enqueue(ctx, "m", nil)
		require.NoError(t, err)
	}
	msgs, err := m.LeaseN(ctx, 3, nil)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	spy.failHandle = msgs[2].ReceiptHandle

	res, err := m.AcknowledgeBatch(ctx, []BatchEntry{
		{ID: "ok", ReceiptHandle: msgs[0].ReceiptHandle},
		{ID: "stale", ReceiptHandle: "not-a-live-handle"},
		{ID: "nohandle"},
		{ID: "broken", ReceiptHandle: msgs[2].ReceiptHandle},
		{ID: "ok2", ReceiptHandle: msgs[1].ReceiptHandle},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ok", "ok2"}, res.Successful)
	require.Len(t, res.Failed, 3)

	assert.Equal(t, "stale", res.Failed[0].ID)
	assert.Equal(t, awserr.CodeReceiptHandleIsInvalid, res.Failed[0].Code)
	assert.True(t, res.Failed[0].SenderFault)

	assert.Equal(t, "nohandle", res.Failed[1].ID)
	assert.Equal(t, awserr.CodeMissingRequiredParameter, res.Failed[1].Code)

	assert.Equal(t, "broken", res.Failed[2].ID)
	assert.Equal(t, awserr.CodeInternalError, res.Failed[2].Code)
	assert.False(t, res.Failed[2].SenderFault)
	assert.Contains(t, res.Failed[2].Message, "connection reset")
}

func TestAcknowledgeBatch_Malformed(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t, nil)

	_, err := m.AcknowledgeBatch(ctx, nil)
	assert.True(t, awserr.Is(err, awserr.CodeEmptyBatchRequest))

	_, err = m.AcknowledgeBatch(ctx, []BatchEntry{{ID: "a", ReceiptHandle: "h1"}, {ID: "a", ReceiptHandle: "h2"}})
	assert.True(t, awserr.Is(err, awserr.CodeBatchEntryIdsNotDistinct))

	many := make([]BatchEntry, 11)
	for i := range many {
		many[i] = BatchEntry{ID: string(rune('a' + i)), ReceiptHandle: "h"}
	}
	_, err = m.AcknowledgeBatch(ctx, many)
	assert.True(t, awserr.Is(err, awserr.CodeTooManyEntriesInBatch))
}

func TestExtendVisibility(t *testing.T) {
	ctx := context.Background()
	m, clock, spy := newTestManager(t, nil)
	_, err := m.Enqueue(ctx, "x", nil)
	require.NoError(t, err)
	msg, err := m.Lease(ctx, nil)
	require.NoError(t, err)

	t.Run("ceiling checked before store", func(t *testing.T) {
		err := m.ExtendVisibility(ctx, msg.ReceiptHandle, 43201)
		e, ok := awserr.As(err)
		require.True(t, ok)
		assert.Equal(t, awserr.CodeInvalidParameterValue, e.Code)
		assert.Contains(t, e.Message, "43201")
		assert.Zero(t, spy.touches)
	})

	require.NoError(t, m.ExtendVisibility(ctx, msg.ReceiptHandle, 60))
	assert.Equal(t, 1, spy.touches)

	clock.Advance(59 * time.Second)
	none, err := m.Lease(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, none)

	clock.Advance(time.Second)
	back, err := m.Lease(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, back)

	require.NoError(t, m.ExtendVisibility(ctx, msg.ReceiptHandle, 0), "stale handle is a no-op")
}

func TestReceive_FixedWait(t *testing.T) {
	ctx := context.Background()
	m, clock, _ := newTestManager(t, nil)

	done := make(chan []*queue.Message, 1)
	go func() {
		msgs, err := m.Receive(ctx, ReceiveOptions{MaxMessages: 1, Wait: 20 * time.Second})
		assert.NoError(t, err)
		done <- msgs
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	// Arrives during the wait; the single attempt at the end sees it.
	_, err := m.Enqueue(ctx, "late", nil)
	require.NoError(t, err)

	select {
	case <-done:
		t.Fatal("returned before the wait elapsed")
	default:
	}

	clock.Advance(20 * time.Second)
	select {
	case msgs := <-done:
		require.Len(t, msgs, 1)
		assert.Equal(t, "late", msgs[0].Body)
	case <-time.After(5 * time.Second):
		t.Fatal("receive did not return")
	}
}

func TestReceive_PollInterval(t *testing.T) {
	ctx := context.Background()
	m, clock, _ := newTestManager(t, nil)

	done := make(chan []*queue.Message, 1)
	go func() {
		msgs, err := m.Receive(ctx, ReceiveOptions{
			MaxMessages:  1,
			Wait:         20 * time.Second,
			PollInterval: time.Second,
		})
		assert.NoError(t, err)
		done <- msgs
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	_, err := m.Enqueue(ctx, "soon", nil)
	require.NoError(t, err)
	clock.Advance(time.Second)

	select {
	case msgs := <-done:
		require.Len(t, msgs, 1)
		assert.Equal(t, "soon", msgs[0].Body)
	case <-time.After(5 * time.Second):
		t.Fatal("receive did not return after one interval")
	}
}

func TestReceive_Canceled(t *testing.T) {
	m, clock, _ := newTestManager(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() {
		_, err := m.Receive(ctx, ReceiveOptions{MaxMessages: 1, Wait: 20 * time.Second})
		errc <- err
	}()

	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("receive ignored cancellation")
	}
}
