// Package lease implements message lifecycle operations on one resolved
// queue: enqueue, lease, acknowledge and visibility extension.
package lease

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/aridsondez/AWS-SQS-MOCK/internal/awserr"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/metrics"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue/store"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue/validate"
)

type Manager struct {
	q        store.MessageQueue
	settings queue.Settings
	clock    clockwork.Clock
}

func NewManager(q store.MessageQueue, settings queue.Settings, clock clockwork.Clock) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{q: q, settings: settings, clock: clock}
}

type SendResult struct {
	MessageID string
	MD5OfBody string
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// Enqueue stores body. A nil delay falls back to the queue's DelaySeconds.
func (m *Manager) Enqueue(ctx context.Context, body string, delay *int) (SendResult, error) {
	d := m.settings.DelaySeconds
	if delay != nil {
		d = *delay
	}
	now := m.clock.Now()
	id, err := m.q.Add(ctx, body, now, now.Add(seconds(d)))
	if err != nil {
		return SendResult{}, err
	}
	metrics.MessagesEnqueued.WithLabelValues(m.settings.Name).Inc()
	return SendResult{MessageID: id, MD5OfBody: queue.MD5(body)}, nil
}

// Lease claims one message for visibility seconds, or the queue's
// VisibilityTimeout when nil. It returns (nil, nil) when nothing is leasable.
func (m *Manager) Lease(ctx context.Context, visibility *int) (*queue.Message, error) {
	timeout := m.settings.VisibilityTimeout
	if visibility != nil {
		timeout = *visibility
	}
	now := m.clock.Now()
	msg, err := m.q.Lease(ctx, queue.LeaseOptions{
		Now:           now,
		VisibleUntil:  now.Add(seconds(timeout)),
		ReceiptHandle: uuid.NewString(),
	})
	if err != nil || msg == nil {
		return nil, err
	}
	metrics.MessagesReceived.WithLabelValues(m.settings.Name).Inc()
	return msg, nil
}

// LeaseN claims up to n messages, stopping at the first empty lease.
func (m *Manager) LeaseN(ctx context.Context, n int, visibility *int) ([]*queue.Message, error) {
	var out []*queue.Message
	for len(out) < n {
		msg, err := m.Lease(ctx, visibility)
		if err != nil {
			return nil, err
		}
		if msg == nil {
			break
		}
		out = append(out, msg)
	}
	return out, nil
}

type ReceiveOptions struct {
	MaxMessages int
	// VisibilityTimeout overrides the queue default when set.
	VisibilityTimeout *int
	Wait              time.Duration
	// PollInterval > 0 re-checks the queue during Wait and returns on the
	// first hit. Zero waits the full duration, then tries once.
	PollInterval time.Duration
}

// Receive leases up to opts.MaxMessages messages after the wait window.
func (m *Manager) Receive(ctx context.Context, opts ReceiveOptions) ([]*queue.Message, error) {
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = 1
	}
	if opts.Wait <= 0 {
		return m.LeaseN(ctx, opts.MaxMessages, opts.VisibilityTimeout)
	}

	if opts.PollInterval <= 0 {
		if err := m.sleep(ctx, opts.Wait); err != nil {
			return nil, err
		}
		return m.LeaseN(ctx, opts.MaxMessages, opts.VisibilityTimeout)
	}

	deadline := m.clock.Now().Add(opts.Wait)
	for {
		msgs, err := m.LeaseN(ctx, opts.MaxMessages, opts.VisibilityTimeout)
		if err != nil || len(msgs) > 0 {
			return msgs, err
		}
		remaining := deadline.Sub(m.clock.Now())
		if remaining <= 0 {
			return nil, nil
		}
		if err := m.sleep(ctx, min(opts.PollInterval, remaining)); err != nil {
			return nil, err
		}
	}
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.clock.After(d):
		return nil
	}
}

// Acknowledge deletes the message currently leased under handle. A stale
// or unknown handle is not an error.
func (m *Manager) Acknowledge(ctx context.Context, handle string) error {
	_, err := m.acknowledge(ctx, handle)
	return err
}

func (m *Manager) acknowledge(ctx context.Context, handle string) (bool, error) {
	ok, err := m.q.Ack(ctx, handle, m.clock.Now())
	if err != nil {
		return false, err
	}
	if ok {
		metrics.MessagesAcked.Inc()
	}
	return ok, nil
}

type BatchEntry struct {
	ID            string
	ReceiptHandle string
}

type BatchFailure struct {
	ID          string
	Code        string
	Message     string
	SenderFault bool
}

type BatchResult struct {
	Successful []string
	Failed     []BatchFailure
}

func failure(id string, e *awserr.Error) BatchFailure {
	return BatchFailure{ID: id, Code: e.Code, Message: e.Message, SenderFault: e.SenderFault}
}

// AcknowledgeBatch acknowledges every entry independently. Only a malformed
// batch (empty, too large, repeated Ids) fails as a whole; per-entry outcomes
// are reported in the result.
func (m *Manager) AcknowledgeBatch(ctx context.Context, entries []BatchEntry) (BatchResult, error) {
	if err := validate.BatchSize(len(entries)); err != nil {
		return BatchResult{}, err
	}
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			continue
		}
		if _, dup := seen[e.ID]; dup {
			return BatchResult{}, awserr.BatchEntryIdsNotDistinct(e.ID)
		}
		seen[e.ID] = struct{}{}
	}

	res := BatchResult{Successful: []string{}, Failed: []BatchFailure{}}
	for _, e := range entries {
		switch {
		case e.ID == "":
			res.Failed = append(res.Failed, failure(e.ID, awserr.MissingRequiredParameter("Id")))
			continue
		case e.ReceiptHandle == "":
			res.Failed = append(res.Failed, failure(e.ID, awserr.MissingRequiredParameter("ReceiptHandle")))
			continue
		}

		ok, err := m.acknowledge(ctx, e.ReceiptHandle)
		switch {
		case err != nil:
			res.Failed = append(res.Failed, BatchFailure{
				ID:      e.ID,
				Code:    awserr.CodeInternalError,
				Message: err.Error(),
			})
		case !ok:
			res.Failed = append(res.Failed, failure(e.ID, awserr.ReceiptHandleIsInvalid(e.ReceiptHandle)))
		default:
			res.Successful = append(res.Successful, e.ID)
		}
	}
	return res, nil
}

// ExtendVisibility makes the message leased under handle visible again
// timeout seconds from now. The ceiling is checked before the store is
// touched; a stale handle is not an error.
func (m *Manager) ExtendVisibility(ctx context.Context, handle string, timeout int) error {
	if err := validate.VisibilityTimeout(timeout); err != nil {
		return err
	}
	ok, err := m.q.Touch(ctx, handle, m.clock.Now().Add(seconds(timeout)))
	if err != nil {
		return err
	}
	if ok {
		metrics.VisibilityChanges.Inc()
	}
	return nil
}
