package store

import (
	"context"
	"errors"
	"time"

	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue"
)

var (
	// ErrNotFound is returned when no queue settings match.
	ErrNotFound = errors.New("store: queue not found")
	// ErrExists is returned by Insert when the name or URL is taken.
	ErrExists = errors.New("store: queue already exists")
)

// Store is the DB-agnostic persistence the queue engine uses. Stores never
// read the wall clock; every timestamp comes from the caller.
type Store interface {
	// FindByName returns the settings of the queue called name.
	FindByName(ctx context.Context, name string) (queue.Settings, error)

	// FindByURL returns the settings of the queue at url.
	FindByURL(ctx context.Context, url string) (queue.Settings, error)

	// Insert persists new settings; ErrExists if name or URL is taken.
	Insert(ctx context.Context, s queue.Settings) error

	// Update merges attrs into the settings at url. It reports whether a
	// queue matched.
	Update(ctx context.Context, url string, attrs queue.AttributeSet) (bool, error)

	// List returns every queue whose name starts with prefix, ordered by name.
	List(ctx context.Context, prefix string) ([]queue.Settings, error)

	// Drop removes the settings and every message of the queue at url.
	Drop(ctx context.Context, url string) error

	// Queue returns the message store of the queue at url.
	Queue(url string) MessageQueue

	Close() error
}

// MessageQueue is one queue's message store. Lease, Ack and Touch are atomic
// conditional updates: concurrent callers never observe the same match.
type MessageQueue interface {
	// Add inserts a message and returns its store-assigned ID.
	Add(ctx context.Context, body string, sentAt, visibleAt time.Time) (string, error)

	// Lease claims one leasable message. It returns (nil, nil) when there is none.
	Lease(ctx context.Context, opts queue.LeaseOptions) (*queue.Message, error)

	// Ack marks the message holding receiptHandle deleted. It reports whether
	// a non-deleted message matched.
	Ack(ctx context.Context, receiptHandle string, now time.Time) (bool, error)

	// Touch moves VisibleAt of the message holding receiptHandle. It reports
	// whether a non-deleted message matched.
	Touch(ctx context.Context, receiptHandle string, visibleUntil time.Time) (bool, error)

	// Clean removes deleted messages and messages sent before sentBefore.
	Clean(ctx context.Context, sentBefore time.Time) (int, error)
}
