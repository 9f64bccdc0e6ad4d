// Package memory is an in-process store. It is the default backend and the
// one the engine tests run against.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue/store"
)

var (
	_ store.Store        = (*Store)(nil)
	_ store.MessageQueue = (*messageQueue)(nil)
)

type Store struct {
	mu       sync.RWMutex
	settings map[string]queue.Settings // by URL
	names    map[string]string         // name -> URL
	queues   map[string]*messageQueue
}

func New() *Store {
	return &Store{
		settings: make(map[string]queue.Settings),
		names:    make(map[string]string),
		queues:   make(map[string]*messageQueue),
	}
}

func (s *Store) FindByName(_ context.Context, name string) (queue.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	url, ok := s.names[name]
	if !ok {
		return queue.Settings{}, store.ErrNotFound
	}
	return s.settings[url], nil
}

func (s *Store) FindByURL(_ context.Context, url string) (queue.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.settings[url]
	if !ok {
		return queue.Settings{}, store.ErrNotFound
	}
	return st, nil
}

func (s *Store) Insert(_ context.Context, st queue.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.names[st.Name]; ok {
		return store.ErrExists
	}
	if _, ok := s.settings[st.URL]; ok {
		return store.ErrExists
	}
	s.settings[st.URL] = st
	s.names[st.Name] = st.URL
	return nil
}

func (s *Store) Update(_ context.Context, url string, attrs queue.AttributeSet) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.settings[url]
	if !ok {
		return false, nil
	}
	st.Apply(attrs)
	s.settings[url] = st
	return true, nil
}

func (s *Store) List(_ context.Context, prefix string) ([]queue.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]queue.Settings, 0, len(s.settings))
	for _, st := range s.settings {
		if strings.HasPrefix(st.Name, prefix) {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) Drop(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.settings[url]; ok {
		delete(s.names, st.Name)
		delete(s.settings, url)
	}
	if q, ok := s.queues[url]; ok {
		q.reset()
		delete(s.queues, url)
	}
	return nil
}

func (s *Store) Queue(url string) store.MessageQueue {
	s.mu.RLock()
	q, ok := s.queues[url]
	s.mu.RUnlock()
	if ok {
		return q
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok = s.queues[url]; !ok {
		q = &messageQueue{}
		s.queues[url] = q
	}
	return q
}

func (s *Store) Close() error { return nil }

// messageQueue keeps messages in send order; Lease returns the oldest
// leasable one.
type messageQueue struct {
	mu       sync.Mutex
	messages []*queue.Message
}

func (q *messageQueue) reset() {
	q.mu.Lock()
	q.messages = nil
	q.mu.Unlock()
}

func (q *messageQueue) Add(_ context.Context, body string, sentAt, visibleAt time.Time) (string, error) {
	m := &queue.Message{
		ID:        uuid.NewString(),
		Body:      body,
		SentAt:    sentAt,
		VisibleAt: visibleAt,
	}
	q.mu.Lock()
	q.messages = append(q.messages, m)
	q.mu.Unlock()
	return m.ID, nil
}

func (q *messageQueue) Lease(_ context.Context, opts queue.LeaseOptions) (*queue.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, m := range q.messages {
		if !m.Leasable(opts.Now) {
			continue
		}
		m.ReceiptHandle = opts.ReceiptHandle
		m.VisibleAt = opts.VisibleUntil
		m.Tries++
		if m.FirstClaimedAt.IsZero() {
			m.FirstClaimedAt = opts.Now
		}
		out := *m
		return &out, nil
	}
	return nil, nil
}

func (q *messageQueue) find(handle string) *queue.Message {
	if handle == "" {
		return nil
	}
	for _, m := range q.messages {
		if !m.Deleted && m.ReceiptHandle == handle {
			return m
		}
	}
	return nil
}

func (q *messageQueue) Ack(_ context.Context, handle string, _ time.Time) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	m := q.find(handle)
	if m == nil {
		return false, nil
	}
	m.Deleted = true
	return true, nil
}

func (q *messageQueue) Touch(_ context.Context, handle string, visibleUntil time.Time) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	m := q.find(handle)
	if m == nil {
		return false, nil
	}
	m.VisibleAt = visibleUntil
	return true, nil
}

func (q *messageQueue) Clean(_ context.Context, sentBefore time.Time) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.messages[:0]
	removed := 0
	for _, m := range q.messages {
		if m.Deleted || m.SentAt.Before(sentBefore) {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	for i := len(kept); i < len(q.messages); i++ {
		q.messages[i] = nil
	}
	q.messages = kept
	return removed, nil
}
