// Package redis stores queues in Redis. Conditional message updates run as
// Lua scripts so concurrent servers sharing one Redis never double-lease.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue/store"
)

var _ store.Store = (*Store)(nil)

const (
	DefaultPrefix = "sqsmock"
	updateRetries = 3
)

type Store struct {
	client goredis.UniversalClient
	prefix string
}

func New(client goredis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) settingsKey() string { return "{" + s.prefix + "}:settings" }
func (s *Store) namesKey() string    { return "{" + s.prefix + "}:names" }

// messageKeys share the {url} hash tag so scripts stay on one cluster slot.
func (s *Store) messageKeys(url string) []string {
	keys := make([]string, numKeys)
	for i, suffix := range messageKeySuffixes {
		keys[i] = s.prefix + ":{" + url + "}:" + suffix
	}
	return keys
}

// settingsRecord is the JSON layout of one entry in the settings hash.
type settingsRecord struct {
	Name                          string `json:"name"`
	URL                           string `json:"url"`
	CreatedMs                     int64  `json:"created_ms"`
	DelaySeconds                  int    `json:"delay_seconds"`
	MaximumMessageSize            int    `json:"maximum_message_size"`
	MessageRetentionPeriod        int    `json:"message_retention_period"`
	ReceiveMessageWaitTimeSeconds int    `json:"receive_message_wait_time_seconds"`
	VisibilityTimeout             int    `json:"visibility_timeout"`
	Policy                        string `json:"policy,omitempty"`
	RedrivePolicy                 string `json:"redrive_policy,omitempty"`
}

func encodeSettings(st queue.Settings) (string, error) {
	b, err := json.Marshal(settingsRecord{
		Name:                          st.Name,
		URL:                           st.URL,
		CreatedMs:                     st.Created.UnixMilli(),
		DelaySeconds:                  st.DelaySeconds,
		MaximumMessageSize:            st.MaximumMessageSize,
		MessageRetentionPeriod:        st.MessageRetentionPeriod,
		ReceiveMessageWaitTimeSeconds: st.ReceiveMessageWaitTimeSeconds,
		VisibilityTimeout:             st.VisibilityTimeout,
		Policy:                        st.Policy,
		RedrivePolicy:                 st.RedrivePolicy,
	})
	return string(b), err
}

func decodeSettings(raw string) (queue.Settings, error) {
	var r settingsRecord
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return queue.Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return queue.Settings{
		Name:                          r.Name,
		URL:                           r.URL,
		Created:                       time.UnixMilli(r.CreatedMs).UTC(),
		DelaySeconds:                  r.DelaySeconds,
		MaximumMessageSize:            r.MaximumMessageSize,
		MessageRetentionPeriod:        r.MessageRetentionPeriod,
		ReceiveMessageWaitTimeSeconds: r.ReceiveMessageWaitTimeSeconds,
		VisibilityTimeout:             r.VisibilityTimeout,
		Policy:                        r.Policy,
		RedrivePolicy:                 r.RedrivePolicy,
	}, nil
}

func (s *Store) FindByName(ctx context.Context, name string) (queue.Settings, error) {
	url, err := s.client.HGet(ctx, s.namesKey(), name).Result()
	if errors.Is(err, goredis.Nil) {
		return queue.Settings{}, store.ErrNotFound
	}
	if err != nil {
		return queue.Settings{}, err
	}
	return s.FindByURL(ctx, url)
}

func (s *Store) FindByURL(ctx context.Context, url string) (queue.Settings, error) {
	raw, err := s.client.HGet(ctx, s.settingsKey(), url).Result()
	if errors.Is(err, goredis.Nil) {
		return queue.Settings{}, store.ErrNotFound
	}
	if err != nil {
		return queue.Settings{}, err
	}
	return decodeSettings(raw)
}

func (s *Store) Insert(ctx context.Context, st queue.Settings) error {
	raw, err := encodeSettings(st)
	if err != nil {
		return err
	}
	ok, err := insertScript.Run(ctx, s.client,
		[]string{s.settingsKey(), s.namesKey()}, st.URL, st.Name, raw).Int()
	if err != nil {
		return err
	}
	if ok == 0 {
		return store.ErrExists
	}
	return nil
}

// Update is an optimistic read-modify-write on the settings entry.
func (s *Store) Update(ctx context.Context, url string, attrs queue.AttributeSet) (bool, error) {
	found := false
	txf := func(tx *goredis.Tx) error {
		raw, err := tx.HGet(ctx, s.settingsKey(), url).Result()
		if errors.Is(err, goredis.Nil) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		st, err := decodeSettings(raw)
		if err != nil {
			return err
		}
		st.Apply(attrs)
		enc, err := encodeSettings(st)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, s.settingsKey(), url, enc)
			return nil
		})
		found = err == nil
		return err
	}

	var err error
	for i := 0; i < updateRetries; i++ {
		err = s.client.Watch(ctx, txf, s.settingsKey())
		if !errors.Is(err, goredis.TxFailedErr) {
			return found, err
		}
	}
	return false, fmt.Errorf("update %s: %w", url, err)
}

func (s *Store) List(ctx context.Context, prefix string) ([]queue.Settings, error) {
	all, err := s.client.HGetAll(ctx, s.settingsKey()).Result()
	if err != nil {
		return nil, err
	}
	out := make([]queue.Settings, 0, len(all))
	for _, raw := range all {
		st, err := decodeSettings(raw)
		if err != nil {
			return nil, err
		}
		if strings.HasPrefix(st.Name, prefix) {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Drop removes the settings entry atomically with its name, then the
// message keys, which live in another hash slot.
func (s *Store) Drop(ctx context.Context, url string) error {
	if err := dropScript.Run(ctx, s.client, []string{s.settingsKey(), s.namesKey()}, url).Err(); err != nil {
		return fmt.Errorf("drop %s: %w", url, err)
	}
	return s.client.Del(ctx, s.messageKeys(url)...).Err()
}

func (s *Store) Queue(url string) store.MessageQueue {
	return &messageQueue{client: s.client, keys: s.messageKeys(url)}
}

func (s *Store) Close() error {
	return s.client.Close()
}

type messageQueue struct {
	client goredis.UniversalClient
	keys   []string
}

func ms(t time.Time) int64 { return t.UnixMilli() }

func (q *messageQueue) Add(ctx context.Context, body string, sentAt, visibleAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := q.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, q.keys[keyBody], id, body)
		pipe.ZAdd(ctx, q.keys[keySent], goredis.Z{Score: float64(ms(sentAt)), Member: id})
		pipe.ZAdd(ctx, q.keys[keyVisible], goredis.Z{Score: float64(ms(visibleAt)), Member: id})
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (q *messageQueue) Lease(ctx context.Context, opts queue.LeaseOptions) (*queue.Message, error) {
	res, err := leaseScript.Run(ctx, q.client, q.keys,
		ms(opts.Now), ms(opts.VisibleUntil), opts.ReceiptHandle).StringSlice()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) != 5 {
		return nil, fmt.Errorf("lease: unexpected reply length %d", len(res))
	}

	sent, err := parseMs(res[2])
	if err != nil {
		return nil, err
	}
	tries, err := strconv.Atoi(res[3])
	if err != nil {
		return nil, fmt.Errorf("lease: tries: %w", err)
	}
	first, err := parseMs(res[4])
	if err != nil {
		return nil, err
	}
	return &queue.Message{
		ID:             res[0],
		Body:           res[1],
		SentAt:         sent,
		VisibleAt:      time.UnixMilli(ms(opts.VisibleUntil)).UTC(),
		ReceiptHandle:  opts.ReceiptHandle,
		Tries:          tries,
		FirstClaimedAt: first,
	}, nil
}

// parseMs reads a millisecond timestamp that may come back as a float score.
func parseMs(v string) (time.Time, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", v, err)
	}
	return time.UnixMilli(int64(f)).UTC(), nil
}

func (q *messageQueue) Ack(ctx context.Context, handle string, _ time.Time) (bool, error) {
	n, err := ackScript.Run(ctx, q.client, q.keys, handle).Int()
	return n == 1, err
}

func (q *messageQueue) Touch(ctx context.Context, handle string, visibleUntil time.Time) (bool, error) {
	n, err := touchScript.Run(ctx, q.client, q.keys, handle, ms(visibleUntil)).Int()
	return n == 1, err
}

func (q *messageQueue) Clean(ctx context.Context, sentBefore time.Time) (int, error) {
	return cleanScript.Run(ctx, q.client, q.keys, ms(sentBefore)).Int()
}
