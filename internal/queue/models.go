package queue

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"
)

// Attribute defaults applied when a queue is created or auto-created.
const (
	DefaultDelaySeconds                  = 0
	DefaultMaximumMessageSize            = 262144
	DefaultMessageRetentionPeriod        = 345600
	DefaultReceiveMessageWaitTimeSeconds = 0
	DefaultVisibilityTimeout             = 30

	// MaxVisibilityTimeout is the ceiling enforced on caller supplied timeouts.
	MaxVisibilityTimeout = 43200
)

// Settings is the persisted attribute record of a queue.
type Settings struct {
	Name    string
	URL     string
	Created time.Time

	DelaySeconds                  int
	MaximumMessageSize            int
	MessageRetentionPeriod        int
	ReceiveMessageWaitTimeSeconds int
	VisibilityTimeout             int

	// Opaque pass-through values; empty means unset.
	Policy        string
	RedrivePolicy string
}

// DefaultSettings returns the settings a queue gets when nothing is supplied.
func DefaultSettings(name, url string, created time.Time) Settings {
	return Settings{
		Name:                          name,
		URL:                           url,
		Created:                       created.UTC(),
		DelaySeconds:                  DefaultDelaySeconds,
		MaximumMessageSize:            DefaultMaximumMessageSize,
		MessageRetentionPeriod:        DefaultMessageRetentionPeriod,
		ReceiveMessageWaitTimeSeconds: DefaultReceiveMessageWaitTimeSeconds,
		VisibilityTimeout:             DefaultVisibilityTimeout,
	}
}

// Message is one record in a queue's message store.
type Message struct {
	ID     string
	Body   string
	SentAt time.Time

	// VisibleAt is zero when unset.
	VisibleAt      time.Time
	ReceiptHandle  string
	Tries          int
	FirstClaimedAt time.Time
	Deleted        bool
}

// Leasable reports whether the message may be returned by a lease at now.
func (m *Message) Leasable(now time.Time) bool {
	if m.Deleted {
		return false
	}
	return m.VisibleAt.IsZero() || !m.VisibleAt.After(now)
}

// LeaseOptions controls a single lease acquisition against a message store.
type LeaseOptions struct {
	Now           time.Time
	VisibleUntil  time.Time
	ReceiptHandle string
}

// MD5 returns the hex MD5 of body, as reported by the emulated API.
func MD5(body string) string {
	sum := md5.Sum([]byte(body))
	return hex.EncodeToString(sum[:])
}

// QueueURL derives the URL of the queue called name.
func QueueURL(endpoint, name string) string {
	return strings.TrimRight(endpoint, "/") + "/" + name
}

// NameFromURL returns the trailing path segment of a queue URL.
func NameFromURL(url string) string {
	url = strings.TrimRight(url, "/")
	if i := strings.LastIndex(url, "/"); i >= 0 {
		return url[i+1:]
	}
	return url
}
