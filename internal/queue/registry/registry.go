// Package registry maps queue URLs to their settings. Settings are cached in
// process for a short TTL so servers sharing one store converge; queues
// referenced by URL that do not exist yet are created with default attributes
// on first use.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/aridsondez/AWS-SQS-MOCK/internal/awserr"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/metrics"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue/store"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue/validate"
)

const (
	DefaultEndpoint = "http://localhost"
	DefaultCacheTTL = 5 * time.Second
)

type Options struct {
	// Endpoint is the base of every queue URL.
	Endpoint string
	Clock    clockwork.Clock
	Logger   *zap.SugaredLogger

	// VisibilityTimeout, when > 0, replaces the default for new queues.
	VisibilityTimeout int

	// CacheTTL bounds how long cached settings are trusted. Zero means
	// DefaultCacheTTL; negative disables the cache.
	CacheTTL time.Duration
}

type cacheEntry struct {
	settings queue.Settings
	expires  time.Time
}

type Registry struct {
	store    store.Store
	endpoint string
	clock    clockwork.Clock
	log      *zap.SugaredLogger
	vis      int
	ttl      time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry // by requested URL
	group singleflight.Group
}

func New(s store.Store, opts Options) *Registry {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	return &Registry{
		store:    s,
		endpoint: opts.Endpoint,
		clock:    opts.Clock,
		log:      opts.Logger,
		vis:      opts.VisibilityTimeout,
		ttl:      opts.CacheTTL,
		cache:    make(map[string]cacheEntry),
	}
}

func (r *Registry) defaults(name, url string) queue.Settings {
	s := queue.DefaultSettings(name, url, r.clock.Now())
	if r.vis > 0 {
		s.VisibilityTimeout = r.vis
	}
	return s
}

// Store returns the backing store.
func (r *Registry) Store() store.Store { return r.store }

func (r *Registry) cached(url string) (queue.Settings, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.cache[url]
	if !ok || !r.clock.Now().Before(e.expires) {
		return queue.Settings{}, false
	}
	return e.settings, true
}

// put caches s under the URL it was requested by, which may differ from
// s.URL when a client spells the queue's URL differently.
func (r *Registry) put(url string, s queue.Settings) {
	if r.ttl < 0 {
		return
	}
	r.mu.Lock()
	r.cache[url] = cacheEntry{settings: s, expires: r.clock.Now().Add(r.ttl)}
	r.mu.Unlock()
}

// evict drops every cache entry pointing at the queue stored under url.
func (r *Registry) evict(url string) {
	r.mu.Lock()
	for k, e := range r.cache {
		if k == url || e.settings.URL == url {
			delete(r.cache, k)
		}
	}
	r.mu.Unlock()
}

// Resolve returns the settings of the queue at url, creating the queue with
// default attributes when it does not exist. The name is the URL's trailing
// path segment; a URL naming an existing queue under another spelling
// resolves to that queue.
func (r *Registry) Resolve(ctx context.Context, url string) (queue.Settings, error) {
	if s, ok := r.cached(url); ok {
		return s, nil
	}
	if url == "" || queue.NameFromURL(url) == "" {
		return queue.Settings{}, awserr.InvalidParameterValue(url, "QueueUrl does not name a queue")
	}
	// The flight outlives any one caller.
	fctx := context.WithoutCancel(ctx)
	v, err, _ := r.group.Do(url, func() (any, error) {
		s, err := r.store.FindByURL(fctx, url)
		if errors.Is(err, store.ErrNotFound) {
			return r.autoCreate(fctx, url)
		}
		if err != nil {
			return queue.Settings{}, err
		}
		r.put(url, s)
		return s, nil
	})
	if err != nil {
		return queue.Settings{}, err
	}
	return v.(queue.Settings), nil
}

func (r *Registry) autoCreate(ctx context.Context, url string) (queue.Settings, error) {
	name := queue.NameFromURL(url)
	s := r.defaults(name, url)
	err := r.store.Insert(ctx, s)
	switch {
	case errors.Is(err, store.ErrExists):
		// Either another creator won the race for url, or name is already
		// taken by a queue stored under a different URL.
		s, err = r.store.FindByURL(ctx, url)
		if errors.Is(err, store.ErrNotFound) {
			s, err = r.store.FindByName(ctx, name)
		}
		if errors.Is(err, store.ErrNotFound) {
			return queue.Settings{}, awserr.QueueDoesNotExist()
		}
		if err != nil {
			return queue.Settings{}, fmt.Errorf("resolve %s: %w", url, err)
		}
	case err != nil:
		return queue.Settings{}, err
	default:
		metrics.QueuesCreated.Inc()
		r.log.Infow("queue auto-created", "queue", s.Name, "url", url)
	}
	r.put(url, s)
	return s, nil
}

// Get returns the settings of an existing queue without auto-creating it.
func (r *Registry) Get(ctx context.Context, url string) (queue.Settings, error) {
	if s, ok := r.cached(url); ok {
		return s, nil
	}
	s, err := r.store.FindByURL(ctx, url)
	if errors.Is(err, store.ErrNotFound) {
		return queue.Settings{}, awserr.QueueDoesNotExist()
	}
	if err != nil {
		return queue.Settings{}, err
	}
	r.put(url, s)
	return s, nil
}

// Lookup returns the URL of the queue called name.
func (r *Registry) Lookup(ctx context.Context, name string) (string, error) {
	s, err := r.store.FindByName(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return "", awserr.QueueDoesNotExist()
	}
	if err != nil {
		return "", err
	}
	return s.URL, nil
}

// Create makes a queue called name with attrs applied over the defaults. It
// is idempotent: an existing queue's URL is returned and its attributes are
// left unchanged.
func (r *Registry) Create(ctx context.Context, name string, attrs queue.AttributeSet) (string, error) {
	existing, err := r.store.FindByName(ctx, name)
	if err == nil {
		return existing.URL, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	s := r.defaults(name, queue.QueueURL(r.endpoint, name))
	s.Apply(attrs)
	err = r.store.Insert(ctx, s)
	if errors.Is(err, store.ErrExists) {
		existing, err = r.store.FindByName(ctx, name)
		if err != nil {
			return "", err
		}
		return existing.URL, nil
	}
	if err != nil {
		return "", err
	}

	metrics.QueuesCreated.Inc()
	r.put(s.URL, s)
	r.log.Infow("queue created", "queue", name, "url", s.URL)
	return s.URL, nil
}

// List returns the URLs of every queue whose name starts with prefix.
// Reserved storage names never appear.
func (r *Registry) List(ctx context.Context, prefix string) ([]string, error) {
	all, err := r.store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(all))
	for _, s := range all {
		if validate.IsReserved(s.Name) {
			continue
		}
		urls = append(urls, s.URL)
	}
	return urls, nil
}

// UpdateAttributes merges attrs into the queue at url. An unknown URL is a
// silent no-op.
func (r *Registry) UpdateAttributes(ctx context.Context, url string, attrs queue.AttributeSet) error {
	ok, err := r.store.Update(ctx, url, attrs)
	if err != nil {
		return err
	}
	if !ok {
		r.log.Debugw("attribute update matched no queue", "url", url)
		return nil
	}

	s, err := r.store.FindByURL(ctx, url)
	if err != nil {
		r.evict(url)
		return nil
	}
	r.evict(url)
	r.put(url, s)
	return nil
}

// Delete removes the queue at url with all its messages. Unknown URLs are
// ignored.
func (r *Registry) Delete(ctx context.Context, url string) error {
	if err := r.store.Drop(ctx, url); err != nil {
		return err
	}
	r.evict(url)
	r.log.Infow("queue deleted", "url", url)
	return nil
}
