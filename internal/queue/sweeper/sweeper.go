// Package sweeper periodically removes acknowledged messages and messages
// older than their queue's MessageRetentionPeriod.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/aridsondez/AWS-SQS-MOCK/internal/metrics"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue/store"
)

type Sweeper struct {
	store    store.Store
	interval time.Duration
	clock    clockwork.Clock
	log      *zap.SugaredLogger
	stopCh   chan struct{}
}

func New(store store.Store, interval time.Duration, clock clockwork.Clock, log *zap.SugaredLogger) *Sweeper {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		clock:    clock,
		log:      log,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the sweep loop until ctx is done or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Infow("sweeper started", "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			s.log.Infow("sweeper stopped", "reason", "context cancelled")
			return

		case <-s.stopCh:
			s.log.Infow("sweeper stopped", "reason", "stop signal")
			return

		case <-ticker.Chan():
			count, err := s.RunOnce(ctx)
			if err != nil {
				s.log.Errorw("sweep failed", "error", err)
			} else if count > 0 {
				s.log.Infow("sweep removed messages", "count", count)
			}
		}
	}
}

// RunOnce cleans every queue once and returns the number of messages removed.
// A failing queue does not stop the others.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	start := s.clock.Now()
	defer func() { metrics.SweeperDuration.Observe(s.clock.Since(start).Seconds()) }()

	queues, err := s.store.List(ctx, "")
	if err != nil {
		metrics.SweeperErrors.Inc()
		return 0, fmt.Errorf("sweep list queues: %w", err)
	}

	var (
		total    int
		firstErr error
	)
	now := s.clock.Now()
	for _, q := range queues {
		cutoff := now.Add(-time.Duration(q.MessageRetentionPeriod) * time.Second)
		n, err := s.store.Queue(q.URL).Clean(ctx, cutoff)
		if err != nil {
			metrics.SweeperErrors.Inc()
			s.log.Warnw("sweep queue failed", "queue", q.Name, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("sweep %s: %w", q.Name, err)
			}
			continue
		}
		if n > 0 {
			s.log.Debugw("swept queue", "queue", q.Name, "removed", n)
		}
		total += n
	}
	metrics.MessagesPurged.Add(float64(total))
	return total, firstErr
}

func (s *Sweeper) Stop() {
	close(s.stopCh)
}
