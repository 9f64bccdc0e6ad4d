// Package worker polls queues and hands each message to a handler.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aridsondez/AWS-SQS-MOCK/pkg/client"
)

// HandlerFunc processes a message and returns an error if processing failed.
// Returning nil means success (message will be deleted).
// Returning an error means failure (message becomes visible again at once).
type HandlerFunc func(ctx context.Context, msg *Message) error

// Message is a received message plus the queue it came from.
type Message struct {
	client.Message
	QueueURL string
}

// Worker manages message processing from queues
type Worker struct {
	client     *client.Client
	log        *zap.SugaredLogger
	handlers   map[string]HandlerFunc
	pollDelay  time.Duration
	batchSize  int
	visibility time.Duration
	wait       time.Duration
}

// Config for creating a new worker
type Config struct {
	Client     *client.Client
	Logger     *zap.SugaredLogger
	PollDelay  time.Duration // pause after an empty or failed receive (default: 1s)
	BatchSize  int           // max messages per receive (default: 10)
	Visibility time.Duration // lease per receive (default: queue setting)
	Wait       time.Duration // long poll per receive, at most 20s
}

// New creates a new Worker with the given configuration
func New(cfg Config) *Worker {
	if cfg.PollDelay == 0 {
		cfg.PollDelay = time.Second
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 10
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	return &Worker{
		client:     cfg.Client,
		log:        cfg.Logger,
		handlers:   make(map[string]HandlerFunc),
		pollDelay:  cfg.PollDelay,
		batchSize:  cfg.BatchSize,
		visibility: cfg.Visibility,
		wait:       cfg.Wait,
	}
}

// Handle registers a handler for the queue at queueURL. It must be called
// before Run.
func (w *Worker) Handle(queueURL string, handler HandlerFunc) {
	w.handlers[queueURL] = handler
	w.log.Infow("registered handler", "queue", queueURL)
}

// Run polls every registered queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if len(w.handlers) == 0 {
		return errors.New("no handlers registered")
	}
	w.log.Infow("worker starting", "queues", len(w.handlers))

	g, gctx := errgroup.WithContext(ctx)
	for queueURL, handler := range w.handlers {
		queueURL, handler := queueURL, handler
		g.Go(func() error {
			w.pollQueue(gctx, queueURL, handler)
			return nil
		})
	}
	err := g.Wait()
	w.log.Info("worker stopped")
	return err
}

func (w *Worker) pollQueue(ctx context.Context, queueURL string, handler HandlerFunc) {
	for ctx.Err() == nil {
		msgs, err := w.client.ReceiveMessages(ctx, queueURL, client.ReceiveOptions{
			MaxMessages: w.batchSize,
			Visibility:  w.visibility,
			Wait:        w.wait,
		})
		if err != nil {
			if ctx.Err() == nil {
				w.log.Warnw("receive failed", "queue", queueURL, "error", err)
			}
			w.pause(ctx)
			continue
		}
		if len(msgs) == 0 {
			w.pause(ctx)
			continue
		}

		w.log.Debugw("received messages", "queue", queueURL, "count", len(msgs))
		for _, m := range msgs {
			w.processMessage(ctx, &Message{Message: m, QueueURL: queueURL}, handler)
		}
	}
}

func (w *Worker) pause(ctx context.Context) {
	t := time.NewTimer(w.pollDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// processMessage runs handler with panic recovery. Success deletes the
// message; failure releases the lease so it can be received again.
func (w *Worker) processMessage(ctx context.Context, msg *Message, handler HandlerFunc) {
	handlerCtx := ctx
	if w.visibility > 0 {
		var cancel context.CancelFunc
		handlerCtx, cancel = context.WithTimeout(ctx, w.visibility)
		defer cancel()
	}

	if err := w.invoke(handlerCtx, msg, handler); err != nil {
		w.log.Warnw("handler failed",
			"queue", msg.QueueURL,
			"message_id", msg.MessageId,
			"receive_count", msg.ReceiveCount(),
			"error", err,
		)
		if err := w.client.ChangeMessageVisibility(ctx, msg.QueueURL, msg.ReceiptHandle, 0); err != nil {
			w.log.Warnw("release failed", "message_id", msg.MessageId, "error", err)
		}
		return
	}

	if err := w.client.DeleteMessage(ctx, msg.QueueURL, msg.ReceiptHandle); err != nil {
		w.log.Warnw("delete failed", "message_id", msg.MessageId, "error", err)
		return
	}
	w.log.Debugw("processed message", "queue", msg.QueueURL, "message_id", msg.MessageId)
}

func (w *Worker) invoke(ctx context.Context, msg *Message, handler HandlerFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return handler(ctx, msg)
}
