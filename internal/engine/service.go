// Package engine is the queue engine facade. Each operation validates its
// input, resolves the queue through the registry and hands message work to a
// lease manager. Failures are *awserr.Error values, or store errors passed
// through unchanged.
package engine

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/aridsondez/AWS-SQS-MOCK/internal/awserr"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue/lease"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue/registry"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue/store"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue/validate"
)

type Options struct {
	// Endpoint is the base of every queue URL. Defaults to http://localhost.
	Endpoint string
	Clock    clockwork.Clock
	Logger   *zap.SugaredLogger

	// LongPollInterval > 0 re-checks a queue during WaitTimeSeconds instead
	// of waiting the full window before a single attempt.
	LongPollInterval time.Duration

	// DefaultQueueURL is used by message operations that omit QueueUrl.
	DefaultQueueURL string

	// VisibilityTimeout, in seconds, replaces the default of new queues.
	VisibilityTimeout int

	// CacheTTL bounds how long queue settings are cached. See
	// registry.Options.CacheTTL.
	CacheTTL time.Duration
}

type Service struct {
	registry     *registry.Registry
	clock        clockwork.Clock
	log          *zap.SugaredLogger
	pollInterval time.Duration
	defaultURL   string
}

func New(s store.Store, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return &Service{
		registry: registry.New(s, registry.Options{
			Endpoint: opts.Endpoint,
			Clock:    opts.Clock,
			Logger:   opts.Logger,

			VisibilityTimeout: opts.VisibilityTimeout,
			CacheTTL:          opts.CacheTTL,
		}),
		clock:        opts.Clock,
		log:          opts.Logger,
		pollInterval: opts.LongPollInterval,
		defaultURL:   opts.DefaultQueueURL,
	}
}

// Registry exposes the queue registry, for the sweeper and tests.
func (s *Service) Registry() *registry.Registry { return s.registry }

func (s *Service) queueURL(url *string) *string {
	if url == nil && s.defaultURL != "" {
		return &s.defaultURL
	}
	return url
}

func (s *Service) manager(ctx context.Context, url string) (*lease.Manager, queue.Settings, error) {
	settings, err := s.registry.Resolve(ctx, url)
	if err != nil {
		return nil, queue.Settings{}, err
	}
	return lease.NewManager(s.registry.Store().Queue(settings.URL), settings, s.clock), settings, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func (s *Service) CreateQueue(ctx context.Context, in *CreateQueueInput) (*CreateQueueOutput, error) {
	if in == nil {
		in = &CreateQueueInput{}
	}
	if err := validate.Required(validate.Ptr("QueueName", in.QueueName)); err != nil {
		return nil, err
	}
	if err := validate.QueueName(*in.QueueName); err != nil {
		return nil, err
	}
	attrs, err := queue.ParseAttributes(in.Attributes)
	if err != nil {
		return nil, err
	}
	url, err := s.registry.Create(ctx, *in.QueueName, attrs)
	if err != nil {
		return nil, err
	}
	return &CreateQueueOutput{QueueUrl: url}, nil
}

func (s *Service) GetQueueUrl(ctx context.Context, in *GetQueueUrlInput) (*GetQueueUrlOutput, error) {
	if in == nil {
		in = &GetQueueUrlInput{}
	}
	if err := validate.Required(validate.Ptr("QueueName", in.QueueName)); err != nil {
		return nil, err
	}
	url, err := s.registry.Lookup(ctx, *in.QueueName)
	if err != nil {
		return nil, err
	}
	return &GetQueueUrlOutput{QueueUrl: url}, nil
}

func (s *Service) ListQueues(ctx context.Context, in *ListQueuesInput) (*ListQueuesOutput, error) {
	if in == nil {
		in = &ListQueuesInput{}
	}
	urls, err := s.registry.List(ctx, deref(in.QueueNamePrefix))
	if err != nil {
		return nil, err
	}
	return &ListQueuesOutput{QueueUrls: urls}, nil
}

func (s *Service) DeleteQueue(ctx context.Context, in *DeleteQueueInput) (*DeleteQueueOutput, error) {
	if in == nil {
		in = &DeleteQueueInput{}
	}
	if err := validate.Required(validate.Ptr("QueueUrl", in.QueueUrl)); err != nil {
		return nil, err
	}
	if err := s.registry.Delete(ctx, *in.QueueUrl); err != nil {
		return nil, err
	}
	return &DeleteQueueOutput{}, nil
}

// GetQueueAttributes reports only the requested names; "All" selects every
// attribute. Unlike message operations it never creates the queue.
func (s *Service) GetQueueAttributes(ctx context.Context, in *GetQueueAttributesInput) (*GetQueueAttributesOutput, error) {
	if in == nil {
		in = &GetQueueAttributesInput{}
	}
	url := s.queueURL(in.QueueUrl)
	if err := validate.Required(validate.Ptr("QueueUrl", url)); err != nil {
		return nil, err
	}
	if err := validate.AttributeNames(in.AttributeNames); err != nil {
		return nil, err
	}
	settings, err := s.registry.Get(ctx, *url)
	if err != nil {
		return nil, err
	}

	all := settings.AttributeMap()
	out := make(map[string]string)
	for _, name := range in.AttributeNames {
		if name == queue.AttrAll {
			out = all
			break
		}
		if v, ok := all[name]; ok {
			out[name] = v
		}
	}
	return &GetQueueAttributesOutput{Attributes: out}, nil
}

// SetQueueAttributes applies whitelisted attributes. Unknown keys are
// ignored and an unknown queue URL is a silent no-op.
func (s *Service) SetQueueAttributes(ctx context.Context, in *SetQueueAttributesInput) (*SetQueueAttributesOutput, error) {
	if in == nil {
		in = &SetQueueAttributesInput{}
	}
	url := s.queueURL(in.QueueUrl)
	if err := validate.Required(
		validate.Ptr("QueueUrl", url),
		validate.Map("Attributes", in.Attributes),
	); err != nil {
		return nil, err
	}
	attrs, err := queue.ParseAttributes(in.Attributes)
	if err != nil {
		return nil, err
	}
	if attrs.Empty() {
		return &SetQueueAttributesOutput{}, nil
	}
	if err := s.registry.UpdateAttributes(ctx, *url, attrs); err != nil {
		return nil, err
	}
	return &SetQueueAttributesOutput{}, nil
}

func (s *Service) SendMessage(ctx context.Context, in *SendMessageInput) (*SendMessageOutput, error) {
	if in == nil {
		in = &SendMessageInput{}
	}
	url := s.queueURL(in.QueueUrl)
	if err := validate.Required(
		validate.Ptr("MessageBody", in.MessageBody),
		validate.Ptr("QueueUrl", url),
	); err != nil {
		return nil, err
	}
	if in.DelaySeconds != nil {
		if err := validate.DelaySeconds(*in.DelaySeconds); err != nil {
			return nil, err
		}
	}

	mgr, settings, err := s.manager(ctx, *url)
	if err != nil {
		return nil, err
	}
	if err := validate.MessageSize(*in.MessageBody, settings.MaximumMessageSize); err != nil {
		return nil, err
	}
	res, err := mgr.Enqueue(ctx, *in.MessageBody, in.DelaySeconds)
	if err != nil {
		return nil, err
	}
	return &SendMessageOutput{MessageId: res.MessageID, MD5OfMessageBody: res.MD5OfBody}, nil
}

// ReceiveMessage leases up to MaxNumberOfMessages messages. An empty queue
// yields an empty result, not an error.
func (s *Service) ReceiveMessage(ctx context.Context, in *ReceiveMessageInput) (*ReceiveMessageOutput, error) {
	if in == nil {
		in = &ReceiveMessageInput{}
	}
	url := s.queueURL(in.QueueUrl)
	if err := validate.Required(validate.Ptr("QueueUrl", url)); err != nil {
		return nil, err
	}
	maxMessages := 1
	if in.MaxNumberOfMessages != nil {
		maxMessages = *in.MaxNumberOfMessages
		if err := validate.MaxMessages(maxMessages); err != nil {
			return nil, err
		}
	}
	if in.WaitTimeSeconds != nil {
		if err := validate.WaitTimeSeconds(*in.WaitTimeSeconds); err != nil {
			return nil, err
		}
	}

	mgr, settings, err := s.manager(ctx, *url)
	if err != nil {
		return nil, err
	}
	wait := min(settings.ReceiveMessageWaitTimeSeconds, validate.MaxWaitTimeSeconds)
	if in.WaitTimeSeconds != nil {
		wait = *in.WaitTimeSeconds
	}

	msgs, err := mgr.Receive(ctx, lease.ReceiveOptions{
		MaxMessages:       maxMessages,
		VisibilityTimeout: in.VisibilityTimeout,
		Wait:              time.Duration(wait) * time.Second,
		PollInterval:      s.pollInterval,
	})
	if err != nil {
		return nil, err
	}

	out := &ReceiveMessageOutput{}
	for _, m := range msgs {
		out.Messages = append(out.Messages, toMessage(m))
	}
	s.log.Debugw("receive", "queue", settings.Name, "leased", len(out.Messages), "wait", wait)
	return out, nil
}

func toMessage(m *queue.Message) Message {
	return Message{
		MessageId:     m.ID,
		ReceiptHandle: m.ReceiptHandle,
		MD5OfBody:     queue.MD5(m.Body),
		Body:          m.Body,
		Attributes: map[string]string{
			string(types.MessageSystemAttributeNameSentTimestamp):                    strconv.FormatInt(m.SentAt.UnixMilli(), 10),
			string(types.MessageSystemAttributeNameApproximateReceiveCount):          strconv.Itoa(m.Tries),
			string(types.MessageSystemAttributeNameApproximateFirstReceiveTimestamp): strconv.FormatInt(m.FirstClaimedAt.UnixMilli(), 10),
		},
	}
}

// DeleteMessage acknowledges a message. A stale receipt handle is not an
// error.
func (s *Service) DeleteMessage(ctx context.Context, in *DeleteMessageInput) (*DeleteMessageOutput, error) {
	if in == nil {
		in = &DeleteMessageInput{}
	}
	url := s.queueURL(in.QueueUrl)
	if err := validate.Required(
		validate.Ptr("QueueUrl", url),
		validate.Ptr("ReceiptHandle", in.ReceiptHandle),
	); err != nil {
		return nil, err
	}
	mgr, _, err := s.manager(ctx, *url)
	if err != nil {
		return nil, err
	}
	if err := mgr.Acknowledge(ctx, *in.ReceiptHandle); err != nil {
		return nil, err
	}
	return &DeleteMessageOutput{}, nil
}

// DeleteMessageBatch acknowledges each entry independently and reports
// per-entry outcomes.
func (s *Service) DeleteMessageBatch(ctx context.Context, in *DeleteMessageBatchInput) (*DeleteMessageBatchOutput, error) {
	if in == nil {
		in = &DeleteMessageBatchInput{}
	}
	url := s.queueURL(in.QueueUrl)
	if err := validate.Required(
		validate.Ptr("QueueUrl", url),
		validate.Slice("Entries", in.Entries),
	); err != nil {
		return nil, err
	}
	if err := validate.BatchSize(len(in.Entries)); err != nil {
		return nil, err
	}

	mgr, _, err := s.manager(ctx, *url)
	if err != nil {
		return nil, err
	}
	entries := make([]lease.BatchEntry, len(in.Entries))
	for i, e := range in.Entries {
		entries[i] = lease.BatchEntry{ID: deref(e.Id), ReceiptHandle: deref(e.ReceiptHandle)}
	}
	res, err := mgr.AcknowledgeBatch(ctx, entries)
	if err != nil {
		return nil, err
	}

	out := &DeleteMessageBatchOutput{
		Successful: make([]DeleteMessageBatchResultEntry, 0, len(res.Successful)),
		Failed:     make([]BatchResultErrorEntry, 0, len(res.Failed)),
	}
	for _, id := range res.Successful {
		out.Successful = append(out.Successful, DeleteMessageBatchResultEntry{Id: id})
	}
	for _, f := range res.Failed {
		out.Failed = append(out.Failed, BatchResultErrorEntry{
			Id:          f.ID,
			Code:        f.Code,
			Message:     f.Message,
			SenderFault: f.SenderFault,
		})
	}
	return out, nil
}

// ChangeMessageVisibility re-arms a leased message. The 43200 second ceiling
// is checked before the queue is touched.
func (s *Service) ChangeMessageVisibility(ctx context.Context, in *ChangeMessageVisibilityInput) (*ChangeMessageVisibilityOutput, error) {
	if in == nil {
		in = &ChangeMessageVisibilityInput{}
	}
	url := s.queueURL(in.QueueUrl)
	if err := validate.Required(
		validate.Ptr("QueueUrl", url),
		validate.Ptr("ReceiptHandle", in.ReceiptHandle),
		validate.Ptr("VisibilityTimeout", in.VisibilityTimeout),
	); err != nil {
		return nil, err
	}
	if err := validate.VisibilityTimeout(*in.VisibilityTimeout); err != nil {
		return nil, err
	}
	mgr, _, err := s.manager(ctx, *url)
	if err != nil {
		return nil, err
	}
	if err := mgr.ExtendVisibility(ctx, *in.ReceiptHandle, *in.VisibilityTimeout); err != nil {
		return nil, err
	}
	return &ChangeMessageVisibilityOutput{}, nil
}

func (s *Service) AddPermission(context.Context, *Unimplemented) (*Unimplemented, error) {
	return nil, awserr.NotImplemented("AddPermission")
}

func (s *Service) RemovePermission(context.Context, *Unimplemented) (*Unimplemented, error) {
	return nil, awserr.NotImplemented("RemovePermission")
}

func (s *Service) ChangeMessageVisibilityBatch(context.Context, *Unimplemented) (*Unimplemented, error) {
	return nil, awserr.NotImplemented("ChangeMessageVisibilityBatch")
}

func (s *Service) ListDeadLetterSourceQueues(context.Context, *Unimplemented) (*Unimplemented, error) {
	return nil, awserr.NotImplemented("ListDeadLetterSourceQueues")
}

func (s *Service) PurgeQueue(context.Context, *Unimplemented) (*Unimplemented, error) {
	return nil, awserr.NotImplemented("PurgeQueue")
}

func (s *Service) SendMessageBatch(context.Context, *Unimplemented) (*Unimplemented, error) {
	return nil, awserr.NotImplemented("SendMessageBatch")
}
