package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aridsondez/AWS-SQS-MOCK/internal/awserr"
)

func TestAsync_SameContractBothStyles(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	url := createQueue(t, svc, "async", nil)

	t.Run("success", func(t *testing.T) {
		req := Async(ctx, &GetQueueUrlInput{QueueName: strp("async")}, svc.GetQueueUrl)

		viaPromise, err := req.Promise().Await(ctx)
		require.NoError(t, err)

		got := make(chan Response[*GetQueueUrlOutput], 1)
		req.Send(func(r Response[*GetQueueUrlOutput]) { got <- r })
		viaCallback := <-got

		require.NoError(t, viaCallback.Err)
		assert.Equal(t, url, viaPromise.QueueUrl)
		assert.Equal(t, viaPromise, viaCallback.Data)
	})

	t.Run("error", func(t *testing.T) {
		req := Async(ctx, &SendMessageInput{}, svc.SendMessage)

		_, promiseErr := req.Promise().Await(ctx)

		got := make(chan Response[*SendMessageOutput], 1)
		req.Send(func(r Response[*SendMessageOutput]) { got <- r })
		cbErr := (<-got).Err

		for _, err := range []error{promiseErr, cbErr} {
			e, ok := awserr.As(err)
			require.True(t, ok)
			assert.Equal(t, awserr.CodeMultipleValidationErrors, e.Code)
			assert.Len(t, e.Errors, 2)
		}
	})
}

func TestPromise_AwaitRespectsContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	slow := func(ctx context.Context, _ struct{}) (int, error) {
		<-block
		return 1, nil
	}

	p := Async(context.Background(), struct{}{}, slow).Promise()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-p.Done():
		t.Fatal("promise resolved early")
	default:
	}
}
