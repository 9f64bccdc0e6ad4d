package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aridsondez/AWS-SQS-MOCK/internal/awserr"
)

func TestRequired(t *testing.T) {
	body := "hello"
	url := "http://localhost/q"

	t.Run("all present", func(t *testing.T) {
		require.NoError(t, Required(Ptr("MessageBody", &body), Ptr("QueueUrl", &url)))
	})

	t.Run("one missing returns it directly", func(t *testing.T) {
		err := Required(Ptr("MessageBody", &body), Ptr[string]("QueueUrl", nil))
		e, ok := awserr.As(err)
		require.True(t, ok)
		assert.Equal(t, awserr.CodeMissingRequiredParameter, e.Code)
		assert.Contains(t, e.Message, "'QueueUrl'")
		assert.Empty(t, e.Errors)
	})

	t.Run("two missing aggregate in order", func(t *testing.T) {
		err := Required(Ptr[string]("MessageBody", nil), Ptr[string]("QueueUrl", nil))
		e, ok := awserr.As(err)
		require.True(t, ok)
		assert.Equal(t, awserr.CodeMultipleValidationErrors, e.Code)
		require.Len(t, e.Errors, 2)
		assert.Equal(t, awserr.CodeMissingRequiredParameter, e.Errors[0].Code)
		assert.Contains(t, e.Errors[0].Message, "'MessageBody'")
		assert.Contains(t, e.Errors[1].Message, "'QueueUrl'")
	})

	t.Run("nil slice and map are absent, empty ones are present", func(t *testing.T) {
		err := Required(Slice[string]("Entries", nil), Map[string, string]("Attributes", nil))
		assert.True(t, awserr.Is(err, awserr.CodeMultipleValidationErrors))

		require.NoError(t, Required(Slice("Entries", []string{}), Map("Attributes", map[string]string{})))
	})
}

func TestVisibilityTimeout(t *testing.T) {
	require.NoError(t, VisibilityTimeout(0))
	require.NoError(t, VisibilityTimeout(43200))

	err := VisibilityTimeout(43201)
	require.True(t, awserr.Is(err, awserr.CodeInvalidParameterValue))
	assert.Contains(t, err.Error(), "43201")
	assert.Contains(t, err.Error(), "[43200 seconds]")

	assert.True(t, awserr.Is(VisibilityTimeout(-1), awserr.CodeInvalidParameterValue))
}

func TestQueueName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"simple", "orders", true},
		{"dashes and underscores", "my-queue_1", true},
		{"empty", "", false},
		{"too long", strings.Repeat("a", 81), false},
		{"max length", strings.Repeat("a", 80), true},
		{"slash", "a/b", false},
		{"reserved", "queue_settings", false},
		{"reserved dotted", "system.indexes", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := QueueName(tt.input)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, awserr.Is(err, awserr.CodeInvalidParameterValue))
			}
		})
	}
}

func TestRanges(t *testing.T) {
	assert.NoError(t, DelaySeconds(900))
	assert.Error(t, DelaySeconds(901))
	assert.Error(t, DelaySeconds(-1))

	assert.NoError(t, WaitTimeSeconds(20))
	assert.Error(t, WaitTimeSeconds(21))

	assert.NoError(t, MaxMessages(1))
	assert.NoError(t, MaxMessages(10))
	assert.Error(t, MaxMessages(0))
	assert.Error(t, MaxMessages(11))
}

func TestMessageSize(t *testing.T) {
	assert.NoError(t, MessageSize("abcd", 4))
	assert.True(t, awserr.Is(MessageSize("abcde", 4), awserr.CodeInvalidParameterValue))
	assert.NoError(t, MessageSize("anything", 0))
}

func TestAttributeNames(t *testing.T) {
	assert.NoError(t, AttributeNames([]string{"All"}))
	assert.NoError(t, AttributeNames([]string{"VisibilityTimeout", "CreatedTimestamp"}))
	assert.True(t, awserr.Is(AttributeNames([]string{"Bogus"}), awserr.CodeInvalidAttributeName))
}

func TestBatchSize(t *testing.T) {
	assert.True(t, awserr.Is(BatchSize(0), awserr.CodeEmptyBatchRequest))
	assert.NoError(t, BatchSize(10))
	assert.True(t, awserr.Is(BatchSize(11), awserr.CodeTooManyEntriesInBatch))
}
