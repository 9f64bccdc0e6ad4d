// Package validate checks caller parameters before the engine touches any
// queue state.
package validate

import (
	"regexp"

	"github.com/aridsondez/AWS-SQS-MOCK/internal/awserr"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue"
)

// Value limits of the emulated API.
const (
	MaxDelaySeconds        = 900
	MaxWaitTimeSeconds     = 20
	MaxNumberOfMessages    = 10
	MaxQueueNameLength     = 80
	MaxBatchEntries        = 10
	MaxVisibilityTimeout   = queue.MaxVisibilityTimeout
	visibilityLimitMessage = "Total VisibilityTimeout for the message is beyond the limit [43200 seconds]"
)

// reservedNames are storage collections that must never surface as queues.
var reservedNames = map[string]struct{}{
	"queue_settings": {},
	"system.indexes": {},
}

var queueNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Param is one named parameter and whether the caller supplied it.
type Param struct {
	Name    string
	Present bool
}

// Ptr describes a pointer parameter; nil means absent.
func Ptr[T any](name string, v *T) Param {
	return Param{Name: name, Present: v != nil}
}

// Slice describes a list parameter; nil means absent.
func Slice[T any](name string, v []T) Param {
	return Param{Name: name, Present: v != nil}
}

// Map describes a map parameter; nil means absent.
func Map[K comparable, V any](name string, v map[K]V) Param {
	return Param{Name: name, Present: v != nil}
}

// Required returns MissingRequiredParameter for a single absent param and
// MultipleValidationErrors, in param order, for more than one.
func Required(params ...Param) error {
	var missing []*awserr.Error
	for _, p := range params {
		if !p.Present {
			missing = append(missing, awserr.MissingRequiredParameter(p.Name))
		}
	}
	switch len(missing) {
	case 0:
		return nil
	case 1:
		return missing[0]
	default:
		return awserr.MultipleValidationErrors(missing)
	}
}

// IsReserved reports whether name belongs to internal storage.
func IsReserved(name string) bool {
	_, ok := reservedNames[name]
	return ok
}

func QueueName(name string) error {
	if name == "" || len(name) > MaxQueueNameLength {
		return awserr.InvalidParameterValue(name, "Queue name must be between 1 and 80 characters")
	}
	if IsReserved(name) {
		return awserr.InvalidParameterValue(name, "Queue name is reserved")
	}
	if !queueNamePattern.MatchString(name) {
		return awserr.InvalidParameterValue(name, "Queue name can only include alphanumeric characters, hyphens, or underscores")
	}
	return nil
}

// VisibilityTimeout enforces the 43200 second ceiling on lease extension.
func VisibilityTimeout(v int) error {
	if v < 0 {
		return awserr.InvalidParameterValue(v, "VisibilityTimeout must not be negative")
	}
	if v > MaxVisibilityTimeout {
		return awserr.InvalidParameterValue(v, visibilityLimitMessage)
	}
	return nil
}

func DelaySeconds(v int) error {
	if v < 0 || v > MaxDelaySeconds {
		return awserr.InvalidParameterValue(v, "DelaySeconds must be between 0 and 900")
	}
	return nil
}

func WaitTimeSeconds(v int) error {
	if v < 0 || v > MaxWaitTimeSeconds {
		return awserr.InvalidParameterValue(v, "WaitTimeSeconds must be between 0 and 20")
	}
	return nil
}

func MaxMessages(v int) error {
	if v < 1 || v > MaxNumberOfMessages {
		return awserr.InvalidParameterValue(v, "MaxNumberOfMessages must be between 1 and 10")
	}
	return nil
}

// MessageSize rejects bodies larger than the queue's MaximumMessageSize.
func MessageSize(body string, max int) error {
	if max > 0 && len(body) > max {
		return awserr.InvalidParameterValue(len(body),
			"Message must be shorter than the queue MaximumMessageSize")
	}
	return nil
}

// AttributeNames checks requested names against the readable attributes.
// "All" is always accepted.
func AttributeNames(names []string) error {
	known := make(map[string]struct{}, len(queue.ReadableAttributes)+1)
	known[queue.AttrAll] = struct{}{}
	for _, n := range queue.ReadableAttributes {
		known[n] = struct{}{}
	}
	for _, n := range names {
		if _, ok := known[n]; !ok {
			return awserr.InvalidAttributeName(n)
		}
	}
	return nil
}

// BatchSize checks the entry count of a batch request.
func BatchSize(n int) error {
	if n == 0 {
		return awserr.EmptyBatchRequest()
	}
	if n > MaxBatchEntries {
		return awserr.TooManyEntriesInBatch(n, MaxBatchEntries)
	}
	return nil
}
