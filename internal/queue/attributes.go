package queue

import (
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/aridsondez/AWS-SQS-MOCK/internal/awserr"
)

// Attribute names accepted from callers.
const (
	AttrDelaySeconds                  = string(types.QueueAttributeNameDelaySeconds)
	AttrMaximumMessageSize            = string(types.QueueAttributeNameMaximumMessageSize)
	AttrMessageRetentionPeriod        = string(types.QueueAttributeNameMessageRetentionPeriod)
	AttrPolicy                        = string(types.QueueAttributeNamePolicy)
	AttrReceiveMessageWaitTimeSeconds = string(types.QueueAttributeNameReceiveMessageWaitTimeSeconds)
	AttrRedrivePolicy                 = string(types.QueueAttributeNameRedrivePolicy)
	AttrVisibilityTimeout             = string(types.QueueAttributeNameVisibilityTimeout)

	// Read-only attributes reported by GetQueueAttributes.
	AttrCreatedTimestamp = string(types.QueueAttributeNameCreatedTimestamp)
	AttrAll              = string(types.QueueAttributeNameAll)
)

// SettableAttributes is the whitelist copied from caller input into settings.
var SettableAttributes = []string{
	AttrDelaySeconds,
	AttrMaximumMessageSize,
	AttrMessageRetentionPeriod,
	AttrPolicy,
	AttrReceiveMessageWaitTimeSeconds,
	AttrRedrivePolicy,
	AttrVisibilityTimeout,
}

// ReadableAttributes lists every name GetQueueAttributes understands.
var ReadableAttributes = append([]string{AttrCreatedTimestamp}, SettableAttributes...)

// AttributeSet is a partial settings update. Nil fields are left untouched.
type AttributeSet struct {
	DelaySeconds                  *int
	MaximumMessageSize            *int
	MessageRetentionPeriod        *int
	ReceiveMessageWaitTimeSeconds *int
	VisibilityTimeout             *int
	Policy                        *string
	RedrivePolicy                 *string
}

// Empty reports whether the set carries no updates.
func (a AttributeSet) Empty() bool {
	return a == AttributeSet{}
}

// ParseAttributes filters raw caller attributes to the whitelist. Unknown keys
// are dropped without error; integer attributes that do not parse fail with
// InvalidParameterType.
func ParseAttributes(raw map[string]string) (AttributeSet, error) {
	var set AttributeSet

	ints := []struct {
		name string
		dst  **int
	}{
		{AttrDelaySeconds, &set.DelaySeconds},
		{AttrMaximumMessageSize, &set.MaximumMessageSize},
		{AttrMessageRetentionPeriod, &set.MessageRetentionPeriod},
		{AttrReceiveMessageWaitTimeSeconds, &set.ReceiveMessageWaitTimeSeconds},
		{AttrVisibilityTimeout, &set.VisibilityTimeout},
	}
	for _, f := range ints {
		v, ok := raw[f.name]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return AttributeSet{}, awserr.InvalidParameterType("Attributes."+f.name, "integer")
		}
		*f.dst = &n
	}

	if v, ok := raw[AttrPolicy]; ok {
		set.Policy = &v
	}
	if v, ok := raw[AttrRedrivePolicy]; ok {
		set.RedrivePolicy = &v
	}
	return set, nil
}

// Apply merges a into s.
func (s *Settings) Apply(a AttributeSet) {
	if a.DelaySeconds != nil {
		s.DelaySeconds = *a.DelaySeconds
	}
	if a.MaximumMessageSize != nil {
		s.MaximumMessageSize = *a.MaximumMessageSize
	}
	if a.MessageRetentionPeriod != nil {
		s.MessageRetentionPeriod = *a.MessageRetentionPeriod
	}
	if a.ReceiveMessageWaitTimeSeconds != nil {
		s.ReceiveMessageWaitTimeSeconds = *a.ReceiveMessageWaitTimeSeconds
	}
	if a.VisibilityTimeout != nil {
		s.VisibilityTimeout = *a.VisibilityTimeout
	}
	if a.Policy != nil {
		s.Policy = *a.Policy
	}
	if a.RedrivePolicy != nil {
		s.RedrivePolicy = *a.RedrivePolicy
	}
}

// AttributeMap renders the settings as API attribute strings. Unset opaque
// attributes are omitted.
func (s Settings) AttributeMap() map[string]string {
	m := map[string]string{
		AttrCreatedTimestamp:              strconv.FormatInt(s.Created.Unix(), 10),
		AttrDelaySeconds:                  strconv.Itoa(s.DelaySeconds),
		AttrMaximumMessageSize:            strconv.Itoa(s.MaximumMessageSize),
		AttrMessageRetentionPeriod:        strconv.Itoa(s.MessageRetentionPeriod),
		AttrReceiveMessageWaitTimeSeconds: strconv.Itoa(s.ReceiveMessageWaitTimeSeconds),
		AttrVisibilityTimeout:             strconv.Itoa(s.VisibilityTimeout),
	}
	if s.Policy != "" {
		m[AttrPolicy] = s.Policy
	}
	if s.RedrivePolicy != "" {
		m[AttrRedrivePolicy] = s.RedrivePolicy
	}
	return m
}
