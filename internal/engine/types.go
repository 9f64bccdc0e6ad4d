package engine

// Field names follow the emulated API so the transport can decode request
// bodies straight into these structs. Pointer and nil-able fields are
// optional; required ones are checked by the operation.

type CreateQueueInput struct {
	QueueName  *string           `json:"QueueName,omitempty"`
	Attributes map[string]string `json:"Attributes,omitempty"`
}

type CreateQueueOutput struct {
	QueueUrl string `json:"QueueUrl"`
}

type GetQueueUrlInput struct {
	QueueName *string `json:"QueueName,omitempty"`
}

type GetQueueUrlOutput struct {
	QueueUrl string `json:"QueueUrl"`
}

type ListQueuesInput struct {
	QueueNamePrefix *string `json:"QueueNamePrefix,omitempty"`
}

type ListQueuesOutput struct {
	QueueUrls []string `json:"QueueUrls"`
}

type DeleteQueueInput struct {
	QueueUrl *string `json:"QueueUrl,omitempty"`
}

type DeleteQueueOutput struct{}

type GetQueueAttributesInput struct {
	QueueUrl       *string  `json:"QueueUrl,omitempty"`
	AttributeNames []string `json:"AttributeNames,omitempty"`
}

type GetQueueAttributesOutput struct {
	Attributes map[string]string `json:"Attributes,omitempty"`
}

type SetQueueAttributesInput struct {
	QueueUrl   *string           `json:"QueueUrl,omitempty"`
	Attributes map[string]string `json:"Attributes,omitempty"`
}

type SetQueueAttributesOutput struct{}

type SendMessageInput struct {
	QueueUrl     *string `json:"QueueUrl,omitempty"`
	MessageBody  *string `json:"MessageBody,omitempty"`
	DelaySeconds *int    `json:"DelaySeconds,omitempty"`
}

type SendMessageOutput struct {
	MessageId        string `json:"MessageId"`
	MD5OfMessageBody string `json:"MD5OfMessageBody"`
}

type ReceiveMessageInput struct {
	QueueUrl            *string `json:"QueueUrl,omitempty"`
	MaxNumberOfMessages *int    `json:"MaxNumberOfMessages,omitempty"`
	VisibilityTimeout   *int    `json:"VisibilityTimeout,omitempty"`
	WaitTimeSeconds     *int    `json:"WaitTimeSeconds,omitempty"`
}

// Message is one leased message as returned by ReceiveMessage.
type Message struct {
	MessageId     string            `json:"MessageId"`
	ReceiptHandle string            `json:"ReceiptHandle"`
	MD5OfBody     string            `json:"MD5OfBody"`
	Body          string            `json:"Body"`
	Attributes    map[string]string `json:"Attributes,omitempty"`
}

type ReceiveMessageOutput struct {
	Messages []Message `json:"Messages,omitempty"`
}

type DeleteMessageInput struct {
	QueueUrl      *string `json:"QueueUrl,omitempty"`
	ReceiptHandle *string `json:"ReceiptHandle,omitempty"`
}

type DeleteMessageOutput struct{}

type DeleteMessageBatchRequestEntry struct {
	Id            *string `json:"Id,omitempty"`
	ReceiptHandle *string `json:"ReceiptHandle,omitempty"`
}

type DeleteMessageBatchInput struct {
	QueueUrl *string                          `json:"QueueUrl,omitempty"`
	Entries  []DeleteMessageBatchRequestEntry `json:"Entries,omitempty"`
}

type DeleteMessageBatchResultEntry struct {
	Id string `json:"Id"`
}

type BatchResultErrorEntry struct {
	Id          string `json:"Id"`
	Code        string `json:"Code"`
	Message     string `json:"Message,omitempty"`
	SenderFault bool   `json:"SenderFault"`
}

type DeleteMessageBatchOutput struct {
	Successful []DeleteMessageBatchResultEntry `json:"Successful"`
	Failed     []BatchResultErrorEntry         `json:"Failed"`
}

type ChangeMessageVisibilityInput struct {
	QueueUrl          *string `json:"QueueUrl,omitempty"`
	ReceiptHandle     *string `json:"ReceiptHandle,omitempty"`
	VisibilityTimeout *int    `json:"VisibilityTimeout,omitempty"`
}

type ChangeMessageVisibilityOutput struct{}

// Unimplemented is the input and output of operations this engine does not
// support. Any request body decodes into it.
type Unimplemented struct{}
