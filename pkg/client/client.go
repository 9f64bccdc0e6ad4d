// Package client is a small Go client for the queue server. It speaks the
// same JSON protocol as the stock SDKs, without request signing.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	targetPrefix = "AmazonSQS."
	contentType  = "application/x-amz-json-1.0"
)

// Client talks to one queue server.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Long polls hold the request for up to 20s.
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.client = hc
	return c
}

// APIError is an error response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.Code, e.Message, e.StatusCode)
}

// Message is one received message.
type Message struct {
	MessageId     string            `json:"MessageId"`
	ReceiptHandle string            `json:"ReceiptHandle"`
	MD5OfBody     string            `json:"MD5OfBody"`
	Body          string            `json:"Body"`
	Attributes    map[string]string `json:"Attributes,omitempty"`
}

// ReceiveCount returns how many times the message has been leased.
func (m *Message) ReceiveCount() int {
	n, _ := strconv.Atoi(m.Attributes["ApproximateReceiveCount"])
	return n
}

func (c *Client) call(ctx context.Context, op string, in, out any) error {
	reqBody, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/", bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Amz-Target", targetPrefix+op)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		var e struct {
			Type    string `json:"__type"`
			Message string `json:"message"`
		}
		if json.Unmarshal(bodyBytes, &e) != nil || e.Type == "" {
			return &APIError{StatusCode: resp.StatusCode, Code: resp.Status, Message: string(bodyBytes)}
		}
		code := e.Type
		if i := strings.LastIndex(code, "#"); i >= 0 {
			code = code[i+1:]
		}
		return &APIError{StatusCode: resp.StatusCode, Code: code, Message: e.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", op, err)
	}
	return nil
}

// CreateQueue creates the queue called name, or returns the URL of the
// existing one.
func (c *Client) CreateQueue(ctx context.Context, name string, attrs map[string]string) (string, error) {
	var out struct {
		QueueUrl string `json:"QueueUrl"`
	}
	err := c.call(ctx, "CreateQueue", map[string]any{"QueueName": name, "Attributes": attrs}, &out)
	return out.QueueUrl, err
}

func (c *Client) GetQueueURL(ctx context.Context, name string) (string, error) {
	var out struct {
		QueueUrl string `json:"QueueUrl"`
	}
	err := c.call(ctx, "GetQueueUrl", map[string]any{"QueueName": name}, &out)
	return out.QueueUrl, err
}

func (c *Client) ListQueues(ctx context.Context, prefix string) ([]string, error) {
	in := map[string]any{}
	if prefix != "" {
		in["QueueNamePrefix"] = prefix
	}
	var out struct {
		QueueUrls []string `json:"QueueUrls"`
	}
	err := c.call(ctx, "ListQueues", in, &out)
	return out.QueueUrls, err
}

func (c *Client) DeleteQueue(ctx context.Context, queueURL string) error {
	return c.call(ctx, "DeleteQueue", map[string]any{"QueueUrl": queueURL}, nil)
}

// GetQueueAttributes returns the named attributes; pass "All" for every one.
func (c *Client) GetQueueAttributes(ctx context.Context, queueURL string, names ...string) (map[string]string, error) {
	var out struct {
		Attributes map[string]string `json:"Attributes"`
	}
	err := c.call(ctx, "GetQueueAttributes", map[string]any{"QueueUrl": queueURL, "AttributeNames": names}, &out)
	return out.Attributes, err
}

func (c *Client) SetQueueAttributes(ctx context.Context, queueURL string, attrs map[string]string) error {
	return c.call(ctx, "SetQueueAttributes", map[string]any{"QueueUrl": queueURL, "Attributes": attrs}, nil)
}

// SendOptions customizes SendMessage.
type SendOptions struct {
	Delay time.Duration // rounded down to whole seconds
}

// SendMessage enqueues body and returns the message ID.
func (c *Client) SendMessage(ctx context.Context, queueURL, body string, opts *SendOptions) (string, error) {
	in := map[string]any{"QueueUrl": queueURL, "MessageBody": body}
	if opts != nil && opts.Delay > 0 {
		in["DelaySeconds"] = int(opts.Delay / time.Second)
	}
	var out struct {
		MessageId string `json:"MessageId"`
	}
	err := c.call(ctx, "SendMessage", in, &out)
	return out.MessageId, err
}

// SendJSON marshals v and sends it as the message body.
func (c *Client) SendJSON(ctx context.Context, queueURL string, v any, opts *SendOptions) (string, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal body: %w", err)
	}
	return c.SendMessage(ctx, queueURL, string(body), opts)
}

// ReceiveOptions customizes ReceiveMessages. Zero values use the queue's
// settings.
type ReceiveOptions struct {
	MaxMessages int
	Visibility  time.Duration
	Wait        time.Duration
}

func (c *Client) ReceiveMessages(ctx context.Context, queueURL string, opts ReceiveOptions) ([]Message, error) {
	in := map[string]any{"QueueUrl": queueURL}
	if opts.MaxMessages > 0 {
		in["MaxNumberOfMessages"] = opts.MaxMessages
	}
	if opts.Visibility > 0 {
		in["VisibilityTimeout"] = int(opts.Visibility / time.Second)
	}
	if opts.Wait > 0 {
		in["WaitTimeSeconds"] = int(opts.Wait / time.Second)
	}
	var out struct {
		Messages []Message `json:"Messages"`
	}
	err := c.call(ctx, "ReceiveMessage", in, &out)
	return out.Messages, err
}

func (c *Client) DeleteMessage(ctx context.Context, queueURL, receiptHandle string) error {
	return c.call(ctx, "DeleteMessage", map[string]any{"QueueUrl": queueURL, "ReceiptHandle": receiptHandle}, nil)
}

// ChangeMessageVisibility makes a leased message visible again after d.
func (c *Client) ChangeMessageVisibility(ctx context.Context, queueURL, receiptHandle string, d time.Duration) error {
	return c.call(ctx, "ChangeMessageVisibility", map[string]any{
		"QueueUrl":          queueURL,
		"ReceiptHandle":     receiptHandle,
		"VisibilityTimeout": int(d / time.Second),
	}, nil)
}

// BatchEntry identifies one message of a DeleteMessageBatch call.
type BatchEntry struct {
	Id            string `json:"Id"`
	ReceiptHandle string `json:"ReceiptHandle"`
}

// BatchFailure is one failed entry of a batch call.
type BatchFailure struct {
	Id          string `json:"Id"`
	Code        string `json:"Code"`
	Message     string `json:"Message"`
	SenderFault bool   `json:"SenderFault"`
}

// DeleteMessageBatch deletes up to ten messages. It returns the Ids that
// succeeded and the entries that failed; a failed entry is not an error.
func (c *Client) DeleteMessageBatch(ctx context.Context, queueURL string, entries []BatchEntry) ([]string, []BatchFailure, error) {
	var out struct {
		Successful []struct {
			Id string `json:"Id"`
		} `json:"Successful"`
		Failed []BatchFailure `json:"Failed"`
	}
	if err := c.call(ctx, "DeleteMessageBatch", map[string]any{"QueueUrl": queueURL, "Entries": entries}, &out); err != nil {
		return nil, nil, err
	}
	ids := make([]string, 0, len(out.Successful))
	for _, s := range out.Successful {
		ids = append(ids, s.Id)
	}
	return ids, out.Failed, nil
}
