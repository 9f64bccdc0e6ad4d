package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/aridsondez/AWS-SQS-MOCK/internal/engine"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/metrics"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue/store"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue/store/memory"
)

const testEndpoint = "http://sqs.test:9324"

func newTestServer(t *testing.T, s store.Store) *httptest.Server {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()
	svc := engine.New(s, engine.Options{Endpoint: testEndpoint, Logger: log})
	srv := httptest.NewServer(NewHandler(svc, log, 0))
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, op string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Amz-Target", targetPrefix+op)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, contentType, resp.Header.Get("Content-Type"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, memory.New())

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, memory.New())
	call(t, srv, "ListQueues", nil)

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "sqs_api_requests_total")
}

func TestMessageLifecycle(t *testing.T) {
	srv := newTestServer(t, memory.New())

	status, out := call(t, srv, "CreateQueue", map[string]any{
		"QueueName":  "orders",
		"Attributes": map[string]string{"VisibilityTimeout": "60"},
	})
	require.Equal(t, http.StatusOK, status, out)
	url := out["QueueUrl"].(string)
	assert.Equal(t, testEndpoint+"/orders", url)

	status, out = call(t, srv, "GetQueueUrl", map[string]any{"QueueName": "orders"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, url, out["QueueUrl"])

	status, out = call(t, srv, "SendMessage", map[string]any{"QueueUrl": url, "MessageBody": "hello"})
	require.Equal(t, http.StatusOK, status, out)
	assert.Equal(t, queue.MD5("hello"), out["MD5OfMessageBody"])
	msgID := out["MessageId"].(string)

	status, out = call(t, srv, "ReceiveMessage", map[string]any{"QueueUrl": url, "MaxNumberOfMessages": 10})
	require.Equal(t, http.StatusOK, status, out)
	msgs := out["Messages"].([]any)
	require.Len(t, msgs, 1)
	m := msgs[0].(map[string]any)
	assert.Equal(t, msgID, m["MessageId"])
	assert.Equal(t, "hello", m["Body"])
	handle := m["ReceiptHandle"].(string)
	require.NotEmpty(t, handle)

	// Leased: a second receive comes back empty.
	status, out = call(t, srv, "ReceiveMessage", map[string]any{"QueueUrl": url})
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, out["Messages"])

	status, out = call(t, srv, "ChangeMessageVisibility", map[string]any{
		"QueueUrl": url, "ReceiptHandle": handle, "VisibilityTimeout": 0,
	})
	require.Equal(t, http.StatusOK, status, out)

	status, out = call(t, srv, "ReceiveMessage", map[string]any{"QueueUrl": url})
	require.Equal(t, http.StatusOK, status)
	require.Len(t, out["Messages"], 1)
	handle = out["Messages"].([]any)[0].(map[string]any)["ReceiptHandle"].(string)

	status, out = call(t, srv, "DeleteMessageBatch", map[string]any{
		"QueueUrl": url,
		"Entries": []map[string]string{
			{"Id": "a", "ReceiptHandle": handle},
			{"Id": "b", "ReceiptHandle": "stale"},
		},
	})
	require.Equal(t, http.StatusOK, status, out)
	require.Len(t, out["Successful"], 1)
	require.Len(t, out["Failed"], 1)
	failed := out["Failed"].([]any)[0].(map[string]any)
	assert.Equal(t, "b", failed["Id"])
	assert.Equal(t, "ReceiptHandleIsInvalid", failed["Code"])
	assert.Equal(t, true, failed["SenderFault"])

	status, out = call(t, srv, "GetQueueAttributes", map[string]any{
		"QueueUrl": url, "AttributeNames": []string{"VisibilityTimeout"},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"VisibilityTimeout": "60"}, out["Attributes"])

	status, _ = call(t, srv, "DeleteQueue", map[string]any{"QueueUrl": url})
	require.Equal(t, http.StatusOK, status)

	status, out = call(t, srv, "ListQueues", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, out["QueueUrls"])
}

func TestErrors(t *testing.T) {
	srv := newTestServer(t, memory.New())

	t.Run("missing parameter", func(t *testing.T) {
		status, out := call(t, srv, "SendMessage", map[string]any{"QueueUrl": testEndpoint + "/q"})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "com.amazonaws.sqs#MissingRequiredParameter", out["__type"])
		assert.Contains(t, out["message"], "'MessageBody'")
	})

	t.Run("multiple validation errors", func(t *testing.T) {
		status, out := call(t, srv, "SendMessage", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "com.amazonaws.sqs#MultipleValidationErrors", out["__type"])
		assert.Len(t, out["errors"], 2)
	})

	t.Run("queue does not exist", func(t *testing.T) {
		status, out := call(t, srv, "GetQueueUrl", map[string]any{"QueueName": "missing"})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "com.amazonaws.sqs#QueueDoesNotExist", out["__type"])
	})

	t.Run("not implemented", func(t *testing.T) {
		status, out := call(t, srv, "PurgeQueue", map[string]any{"QueueUrl": testEndpoint + "/q"})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "com.amazonaws.sqs#NotImplemented", out["__type"])
	})

	t.Run("unknown action", func(t *testing.T) {
		before := testutil.ToFloat64(metrics.APIRequests.WithLabelValues("unknown", "InvalidAction"))
		status, out := call(t, srv, "Bogus", nil)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "com.amazonaws.sqs#InvalidAction", out["__type"])
		assert.Contains(t, out["message"], "Bogus")
		after := testutil.ToFloat64(metrics.APIRequests.WithLabelValues("unknown", "InvalidAction"))
		assert.Equal(t, before+1, after)
	})

	t.Run("malformed json", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/", bytes.NewBufferString("{not json"))
		require.NoError(t, err)
		req.Header.Set("X-Amz-Target", targetPrefix+"ListQueues")
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var out map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, "com.amazonaws.sqs#SerializationException", out["__type"])
	})
}

type brokenStore struct {
	*memory.Store
}

var errBroken = errors.New("connection reset")

func (brokenStore) FindByName(context.Context, string) (queue.Settings, error) {
	return queue.Settings{}, errBroken
}

func TestStoreFailureIsInternal(t *testing.T) {
	srv := newTestServer(t, brokenStore{memory.New()})

	before := testutil.ToFloat64(metrics.APIRequests.WithLabelValues("GetQueueUrl", codeInternal))
	status, out := call(t, srv, "GetQueueUrl", map[string]any{"QueueName": "orders"})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "com.amazonaws.sqs#InternalFailure", out["__type"])
	assert.NotContains(t, out["message"], "connection reset")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.APIRequests.WithLabelValues("GetQueueUrl", codeInternal)))
}
