// Package api serves the queue engine over the JSON 1.0 protocol spoken by
// queue SDK clients: every call is a POST to / whose X-Amz-Target header
// names the operation.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/aridsondez/AWS-SQS-MOCK/internal/awserr"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/engine"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/metrics"
)

const (
	targetPrefix   = "AmazonSQS."
	contentType    = "application/x-amz-json-1.0"
	errorNamespace = "com.amazonaws.sqs#"

	codeSerialization = "SerializationException"
	codeInternal      = "InternalFailure"

	maxBodyBytes = 1 << 20
)

type Server struct {
	svc      *engine.Service
	log      *zap.SugaredLogger
	handlers map[string]http.HandlerFunc
}

func NewServer(addr string, svc *engine.Service, log *zap.SugaredLogger, timeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewHandler(svc, log, timeout),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewHandler builds the router without binding an address.
func NewHandler(svc *engine.Service, log *zap.SugaredLogger, timeout time.Duration) http.Handler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	srv := &Server{
		svc: svc,
		log: log,
	}
	srv.handlers = srv.routes()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	if timeout > 0 {
		r.Use(middleware.Timeout(timeout))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/", srv.dispatch)

	return r
}

func (s *Server) routes() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"CreateQueue":             handle(s, "CreateQueue", s.svc.CreateQueue),
		"GetQueueUrl":             handle(s, "GetQueueUrl", s.svc.GetQueueUrl),
		"ListQueues":              handle(s, "ListQueues", s.svc.ListQueues),
		"DeleteQueue":             handle(s, "DeleteQueue", s.svc.DeleteQueue),
		"GetQueueAttributes":      handle(s, "GetQueueAttributes", s.svc.GetQueueAttributes),
		"SetQueueAttributes":      handle(s, "SetQueueAttributes", s.svc.SetQueueAttributes),
		"SendMessage":             handle(s, "SendMessage", s.svc.SendMessage),
		"ReceiveMessage":          handle(s, "ReceiveMessage", s.svc.ReceiveMessage),
		"DeleteMessage":           handle(s, "DeleteMessage", s.svc.DeleteMessage),
		"DeleteMessageBatch":      handle(s, "DeleteMessageBatch", s.svc.DeleteMessageBatch),
		"ChangeMessageVisibility": handle(s, "ChangeMessageVisibility", s.svc.ChangeMessageVisibility),

		"AddPermission":                handle(s, "AddPermission", s.svc.AddPermission),
		"RemovePermission":             handle(s, "RemovePermission", s.svc.RemovePermission),
		"ChangeMessageVisibilityBatch": handle(s, "ChangeMessageVisibilityBatch", s.svc.ChangeMessageVisibilityBatch),
		"ListDeadLetterSourceQueues":   handle(s, "ListDeadLetterSourceQueues", s.svc.ListDeadLetterSourceQueues),
		"PurgeQueue":                   handle(s, "PurgeQueue", s.svc.PurgeQueue),
		"SendMessageBatch":             handle(s, "SendMessageBatch", s.svc.SendMessageBatch),
	}
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	target := r.Header.Get("X-Amz-Target")
	op, ok := strings.CutPrefix(target, targetPrefix)
	h, found := s.handlers[op]
	if !ok || !found {
		if op == "" {
			op = target
		}
		metrics.APIRequests.WithLabelValues("unknown", awserr.CodeInvalidAction).Inc()
		s.writeError(w, awserr.InvalidAction(op))
		return
	}
	h(w, r)
}

// handle adapts one engine operation to an HTTP handler.
func handle[In, Out any](s *Server, name string, op func(context.Context, *In) (*Out, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in := new(In)
		if err := decode(r, in); err != nil {
			metrics.APIRequests.WithLabelValues(name, codeSerialization).Inc()
			s.writeError(w, err)
			return
		}

		out, err := op(r.Context(), in)
		if err != nil {
			code := awserr.CodeOf(err)
			if _, typed := awserr.As(err); !typed {
				code = codeInternal
				s.log.Errorw("operation failed", "operation", name, "error", err,
					"request_id", middleware.GetReqID(r.Context()))
			}
			metrics.APIRequests.WithLabelValues(name, code).Inc()
			s.writeError(w, err)
			return
		}
		metrics.APIRequests.WithLabelValues(name, "OK").Inc()
		writeJSON(w, http.StatusOK, out)
	}
}

func decode(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return &awserr.Error{Code: codeSerialization, Message: fmt.Sprintf("read body: %v", err), SenderFault: true}
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &awserr.Error{Code: codeSerialization, Message: fmt.Sprintf("invalid json: %v", err), SenderFault: true}
	}
	return nil
}

// ---------- helpers ----------

type errorBody struct {
	Type    string      `json:"__type"`
	Message string      `json:"message"`
	Errors  []errorBody `json:"errors,omitempty"`
}

func toErrorBody(e *awserr.Error) errorBody {
	b := errorBody{Type: errorNamespace + e.Code, Message: e.Message}
	for _, sub := range e.Errors {
		b.Errors = append(b.Errors, toErrorBody(sub))
	}
	return b
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	e, ok := awserr.As(err)
	status := http.StatusBadRequest
	if !ok {
		e = &awserr.Error{Code: codeInternal, Message: "internal error"}
		status = http.StatusInternalServerError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	fault := "Sender"
	if !e.SenderFault {
		fault = "Receiver"
	}
	w.Header().Set("x-amzn-query-error", e.Code+";"+fault)
	writeJSON(w, status, toErrorBody(e))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debugw("request",
				"method", r.Method,
				"path", r.URL.Path,
				"target", r.Header.Get("X-Amz-Target"),
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
