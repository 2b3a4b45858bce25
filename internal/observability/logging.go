package observability

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

type ctxKey int

const (
	requestIDCtxKey ctxKey = iota
	learningIDCtxKey
)

// WithRequestID stores the X-Request-ID of the current request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDCtxKey, id)
}

// RequestID returns the request ID stored by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDCtxKey).(string)

	return id
}

// WithLearningID tags every record logged with ctx with the learning record it concerns.
func WithLearningID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, learningIDCtxKey, id)
}

func learningID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(learningIDCtxKey).(uuid.UUID)

	return id, ok && id != uuid.Nil
}

// TraceContextHandler decorates records with trace_id, span_id, request_id and
// learning_id taken from the context when present.
type TraceContextHandler struct {
	slog.Handler
}

func NewTraceContextHandler(inner slog.Handler) *TraceContextHandler {
	return &TraceContextHandler{Handler: inner}
}

func (h *TraceContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(slog.String("trace_id", sc.TraceID().String()), slog.String("span_id", sc.SpanID().String()))
	}

	if id := RequestID(ctx); id != "" {
		r.AddAttrs(slog.String("request_id", id))
	}

	if id, ok := learningID(ctx); ok {
		r.AddAttrs(slog.String("learning_id", id.String()))
	}

	return h.Handler.Handle(ctx, r) //nolint:wrapcheck // pass-through
}

func (h *TraceContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TraceContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *TraceContextHandler) WithGroup(name string) slog.Handler {
	return &TraceContextHandler{Handler: h.Handler.WithGroup(name)}
}
