package observability

import (
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/butchers-select/api/internal/platform/requestctx"
)

const cloudTraceHeader = "X-Cloud-Trace-Context"

var tracer = otel.Tracer("github.com/butchers-select/api/internal/platform/observability")

// TraceMiddleware extracts Cloud Trace headers, starts a server span, and stores trace
// metadata on the request context.
func TraceMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if remote, ok := parseCloudTraceContext(r.Header.Get(cloudTraceHeader)); ok {
				ctx = trace.ContextWithRemoteSpanContext(ctx, remote)
			}

			ctx, span := tracer.Start(ctx, spanNameFromRequest(r), trace.WithSpanKind(trace.SpanKindServer))
			span.SetAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
			)
			defer span.End()

			spanCtx := span.SpanContext()
			ctx = requestctx.WithTrace(ctx, requestctx.TraceInfo{
				TraceID: spanCtx.TraceID().String(),
				SpanID:  spanCtx.SpanID().String(),
				Sampled: spanCtx.IsSampled(),
			})

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func spanNameFromRequest(r *http.Request) string {
	if r == nil || r.URL == nil {
		return "http.request"
	}
	return fmt.Sprintf("%s %s", r.Method, r.URL.Path)
}

// parseCloudTraceContext parses "TRACE_ID/SPAN_ID;o=1" into a remote span context.
func parseCloudTraceContext(header string) (trace.SpanContext, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return trace.SpanContext{}, false
	}

	tracePart, rest, _ := strings.Cut(header, "/")
	traceID, err := trace.TraceIDFromHex(strings.ToLower(tracePart))
	if err != nil {
		return trace.SpanContext{}, false
	}

	spanPart, opts, _ := strings.Cut(rest, ";")
	var spanID trace.SpanID
	if spanPart != "" {
		var numeric uint64
		if _, err := fmt.Sscanf(spanPart, "%d", &numeric); err == nil && numeric != 0 {
			for i := 0; i < 8; i++ {
				spanID[7-i] = byte(numeric >> (8 * i))
			}
		}
	}

	var flags trace.TraceFlags
	if strings.Contains(opts, "o=1") {
		flags = trace.FlagsSampled
	}

	cfg := trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: flags,
		Remote:     true,
	}
	spanCtx := trace.NewSpanContext(cfg)
	if !spanCtx.TraceID().IsValid() {
		return trace.SpanContext{}, false
	}
	return spanCtx, true
}
