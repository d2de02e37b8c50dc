package middleware

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wscomms-dev/wscomms/pkg/dispatch"
)

// Default tracer name for wscomms applications.
const defaultTracerName = "wscomms"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "wscomms").
	TracerName string

	// TracerProvider supplies the tracer. Default: the global provider.
	TracerProvider trace.TracerProvider

	// IncludeArgs records the argument count as a span attribute.
	// Enabled by default.
	IncludeArgs bool

	// Filter determines which commands to trace.
	// Return true to trace the command, false to skip.
	// If nil, all commands are traced.
	Filter func(call *dispatch.Call) bool

	// AttributeExtractor extracts custom attributes from the call.
	AttributeExtractor func(ctx context.Context, call *dispatch.Call) []attribute.KeyValue
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

// WithIncludeArgs enables/disables the argument count attribute.
func WithIncludeArgs(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeArgs = include
	}
}

// WithCommandFilter sets a filter function for commands.
func WithCommandFilter(filter func(call *dispatch.Call) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(ctx context.Context, call *dispatch.Call) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName:  defaultTracerName,
		IncludeArgs: true,
	}
}

// OpenTelemetry creates middleware that traces every command.
//
// The middleware:
//   - Creates a span per command with its name, correlation id and label
//   - Adds the session id when the call arrived on a session
//   - Passes the span's context to the operation
//   - Records errors and sets span status
//
// The tracer uses the global OpenTelemetry tracer provider unless
// WithTracerProvider is given. Configure it in main() before serving:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...OTelOption) dispatch.Middleware {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}

	tp := config.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	tracer := tp.Tracer(config.TracerName)

	return func(next dispatch.Handler) dispatch.Handler {
		return func(ctx context.Context, call *dispatch.Call) (any, error) {
			if config.Filter != nil && !config.Filter(call) {
				return next(ctx, call)
			}

			attrs := []attribute.KeyValue{
				attribute.String("wscomms.command", call.Name),
				attribute.String("wscomms.label", call.Label),
			}
			if call.GUID != "" {
				attrs = append(attrs, attribute.String("wscomms.guid", call.GUID))
			}
			if caller, ok := dispatch.CallerFrom(ctx); ok {
				attrs = append(attrs, attribute.String("wscomms.session_id", caller.ID()))
			}
			if config.IncludeArgs {
				attrs = append(attrs, attribute.Int("wscomms.arg_count", len(call.Args)))
			}
			if config.AttributeExtractor != nil {
				attrs = append(attrs, config.AttributeExtractor(ctx, call)...)
			}

			spanCtx, span := tracer.Start(ctx, formatSpanName(call),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
			)
			defer span.End()

			result, err := next(spanCtx, call)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Ok, "")
			}
			return result, err
		}
	}
}

// SpanFromContext returns the span of the command being executed. Returns
// nil if no span is recording.
func SpanFromContext(ctx context.Context) trace.Span {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() && !span.IsRecording() {
		return nil
	}
	return span
}

func formatSpanName(call *dispatch.Call) string {
	if call.Label == "" {
		return fmt.Sprintf("wscomms %s", call.Name)
	}
	return fmt.Sprintf("wscomms %s.%s", call.Label, call.Name)
}
