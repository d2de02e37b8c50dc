package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/wscomms-dev/wscomms/pkg/dispatch"
	"github.com/wscomms-dev/wscomms/pkg/protocol"
)

func newTable(t *testing.T, mw ...dispatch.Middleware) *dispatch.Table {
	t.Helper()
	tbl := dispatch.NewTable("calc")
	tbl.MustRegister("Add", dispatch.Func2(func(_ context.Context, a, b int) (int, error) {
		return a + b, nil
	}))
	tbl.MustRegister("Fail", dispatch.Action0(func(context.Context) error {
		return errors.New("boom")
	}))
	tbl.MustRegister("Panic", dispatch.Action0(func(context.Context) error {
		panic("kaboom")
	}))
	tbl.MustRegister("Span", dispatch.Func0(func(ctx context.Context) (bool, error) {
		return SpanFromContext(ctx) != nil, nil
	}))
	tbl.Use(mw...)
	return tbl
}

func invoke(t *testing.T, tbl *dispatch.Table, name string, args ...any) (*protocol.Envelope, error) {
	t.Helper()
	env, err := protocol.NewCommand(name, args...)
	require.NoError(t, err)
	env.GUID = "g-" + name
	return tbl.Invoke(context.Background(), env)
}

func TestPrometheusRecordsSuccessAndError(t *testing.T) {
	reg := prometheus.NewRegistry()
	tbl := newTable(t, Prometheus(WithRegistry(reg), WithNamespace("test")))

	_, err := invoke(t, tbl, "Add", 1, 2)
	require.NoError(t, err)
	_, err = invoke(t, tbl, "Fail")
	require.Error(t, err)
	_, err = invoke(t, tbl, "Panic")
	require.Error(t, err)

	m := initMetrics(MetricsConfig{Registry: reg})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("calc", "Add", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("calc", "Fail", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandErrors.WithLabelValues("calc", "Fail", "operation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandErrors.WithLabelValues("calc", "Panic", "panic")))
	assert.Equal(t, 3, testutil.CollectAndCount(m.commandDuration))
}

func TestPrometheusSharesCollectorsPerRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	assert.NotPanics(t, func() {
		Prometheus(WithRegistry(reg))
		Prometheus(WithRegistry(reg))
	})
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&dispatch.OperationError{Name: "x", Panic: "p"}, "panic"},
		{ErrRateLimited, "rate_limit"},
		{context.DeadlineExceeded, "timeout"},
		{context.Canceled, "canceled"},
		{errors.New("anything else"), "operation"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, categorizeError(tt.err), "categorizeError(%v)", tt.err)
	}
}

func TestRateLimit(t *testing.T) {
	tbl := newTable(t, RateLimit(0.001, 2))

	for i := 0; i < 2; i++ {
		reply, err := invoke(t, tbl, "Add", 1, 1)
		require.NoError(t, err)
		assert.True(t, reply.IsResponse())
	}

	reply, err := invoke(t, tbl, "Add", 1, 1)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.True(t, reply.IsError())
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	tbl := newTable(t, Logging(logger))

	_, _ = invoke(t, tbl, "Add", 1, 1)
	_, _ = invoke(t, tbl, "Fail")

	out := buf.String()
	assert.Contains(t, out, `msg="command handled"`)
	assert.Contains(t, out, "name=Add")
	assert.Contains(t, out, `msg="command failed"`)
	assert.Contains(t, out, "boom")
	assert.Equal(t, 2, strings.Count(out, "component=dispatch"))
}

// recordingProvider captures spans for assertions.
type recordingProvider struct {
	embedded.TracerProvider
	tracer *recordingTracer
}

func (p *recordingProvider) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return p.tracer
}

type recordingTracer struct {
	embedded.Tracer
	mu    sync.Mutex
	spans []*recordingSpan
}

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	span := &recordingSpan{name: name, attrs: cfg.Attributes(), kind: cfg.SpanKind()}
	t.mu.Lock()
	t.spans = append(t.spans, span)
	t.mu.Unlock()
	return trace.ContextWithSpan(ctx, span), span
}

type recordingSpan struct {
	noop.Span
	name   string
	kind   trace.SpanKind
	attrs  []attribute.KeyValue
	status codes.Code
	errs   []error
	ended  bool
}

func (s *recordingSpan) IsRecording() bool { return true }

func (s *recordingSpan) End(...trace.SpanEndOption) { s.ended = true }

func (s *recordingSpan) RecordError(err error, _ ...trace.EventOption) {
	s.errs = append(s.errs, err)
}

func (s *recordingSpan) SetStatus(code codes.Code, _ string) { s.status = code }

func (s *recordingSpan) attr(key string) (attribute.Value, bool) {
	for _, kv := range s.attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestOpenTelemetryRecordsSpans(t *testing.T) {
	tracer := &recordingTracer{}
	tbl := newTable(t, OpenTelemetry(
		WithTracerProvider(&recordingProvider{tracer: tracer}),
		WithAttributeExtractor(func(context.Context, *dispatch.Call) []attribute.KeyValue {
			return []attribute.KeyValue{attribute.String("test.attr", "ok")}
		}),
	))

	reply, err := invoke(t, tbl, "Span")
	require.NoError(t, err)
	assert.Equal(t, "true", reply.Result().String(), "operation should see the span in its context")

	_, err = invoke(t, tbl, "Fail")
	require.Error(t, err)

	require.Len(t, tracer.spans, 2)
	ok := tracer.spans[0]
	assert.Equal(t, "wscomms calc.Span", ok.name)
	assert.Equal(t, trace.SpanKindServer, ok.kind)
	assert.Equal(t, codes.Ok, ok.status)
	assert.True(t, ok.ended)
	v, found := ok.attr("wscomms.guid")
	require.True(t, found)
	assert.Equal(t, "g-Span", v.AsString())
	v, found = ok.attr("test.attr")
	require.True(t, found)
	assert.Equal(t, "ok", v.AsString())

	failed := tracer.spans[1]
	assert.Equal(t, codes.Error, failed.status)
	require.Len(t, failed.errs, 1)
}

func TestOpenTelemetryFilterSkipsTracing(t *testing.T) {
	tracer := &recordingTracer{}
	tbl := newTable(t, OpenTelemetry(
		WithTracerProvider(&recordingProvider{tracer: tracer}),
		WithCommandFilter(func(call *dispatch.Call) bool { return call.Name != "Add" }),
	))

	_, err := invoke(t, tbl, "Add", 1, 2)
	require.NoError(t, err)
	assert.Empty(t, tracer.spans)
}

func TestSpanFromContextNoSpan(t *testing.T) {
	assert.Nil(t, SpanFromContext(context.Background()))
}

func TestFormatSpanName(t *testing.T) {
	assert.Equal(t, "wscomms Add", formatSpanName(&dispatch.Call{Name: "Add"}))
	assert.Equal(t, "wscomms calc.Add", formatSpanName(&dispatch.Call{Name: "Add", Label: "calc"}))
}
