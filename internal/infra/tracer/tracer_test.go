package tracer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"

	"permtemplate/internal/infra/config"
)

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TracerConfig{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer shutdown(context.Background())

	if _, ok := otel.GetTracerProvider().(noop.TracerProvider); !ok {
		t.Errorf("expected noop provider, got %T", otel.GetTracerProvider())
	}
}

func TestSetupEmptyExporter(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TracerConfig{Enabled: true}, nil)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer shutdown(context.Background())

	if _, ok := otel.GetTracerProvider().(noop.TracerProvider); !ok {
		t.Errorf("expected noop provider for empty exporter, got %T", otel.GetTracerProvider())
	}
}

func TestSetupStdoutWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(context.Background(), config.TracerConfig{Enabled: true, Exporter: "stdout"}, &buf)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	_, span := StartStage(context.Background(), "render")
	Finish(span, nil)

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !strings.Contains(buf.String(), "permtemplate.render") {
		t.Errorf("exported spans missing span name: %q", buf.String())
	}
}

func TestSetupUnsupportedExporter(t *testing.T) {
	_, err := Setup(context.Background(), config.TracerConfig{Enabled: true, Exporter: "invalid"}, nil)
	if err == nil {
		t.Error("expected error for unsupported exporter")
	}
}

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })
	return rec
}

func TestStartStageNamesSpan(t *testing.T) {
	rec := recordSpans(t)

	ctx, span := StartStage(context.Background(), "write")
	if ctx == nil {
		t.Fatal("context should not be nil")
	}
	Finish(span, nil)

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	if got := spans[0].Name(); got != "permtemplate.write" {
		t.Errorf("span name = %q", got)
	}
	if got := spans[0].Status().Code; got != codes.Ok {
		t.Errorf("status = %v, want Ok", got)
	}
}

func TestFinishRecordsError(t *testing.T) {
	rec := recordSpans(t)

	_, span := StartStage(context.Background(), "render")
	Finish(span, errors.New("template failed"))

	s := rec.Ended()[0]
	if s.Status().Code != codes.Error || s.Status().Description != "template failed" {
		t.Errorf("status = %+v", s.Status())
	}
	if len(s.Events()) != 1 {
		t.Errorf("events = %d, want the recorded error", len(s.Events()))
	}
}

func TestAttrHelpersAreNamespaced(t *testing.T) {
	if s := StringAttr("output", "perms.json"); string(s.Key) != "permtemplate.output" {
		t.Errorf("StringAttr key = %q", s.Key)
	}
	if i := IntAttr("entries", 42); i.Value.AsInt64() != 42 || string(i.Key) != "permtemplate.entries" {
		t.Errorf("IntAttr = %v", i)
	}
}
