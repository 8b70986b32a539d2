package tracer

import (
	"context"
	"errors"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
		{1, "AlwaysOnSampler"},
		{2, "AlwaysOnSampler"},
		{0.5, "TraceIDRatioBased{0.5}"},
	}
	for _, tt := range tests {
		if got := Sampler(tt.rate).Description(); got != tt.want {
			t.Errorf("Sampler(%v) = %s, want %s", tt.rate, got, tt.want)
		}
	}
}

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "test"})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
	if TraceID(context.Background()) != "" {
		t.Error("TraceID() without span should be empty")
	}
}

func TestRecordError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")

	if TraceID(ctx) == "" {
		t.Error("TraceID() with active span should not be empty")
	}
	RecordError(span, nil)
	RecordError(span, errors.New("boom"))
	span.End()

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("ended spans = %d", len(ended))
	}
	if ended[0].Status().Description != "boom" || len(ended[0].Events()) != 1 {
		t.Errorf("span status = %+v, events = %d", ended[0].Status(), len(ended[0].Events()))
	}
}
