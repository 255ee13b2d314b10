package trace_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fertilis/quote-generator/pkg/config"
	"github.com/fertilis/quote-generator/pkg/trace"
)

func TestStartSpan_Disabled(t *testing.T) {
	if err := trace.Init(config.TraceConfig{Enabled: false}, nil); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	ctx := context.Background()
	spanCtx, span := trace.StartSpan(ctx, "noop")
	defer span.End()

	if spanCtx != ctx {
		t.Error("Disabled tracing should not derive a new context")
	}
	if span.SpanContext().IsValid() {
		t.Error("Disabled tracing should return an invalid span")
	}
}

func TestStartSpan_ExportsToWriter(t *testing.T) {
	var buf bytes.Buffer
	if err := trace.Init(config.TraceConfig{Enabled: true, ServiceName: "quote-test"}, &buf); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	_, span := trace.StartSpan(context.Background(), "scheduler.Fire")
	trace.RecordError(span, errors.New("boom"))
	span.End()

	if err := trace.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "scheduler.Fire") {
		t.Errorf("Expected exported span name, got %q", out)
	}
	if !strings.Contains(out, "boom") {
		t.Errorf("Expected recorded error in export, got %q", out)
	}
}
