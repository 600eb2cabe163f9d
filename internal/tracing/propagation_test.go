package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestPropagateToLogger(t *testing.T) {
	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-123")
	ctx = WithRunID(ctx, "run-456")

	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	logger = PropagateToLogger(ctx, logger)
	logger.Info().Msg("test message")

	out := buf.String()
	if !strings.Contains(out, "trace-123") {
		t.Error("trace ID missing from log output")
	}
	if !strings.Contains(out, "run-456") {
		t.Error("run ID missing from log output")
	}
}

func TestLoggerFromContextEmpty(t *testing.T) {
	var buf bytes.Buffer
	logger := LoggerFromContext(context.Background(), zerolog.New(&buf))
	logger.Info().Msg("no trace")

	out := buf.String()
	if strings.Contains(out, "trace_id") {
		t.Error("empty context should not add trace fields")
	}
}

func TestMergeContext(t *testing.T) {
	source := WithTraceID(context.Background(), "trace-src")
	target := WithRunID(context.Background(), "run-tgt")

	merged := MergeContext(target, source)

	if GetTraceID(merged) != "trace-src" {
		t.Error("trace ID not merged from source")
	}
	if GetRunID(merged) != "run-tgt" {
		t.Error("existing run ID lost during merge")
	}

	// Existing values win over source values.
	conflicting := WithTraceID(context.Background(), "trace-other")
	merged = MergeContext(conflicting, source)
	if GetTraceID(merged) != "trace-other" {
		t.Error("merge should not overwrite existing trace ID")
	}
}

func TestCloneContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = WithTraceID(ctx, "trace-clone")
	cancel()

	clone := CloneContext(ctx)

	if clone.Err() != nil {
		t.Error("clone should not inherit cancellation")
	}
	if GetTraceID(clone) != "trace-clone" {
		t.Error("clone should carry trace ID")
	}
}
