package logger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInit(t *testing.T) {
	logger := Init("test-service", zapcore.InfoLevel)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	if zap.L() != logger {
		t.Fatal("expected logger to be installed globally")
	}
}

func TestInit_WritesServiceField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coindog.log")
	logger := Init("watch", zapcore.DebugLevel, path)
	logger.Info("hello")
	_ = logger.Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(raw)
	if !strings.Contains(line, `"service":"watch"`) || !strings.Contains(line, `"msg":"hello"`) {
		t.Fatalf("unexpected log line %s", line)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		" warn ":  zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestTraceID_RoundTrip(t *testing.T) {
	ctx := context.Background()

	// No trace ID set
	if tid := TraceID(ctx); tid != "" {
		t.Errorf("expected empty trace id, got %q", tid)
	}

	// Set and retrieve
	ctx = WithTraceID(ctx, "test-trace-123")
	if tid := TraceID(ctx); tid != "test-trace-123" {
		t.Errorf("expected 'test-trace-123', got %q", tid)
	}
}

func TestGenerateTraceID(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 0, 123456789, time.UTC)
	tid := GenerateTraceID("BTC/USDT", ts)

	if tid == "" {
		t.Fatal("expected non-empty trace id")
	}
	if !strings.HasPrefix(tid, "BTC/USDT-") {
		t.Errorf("expected trace id to start with 'BTC/USDT-', got %s", tid)
	}
	// Verify it contains the nano timestamp
	if !strings.Contains(tid, "123456789") {
		t.Errorf("expected trace id to contain nanoseconds, got %s", tid)
	}
}

func TestLogWithTrace(t *testing.T) {
	ctx := context.Background()

	// No trace ID
	fields := LogWithTrace(ctx)
	if fields != nil {
		t.Errorf("expected nil fields when no trace id, got %v", fields)
	}

	ctx = WithTraceID(ctx, "abc-123")
	fields = LogWithTrace(ctx)
	if len(fields) != 1 || fields[0].Key != "trace_id" || fields[0].String != "abc-123" {
		t.Fatalf("unexpected fields %+v", fields)
	}
}
