package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestLoggerRedaction(t *testing.T) {
	t.Run("redacts anthropic key in message", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LogConfig{Output: &buf})
		logger.Info(context.Background(), "configured with sk-ant-REDACTED")
		if strings.Contains(buf.String(), "sk-ant-api03") {
			t.Errorf("key leaked: %s", buf.String())
		}
		if !strings.Contains(buf.String(), "[REDACTED]") {
			t.Errorf("no redaction marker: %s", buf.String())
		}
	})

	t.Run("redacts key in error arg", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LogConfig{Output: &buf})
		err := errors.New("auth failed for api_key=abcdefghij0123456789")
		logger.Error(context.Background(), "gateway call failed", "error", err)
		if strings.Contains(buf.String(), "abcdefghij0123456789") {
			t.Errorf("key leaked: %s", buf.String())
		}
	})
}

func TestLoggerContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Output: &buf})

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, UserIDKey, "user-42")
	logger.Info(ctx, "processing message")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if record["request_id"] != "req-1" {
		t.Errorf("request_id missing: %v", record)
	}
	if record["user_id"] != "user-42" {
		t.Errorf("user_id missing: %v", record)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Output: &buf})

	logger.Debug(context.Background(), "debug line")
	logger.Info(context.Background(), "info line")
	if buf.Len() != 0 {
		t.Errorf("below-level records emitted: %s", buf.String())
	}

	logger.Warn(context.Background(), "warn line")
	if buf.Len() == 0 {
		t.Error("warn record suppressed")
	}
}

func TestNewNopMetrics(t *testing.T) {
	// Must not panic on double construction (fresh registries each time).
	m1 := NewNopMetrics()
	m2 := NewNopMetrics()
	m1.ClassificationCounter.WithLabelValues("trivial", "default").Inc()
	m2.CacheCounter.WithLabelValues("hit").Inc()
}
