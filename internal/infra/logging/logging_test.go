//go:build !integration

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"premium-activation/internal/config"
)

func TestWith(t *testing.T) {
	t.Run("should attach ids carried by the context", func(t *testing.T) {
		var buf bytes.Buffer
		base := zerolog.New(&buf)

		ctx := WithTraceID(context.Background(), "trace-1")
		ctx = WithUserID(ctx, "user-1")
		ctx = WithSessID(ctx, "sess-1")

		With(ctx, &base).Info().Msg("hello")

		var got map[string]any
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("failed to decode log line: %v", err)
		}
		for k, want := range map[string]string{"trace_id": "trace-1", "user_id": "user-1", "session_id": "sess-1"} {
			if got[k] != want {
				t.Errorf("expected %s=%s, got %v", k, want, got[k])
			}
		}
		if TraceID(ctx) != "trace-1" {
			t.Errorf("expected trace id to be readable, got %q", TraceID(ctx))
		}
	})

	t.Run("should skip absent ids", func(t *testing.T) {
		var buf bytes.Buffer
		base := zerolog.New(&buf)
		With(WithUserID(context.Background(), "user-1"), &base).Info().Msg("x")
		if strings.Contains(buf.String(), "trace_id") {
			t.Errorf("unexpected trace_id in %s", buf.String())
		}
	})
}

func TestNewWithWriter(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	l := newWithWriter(config.LogConfig{Level: "WARN", Format: "json"}, false, &buf)
	l.Info().Msg("dropped")
	l.Warn().Msg("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") || !strings.Contains(out, "kept") {
		t.Errorf("unexpected output %q", out)
	}
	if !strings.Contains(out, `"service":"premium-activation"`) {
		t.Errorf("expected service field, got %q", out)
	}
}

func TestRedact(t *testing.T) {
	if got := Redact("short"); got != "***" {
		t.Errorf("expected short value to be masked, got %q", got)
	}
	if got := Redact("eyJhbGciOiJIUzI1NiJ9"); got != "eyJh***" {
		t.Errorf("unexpected redaction %q", got)
	}
}
