package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func newJSONLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{
		Component: component,
		Handler:   slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	return entry
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" INFO ", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLogger_AddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(&buf, ComponentApp).WithComponent(ComponentCatchUp)

	logger.InfoContext(context.Background(), "hello", FieldOwnerID, "user-1")

	entry := decode(t, &buf)
	if entry[FieldComponent] != ComponentCatchUp {
		t.Errorf("component = %v, want %s", entry[FieldComponent], ComponentCatchUp)
	}
	if entry[FieldOwnerID] != "user-1" {
		t.Errorf("owner_id = %v, want user-1", entry[FieldOwnerID])
	}
	if logger.Component() != ComponentCatchUp {
		t.Errorf("Component() = %s", logger.Component())
	}
}

func TestStructuredLogger_LogOccurrenceMaterialized(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newJSONLogger(&buf, ComponentCatchUp))

	sl.LogOccurrenceMaterialized(context.Background(), "user-1", "ob-1", "tx-1",
		time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), 5000)

	entry := decode(t, &buf)
	want := map[string]any{
		FieldOwnerID:        "user-1",
		FieldObligationID:   "ob-1",
		FieldTransactionID:  "tx-1",
		FieldOccurrenceDate: "2024-03-15",
		FieldOperation:      OpMaterialize,
		FieldAmountCents:    float64(5000),
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %v", k, entry[k], v)
		}
	}
}

func TestStructuredLogger_LogError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newJSONLogger(&buf, ComponentBudget))

	sl.LogError(context.Background(), "apply failed", errors.New("disk full"), OpAdjust, nil)

	entry := decode(t, &buf)
	if entry["level"] != "ERROR" {
		t.Errorf("level = %v, want ERROR", entry["level"])
	}
	if entry[FieldError] != "disk full" || entry[FieldOperation] != OpAdjust {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestFromContext(t *testing.T) {
	logger := Discard().WithComponent(ComponentSweeper)
	ctx := WithLogger(context.Background(), logger)

	if got := FromContext(ctx); got != logger {
		t.Error("FromContext() did not return the stored logger")
	}
	if got := FromContext(context.Background()); got.Component() != "unknown" {
		t.Errorf("FromContext() fallback component = %s, want unknown", got.Component())
	}
}
