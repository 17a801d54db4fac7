package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestBatchIDContext(t *testing.T) {
	ctx := context.Background()

	if got := BatchIDFromContext(ctx); got != "" {
		t.Errorf("expected empty batch ID, got %q", got)
	}

	ctx = WithBatchID(ctx, "batch-42")
	if got := BatchIDFromContext(ctx); got != "batch-42" {
		t.Errorf("expected batch-42, got %q", got)
	}
}

func TestNew_Formats(t *testing.T) {
	for _, format := range []string{"json", "text", ""} {
		logger := New(slog.LevelInfo, format)
		if logger == nil || logger.Logger == nil {
			t.Fatalf("New(%q) returned nil logger", format)
		}
	}
}

func TestWith_ReturnsWrappedLogger(t *testing.T) {
	logger := New(slog.LevelInfo, "json").With(Service("test"))
	if logger == nil || logger.Logger == nil {
		t.Fatal("With() returned nil logger")
	}
}
