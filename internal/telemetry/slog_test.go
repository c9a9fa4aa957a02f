package telemetry

import (
	"context"
	"log/slog"
	"testing"
)

// ---------------------------------------------------------------------------
// parseLevel
// ---------------------------------------------------------------------------

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// SetupLogger
// ---------------------------------------------------------------------------

func TestSetupLogger_LevelControlsDefaultLogger(t *testing.T) {
	defer SetupLogger("text", "error") // keep later test output quiet

	SetupLogger("json", "warn")

	ctx := context.Background()
	if slog.Default().Enabled(ctx, slog.LevelInfo) {
		t.Error("info records enabled after configuring warn level")
	}
	if !slog.Default().Enabled(ctx, slog.LevelWarn) {
		t.Error("warn records suppressed after configuring warn level")
	}
}

func TestSetupLogger_DebugEnablesDebugRecords(t *testing.T) {
	defer SetupLogger("text", "error")

	SetupLogger("text", "debug")

	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug records suppressed after configuring debug level")
	}
}

func TestSetupLogger_ToleratesUnknownInputs(t *testing.T) {
	defer SetupLogger("text", "error")

	// A hot-reloaded config with garbage logging values must degrade to
	// text/info, never panic or silence the process.
	SetupLogger("yaml", "loud")

	ctx := context.Background()
	if !slog.Default().Enabled(ctx, slog.LevelInfo) {
		t.Error("unknown level did not fall back to info")
	}
	if slog.Default().Enabled(ctx, slog.LevelDebug) {
		t.Error("unknown level unexpectedly enabled debug")
	}
}
