package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{" error ", zapcore.ErrorLevel},
		{"verbose", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLeveledOutput(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	Set(zap.New(core))
	t.Cleanup(func() { Set(zap.NewNop()) })

	Debug("dropped %d", 1)
	Info("dropped %d", 2)
	Warn("kept %s", "warn")
	Error("kept %s", "error")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries at warn+, got %d", len(entries))
	}
	if entries[0].Message != "kept warn" {
		t.Errorf("unexpected message: %q", entries[0].Message)
	}
	if entries[1].Level != zapcore.ErrorLevel {
		t.Errorf("unexpected level: %v", entries[1].Level)
	}
}

func TestNew_Formats(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		if l := New("debug", format); l == nil {
			t.Errorf("New(debug, %s) returned nil", format)
		}
	}
}
