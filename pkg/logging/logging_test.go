package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level       string
		development bool
		enabled     zapcore.Level
		disabled    zapcore.Level
	}{
		{"info", false, zapcore.InfoLevel, zapcore.DebugLevel},
		{"debug", true, zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{"warn", false, zapcore.WarnLevel, zapcore.InfoLevel},
	}
	for _, tt := range tests {
		logger, err := New(tt.level, tt.development)
		if err != nil {
			t.Fatalf("New(%q) error = %v", tt.level, err)
		}
		core := logger.Core()
		if !core.Enabled(tt.enabled) {
			t.Errorf("New(%q): %v disabled", tt.level, tt.enabled)
		}
		if core.Enabled(tt.disabled) {
			t.Errorf("New(%q): %v enabled", tt.level, tt.disabled)
		}
	}

	if _, err := New("loud", false); err == nil {
		t.Error("New(loud) succeeded, want error")
	}
}
