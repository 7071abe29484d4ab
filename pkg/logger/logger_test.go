package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLogger(t *testing.T) {
	log := NewLogger()
	assert.NotNil(t, log)

	// Should not panic
	log.Debug("debug message")
	log.Info("info message")
	log.Warn("warn message")
	log.Error("error message")
}

func TestNewLoggerWithLevel(t *testing.T) {
	tests := []struct {
		name  string
		level string
	}{
		{"debug level", "debug"},
		{"info level", "info"},
		{"warn level", "warn"},
		{"error level", "error"},
		{"unknown level falls back to info", "verbose"},
		{"empty level falls back to info", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := NewLoggerWithLevel(tt.level)
			assert.NotNil(t, log)
			log.Info("message")
		})
	}
}

func TestWithField(t *testing.T) {
	log := NewLogger()
	child := log.WithField("job_id", "abc-123")
	assert.NotNil(t, child)
	// Parent logger is not mutated
	assert.NotSame(t, log, child)
	child.Info("with field")
}

func TestWithFields(t *testing.T) {
	log := NewLogger()
	child := log.WithFields(map[string]interface{}{
		"job_id":    "abc-123",
		"tenant_id": "t-1",
	})
	assert.NotNil(t, child)
	assert.NotSame(t, log, child)
	child.Info("with fields")
}
