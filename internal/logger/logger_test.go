package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		level       string
		development bool
		enabled     zapcore.Level
		disabled    zapcore.Level
	}{
		{"生产模式 info", "info", false, zapcore.InfoLevel, zapcore.DebugLevel},
		{"开发模式 debug", "debug", true, zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{"非法级别回退", "loud", false, zapcore.InfoLevel, zapcore.DebugLevel},
		{"warn", "warn", false, zapcore.WarnLevel, zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := New(tt.level, tt.development)
			assert.NotNil(t, log)
			assert.True(t, log.Core().Enabled(tt.enabled))
			assert.False(t, log.Core().Enabled(tt.disabled))
		})
	}
}

func TestNewNop(t *testing.T) {
	assert.NotNil(t, NewNop())
}
