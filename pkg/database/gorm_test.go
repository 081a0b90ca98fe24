package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/logger"
)

func TestSqlLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logger.LogLevel
	}{
		{"debug", logger.Info},
		{"info", logger.Warn},
		{"warn", logger.Warn},
		{"warning", logger.Warn},
		{"error", logger.Error},
		{" Debug ", logger.Info},
		{"", logger.Warn},
		{"unknown", logger.Warn},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, sqlLogLevel(tt.in), "level %q", tt.in)
	}
}
