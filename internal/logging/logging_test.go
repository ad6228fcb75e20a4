package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level   string
		format  string
		enabled zapcore.Level
		wantErr bool
	}{
		{level: "info", format: "json", enabled: zapcore.InfoLevel},
		{level: "DEBUG", format: "console", enabled: zapcore.DebugLevel},
		{level: "warn", format: "", enabled: zapcore.WarnLevel},
		{level: "loud", format: "json", wantErr: true},
		{level: "info", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			logger, err := New(tt.level, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.enabled))
			assert.False(t, logger.Core().Enabled(tt.enabled-1))
		})
	}
}
