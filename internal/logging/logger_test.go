package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoggerCarriesComponentAndFields(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	// Built before Setup on purpose.
	logger := NewLogger("Extractor").With("job_id", "job-1")

	var buf bytes.Buffer
	require.NoError(t, SetupWriter(&buf, "debug", "json"))

	logger.Info("row flushed", "page", 2)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "row flushed", entry["msg"])
	assert.Equal(t, "Extractor", entry["component"])
	assert.Equal(t, "job-1", entry["job_id"])
	assert.EqualValues(t, 2, entry["page"])
}

func TestSetupRejectsUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, SetupWriter(&buf, "info", "xml"))
}

func TestNilLoggerIsUsable(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() { l.Debug("noop") })
}
