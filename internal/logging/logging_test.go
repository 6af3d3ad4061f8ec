package logging

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		want   LogLevel
		wantOK bool
	}{
		{name: "debug", input: "debug", want: LevelDebug, wantOK: true},
		{name: "info", input: "info", want: LevelInfo, wantOK: true},
		{name: "warn", input: "warn", want: LevelWarn, wantOK: true},
		{name: "warning alias", input: "warning", want: LevelWarn, wantOK: true},
		{name: "error", input: "error", want: LevelError, wantOK: true},
		{name: "case insensitive", input: "DEBUG", want: LevelDebug, wantOK: true},
		{name: "surrounding spaces", input: "  error ", want: LevelError, wantOK: true},
		{name: "empty", input: "", want: LevelInfo, wantOK: false},
		{name: "unknown", input: "verbose", want: LevelInfo, wantOK: false},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseLevel(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestLogLevelConstants(t *testing.T) {
	assert.Less(t, LevelDebug, LevelInfo)
	assert.Less(t, LevelInfo, LevelWarn)
	assert.Less(t, LevelWarn, LevelError)
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{LogLevel(42), "unknown(42)"},
	}

	for _, tt := range tests {

		tt := tt
		assert.Equal(t, tt.want, tt.level.String())
	}
}

// The tests below mutate global logger state and therefore do not run in parallel.

func TestSetLevelGatesOutput(t *testing.T) {
	original := GetLevel()
	defer SetLevel(original)

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	SetLevel(LevelWarn)
	Debug("debug %d", 1)
	Info("info %d", 2)
	Warn("warn %d", 3)
	Error("error %d", 4)

	out := buf.String()
	assert.NotContains(t, out, "debug 1")
	assert.NotContains(t, out, "info 2")
	assert.Contains(t, out, "[WARN] warn 3")
	assert.Contains(t, out, "[ERROR] error 4")
	assert.False(t, IsDebugEnabled())
}

func TestConfigureRejectsUnknownLevel(t *testing.T) {
	err := Configure(Options{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loud")
}

func TestConfigureWritesRotatingFile(t *testing.T) {
	original := GetLevel()
	defer SetLevel(original)

	path := filepath.Join(t.TempDir(), "metapick.log")
	require.NoError(t, Configure(Options{
		Level:      "info",
		FilePath:   path,
		MaxSizeMB:  1,
		MaxBackups: 1,
	}))

	Info("written to %s", "file")
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "[INFO] written to file"))

	// Closing twice is a no-op
	assert.NoError(t, Close())
}
