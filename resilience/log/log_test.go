package log

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
		wantErr  bool
	}{
		{input: "debug", expected: DebugLevel},
		{input: "DEBUG", expected: DebugLevel},
		{input: "info", expected: InfoLevel},
		{input: "warn", expected: WarnLevel},
		{input: "error", expected: ErrorLevel},
		{input: "trace", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestGoLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	original := log.Writer()
	log.SetOutput(&buf)

	defer log.SetOutput(original)

	logger := &GoLogger{Level: WarnLevel}

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	assert.NotContains(t, output, "debug message")
	assert.NotContains(t, output, "info message")
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "error message")
}

func TestGoLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer

	original := log.Writer()
	log.SetOutput(&buf)

	defer log.SetOutput(original)

	logger := &GoLogger{Level: InfoLevel}
	child := logger.WithFields("service", "payment-gateway", "attempt", 2)

	child.Info("dependency recovered")

	output := buf.String()
	assert.Contains(t, output, "service=payment-gateway")
	assert.Contains(t, output, "attempt=2")
	assert.Contains(t, output, "dependency recovered")
}

func TestGoLogger_SanitizesControlCharacters(t *testing.T) {
	var buf bytes.Buffer

	original := log.Writer()
	log.SetOutput(&buf)

	defer log.SetOutput(original)

	logger := &GoLogger{Level: InfoLevel}
	logger.Infof("probe failed: %s", "first line\nINJECTED entry")

	output := buf.String()
	assert.Contains(t, output, `first line\nINJECTED entry`)
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")))
}

func TestNoneLogger_ImplementsLogger(t *testing.T) {
	var logger Logger = &NoneLogger{}

	logger.Info("discarded")
	logger.Errorf("discarded %d", 1)

	assert.NoError(t, logger.Sync())
	assert.Same(t, logger, logger.WithFields("k", "v"))
}

func TestZapLogger_WithFieldsReturnsChild(t *testing.T) {
	logger := NewZapLogger(DebugLevel)
	child := logger.WithFields("component", "health-monitor")

	assert.NotNil(t, child)
	assert.NotSame(t, Logger(logger), child)
}
