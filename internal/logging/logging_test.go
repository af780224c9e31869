package logging

import (
	"bytes"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// ansiEscape matches the color escape sequences the tint handler wraps
// around levels and attribute keys.
var ansiEscape = regexp.MustCompile("\x1b\\[[0-9;]*m")

func TestNewWritesStructuredLogLine(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false)

	log.Info("hello", "key", "value")

	out := ansiEscape.ReplaceAllString(buf.String(), "")
	require.Contains(t, out, "hello")
	require.Contains(t, out, "key=value")
}

func TestNewVerboseEnablesDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, true)
	log.Debug("debug message")
	require.True(t, strings.Contains(buf.String(), "debug message"))
}

func TestNewQuietDropsDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false)
	log.Debug("debug message")
	require.Empty(t, buf.String())
}
