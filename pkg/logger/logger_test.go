package logger

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New(Config{Level: "info", Format: "xml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported log format")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "verbose", Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported log level")
}

func TestJSONOutputCarriesNameAndFields(t *testing.T) {
	var buf bytes.Buffer
	l, err := newWithWriter(Config{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)

	l.Named("tracker").WithAirport("KLAX").Info("refreshed", Int("flights", 3))
	require.NoError(t, l.Sync())

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "tracker", line["logger"])
	assert.Equal(t, "KLAX", line["icao"])
	assert.Equal(t, float64(3), line["flights"])
	assert.Equal(t, "refreshed", line["msg"])
}

func TestDebugIsFilteredAtInfo(t *testing.T) {
	var buf bytes.Buffer
	l, err := newWithWriter(Config{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)

	l.Debug("hidden")
	require.NoError(t, l.Sync())
	assert.Empty(t, buf.String())
}

func TestFileSinkIsConfigured(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "inbounds.log")
	l, err := newWithWriter(Config{Level: "info", Format: "console", File: path, MaxSizeMB: 1}, &buf)
	require.NoError(t, err)

	l.Info("hello")
	assert.FileExists(t, path)
}
