package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idmask/internal/platform/config"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(config.Log{Level: "warn", Format: "json"}, &buf)

	log.Info("dropped")
	log.Warn("kept", "key", "BRAND")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "BRAND", line["key"])
	assert.Equal(t, "idmask", line["service"])
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(config.Log{Level: "debug", Format: "text"}, &buf)
	log.Debug("debug line")
	assert.Contains(t, buf.String(), "msg=\"debug line\"")
}
