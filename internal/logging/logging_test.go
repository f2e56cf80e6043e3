package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, "info", "json")
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("Client registered", "conversationID", "conv-1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "Client registered", line["msg"])
	assert.Equal(t, "conv-1", line["conversationID"])
}

func TestNewWithWriterRejectsUnknownLevel(t *testing.T) {
	_, err := NewWithWriter(&bytes.Buffer{}, "loud", "text")
	assert.Error(t, err)
}
