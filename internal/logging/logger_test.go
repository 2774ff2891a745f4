package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "debug")

	logger.WithField("vehicle_id", "bus-1").Info("sample appended")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "sample appended", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "bus-1", entry["vehicle_id"])
	assert.Contains(t, entry, "timestamp")
}

func TestNewWithWriter_UnknownLevelFallsBackToInfo(t *testing.T) {
	logger := NewWithWriter(&bytes.Buffer{}, "loud")
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}
