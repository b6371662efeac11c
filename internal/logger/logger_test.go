package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_JSONCarriesRunID(t *testing.T) {
	var buf bytes.Buffer
	runID := Init(Options{Format: "json", Output: &buf})

	Info("fetched headlines", "count", 3)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "fetched headlines", record["msg"])
	assert.Equal(t, runID, record["run_id"])
	assert.EqualValues(t, 3, record["count"])
}

func TestInit_DebugLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Output: &buf})
	Debug("hidden")
	assert.Empty(t, buf.String())

	Init(Options{Debug: true, Output: &buf})
	Debug("shown")
	assert.True(t, strings.Contains(buf.String(), "shown"))
}
