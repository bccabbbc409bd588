package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceEventOmitsEmptyFields(t *testing.T) {
	enter := TraceEvent{
		Timestamp: 1,
		Event:     EventEnter,
		Thread:    "main",
		Class:     "UserController",
		Method:    "createUser",
		Args:      `[{"name":"John"}]`,
	}

	raw, err := json.Marshal(enter)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	_, hasResult := decoded["result"]
	assert.False(t, hasResult)
	_, hasException := decoded["exception"]
	assert.False(t, hasException)
	assert.False(t, enter.IsSegmented())
}

func TestIsSegmented(t *testing.T) {
	e := TraceEvent{
		TruncatedFields: map[string]TruncatedField{"args": {OriginalLength: 5000, Threshold: 1000}},
		FullLogFile:     "flowtrace-jsonsl/flowtrace-1-ENTER.json",
	}
	assert.True(t, e.IsSegmented())

	e2 := TraceEvent{}
	assert.False(t, e2.IsSegmented())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "flowtrace.jsonl", cfg.LogFile)
	assert.Equal(t, 1000, cfg.TruncateThreshold)
	assert.True(t, cfg.EnableSegmentation)
	assert.True(t, cfg.Enabled)
}
