package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSetsDefaultSeverity(t *testing.T) {
	cfg := Configuration("config", "Load", "missing logfile")
	assert.Equal(t, SeverityCritical, cfg.Severity)

	em := Emission("pipeline", "writeLine", "disk full")
	assert.Equal(t, SeverityLow, em.Severity)
	assert.True(t, em.Degrades())

	q := Query("session", "search", "unknown field")
	assert.False(t, q.Degrades())
}

func TestWrapAndUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Emission("pipeline", "flush", "write failed").Wrap(cause)

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "boom")
}

func TestNotFound(t *testing.T) {
	err := NotFound("session", "expand", "event not found")
	assert.True(t, IsNotFound(err))

	other := Query("session", "search", "bad filter")
	assert.False(t, IsNotFound(other))
	assert.False(t, IsNotFound(errors.New("plain")))
}

func TestFieldsIncludesMetadata(t *testing.T) {
	err := Transform("rewriter", "RewriteFile", "unsupported construct").
		WithMetadata("file", "main.go")

	fields := err.Fields()
	assert.Equal(t, "main.go", fields["error_meta_file"])
	assert.Equal(t, "TRANSFORM", fields["error_kind"])
}
