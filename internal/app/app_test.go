package app

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.json")
	body, err := json.Marshal(map[string]interface{}{
		"logfile":          filepath.Join(dir, "flowtrace.jsonl"),
		"segmentDirectory": filepath.Join(dir, "flowtrace-jsonsl"),
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, body, 0o644))
	return path
}

func TestNewWiresEveryComponent(t *testing.T) {
	dir := t.TempDir()
	a, err := New(writeConfig(t, dir))
	require.NoError(t, err)
	require.NotNil(t, a.Policy)
	require.NotNil(t, a.Rewriter)
	require.NotNil(t, a.Launcher)
	require.NotNil(t, a.Pipeline)
	require.NotNil(t, a.Queries)

	require.NoError(t, a.Shutdown(context.Background()))
}

func TestInjectRewritesTargetTree(t *testing.T) {
	dir := t.TempDir()
	a, err := New(writeConfig(t, dir))
	require.NoError(t, err)
	defer a.Shutdown(context.Background())

	target := t.TempDir()
	source := filepath.Join(target, "sample.go")
	require.NoError(t, os.WriteFile(source, []byte("package sample\n\nfunc Add(a, b int) int {\n\treturn a + b\n}\n"), 0o644))

	summary, err := a.Inject(target)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FilesRewritten)
}

func TestOpenQueryLoadsWrittenLog(t *testing.T) {
	dir := t.TempDir()
	a, err := New(writeConfig(t, dir))
	require.NoError(t, err)
	defer a.Shutdown(context.Background())

	ctx := a.Pipeline.Enter("Svc", "Do", nil)
	ctx.Exit(nil)

	result, err := a.OpenQuery(a.Config().LogFile)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
}
