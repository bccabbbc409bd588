package pipeline

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowtrace/pkg/types"
)

func newTestPipeline(t *testing.T, mutate func(*types.Config)) (*Pipeline, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := types.DefaultConfig()
	cfg.LogFile = filepath.Join(dir, "flowtrace.jsonl")
	cfg.SegmentDirectory = filepath.Join(dir, "flowtrace-jsonsl")
	if mutate != nil {
		mutate(&cfg)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	p, err := New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p, cfg.LogFile
}

func readLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var rows []map[string]interface{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var row map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &row))
		rows = append(rows, row)
	}
	return rows
}

func TestSimpleFunctionWithArguments(t *testing.T) {
	p, logPath := newTestPipeline(t, nil)

	ctx := p.Enter("", "add", []Arg{{Name: "x", Value: 5}, {Name: "y", Value: 3}})
	ctx.Exit([]Arg{{Name: "__ft_ret0", Value: 8}})

	rows := readLines(t, logPath)
	require.Len(t, rows, 2)

	assert.Equal(t, "ENTER", rows[0]["event"])
	assert.Contains(t, rows[0]["args"], "\"x\":5")
	assert.Contains(t, rows[0]["args"], "\"y\":3")

	assert.Equal(t, "EXIT", rows[1]["event"])
	assert.Equal(t, "8", rows[1]["result"])
	assert.GreaterOrEqual(t, rows[1]["durationMicros"], float64(0))
}

func TestExceptionPathEmitsNoExit(t *testing.T) {
	p, logPath := newTestPipeline(t, nil)

	ctx := p.Enter("", "divide", []Arg{{Name: "a", Value: 10}, {Name: "b", Value: 0}})
	ctx.Exception("ZeroDivisionError", "Division by zero", nil)
	ctx.Exit([]Arg{{Name: "__ft_ret0", Value: nil}}) // ignored: already closed

	rows := readLines(t, logPath)
	require.Len(t, rows, 2)
	assert.Equal(t, "ENTER", rows[0]["event"])
	assert.Equal(t, "EXCEPTION", rows[1]["event"])

	exc := rows[1]["exception"].(map[string]interface{})
	assert.Equal(t, "Division by zero", exc["message"])
	_, hasResult := rows[1]["result"]
	assert.False(t, hasResult)
}

func TestPairInvariantExactlyOneClose(t *testing.T) {
	p, logPath := newTestPipeline(t, nil)

	ctx := p.Enter("", "f", nil)
	ctx.Exit([]Arg{{Name: "__ft_ret0", Value: 1}})
	ctx.Exit([]Arg{{Name: "__ft_ret0", Value: 2}})
	ctx.Exception("E", "ignored", nil)

	rows := readLines(t, logPath)
	require.Len(t, rows, 2)
	assert.Equal(t, "EXIT", rows[1]["event"])
	assert.Equal(t, "1", rows[1]["result"])
}

func TestOversizeArgumentSegments(t *testing.T) {
	var segDir string
	p, logPath := newTestPipeline(t, func(cfg *types.Config) {
		cfg.TruncateThreshold = 100
		segDir = cfg.SegmentDirectory
	})

	long := strings.Repeat("a", 5000)
	ctx := p.Enter("", "logMessage", []Arg{{Name: "message", Value: long}})
	ctx.Exit([]Arg{{Name: "__ft_ret0", Value: nil}})

	rows := readLines(t, logPath)
	require.Len(t, rows, 2)

	enter := rows[0]
	truncated, ok := enter["truncatedFields"].(map[string]interface{})
	require.True(t, ok, "ENTER row must carry truncatedFields")
	argsMeta := truncated["args"].(map[string]interface{})
	assert.InDelta(t, 5014, argsMeta["originalLength"], 20)
	assert.Equal(t, float64(100), argsMeta["threshold"])

	fullLogFile, ok := enter["fullLogFile"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(fullLogFile, segDir))

	sidecar, err := os.ReadFile(fullLogFile)
	require.NoError(t, err)
	var full map[string]interface{}
	require.NoError(t, json.Unmarshal(sidecar, &full))
	assert.Contains(t, full["args"], long)
	_, hasMarkers := full["truncatedFields"]
	assert.False(t, hasMarkers)
}

func TestDisabledPipelineEmitsNothing(t *testing.T) {
	p, logPath := newTestPipeline(t, func(cfg *types.Config) { cfg.Enabled = false })

	ctx := p.Enter("", "f", nil)
	ctx.Exit([]Arg{{Name: "__ft_ret0", Value: 1}})

	_, err := os.Stat(logPath)
	assert.True(t, os.IsNotExist(err) || fileIsEmpty(t, logPath))
}

func fileIsEmpty(t *testing.T, path string) bool {
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info.Size() == 0
}
