package agent

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"flowtrace/internal/pipeline"
	"flowtrace/pkg/types"
)

func TestEnterWithoutInstallIsNoop(t *testing.T) {
	ctx := Enter("X", "y", nil)
	require.NotNil(t, ctx)
	ctx.Exit(nil) // must not panic against the fallback pipeline
}

func TestEnterForwardsToInstalledPipeline(t *testing.T) {
	dir := t.TempDir()
	cfg := types.DefaultConfig()
	cfg.LogFile = filepath.Join(dir, "flowtrace.jsonl")
	cfg.SegmentDirectory = filepath.Join(dir, "flowtrace-jsonsl")

	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	p, err := pipeline.New(cfg, logger)
	require.NoError(t, err)
	defer p.Close()

	Install(p)
	defer Install(nil)

	ctx := Enter("Svc", "Do", nil)
	ctx.Exit(nil)
}
