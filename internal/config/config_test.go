package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowtrace/pkg/types"
)

func TestLoadAppliesDefaultsWithNoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, types.DefaultConfig().LogFile, cfg.LogFile)
	assert.True(t, cfg.EnableSegmentation)
	assert.True(t, cfg.Enabled)
}

func TestLoadReadsJSONConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body, err := json.Marshal(map[string]interface{}{
		"packagePrefix": "com.example",
		"logfile":       "custom.jsonl",
		"stdout":        true,
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, body, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "com.example", cfg.PackagePrefix)
	assert.Equal(t, "custom.jsonl", cfg.LogFile)
	assert.True(t, cfg.Stdout)
}

func TestLoadMissingConfigFileIsNotFatal(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)
	assert.Equal(t, types.DefaultConfig().LogFile, cfg.LogFile)
}

func TestLoadEnvironmentOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body, _ := json.Marshal(map[string]interface{}{"logfile": "file.jsonl"})
	require.NoError(t, os.WriteFile(path, body, 0o644))

	t.Setenv("FLOWTRACE_LOGFILE", "env.jsonl")
	t.Setenv("FLOWTRACE_MAX_ARG_LENGTH", "256")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env.jsonl", cfg.LogFile)
	assert.Equal(t, 256, cfg.MaxArgLength)
}

func TestLoadMergesYAMLPolicyFile(t *testing.T) {
	dir := t.TempDir()
	policyPath := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(policyPath, []byte("include:\n  - com.example.*\nexclude:\n  - com.example.internal.*\n"), 0o644))

	configPath := filepath.Join(dir, "config.json")
	body, _ := json.Marshal(map[string]interface{}{"policyFile": policyPath})
	require.NoError(t, os.WriteFile(configPath, body, 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Contains(t, cfg.Policy.Include, "com.example.*")
	assert.Contains(t, cfg.Policy.Exclude, "com.example.internal.*")
}

func TestValidateRejectsEmptyLogFile(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.LogFile = ""
	require.Error(t, Validate(cfg))
}

func TestValidateRejectsNegativeThreshold(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.TruncateThreshold = -1
	require.Error(t, Validate(cfg))
}

func TestValidateRejectsSegmentationWithoutDirectory(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.EnableSegmentation = true
	cfg.SegmentDirectory = ""
	require.Error(t, Validate(cfg))
}

func TestValidateAcceptsDefaults(t *testing.T) {
	require.NoError(t, Validate(types.DefaultConfig()))
}
