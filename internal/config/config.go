// Package config loads and resolves FlowTrace's configuration surface
// (§6): defaults, then a .flowtrace/config.json file, then environment
// overrides, then an optional YAML policy file contributing extra
// include/exclude patterns.
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	flowtraceerrors "flowtrace/pkg/errors"
	"flowtrace/pkg/types"
)

// Environment variable names for the configuration surface in §6's table.
const (
	envPackagePrefix      = "FLOWTRACE_PACKAGE_PREFIX"
	envLogFile            = "FLOWTRACE_LOGFILE"
	envStdout             = "FLOWTRACE_STDOUT"
	envMaxArgLength       = "FLOWTRACE_MAX_ARG_LENGTH"
	envTruncateThreshold  = "FLOWTRACE_TRUNCATE_THRESHOLD"
	envSegmentDirectory   = "FLOWTRACE_SEGMENT_DIRECTORY"
	envEnableSegmentation = "FLOWTRACE_ENABLE_SEGMENTATION"
	envEnabled            = "FLOWTRACE_ENABLED"
	envPolicyFile         = "FLOWTRACE_POLICY_FILE"
)

// Load resolves a Config starting from defaults, layering in
// configFile's JSON contents if it exists, then environment overrides,
// then the optional YAML policy file's include/exclude patterns.
// configFile is expected at ".flowtrace/config.json" per §6's persisted
// state layout, but any path is accepted.
func Load(configFile string) (types.Config, error) {
	cfg := types.DefaultConfig()

	if configFile != "" {
		if err := loadConfigFile(configFile, &cfg); err != nil {
			return cfg, err
		}
	}

	applyEnvironmentOverrides(&cfg)

	if cfg.PolicyFile != "" {
		if err := loadPolicyFile(cfg.PolicyFile, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadConfigFile(path string, cfg *types.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return flowtraceerrors.Configuration("config", "loadConfigFile", "failed to read config file").
			Wrap(err).WithMetadata("path", path)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return flowtraceerrors.Configuration("config", "loadConfigFile", "failed to parse config file").
			Wrap(err).WithMetadata("path", path)
	}
	return nil
}

func loadPolicyFile(path string, cfg *types.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return flowtraceerrors.Configuration("config", "loadPolicyFile", "failed to read policy file").
			Wrap(err).WithMetadata("path", path)
	}
	var extra types.SelectionPolicyConfig
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return flowtraceerrors.Configuration("config", "loadPolicyFile", "failed to parse policy file").
			Wrap(err).WithMetadata("path", path)
	}
	cfg.Policy.Include = append(cfg.Policy.Include, extra.Include...)
	cfg.Policy.Exclude = append(cfg.Policy.Exclude, extra.Exclude...)
	cfg.Policy.Builtin = append(cfg.Policy.Builtin, extra.Builtin...)
	return nil
}

func applyEnvironmentOverrides(cfg *types.Config) {
	cfg.PackagePrefix = getEnvString(envPackagePrefix, cfg.PackagePrefix)
	cfg.LogFile = getEnvString(envLogFile, cfg.LogFile)
	cfg.Stdout = getEnvBool(envStdout, cfg.Stdout)
	cfg.MaxArgLength = getEnvInt(envMaxArgLength, cfg.MaxArgLength)
	cfg.TruncateThreshold = getEnvInt(envTruncateThreshold, cfg.TruncateThreshold)
	cfg.SegmentDirectory = getEnvString(envSegmentDirectory, cfg.SegmentDirectory)
	cfg.EnableSegmentation = getEnvBool(envEnableSegmentation, cfg.EnableSegmentation)
	cfg.Enabled = getEnvBool(envEnabled, cfg.Enabled)
	cfg.PolicyFile = getEnvString(envPolicyFile, cfg.PolicyFile)
}

// Validate enforces the ConfigurationError class of §7: an invalid option
// combination is fatal at startup.
func Validate(cfg types.Config) error {
	if cfg.LogFile == "" {
		return flowtraceerrors.Configuration("config", "Validate", "logfile must not be empty")
	}
	if cfg.TruncateThreshold < 0 {
		return flowtraceerrors.Configuration("config", "Validate", "truncate-threshold must be non-negative").
			WithMetadata("value", cfg.TruncateThreshold)
	}
	if cfg.MaxArgLength < 0 {
		return flowtraceerrors.Configuration("config", "Validate", "max-arg-length must be non-negative").
			WithMetadata("value", cfg.MaxArgLength)
	}
	if cfg.EnableSegmentation && strings.TrimSpace(cfg.SegmentDirectory) == "" {
		return flowtraceerrors.Configuration("config", "Validate", "segment-directory must not be empty when segmentation is enabled")
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}
