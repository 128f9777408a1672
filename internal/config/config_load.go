package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nextlevelbuilder/codi/internal/codierr"
)

// Resolve finds the config file to load, preferring an explicit path,
// then .codi.yaml, then .codi.json in the current directory. Returns ""
// if none exist, in which case Load returns Default() with env overlaid.
func Resolve(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}
	for _, name := range []string{".codi.yaml", ".codi.yml", ".codi.json"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load reads the config file at path (format inferred from its
// extension), overlays environment variable overrides, and returns the
// result. An empty path returns Default() with only env overrides
// applied — this is not an error, a codi run is usable with zero config.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, codierr.Wrap(codierr.Configuration, fmt.Sprintf("read config %s", path), err)
	}

	if err := unmarshal(path, data, cfg); err != nil {
		return nil, codierr.Wrap(codierr.Configuration, fmt.Sprintf("parse config %s", path), err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func unmarshal(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

// validate enforces the configuration-kind error class from §7: a
// missing provider or model once the file and env overlay have both run
// is a fatal configuration error (exit code 2), not a silent fallback —
// Default() already seeded both fields, so this only fires when a
// config file explicitly blanks one out.
func (c *Config) validate() error {
	if c.Provider == "" {
		return codierr.New(codierr.Configuration, "provider must not be empty")
	}
	if c.Model == "" {
		return codierr.New(codierr.Configuration, "model must not be empty")
	}
	if c.ContextHeadroom < 0 || c.ContextHeadroom >= 1 {
		return codierr.New(codierr.Configuration, "context_headroom must be in [0, 1)")
	}
	return nil
}

// applyEnvOverrides overlays CODI_* environment variables onto cfg, env
// taking precedence over file values but deferring to CLI flags applied
// afterward by the caller.
func applyEnvOverrides(cfg *Config) {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	envCSV := func(key string, dst *[]string) {
		if v := os.Getenv(key); v != "" {
			*dst = strings.Split(v, ",")
		}
	}

	envStr("CODI_PROVIDER", &cfg.Provider)
	envStr("CODI_MODEL", &cfg.Model)
	envInt("CODI_MAX_ITERATIONS", &cfg.MaxIterations)
	envBool("CODI_AUDIT", &cfg.Audit)
	envCSV("CODI_AUTO_APPROVE", &cfg.AutoApprove)
	envCSV("CODI_DANGEROUS_PATTERNS", &cfg.DangerousPatterns)
}
