// Package config loads and hot-reloads the .codi.{json,yaml} configuration
// file that governs a run's provider/model defaults, approval policy
// seeds, and agent loop limits.
package config

import (
	"sync"
)

// Config is the root configuration for a codi run. Provider, model,
// max iterations, audit, auto_approve and dangerous_patterns have CODI_*
// environment variable overrides, and provider, model and audit also have
// CLI flags, applied in the precedence order flag > env > file > default.
// SystemPromptAdditions and ContextHeadroom come only from the file or
// the default.
type Config struct {
	Provider              string   `json:"provider" yaml:"provider"`
	Model                 string   `json:"model" yaml:"model"`
	AutoApprove           []string `json:"auto_approve,omitempty" yaml:"auto_approve,omitempty"`
	DangerousPatterns     []string `json:"dangerous_patterns,omitempty" yaml:"dangerous_patterns,omitempty"`
	SystemPromptAdditions string   `json:"system_prompt_additions,omitempty" yaml:"system_prompt_additions,omitempty"`
	MaxIterations         int      `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
	ContextHeadroom       float64  `json:"context_headroom,omitempty" yaml:"context_headroom,omitempty"`
	Audit                 bool     `json:"audit,omitempty" yaml:"audit,omitempty"`

	mu sync.RWMutex
}

// Default returns a Config populated with the same fallbacks agent.New
// and context.DefaultHeadroomFraction use when left unconfigured.
func Default() *Config {
	return &Config{
		Provider:        "anthropic",
		Model:           "claude-sonnet-4-5-20250929",
		MaxIterations:   50,
		ContextHeadroom: 0.20,
	}
}

// Snapshot returns a copy of the fields a fsnotify-driven reload is
// allowed to change between turns: AutoApprove and DangerousPatterns.
// Everything else (provider, model, iteration limits) is fixed for the
// lifetime of a run once CLI flags have been applied.
func (c *Config) Snapshot() (autoApprove, dangerousPatterns []string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	autoApprove = append([]string(nil), c.AutoApprove...)
	dangerousPatterns = append([]string(nil), c.DangerousPatterns...)
	return autoApprove, dangerousPatterns
}

// applyPolicyReload replaces only the policy fields a watcher may
// hot-reload, never the provider/model/iteration fields a running agent
// loop has already captured into its own Config.
func (c *Config) applyPolicyReload(autoApprove, dangerousPatterns []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.AutoApprove = autoApprove
	c.DangerousPatterns = dangerousPatterns
}
