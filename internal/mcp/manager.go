// Package mcp bridges external MCP servers into the tool registry: each
// tool a connected server advertises is wrapped as a tools.Tool and
// registered under the registry, with a health-check/reconnect loop
// keeping the connection alive for the life of the process.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"

	"github.com/nextlevelbuilder/codi/internal/tools"
)

const (
	healthCheckInterval  = 30 * time.Second
	initialBackoff       = 2 * time.Second
	maxBackoff           = 60 * time.Second
	maxReconnectAttempts = 10
)

// ServerConfig configures a single external MCP server connection, read
// from the user's config file.
type ServerConfig struct {
	Transport  string            `json:"transport" yaml:"transport"` // "stdio", "sse", "streamable-http"
	Command    string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args       []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env        map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	URL        string            `json:"url,omitempty" yaml:"url,omitempty"`
	Headers    map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Enabled    *bool             `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	ToolPrefix string            `json:"tool_prefix,omitempty" yaml:"tool_prefix,omitempty"`
	TimeoutSec int               `json:"timeout_sec,omitempty" yaml:"timeout_sec,omitempty"`
	ToolAllow  []string          `json:"tool_allow,omitempty" yaml:"tool_allow,omitempty"`
	ToolDeny   []string          `json:"tool_deny,omitempty" yaml:"tool_deny,omitempty"`
}

// IsEnabled reports whether this server should be connected, defaulting
// to true when unset.
func (c *ServerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// ServerStatus reports the connection status of an MCP server.
type ServerStatus struct {
	Name      string `json:"name"`
	Transport string `json:"transport"`
	Connected bool   `json:"connected"`
	ToolCount int    `json:"tool_count"`
	Error     string `json:"error,omitempty"`
}

// serverState tracks a single MCP server connection.
type serverState struct {
	name       string
	transport  string
	client     *mcpclient.Client
	connected  atomic.Bool
	toolNames  []string
	timeoutSec int
	cancel     context.CancelFunc

	mu             sync.Mutex
	reconnAttempts int
	lastErr        string
}

// Manager connects to the MCP servers configured for a session and keeps
// their advertised tools registered for the life of the connection.
type Manager struct {
	mu       sync.RWMutex
	servers  map[string]*serverState
	registry *tools.Registry
	policy   *tools.VisibilityPolicy
	configs  map[string]*ServerConfig
}

// NewManager creates a Manager that registers discovered tools onto
// registry and, when policy is non-nil, marks each discovered tool
// visible via RegisterMCPTool/UnregisterMCPTool as servers connect and
// disconnect.
func NewManager(registry *tools.Registry, policy *tools.VisibilityPolicy, configs map[string]*ServerConfig) *Manager {
	return &Manager{
		servers:  make(map[string]*serverState),
		registry: registry,
		policy:   policy,
		configs:  configs,
	}
}

// Start connects to every enabled configured server. Non-fatal: a server
// that fails to connect is logged and skipped so one bad server does not
// prevent the rest, and the agent loop, from starting.
func (m *Manager) Start(ctx context.Context) error {
	if len(m.configs) == 0 {
		return nil
	}

	var errs []string
	for name, cfg := range m.configs {
		if !cfg.IsEnabled() {
			slog.Info("mcp.server.disabled", "server", name)
			continue
		}
		if err := m.connectServer(ctx, name, cfg); err != nil {
			slog.Warn("mcp.server.connect_failed", "server", name, "error", err)
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("some MCP servers failed to connect: %s", joinErrors(errs))
	}
	return nil
}

// Stop shuts down all MCP server connections and unregisters their tools.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, ss := range m.servers {
		if ss.cancel != nil {
			ss.cancel()
		}
		if ss.client != nil {
			if err := ss.client.Close(); err != nil {
				slog.Debug("mcp.server.close_error", "server", name, "error", err)
			}
		}
		for _, toolName := range ss.toolNames {
			m.registry.Unregister(toolName)
			if m.policy != nil {
				m.policy.UnregisterMCPTool(toolName)
			}
		}
	}
	m.servers = make(map[string]*serverState)
}

// Status returns the status of every MCP server this manager knows
// about, connected or not.
func (m *Manager) Status() []ServerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make([]ServerStatus, 0, len(m.servers))
	for _, ss := range m.servers {
		ss.mu.Lock()
		lastErr := ss.lastErr
		ss.mu.Unlock()
		statuses = append(statuses, ServerStatus{
			Name:      ss.name,
			Transport: ss.transport,
			Connected: ss.connected.Load(),
			ToolCount: len(ss.toolNames),
			Error:     lastErr,
		})
	}
	return statuses
}
