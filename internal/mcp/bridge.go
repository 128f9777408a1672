package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/nextlevelbuilder/codi/internal/tools"
)

// BridgeTool adapts one tool advertised by an MCP server into a
// tools.Tool, so the agent loop's registry sees it exactly like a
// built-in tool.
type BridgeTool struct {
	serverName   string
	originalName string
	description  string
	schema       map[string]any
	client       *mcpclient.Client
	timeout      time.Duration
	connected    *atomic.Bool
	namePrefix   string
}

// NewBridgeTool wraps mcpTool as registered by serverName. The tool's
// registry-facing name is prefix-qualified ("mcp__<server>__<tool>" or
// "<prefix>__<tool>" when a prefix is configured) to avoid collisions
// between servers that both expose a tool of the same name.
func NewBridgeTool(serverName string, mcpTool mcpgo.Tool, client *mcpclient.Client, prefix string, timeoutSec int, connected *atomic.Bool) *BridgeTool {
	schema := map[string]any{
		"type":       "object",
		"properties": mcpTool.InputSchema.Properties,
	}
	if len(mcpTool.InputSchema.Required) > 0 {
		schema["required"] = mcpTool.InputSchema.Required
	}

	qualifier := prefix
	if qualifier == "" {
		qualifier = "mcp__" + serverName
	}

	return &BridgeTool{
		serverName:   serverName,
		originalName: mcpTool.Name,
		description:  mcpTool.Description,
		schema:       schema,
		client:       client,
		timeout:      time.Duration(timeoutSec) * time.Second,
		connected:    connected,
		namePrefix:   qualifier,
	}
}

// OriginalName returns the tool name as advertised by the MCP server,
// before prefix qualification, used to match server-side tool_allow /
// tool_deny grants.
func (b *BridgeTool) OriginalName() string { return b.originalName }

func (b *BridgeTool) Name() string        { return b.namePrefix + "__" + b.originalName }
func (b *BridgeTool) Description() string { return b.description }
func (b *BridgeTool) Category() tools.Category {
	return tools.CategoryExecute
}
func (b *BridgeTool) Schema() map[string]any { return b.schema }

func (b *BridgeTool) Execute(ctx context.Context, argsJSON json.RawMessage) *tools.Result {
	start := time.Now()
	if !b.connected.Load() {
		return tools.ErrorResult(fmt.Sprintf("mcp server %q is not connected", b.serverName))
	}

	var args map[string]any
	if len(argsJSON) > 0 {
		if err := json.Unmarshal(argsJSON, &args); err != nil {
			return tools.ErrorResult(fmt.Sprintf("invalid arguments: %v", err))
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	req := mcpgo.CallToolRequest{}
	req.Params.Name = b.originalName
	req.Params.Arguments = args

	res, err := b.client.CallTool(callCtx, req)
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("mcp call failed: %v", err)).WithError(err)
	}

	text := renderContent(res.Content)
	r := tools.NewResult(text)
	r.IsError = res.IsError
	r.Duration = time.Since(start)
	return r
}

// renderContent flattens an MCP tool result's content blocks into plain
// text. Non-text blocks (images, embedded resources) are summarized by
// type rather than dropped silently.
func renderContent(content []mcpgo.Content) string {
	var out string
	for i, c := range content {
		if i > 0 {
			out += "\n"
		}
		switch block := c.(type) {
		case mcpgo.TextContent:
			out += block.Text
		case mcpgo.ImageContent:
			out += fmt.Sprintf("[image content: %s]", block.MIMEType)
		case mcpgo.EmbeddedResource:
			out += "[embedded resource]"
		default:
			out += fmt.Sprintf("[unsupported content block %T]", c)
		}
	}
	return out
}
