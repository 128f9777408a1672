package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

const (
	defaultAnthropicModel = "claude-sonnet-4-5-20250929"
	defaultMaxTokens      = 8192
)

var thinkingBudgets = map[ThinkingLevel]int64{
	ThinkingLow:    4096,
	ThinkingMedium: 10000,
	ThinkingHigh:   32000,
}

// AnthropicProvider adapts the Anthropic Messages API to the unified
// Provider contract, streaming through the official SDK rather than
// hand-rolling SSE parsing.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
}

// AnthropicOption configures an AnthropicProvider.
type AnthropicOption func(*AnthropicProvider)

func WithAnthropicModel(model string) AnthropicOption {
	return func(p *AnthropicProvider) { p.defaultModel = model }
}

// NewAnthropicProvider builds a provider authenticated with apiKey. If
// apiKey is empty, the SDK falls back to the ANTHROPIC_API_KEY environment
// variable.
func NewAnthropicProvider(apiKey string, opts ...AnthropicOption) *AnthropicProvider {
	var clientOpts []option.RequestOption
	if apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(apiKey))
	}
	p := &AnthropicProvider{
		client:       anthropic.NewClient(clientOpts...),
		defaultModel: defaultAnthropicModel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *AnthropicProvider) Name() string         { return "anthropic" }
func (p *AnthropicProvider) DefaultModel() string { return p.defaultModel }

func (p *AnthropicProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: build request: %w", err)
	}
	sdkStream := p.client.Messages.NewStreaming(ctx, params)
	return &anthropicStream{sdkStream: sdkStream}, nil
}

func (p *AnthropicProvider) buildParams(req Request) (anthropic.MessageNewParams, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	messages, err := buildAnthropicMessages(req.Messages)
	if err != nil {
		return params, err
	}
	params.Messages = messages

	if len(req.Tools) > 0 {
		tools := make([]anthropic.ToolUnionParam, 0, len(req.Tools))
		for _, t := range req.Tools {
			cleaned := CleanSchemaForProvider(t.Schema)
			schema := anthropic.ToolInputSchemaParam{}
			if props, ok := cleaned["properties"].(map[string]any); ok {
				schema.Properties = props
			}
			if req, ok := cleaned["required"].([]string); ok {
				schema.Required = req
			}
			tools = append(tools, anthropic.ToolUnionParam{
				OfTool: &anthropic.ToolParam{
					Name:        t.Name,
					Description: anthropic.String(t.Description),
					InputSchema: schema,
				},
			})
		}
		params.Tools = tools
		params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
	}

	if budget, ok := thinkingBudgets[req.ThinkingLevel]; ok {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
		if params.MaxTokens < budget+4096 {
			params.MaxTokens = budget + 4096
		}
	} else if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	return params, nil
}

func buildAnthropicMessages(msgs []Message) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleUser:
			blocks, err := anthropicUserBlocks(m.Blocks)
			if err != nil {
				return nil, err
			}
			out = append(out, anthropic.NewUserMessage(blocks...))
		case RoleAssistant:
			blocks, err := anthropicAssistantBlocks(m.Blocks)
			if err != nil {
				return nil, err
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		case RoleTool:
			blocks, err := anthropicUserBlocks(m.Blocks)
			if err != nil {
				return nil, err
			}
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out, nil
}

func anthropicUserBlocks(blocks []ContentBlock) ([]anthropic.ContentBlockParamUnion, error) {
	var out []anthropic.ContentBlockParamUnion
	for _, b := range blocks {
		switch {
		case b.IsToolResp:
			out = append(out, anthropic.NewToolResultBlock(b.ToolUseID, b.ToolOutput, b.IsError))
		case b.Text != "":
			out = append(out, anthropic.NewTextBlock(b.Text))
		}
	}
	return out, nil
}

func anthropicAssistantBlocks(blocks []ContentBlock) ([]anthropic.ContentBlockParamUnion, error) {
	var out []anthropic.ContentBlockParamUnion
	for _, b := range blocks {
		switch {
		case b.IsToolUse:
			var input map[string]any
			if len(b.ToolInput) > 0 {
				if err := json.Unmarshal(b.ToolInput, &input); err != nil {
					return nil, fmt.Errorf("decode tool_use input: %w", err)
				}
			}
			out = append(out, anthropic.NewToolUseBlock(b.ToolUseID, input, b.ToolName))
		case b.Text != "":
			out = append(out, anthropic.NewTextBlock(b.Text))
		}
	}
	return out, nil
}

// anthropicStream translates the SDK's own pull-based server-sent-event
// stream into the unified Event contract.
type anthropicStream struct {
	sdkStream *ssestream.Stream[anthropic.MessageStreamEventUnion]
	state     anthropicStreamState
	pending   []Event
	done      bool
}

type anthropicStreamState struct {
	currentBlockType string
	currentToolID    string
	currentToolName  string
	toolArgsJSON     string
	usage            Usage
}

func (s *anthropicStream) Next(ctx context.Context) (Event, bool, error) {
	for len(s.pending) == 0 {
		if s.done {
			return Event{}, false, nil
		}
		if !s.sdkStream.Next() {
			if err := s.sdkStream.Err(); err != nil {
				return Event{}, false, classifyAnthropicErr(err)
			}
			s.done = true
			s.pending = append(s.pending, Event{Kind: EventDone})
			continue
		}
		s.translate(s.sdkStream.Current())
	}
	ev := s.pending[0]
	s.pending = s.pending[1:]
	return ev, true, nil
}

func (s *anthropicStream) Close() error { return nil }

func (s *anthropicStream) emit(ev Event) { s.pending = append(s.pending, ev) }

func (s *anthropicStream) translate(event anthropic.MessageStreamEventUnion) {
	switch e := event.AsAny().(type) {
	case anthropic.ContentBlockStartEvent:
		block := e.ContentBlock
		switch block.Type {
		case "text":
			s.state.currentBlockType = "text"
		case "thinking":
			s.state.currentBlockType = "thinking"
		case "tool_use":
			toolBlock := block.AsToolUse()
			s.state.currentBlockType = "tool_use"
			s.state.currentToolID = toolBlock.ID
			s.state.currentToolName = toolBlock.Name
			s.state.toolArgsJSON = ""
			s.emit(Event{Kind: EventToolUseStart, ToolUseID: toolBlock.ID, ToolUseName: toolBlock.Name})
		}

	case anthropic.ContentBlockDeltaEvent:
		delta := e.Delta
		switch delta.Type {
		case "text_delta":
			s.emit(Event{Kind: EventTextDelta, TextDelta: delta.AsTextDelta().Text})
		case "thinking_delta":
			s.emit(Event{Kind: EventThinkingDelta, ThinkingDelta: delta.AsThinkingDelta().Thinking})
		case "input_json_delta":
			partial := delta.AsInputJSONDelta().PartialJSON
			s.state.toolArgsJSON += partial
			s.emit(Event{Kind: EventToolUseDelta, ToolUseID: s.state.currentToolID, ToolUseDelta: partial})
		}

	case anthropic.ContentBlockStopEvent:
		if s.state.currentBlockType == "tool_use" {
			s.emit(Event{Kind: EventToolUseEnd, ToolUseID: s.state.currentToolID, ToolUseName: s.state.currentToolName, ToolUseDelta: s.state.toolArgsJSON})
		}
		s.state.currentBlockType = ""

	case anthropic.MessageStartEvent:
		s.state.usage.InputTokens = int(e.Message.Usage.InputTokens)
		s.state.usage.CacheCreationTokens = int(e.Message.Usage.CacheCreationInputTokens)
		s.state.usage.CacheReadTokens = int(e.Message.Usage.CacheReadInputTokens)

	case anthropic.MessageDeltaEvent:
		s.state.usage.OutputTokens = int(e.Usage.OutputTokens)
		usage := s.state.usage
		s.emit(Event{Kind: EventUsageUpdate, Usage: &usage, StopReason: mapAnthropicStopReason(string(e.Delta.StopReason))})
	}
}

func mapAnthropicStopReason(reason string) StopReason {
	switch reason {
	case "tool_use":
		return StopToolUse
	case "max_tokens":
		return StopMaxTokens
	default:
		return StopNatural
	}
}

func classifyAnthropicErr(err error) error {
	return &HTTPError{Status: 0, Body: err.Error()}
}

// DetectAnthropicAPIKey returns the ANTHROPIC_API_KEY environment variable,
// the first step of provider auto-detection.
func DetectAnthropicAPIKey() string {
	return os.Getenv("ANTHROPIC_API_KEY")
}
