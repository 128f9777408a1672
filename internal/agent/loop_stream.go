package agent

import (
	"context"
	"encoding/json"
	"strings"

	cctx "github.com/nextlevelbuilder/codi/internal/context"
	"github.com/nextlevelbuilder/codi/internal/providers"
	"github.com/nextlevelbuilder/codi/internal/session"
)

// streamTurn assembles one request from the session's current working set
// and drains a single provider turn, retrying the whole attempt on a
// retryable stream error. Retries are disabled (MaxAttempts forced to 1)
// once a tool call has already executed this turn: re-sending the request
// at that point would risk the model re-issuing side-effecting tool calls
// that already ran.
func (l *Loop) streamTurn(ctx context.Context, sess *session.Session, systemPromptTokens int, iteration int, toolExecutedThisTurn bool, sink DeltaSink) (providers.StopReason, []session.Block, providers.Usage, error) {
	working, _ := cctx.SelectWorkingSet(sess.Messages, systemPromptTokens, l.contextWindow, l.headroomFraction)

	toolDefs := make([]providers.ToolDefinition, 0, len(l.tools.Definitions()))
	for _, d := range l.tools.Definitions() {
		toolDefs = append(toolDefs, providers.ToolDefinition{Name: d.Name, Description: d.Description, Schema: d.Schema})
	}

	req := providers.Request{
		Model:     l.model,
		System:    sess.SystemPrompt,
		Messages:  cctx.ToProviderMessages(working),
		Tools:     toolDefs,
		MaxTokens: l.maxTokensPerReply,
	}

	retryCfg := l.retry
	if toolExecutedThisTurn {
		retryCfg = providers.RetryConfig{MaxAttempts: 1}
	}

	var (
		stopReason providers.StopReason
		usage      providers.Usage
		toolUses   []session.Block
	)

	err := providers.RetryDo(ctx, retryCfg, func() (fnErr error) {
		stopReason, toolUses, usage = providers.StopReason(""), nil, providers.Usage{}

		spanCtx, span := startLLMSpan(ctx, l.model, l.provider.Name(), iteration)
		defer func() { endSpan(span, fnErr) }()

		stream, err := l.provider.Stream(spanCtx, req)
		if err != nil {
			return err
		}
		defer stream.Close()

		var text, thinking strings.Builder
		startNames := map[string]string{}
		// startOrder records tool-use ids in the order their ToolUseStart
		// arrived; finished calls are collected in that order, not in the
		// order their ToolUseEnd events happened to complete.
		var startOrder []string
		ended := map[string]session.Block{}

		for {
			ev, ok, err := stream.Next(ctx)
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			switch ev.Kind {
			case providers.EventTextDelta:
				text.WriteString(ev.TextDelta)
				sink.Text(ev.TextDelta)
			case providers.EventThinkingDelta:
				thinking.WriteString(ev.ThinkingDelta)
				sink.Thinking(ev.ThinkingDelta)
			case providers.EventToolUseStart:
				startNames[ev.ToolUseID] = ev.ToolUseName
				startOrder = append(startOrder, ev.ToolUseID)
			case providers.EventToolUseEnd:
				name := ev.ToolUseName
				if name == "" {
					name = startNames[ev.ToolUseID]
				}
				if _, started := startNames[ev.ToolUseID]; !started {
					startNames[ev.ToolUseID] = name
					startOrder = append(startOrder, ev.ToolUseID)
				}
				ended[ev.ToolUseID] = session.ToolUseBlockOf(ev.ToolUseID, name, json.RawMessage(ev.ToolUseDelta))
			case providers.EventUsageUpdate:
				if ev.Usage != nil {
					usage = *ev.Usage
				}
				if ev.StopReason != "" {
					stopReason = ev.StopReason
				}
			case providers.EventDone:
				if ev.Usage != nil {
					usage = *ev.Usage
				}
				if ev.StopReason != "" {
					stopReason = ev.StopReason
				}
			case providers.EventError:
				return ev.Err
			}
		}

		for _, id := range startOrder {
			if b, ok := ended[id]; ok {
				toolUses = append(toolUses, b)
			}
		}

		blocks := assembleAssistantBlocks(thinking.String(), text.String(), toolUses)
		sess.AppendMessage(session.Message{Role: session.RoleAssistant, Blocks: blocks})
		return nil
	})
	if err != nil {
		return "", nil, providers.Usage{}, err
	}

	return stopReason, toolUses, usage, nil
}

func assembleAssistantBlocks(thinking, text string, toolUses []session.Block) []session.Block {
	var blocks []session.Block
	if thinking != "" {
		blocks = append(blocks, session.ThinkingBlock(thinking))
	}
	if text != "" {
		blocks = append(blocks, session.TextBlock(text))
	}
	blocks = append(blocks, toolUses...)
	return blocks
}
