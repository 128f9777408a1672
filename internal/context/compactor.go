package context

import (
	"context"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/codi/internal/providers"
	"github.com/nextlevelbuilder/codi/internal/session"
)

const compactionInstruction = "summarize the following conversation preserving all file paths, decisions, and open tasks"

// Compact issues a dedicated, non-streamed summarization call against
// provider and returns a synthetic system message carrying the summary,
// followed by the tail turn (the last unresolved-tool-call-safe group)
// that should be retained verbatim alongside it.
func Compact(ctx context.Context, provider providers.Provider, model string, history []session.Message) (summary session.Message, tail []session.Message, err error) {
	groups := groupMessages(history)
	if len(groups) == 0 {
		return session.Message{}, nil, fmt.Errorf("cannot compact an empty history")
	}
	tailGroup := groups[len(groups)-1]
	toSummarize := history[:len(history)-len(tailGroup.messages)]

	req := providers.Request{
		Model:     model,
		System:    compactionInstruction,
		Messages:  ToProviderMessages(toSummarize),
		MaxTokens: 2048,
	}

	stream, err := provider.Stream(ctx, req)
	if err != nil {
		return session.Message{}, nil, fmt.Errorf("start compaction call: %w", err)
	}
	defer stream.Close()

	var text strings.Builder
	for {
		ev, ok, err := stream.Next(ctx)
		if err != nil {
			return session.Message{}, nil, fmt.Errorf("compaction stream: %w", err)
		}
		if !ok {
			break
		}
		if ev.Kind == providers.EventTextDelta {
			text.WriteString(ev.TextDelta)
		}
		if ev.Kind == providers.EventDone {
			break
		}
	}

	summary = session.Message{
		Role:   session.RoleSystem,
		Blocks: []session.Block{session.TextBlock("[conversation summary]\n" + text.String())},
	}
	return summary, tailGroup.messages, nil
}

// ToProviderMessages converts stored session messages into the provider
// wire shape, used both by Compact's summarization call and by the agent
// loop when assembling a turn's request.
func ToProviderMessages(messages []session.Message) []providers.Message {
	out := make([]providers.Message, 0, len(messages))
	for _, m := range messages {
		pm := providers.Message{Role: providers.Role(m.Role)}
		for _, b := range m.Blocks {
			switch b.Kind {
			case session.BlockText:
				pm.Blocks = append(pm.Blocks, providers.ContentBlock{Text: b.Text})
			case session.BlockThinking:
				pm.Blocks = append(pm.Blocks, providers.ContentBlock{Text: b.Thinking})
			case session.BlockToolUse:
				if b.ToolUse != nil {
					pm.Blocks = append(pm.Blocks, providers.ContentBlock{
						IsToolUse: true,
						ToolUseID: b.ToolUse.ID,
						ToolName:  b.ToolUse.Name,
						ToolInput: b.ToolUse.Arguments,
					})
				}
			case session.BlockToolResult:
				if b.ToolResult != nil {
					pm.Blocks = append(pm.Blocks, providers.ContentBlock{
						IsToolResp: true,
						ToolUseID:  b.ToolResult.ID,
						ToolOutput: b.ToolResult.Output,
						IsError:    b.ToolResult.IsError,
					})
				}
			}
		}
		out = append(out, pm)
	}
	return out
}
