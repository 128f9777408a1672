package agent

import (
	"context"

	cctx "github.com/nextlevelbuilder/codi/internal/context"
	"github.com/nextlevelbuilder/codi/internal/session"
)

// executeTools runs each tool_use block in toolUses in emission order —
// strictly serialized even though a provider may have emitted the calls as
// a parallel batch — and appends a single user-role message whose blocks
// are the tool_results in the same order. It reports whether ctx was
// cancelled partway through, in which case any calls not yet started are
// resolved as is_error=true "cancelled" rather than executed.
func (l *Loop) executeTools(ctx context.Context, sess *session.Session, toolUses []session.Block, turn *session.Turn) (cancelled bool) {
	results := make([]session.Block, 0, len(toolUses))

	for _, tb := range toolUses {
		tu := tb.ToolUse
		if tu == nil {
			continue
		}

		if ctx.Err() != nil {
			results = append(results, session.ToolResultBlockOf(tu.ID, "cancelled", true))
			turn.ToolCalls = append(turn.ToolCalls, session.ToolCall{
				ID: tu.ID, Name: tu.Name, ArgumentsJSON: string(tu.Arguments), State: session.ToolCallDenied,
			})
			turn.ToolResults = append(turn.ToolResults, session.ToolResult{ID: tu.ID, Output: "cancelled"})
			l.emit(AgentEvent{Type: ToolCompleted, ToolID: tu.ID, IsError: true})
			cancelled = true
			continue
		}

		l.emit(AgentEvent{Type: ToolExecuting, ToolID: tu.ID, ToolName: tu.Name})

		spanCtx, span := startToolSpan(ctx, tu.Name, tu.ID)
		result := l.tools.Execute(spanCtx, tu.Name, tu.Arguments)
		endToolSpan(span, result.IsError)

		results = append(results, session.ToolResultBlockOf(tu.ID, result.ForLLM, result.IsError))
		turn.ToolCalls = append(turn.ToolCalls, session.ToolCall{
			ID:            tu.ID,
			Name:          tu.Name,
			ArgumentsJSON: string(tu.Arguments),
			State:         toolCallState(result.IsError, result.Denied),
		})
		turn.ToolResults = append(turn.ToolResults, session.ToolResult{
			ID:                tu.ID,
			Success:           !result.IsError,
			Output:            result.ForLLM,
			StructuredPayload: result.StructuredPayload,
			Duration:          result.Duration,
			TokenCostEstimate: cctx.EstimateTokens(result.ForLLM),
			Truncated:         result.Truncated,
		})

		l.emit(AgentEvent{Type: ToolCompleted, ToolID: tu.ID, IsError: result.IsError})
	}

	sess.AppendMessage(session.Message{Role: session.RoleUser, Blocks: results})

	if ctx.Err() != nil {
		cancelled = true
	}
	return cancelled
}

func toolCallState(isError, denied bool) session.ToolCallState {
	switch {
	case denied:
		return session.ToolCallDenied
	case isError:
		return session.ToolCallFailed
	default:
		return session.ToolCallCompleted
	}
}
