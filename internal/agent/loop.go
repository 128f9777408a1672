// Package agent implements the core state machine that drives one turn of
// conversation: assembling a request from the context manager's working
// set, streaming it through a provider, executing any tool calls the model
// requests, and resuming until the model produces a final answer or a hard
// limit fires.
package agent

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	cctx "github.com/nextlevelbuilder/codi/internal/context"
	"github.com/nextlevelbuilder/codi/internal/providers"
	"github.com/nextlevelbuilder/codi/internal/session"
	"github.com/nextlevelbuilder/codi/internal/tools"
)

const (
	defaultMaxIterations     = 50
	defaultMaxWallTime       = time.Hour
	defaultMaxTokensPerReply = 8192
)

// Config wires a Loop to its provider, tool registry, and the limits that
// bound a single turn.
type Config struct {
	Provider          providers.Provider
	Model             string
	ContextWindow     int
	Tools             *tools.Registry
	MaxIterations     int                  // 0 uses defaultMaxIterations
	MaxWallTime       time.Duration        // 0 uses defaultMaxWallTime
	HeadroomFraction  float64              // 0 uses cctx.DefaultHeadroomFraction
	Retry             providers.RetryConfig // zero value uses providers.DefaultRetryConfig
	MaxTokensPerReply int                  // 0 uses defaultMaxTokensPerReply
	OnEvent           func(AgentEvent)
}

// Loop owns the states Idle -> AssemblingRequest -> Streaming ->
// ExecutingTools -> (AssemblingRequest | Idle) for one session at a time.
// A Loop is safe to reuse across turns; activeRuns exists purely for
// operational visibility (e.g. refusing a second concurrent Run against
// the same session), not for any correctness guarantee the state machine
// itself depends on.
type Loop struct {
	provider          providers.Provider
	model             string
	contextWindow     int
	tools             *tools.Registry
	maxIterations     int
	maxWallTime       time.Duration
	headroomFraction  float64
	retry             providers.RetryConfig
	maxTokensPerReply int
	onEvent           func(AgentEvent)

	activeRuns atomic.Int32
}

// New builds a Loop from cfg, filling unset fields with their defaults.
func New(cfg Config) *Loop {
	l := &Loop{
		provider:          cfg.Provider,
		model:             cfg.Model,
		contextWindow:     cfg.ContextWindow,
		tools:             cfg.Tools,
		maxIterations:     cfg.MaxIterations,
		maxWallTime:       cfg.MaxWallTime,
		headroomFraction:  cfg.HeadroomFraction,
		retry:             cfg.Retry,
		maxTokensPerReply: cfg.MaxTokensPerReply,
		onEvent:           cfg.OnEvent,
	}
	if l.maxIterations <= 0 {
		l.maxIterations = defaultMaxIterations
	}
	if l.maxWallTime <= 0 {
		l.maxWallTime = defaultMaxWallTime
	}
	if l.headroomFraction <= 0 {
		l.headroomFraction = cctx.DefaultHeadroomFraction
	}
	if l.retry.MaxAttempts <= 0 {
		l.retry = providers.DefaultRetryConfig()
	}
	if l.maxTokensPerReply <= 0 {
		l.maxTokensPerReply = defaultMaxTokensPerReply
	}
	return l
}

// ActiveRuns reports how many Run calls are currently in flight on this
// Loop, across all sessions.
func (l *Loop) ActiveRuns() int32 { return l.activeRuns.Load() }

// Run drives one user turn to completion: append the user message, then
// repeatedly assemble a request, stream the model, and execute any tool
// calls, until the model stops without requesting a tool or a hard limit
// ends the turn. sink receives TextDelta/ThinkingDelta as they stream; a
// nil sink is replaced with NoopSink.
//
// ctx cancellation is cooperative: the in-flight provider stream is
// closed, any tool calls still pending in the current batch are resolved
// as is_error=true "cancelled", and the turn ends with EndCancelled. A
// context whose only failure mode is the caller's own cancellation (not
// the wall-time limit below, which is tracked independently so it can
// surface max_iterations instead) is all Run requires.
func (l *Loop) Run(ctx context.Context, sess *session.Session, userMessage string, sink DeltaSink) (result *session.Turn, err error) {
	if sink == nil {
		sink = NoopSink{}
	}

	l.activeRuns.Add(1)
	defer l.activeRuns.Add(-1)

	ctx, turnSpan := startTurnSpan(ctx, l.model, l.provider.Name())
	defer func() { endSpan(turnSpan, err) }()

	l.emit(AgentEvent{Type: TurnStarted})

	sess.AppendMessage(session.Message{
		Role:   session.RoleUser,
		Blocks: []session.Block{session.TextBlock(userMessage)},
	})

	turn := &session.Turn{}
	start := time.Now()
	systemPromptTokens := cctx.EstimateTokens(sess.SystemPrompt)
	toolExecutedThisTurn := false

	for iteration := 1; ; iteration++ {
		if iteration > l.maxIterations || time.Since(start) > l.maxWallTime {
			return l.endTurn(turn, start, session.EndMaxIterations,
				fmt.Errorf("turn ended: exceeded %d iterations or %s wall-time limit", l.maxIterations, l.maxWallTime))
		}
		if err := ctx.Err(); err != nil {
			return l.endTurn(turn, start, session.EndCancelled, err)
		}

		if cctx.ExceedsBudget(sess.Messages, systemPromptTokens, l.contextWindow, l.headroomFraction) {
			if err := l.compact(ctx, sess); err != nil {
				return l.endTurn(turn, start, session.EndError, fmt.Errorf("compaction failed: %w", err))
			}
		}

		stopReason, toolUses, usage, err := l.streamTurn(ctx, sess, systemPromptTokens, iteration, toolExecutedThisTurn, sink)
		if err != nil {
			if ctx.Err() != nil {
				return l.endTurn(turn, start, session.EndCancelled, ctx.Err())
			}
			return l.endTurn(turn, start, session.EndError, fmt.Errorf("provider stream failed: %w", err))
		}

		turn.InputTokensUsed += usage.InputTokens
		turn.OutputTokensUsed += usage.OutputTokens
		sess.AccumulateTokens(int64(usage.InputTokens), int64(usage.OutputTokens))

		if stopReason != providers.StopToolUse || len(toolUses) == 0 {
			turn.Duration = time.Since(start)
			turn.EndReason = session.EndNatural
			l.emit(AgentEvent{Type: TurnEnded, EndReason: string(session.EndNatural)})
			return turn, nil
		}

		cancelled := l.executeTools(ctx, sess, toolUses, turn)
		toolExecutedThisTurn = true
		if cancelled {
			return l.endTurn(turn, start, session.EndCancelled, ctx.Err())
		}
		// -> AssemblingRequest for the next iteration.
	}
}

func (l *Loop) endTurn(turn *session.Turn, start time.Time, reason session.EndReason, err error) (*session.Turn, error) {
	turn.Duration = time.Since(start)
	turn.EndReason = reason
	l.emit(AgentEvent{Type: TurnEnded, EndReason: string(reason), Err: err})
	return turn, err
}

func (l *Loop) compact(ctx context.Context, sess *session.Session) error {
	summary, tail, err := cctx.Compact(ctx, l.provider, l.model, sess.Messages)
	if err != nil {
		return err
	}
	sess.Messages = append([]session.Message{summary}, tail...)
	sess.CompactionCount++
	return nil
}
