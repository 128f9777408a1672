// Package context implements the Context Manager: token estimation,
// reverse-order working-set selection bounded to the model's context
// window, and compaction when even the most recent turn does not fit.
package context

import (
	"unicode"

	"github.com/nextlevelbuilder/codi/internal/session"
)

// tokenSafetyMultiplier inflates the whitespace/punctuation estimate to
// account for subword tokenization the simple heuristic cannot model.
const tokenSafetyMultiplier = 1.3

// EstimateTokens gives a first-pass token estimate for a block of text by
// counting whitespace- and punctuation-delimited words and scaling by a
// fixed safety multiplier. This is a heuristic, superseded the moment a
// provider reports actual usage for a turn.
func EstimateTokens(text string) int {
	words := 0
	inWord := false
	for _, r := range text {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			inWord = false
			continue
		}
		if !inWord {
			words++
			inWord = true
		}
	}
	return int(float64(words) * tokenSafetyMultiplier)
}

// EstimateMessage sums the estimate across every text-bearing block in a
// message: text, thinking, tool_use arguments, and tool_result output.
func EstimateMessage(m session.Message) int {
	total := 0
	for _, b := range m.Blocks {
		switch b.Kind {
		case session.BlockText:
			total += EstimateTokens(b.Text)
		case session.BlockThinking:
			total += EstimateTokens(b.Thinking)
		case session.BlockToolUse:
			if b.ToolUse != nil {
				total += EstimateTokens(string(b.ToolUse.Arguments))
			}
		case session.BlockToolResult:
			if b.ToolResult != nil {
				total += EstimateTokens(b.ToolResult.Output)
			}
		}
	}
	return total
}
