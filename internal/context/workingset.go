package context

import "github.com/nextlevelbuilder/codi/internal/session"

// DefaultHeadroomFraction reserves 20% of the context window as safety
// margin against estimation error and the model's own response budget.
const DefaultHeadroomFraction = 0.20

// group is one atomic unit of working-set selection: either a single
// message, or a tool_use-bearing assistant message paired with the
// user-role message carrying its tool_results, which must be included
// or excluded together.
type group struct {
	messages []session.Message
	tokens   int
}

// groupMessages pairs each unresolved-tool_use message with its
// immediately following tool_result message, leaving every other
// message as its own singleton group.
func groupMessages(messages []session.Message) []group {
	var groups []group
	for i := 0; i < len(messages); i++ {
		m := messages[i]
		if m.HasUnresolvedToolUse() && i+1 < len(messages) {
			pair := []session.Message{m, messages[i+1]}
			groups = append(groups, group{messages: pair, tokens: EstimateMessage(m) + EstimateMessage(messages[i+1])})
			i++
			continue
		}
		groups = append(groups, group{messages: []session.Message{m}, tokens: EstimateMessage(m)})
	}
	return groups
}

// SelectWorkingSet builds the set of messages to send for this turn:
// systemPromptTokens plus messages taken from the tail in reverse order
// while the running estimate stays under windowTokens scaled down by
// headroomFraction. The most recent group is always included even if it
// alone exceeds budget — the Agent Loop is responsible for triggering
// compaction in that case, not this function.
func SelectWorkingSet(messages []session.Message, systemPromptTokens, windowTokens int, headroomFraction float64) (selected []session.Message, estimatedTokens int) {
	if headroomFraction <= 0 {
		headroomFraction = DefaultHeadroomFraction
	}
	budget := int(float64(windowTokens) * (1 - headroomFraction))

	groups := groupMessages(messages)
	if len(groups) == 0 {
		return nil, systemPromptTokens
	}

	total := systemPromptTokens
	var picked []group

	last := groups[len(groups)-1]
	picked = append(picked, last)
	total += last.tokens

	for i := len(groups) - 2; i >= 0; i-- {
		g := groups[i]
		if total+g.tokens > budget {
			break
		}
		picked = append(picked, g)
		total += g.tokens
	}

	// picked was built tail-first; reverse to restore chronological order.
	for i, j := 0, len(picked)-1; i < j; i, j = i+1, j-1 {
		picked[i], picked[j] = picked[j], picked[i]
	}
	for _, g := range picked {
		selected = append(selected, g.messages...)
	}
	return selected, total
}

// ExceedsBudget reports whether the most recent turn alone (the tail
// group pinned by SelectWorkingSet) already exceeds the available
// budget, the signal the Agent Loop uses to trigger compaction.
func ExceedsBudget(messages []session.Message, systemPromptTokens, windowTokens int, headroomFraction float64) bool {
	if headroomFraction <= 0 {
		headroomFraction = DefaultHeadroomFraction
	}
	budget := int(float64(windowTokens) * (1 - headroomFraction))
	groups := groupMessages(messages)
	if len(groups) == 0 {
		return false
	}
	last := groups[len(groups)-1]
	return systemPromptTokens+last.tokens > budget
}
