// update.go re-shapes canonical updates into session/update payloads.
//
// Each update kind maps to one of the protocol's update forms through the
// updateBuilders table, dispatched on the kind:
//
//	message   → agent_message_chunk
//	thought   → agent_thought_chunk
//	tool_call → tool_call
//	plan      → plan
//
// Adding a new update kind = one map entry + one function.
package acp

import (
	"strings"

	"github.com/google/uuid"

	"github.com/dmora/agentbridge"
)

// Tool call statuses understood by protocol clients.
const (
	ToolStatusPending    = "pending"
	ToolStatusInProgress = "in_progress"
	ToolStatusCompleted  = "completed"
	ToolStatusFailed     = "failed"
)

// updateBuilder converts a canonical update into a session/update payload.
type updateBuilder func(u agentbridge.Update) any

var updateBuilders = map[agentbridge.UpdateKind]updateBuilder{
	agentbridge.UpdateMessage:  contentChunkBuilder("agent_message_chunk"),
	agentbridge.UpdateThought:  contentChunkBuilder("agent_thought_chunk"),
	agentbridge.UpdateToolCall: buildToolCall,
	agentbridge.UpdatePlan:     buildPlan,
}

// toWire maps u to its session/update payload. Reports false for kinds
// with no protocol form.
func toWire(u agentbridge.Update) (any, bool) {
	b, ok := updateBuilders[u.Kind]
	if !ok {
		return nil, false
	}
	return b(u), true
}

func contentChunkBuilder(discriminator string) updateBuilder {
	return func(u agentbridge.Update) any {
		return ContentChunk{
			SessionUpdate: discriminator,
			Content:       ContentBlock{Type: "text", Text: u.Content},
		}
	}
}

// newToolCallID is swapped in tests.
var newToolCallID = func() string { return "call_" + uuid.NewString() }

func buildToolCall(u agentbridge.Update) any {
	title := u.Title
	if title == "" {
		title = firstLine(u.Content)
	}
	tc := ToolCall{
		SessionUpdate: "tool_call",
		ToolCallID:    newToolCallID(),
		Title:         title,
		Kind:          "other",
		Status:        normalizeToolStatus(u.Status),
	}
	if u.Content != "" {
		tc.Content = []ToolCallContent{{
			Type:    "content",
			Content: ContentBlock{Type: "text", Text: u.Content},
		}}
	}
	return tc
}

// normalizeToolStatus maps free-form agent statuses onto the protocol's
// four values. Unknown and empty statuses are pending.
func normalizeToolStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "in_progress", "in-progress", "running", "started":
		return ToolStatusInProgress
	case "completed", "complete", "success", "succeeded", "done", "ok":
		return ToolStatusCompleted
	case "failed", "failure", "error", "errored":
		return ToolStatusFailed
	default:
		return ToolStatusPending
	}
}

// buildPlan turns each non-empty content line into a pending entry.
func buildPlan(u agentbridge.Update) any {
	p := Plan{SessionUpdate: "plan", Entries: []PlanEntry{}}
	for line := range strings.Lines(u.Content) {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• ")
		if line == "" {
			continue
		}
		p.Entries = append(p.Entries, PlanEntry{Content: line, Priority: "medium", Status: "pending"})
	}
	return p
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
