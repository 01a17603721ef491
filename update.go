package agentbridge

import (
	"encoding/json"
	"fmt"
)

// UpdateKind identifies the kind of progress update produced during a turn.
type UpdateKind string

const (
	// UpdateThought is agent reasoning text.
	UpdateThought UpdateKind = "thought"

	// UpdateToolCall indicates the agent is invoking a tool.
	UpdateToolCall UpdateKind = "tool_call"

	// UpdateMessage is assistant text output.
	UpdateMessage UpdateKind = "message"

	// UpdatePlan is a plan or task list published by the agent.
	UpdatePlan UpdateKind = "plan"
)

// UpdateKinds lists every recognized kind in declaration order.
var UpdateKinds = []UpdateKind{UpdateThought, UpdateToolCall, UpdateMessage, UpdatePlan}

// Valid reports whether k is one of the recognized update kinds.
func (k UpdateKind) Valid() bool {
	switch k {
	case UpdateThought, UpdateToolCall, UpdateMessage, UpdatePlan:
		return true
	}
	return false
}

// ParseUpdateKind converts s to an UpdateKind, rejecting unknown values.
func ParseUpdateKind(s string) (UpdateKind, error) {
	k := UpdateKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("agentbridge: unknown update kind %q", s)
	}
	return k, nil
}

// Update is one canonical progress event translated from an agent output line.
type Update struct {
	// Kind identifies the kind of update.
	Kind UpdateKind `json:"kind"`

	// Content is the extracted text, if a content path was configured.
	Content string `json:"content,omitempty"`

	// Title is the extracted title (typically a tool name).
	Title string `json:"title,omitempty"`

	// Status is the extracted status (typically a tool call status).
	Status string `json:"status,omitempty"`

	// Raw is the source line the update was extracted from.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// PromptResult is the outcome of one prompt turn.
type PromptResult struct {
	// Output is the final answer text from the terminal-result line.
	Output string `json:"output"`

	// Updates holds every update observed during the turn, in order.
	Updates []Update `json:"updates"`

	// ConversationID is the agent-reported conversation id, if one has
	// been discovered for the session.
	ConversationID string `json:"conversationId,omitempty"`
}
