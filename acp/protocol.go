package acp

import "encoding/json"

// JSON-RPC 2.0 method constants served by the bridge.
const (
	MethodInitialize    = "initialize"
	MethodSessionNew    = "session/new"
	MethodSessionPrompt = "session/prompt"
	MethodSessionUpdate = "session/update"
	MethodSessionCancel = "session/cancel"
)

// ProtocolVersion is the only protocol version the bridge speaks.
const ProtocolVersion = 1 // integer, not semver

// Stop reasons reported in prompt responses.
const (
	StopEndTurn   = "end_turn"
	StopCancelled = "cancelled"
)

// --- Initialize ---

// InitializeParams begins the capability handshake.
type InitializeParams struct {
	ProtocolVersion    int             `json:"protocolVersion"`
	ClientCapabilities json.RawMessage `json:"clientCapabilities,omitempty"`
	ClientInfo         *Implementation `json:"clientInfo,omitempty"`
}

// InitializeResult is the bridge's response to initialize.
type InitializeResult struct {
	ProtocolVersion   int               `json:"protocolVersion"`
	AgentCapabilities AgentCapabilities `json:"agentCapabilities"`
	AgentInfo         Implementation    `json:"agentInfo"`
	AuthMethods       []AuthMethod      `json:"authMethods"`
}

// Implementation identifies a client or agent.
type Implementation struct {
	Name    string `json:"name"`
	Title   string `json:"title,omitempty"`
	Version string `json:"version"`
}

// AgentCapabilities declares what the bridged agent supports. All fields
// are static for the lifetime of the process.
type AgentCapabilities struct {
	LoadSession        bool               `json:"loadSession"`
	PromptCapabilities PromptCapabilities `json:"promptCapabilities"`

	// Resume reports whether the agent restores its own memory across
	// turns through a conversation id.
	Resume bool `json:"resume"`

	// SessionMode is "stream" or "iterative".
	SessionMode string `json:"sessionMode"`
}

// PromptCapabilities lists the content block types accepted in prompts.
// The bridge accepts text only.
type PromptCapabilities struct {
	Image           bool `json:"image"`
	Audio           bool `json:"audio"`
	EmbeddedContext bool `json:"embeddedContext"`
}

// AuthMethod describes an authentication method. The bridge offers none.
type AuthMethod struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// --- Session ---

// NewSessionParams creates a new session.
type NewSessionParams struct {
	CWD        string            `json:"cwd"`
	MCPServers []json.RawMessage `json:"mcpServers,omitempty"`
}

// NewSessionResult is the response to session/new.
type NewSessionResult struct {
	SessionID string `json:"sessionId"`
}

// --- Prompt ---

// ContentBlock is a single content element. Only "text" blocks carry
// prompt text; other types are ignored.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// PromptParams sends a user message to the session.
type PromptParams struct {
	SessionID string         `json:"sessionId"`
	Prompt    []ContentBlock `json:"prompt"`
}

// PromptResult is the response when a prompt turn completes.
type PromptResult struct {
	StopReason string         `json:"stopReason"`
	Content    []ContentBlock `json:"content,omitempty"`
}

// CancelParams cancels a session.
type CancelParams struct {
	SessionID string `json:"sessionId"`
}

// --- Updates (notifications to the client) ---

// SessionNotification is the outer envelope for session/update.
type SessionNotification struct {
	SessionID string `json:"sessionId"`
	Update    any    `json:"update"`
}

// ContentChunk carries agent_message_chunk and agent_thought_chunk updates.
type ContentChunk struct {
	SessionUpdate string       `json:"sessionUpdate"`
	Content       ContentBlock `json:"content"`
}

// ToolCall announces a tool invocation.
type ToolCall struct {
	SessionUpdate string            `json:"sessionUpdate"`
	ToolCallID    string            `json:"toolCallId"`
	Title         string            `json:"title"`
	Kind          string            `json:"kind"`
	Status        string            `json:"status"`
	Content       []ToolCallContent `json:"content,omitempty"`
	RawOutput     json.RawMessage   `json:"rawOutput,omitempty"`
}

// ToolCallContent wraps a content block produced by a tool.
type ToolCallContent struct {
	Type    string       `json:"type"`
	Content ContentBlock `json:"content"`
}

// Plan publishes the agent's task list.
type Plan struct {
	SessionUpdate string      `json:"sessionUpdate"`
	Entries       []PlanEntry `json:"entries"`
}

// PlanEntry is one task in a plan.
type PlanEntry struct {
	Content  string `json:"content"`
	Priority string `json:"priority"`
	Status   string `json:"status"`
}

// sessionUpdateHeader extracts the discriminator from an update object.
type sessionUpdateHeader struct {
	SessionUpdate string `json:"sessionUpdate"`
}
