// Package adapter defines the declarative document that describes how to
// drive one headless command-line agent: how to invoke it, how to deliver
// the prompt, and how to map its newline-delimited JSON output onto the
// canonical update vocabulary.
//
// Documents are parsed once at startup and are immutable afterwards.
// [Parse] validates a JSON document, [SafeParse] reports failures as a value,
// and [Load] reads JSON, JSONC or YAML files. Built-in documents for common
// agents are available through [Builtin].
package adapter

import (
	"github.com/dmora/agentbridge"
	"github.com/dmora/agentbridge/jsonpath"
)

// SupportedVersion is the only document version this package accepts.
const SupportedVersion = 1

// SessionMode selects how multi-turn state is preserved.
type SessionMode string

const (
	// ModeStream relies on the agent's own memory: each turn spawns the
	// agent, resuming the previous conversation id when one is known.
	ModeStream SessionMode = "stream"

	// ModeIterative rebuilds memory each turn by resending the rendered
	// conversation history to a fresh process.
	ModeIterative SessionMode = "iterative"
)

// Wildcard is the match value meaning "present and non-null".
const Wildcard = "*"

// Config is a validated adapter document.
type Config struct {
	Version     int            `json:"version"`
	Name        string         `json:"name"`
	Command     []string       `json:"command"`
	SessionMode SessionMode    `json:"sessionMode"`
	Prompt      PromptConfig   `json:"prompt"`
	Output      *OutputConfig  `json:"output"`
	AutoApprove []string       `json:"autoApprove,omitempty"`
	Resume      *ResumeConfig  `json:"resume,omitempty"`
	CWDFlag     string         `json:"cwdFlag,omitempty"`
	Events      []EventMapping `json:"outputEvents"`
	Result      *ResultRule    `json:"result"`

	// HistoryTemplate renders one prior turn in iterative mode using the
	// {{input}} and {{output}} placeholders. Empty selects the default.
	HistoryTemplate string `json:"historyTemplate,omitempty"`
}

// PromptConfig selects prompt delivery. Flag and Stdin are mutually
// exclusive; when neither is set the prompt is a trailing positional
// argument.
type PromptConfig struct {
	Flag  string `json:"flag,omitempty"`
	Stdin bool   `json:"stdin,omitempty"`
}

// OutputConfig is the flag/value pair that switches the agent to
// newline-delimited JSON output. Either part may be empty.
type OutputConfig struct {
	Flag  string `json:"flag"`
	Value string `json:"value"`
}

// ResumeConfig enables stream-mode resumption.
type ResumeConfig struct {
	// Flag is passed before the conversation id, e.g. "--resume".
	Flag string `json:"flag"`

	// SessionIDPath locates the conversation id inside an output event.
	SessionIDPath string `json:"sessionIdPath"`
}

// EventMapping maps matching output events onto an update kind.
type EventMapping struct {
	Match   MatchRule              `json:"match"`
	EmitAs  agentbridge.UpdateKind `json:"emitAs"`
	Extract *ExtractRule           `json:"extract,omitempty"`
}

// MatchRule selects events whose Path evaluates to Value. Value may be
// [Wildcard].
type MatchRule struct {
	Path  string `json:"path"`
	Value string `json:"value"`
}

// ExtractRule holds optional per-field extraction paths.
type ExtractRule struct {
	Content string `json:"content,omitempty"`
	Title   string `json:"title,omitempty"`
	Status  string `json:"status,omitempty"`
}

// ResultRule detects the terminal result line of a turn.
type ResultRule struct {
	MatchPath   string `json:"matchPath"`
	MatchValue  string `json:"matchValue"`
	ContentPath string `json:"contentPath"`
}

// Binary returns the executable name, the first element of Command.
func (c *Config) Binary() string {
	if len(c.Command) == 0 {
		return ""
	}
	return c.Command[0]
}

// SupportsResume reports whether the agent can restore its own memory
// from a conversation id.
func (c *Config) SupportsResume() bool {
	return c.Resume != nil && c.Resume.Flag != "" && c.Resume.SessionIDPath != ""
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	out.Command = append([]string(nil), c.Command...)
	out.AutoApprove = append([]string(nil), c.AutoApprove...)
	if c.Output != nil {
		o := *c.Output
		out.Output = &o
	}
	if c.Resume != nil {
		r := *c.Resume
		out.Resume = &r
	}
	if c.Result != nil {
		r := *c.Result
		out.Result = &r
	}
	out.Events = make([]EventMapping, len(c.Events))
	for i, ev := range c.Events {
		out.Events[i] = ev
		if ev.Extract != nil {
			x := *ev.Extract
			out.Events[i].Extract = &x
		}
	}
	return &out
}

// compilePath compiles a path expression, reporting failures as an issue on
// field.
func compilePath(issues *[]Issue, field, expr string) {
	if _, err := jsonpath.Compile(expr); err != nil {
		*issues = append(*issues, Issue{Field: field, Message: err.Error()})
	}
}
