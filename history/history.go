// Package history accumulates conversation turns for agents that keep no
// memory between invocations, and renders them into a composite prompt.
package history

import (
	"strings"
	"sync"
)

// DefaultTemplate renders one turn when an adapter sets no template.
const DefaultTemplate = "User: {{input}}\nAssistant: {{output}}"

// Placeholders substituted in a template.
const (
	InputPlaceholder  = "{{input}}"
	OutputPlaceholder = "{{output}}"
)

// Turn is one completed (input, output) exchange.
type Turn struct {
	Input  string
	Output string
}

// Builder is an append-only turn log. It is safe for concurrent use.
type Builder struct {
	template string

	mu    sync.Mutex
	turns []Turn
}

// New returns a Builder rendering turns through template. An empty
// template selects DefaultTemplate.
func New(template string) *Builder {
	if template == "" {
		template = DefaultTemplate
	}
	return &Builder{template: template}
}

// Template returns the template in use.
func (b *Builder) Template() string { return b.template }

// AddTurn appends a completed exchange.
func (b *Builder) AddTurn(input, output string) {
	b.mu.Lock()
	b.turns = append(b.turns, Turn{Input: input, Output: output})
	b.mu.Unlock()
}

// BuildPrompt returns input unchanged when no turns have been recorded.
// Otherwise it renders every prior turn, separated by a blank line,
// followed by a line introducing input.
func (b *Builder) BuildPrompt(input string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.turns) == 0 {
		return input
	}
	var sb strings.Builder
	b.render(&sb)
	sb.WriteString("\n\nUser: ")
	sb.WriteString(input)
	return sb.String()
}

// FormatHistory renders every recorded turn, separated by a blank line.
func (b *Builder) FormatHistory() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var sb strings.Builder
	b.render(&sb)
	return sb.String()
}

func (b *Builder) render(sb *strings.Builder) {
	for i, t := range b.turns {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		r := strings.NewReplacer(InputPlaceholder, t.Input, OutputPlaceholder, t.Output)
		sb.WriteString(r.Replace(b.template))
	}
}

// Turns returns a copy of the recorded turns.
func (b *Builder) Turns() []Turn {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Turn, len(b.turns))
	copy(out, b.turns)
	return out
}

// Len returns the number of recorded turns.
func (b *Builder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.turns)
}

// Clear discards every recorded turn.
func (b *Builder) Clear() {
	b.mu.Lock()
	b.turns = nil
	b.mu.Unlock()
}
