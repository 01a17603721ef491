// Package parser compiles an adapter document's mapping rules into a
// line-to-update transducer and a separate terminal-result detector.
//
// A Parser is built once per adapter and is safe for concurrent use: it
// holds only compiled, immutable rules. Parsing is total. Malformed JSON,
// unmapped events and missing extraction paths all degrade to "no update"
// or "not a result".
package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmora/agentbridge"
	"github.com/dmora/agentbridge/adapter"
	"github.com/dmora/agentbridge/jsonpath"
)

// Result is the outcome of result detection on one line.
type Result struct {
	IsResult bool
	Content  string
}

// Parser maps decoded output events to updates.
type Parser struct {
	rules     []rule
	result    resultRule
	sessionID *jsonpath.Expr // nil when the adapter has no resume rule
}

type rule struct {
	kind    agentbridge.UpdateKind
	match   *jsonpath.Expr
	value   string
	content *jsonpath.Expr
	title   *jsonpath.Expr
	status  *jsonpath.Expr
}

type resultRule struct {
	match   *jsonpath.Expr
	value   string
	content *jsonpath.Expr
}

// fallbackSessionKeys are the top-level fields inspected for a conversation
// id when the adapter does not configure a resume path.
var fallbackSessionKeys = [...]string{"session_id", "sessionId", "conversation_id"}

// New compiles cfg's mapping rules. cfg is expected to be validated; New
// still reports any path that fails to compile.
func New(cfg *adapter.Config) (*Parser, error) {
	if cfg.Result == nil {
		return nil, fmt.Errorf("parser: adapter %q has no result rule", cfg.Name)
	}
	p := &Parser{rules: make([]rule, 0, len(cfg.Events))}

	for i, ev := range cfg.Events {
		field := fmt.Sprintf("outputEvents[%d]", i)
		r := rule{kind: ev.EmitAs, value: ev.Match.Value}
		var err error
		if r.match, err = compile(field+".match.path", ev.Match.Path); err != nil {
			return nil, err
		}
		if ev.Extract != nil {
			if r.content, err = compileOptional(field+".extract.content", ev.Extract.Content); err != nil {
				return nil, err
			}
			if r.title, err = compileOptional(field+".extract.title", ev.Extract.Title); err != nil {
				return nil, err
			}
			if r.status, err = compileOptional(field+".extract.status", ev.Extract.Status); err != nil {
				return nil, err
			}
		}
		p.rules = append(p.rules, r)
	}

	var err error
	p.result.value = cfg.Result.MatchValue
	if p.result.match, err = compile("result.matchPath", cfg.Result.MatchPath); err != nil {
		return nil, err
	}
	if p.result.content, err = compile("result.contentPath", cfg.Result.ContentPath); err != nil {
		return nil, err
	}
	if cfg.SupportsResume() {
		if p.sessionID, err = compile("resume.sessionIdPath", cfg.Resume.SessionIDPath); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func compile(field, expr string) (*jsonpath.Expr, error) {
	e, err := jsonpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("parser: %s: %w", field, err)
	}
	return e, nil
}

func compileOptional(field, expr string) (*jsonpath.Expr, error) {
	if expr == "" {
		return nil, nil
	}
	return compile(field, expr)
}

// Decode JSON-decodes one output line. Blank and malformed lines report
// false.
func Decode(line []byte) (any, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(line, &v); err != nil {
		return nil, false
	}
	return v, true
}

// ParseLine decodes line and maps it to zero or more updates.
func (p *Parser) ParseLine(line string) []agentbridge.Update {
	v, ok := Decode([]byte(line))
	if !ok {
		return nil
	}
	return p.ParseEvent(v, json.RawMessage(strings.TrimSpace(line)))
}

// ParseEvent maps an already decoded event to updates. raw is attached to
// every update as its source. Rules are tried in declared order and the
// first rule producing at least one update wins.
func (p *Parser) ParseEvent(event any, raw json.RawMessage) []agentbridge.Update {
	for i := range p.rules {
		if ups := p.rules[i].apply(event, raw); len(ups) > 0 {
			return ups
		}
	}
	return nil
}

func (r *rule) apply(event any, raw json.RawMessage) []agentbridge.Update {
	if r.match.IsWildcard() {
		elems, ok := r.match.Elements(event)
		if !ok {
			return nil
		}
		var out []agentbridge.Update
		for _, el := range elems {
			if qualifies(el.Value, el.OK, r.value) {
				out = append(out, r.build(el.Item, raw))
			}
		}
		return out
	}
	v, ok := r.match.Evaluate(event)
	if !matches(v, ok, r.value) {
		return nil
	}
	return []agentbridge.Update{r.build(event, raw)}
}

// build extracts fields relative to src, which is the whole event for
// scalar rules and the qualifying array element for wildcard rules.
func (r *rule) build(src any, raw json.RawMessage) agentbridge.Update {
	u := agentbridge.Update{Kind: r.kind, Raw: raw}
	u.Content = extract(r.content, src)
	u.Title = extract(r.title, src)
	u.Status = extract(r.status, src)
	return u
}

func extract(e *jsonpath.Expr, src any) string {
	if e == nil {
		return ""
	}
	s, _ := e.EvaluateString(src)
	return s
}

// matches reports whether a scalar match path value satisfies want.
func matches(v any, ok bool, want string) bool {
	if !ok {
		return false
	}
	if want == adapter.Wildcard {
		return true
	}
	return jsonpath.ToString(v) == want
}

// qualifies reports whether one wildcard element satisfies want: any
// non-null value for the wildcard, an object whose "type" equals want, or
// a primitive equal to want.
func qualifies(v any, ok bool, want string) bool {
	if !ok {
		return false
	}
	if want == adapter.Wildcard {
		return true
	}
	switch x := v.(type) {
	case map[string]any:
		t, ok := x["type"]
		return ok && t != nil && jsonpath.ToString(t) == want
	case []any:
		return false
	default:
		return jsonpath.ToString(x) == want
	}
}

// ParseResult decodes line and applies the terminal-result rule.
func (p *Parser) ParseResult(line string) Result {
	v, ok := Decode([]byte(line))
	if !ok {
		return Result{}
	}
	return p.ResultOf(v)
}

// ResultOf applies the terminal-result rule to a decoded event. Content is
// extracted from the whole event; a missing content path yields an empty
// result rather than "not a result".
func (p *Parser) ResultOf(event any) Result {
	if !p.result.matched(event) {
		return Result{}
	}
	content, _ := p.result.content.EvaluateString(event)
	return Result{IsResult: true, Content: content}
}

func (r *resultRule) matched(event any) bool {
	if !r.match.IsWildcard() {
		v, ok := r.match.Evaluate(event)
		return matches(v, ok, r.value)
	}
	elems, ok := r.match.Elements(event)
	if !ok {
		return false
	}
	for _, el := range elems {
		if qualifies(el.Value, el.OK, r.value) {
			return true
		}
	}
	return false
}

// SessionID extracts a conversation id from a decoded event. The adapter's
// resume path is used when configured; otherwise a few conventional
// top-level fields are inspected.
func (p *Parser) SessionID(event any) (string, bool) {
	if p.sessionID != nil {
		s, ok := p.sessionID.EvaluateString(event)
		return s, ok && s != ""
	}
	obj, ok := event.(map[string]any)
	if !ok {
		return "", false
	}
	for _, key := range fallbackSessionKeys {
		if s, ok := obj[key].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}
