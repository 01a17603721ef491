// Package jsonpath implements the small, read-only path language used by
// adapter documents to locate values inside decoded JSON events.
//
// Grammar:
//
//	expr    := literal | "$" | "$." segment ("." segment)*
//	literal := "'" any-characters "'"
//	segment := name | name "[" int "]" | name "[*]"
//
// A literal evaluates to its unquoted contents regardless of input. A
// wildcard segment returns the matched array itself; callers iterate it.
// Segments after a wildcard are applied to each element (a projection);
// [Expr.Elements] exposes the per-element pairs. At most one wildcard is
// allowed per expression.
//
// Evaluation is total: missing fields, JSON null, indexing a non-array,
// out-of-range indexes and wildcarding a non-array all yield "no value".
// Values are the ones produced by encoding/json decoding into any
// (map[string]any, []any, string, float64, bool, nil).
package jsonpath

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Syntax errors returned by Compile.
var (
	// ErrSyntax indicates a malformed expression.
	ErrSyntax = errors.New("jsonpath: syntax error")

	// ErrNestedWildcard indicates more than one [*] wildcard.
	ErrNestedWildcard = errors.New("jsonpath: only one wildcard is supported")
)

type segmentKind int

const (
	segField segmentKind = iota
	segIndex
	segWildcard
)

// segment is one dot-separated step. Every segment starts with a field
// access; index and wildcard steps apply to that field's value.
type segment struct {
	name  string
	kind  segmentKind
	index int
}

// Expr is a compiled path expression. The zero value is not usable;
// construct with Compile or MustCompile. Expr is immutable and safe for
// concurrent use.
type Expr struct {
	src      string
	literal  bool
	value    string // literal contents
	segments []segment
	wildcard int // index of the wildcard segment, -1 if none
}

// Compile parses expr into an Expr.
func Compile(expr string) (*Expr, error) {
	if len(expr) >= 2 && expr[0] == '\'' && expr[len(expr)-1] == '\'' {
		return &Expr{src: expr, literal: true, value: expr[1 : len(expr)-1], wildcard: -1}, nil
	}
	if expr == "$" {
		return &Expr{src: expr, wildcard: -1}, nil
	}
	if !strings.HasPrefix(expr, "$.") {
		return nil, fmt.Errorf("%w: %q must start with \"$.\" or be a quoted literal", ErrSyntax, expr)
	}

	parts := strings.Split(expr[2:], ".")
	segs := make([]segment, 0, len(parts))
	wildcard := -1
	for i, part := range parts {
		seg, err := parseSegment(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrSyntax, expr, err)
		}
		if seg.kind == segWildcard {
			if wildcard >= 0 {
				return nil, fmt.Errorf("%w: %q", ErrNestedWildcard, expr)
			}
			wildcard = i
		}
		segs = append(segs, seg)
	}
	return &Expr{src: expr, segments: segs, wildcard: wildcard}, nil
}

// MustCompile is like Compile but panics on error. Intended for
// package-level expressions known at compile time.
func MustCompile(expr string) *Expr {
	e, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return e
}

func parseSegment(part string) (segment, error) {
	if part == "" {
		return segment{}, errors.New("empty segment")
	}
	open := strings.IndexByte(part, '[')
	if open < 0 {
		if strings.ContainsRune(part, ']') {
			return segment{}, fmt.Errorf("unbalanced bracket in %q", part)
		}
		return segment{name: part, kind: segField}, nil
	}
	if open == 0 {
		return segment{}, fmt.Errorf("segment %q has no field name", part)
	}
	if !strings.HasSuffix(part, "]") {
		return segment{}, fmt.Errorf("unterminated bracket in %q", part)
	}
	name := part[:open]
	inner := part[open+1 : len(part)-1]
	if strings.ContainsAny(name, "]") || strings.ContainsAny(inner, "[]") {
		return segment{}, fmt.Errorf("unbalanced bracket in %q", part)
	}
	if inner == "*" {
		return segment{name: name, kind: segWildcard}, nil
	}
	n, err := strconv.Atoi(inner)
	if err != nil || n < 0 {
		return segment{}, fmt.Errorf("index %q is not a non-negative integer", inner)
	}
	return segment{name: name, kind: segIndex, index: n}, nil
}

// String returns the source expression.
func (e *Expr) String() string { return e.src }

// IsLiteral reports whether the expression is a quoted literal.
func (e *Expr) IsLiteral() bool { return e.literal }

// IsWildcard reports whether the expression contains a [*] wildcard, in
// which case a successful Evaluate returns a []any.
func (e *Expr) IsWildcard() bool { return e.wildcard >= 0 }

// Evaluate walks v and returns the addressed value. The boolean is false
// when the expression addresses nothing.
//
// For a wildcard expression the result is the matched array when the
// wildcard is the last segment, otherwise the projection of the remaining
// segments over each element, skipping elements where they yield no value.
func (e *Expr) Evaluate(v any) (any, bool) {
	if e.literal {
		return e.value, true
	}
	if e.wildcard < 0 {
		return walk(v, e.segments)
	}
	elems, ok := e.Elements(v)
	if !ok {
		return nil, false
	}
	last := e.wildcard == len(e.segments)-1
	out := make([]any, 0, len(elems))
	for _, el := range elems {
		switch {
		case last:
			out = append(out, el.Item)
		case el.OK:
			out = append(out, el.Value)
		}
	}
	return out, true
}

// Element pairs one array element matched by a wildcard with the value the
// segments after the wildcard address inside it. Without trailing segments
// Value is Item itself.
type Element struct {
	Item  any
	Value any
	OK    bool
}

// Elements evaluates a wildcard expression and returns one Element per
// array element, in array order. The boolean is false when the expression
// has no wildcard or the wildcard does not address an array.
func (e *Expr) Elements(v any) ([]Element, bool) {
	if e.literal || e.wildcard < 0 {
		return nil, false
	}
	head := e.segments[:e.wildcard+1]
	tail := e.segments[e.wildcard+1:]

	parent, ok := walk(v, head[:len(head)-1])
	if !ok {
		return nil, false
	}
	obj, ok := parent.(map[string]any)
	if !ok {
		return nil, false
	}
	arr, ok := obj[head[len(head)-1].name].([]any)
	if !ok {
		return nil, false
	}

	elems := make([]Element, len(arr))
	for i, item := range arr {
		elems[i].Item = item
		if len(tail) == 0 {
			elems[i].Value, elems[i].OK = item, item != nil
			continue
		}
		elems[i].Value, elems[i].OK = walk(item, tail)
	}
	return elems, true
}

// walk applies non-wildcard segments to v.
func walk(v any, segs []segment) (any, bool) {
	cur := v
	for _, seg := range segs {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[seg.name]
		if !ok || cur == nil {
			return nil, false
		}
		if seg.kind == segIndex {
			arr, ok := cur.([]any)
			if !ok || seg.index >= len(arr) {
				return nil, false
			}
			cur = arr[seg.index]
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// EvaluateString evaluates e against v and coerces the result with ToString.
func (e *Expr) EvaluateString(v any) (string, bool) {
	val, ok := e.Evaluate(v)
	if !ok {
		return "", false
	}
	return ToString(val), true
}

// Evaluate compiles expr and evaluates it against v. An invalid expression
// yields no value.
func Evaluate(expr string, v any) (any, bool) {
	e, err := Compile(expr)
	if err != nil {
		return nil, false
	}
	return e.Evaluate(v)
}

// EvaluateString compiles expr, evaluates it against v and coerces the
// result with ToString.
func EvaluateString(expr string, v any) (string, bool) {
	e, err := Compile(expr)
	if err != nil {
		return "", false
	}
	return e.EvaluateString(v)
}

// ToString coerces a decoded JSON value to text. Strings pass through,
// numbers print without trailing zeros, nil is empty, and objects and
// arrays are JSON-encoded.
func ToString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
