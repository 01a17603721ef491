// Package filter provides composable sink middleware for selecting which
// update kinds reach a client. Consumers wrap a sink with these functions
// to choose the granularity they need.
package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dmora/agentbridge"
)

// Sink receives updates. It matches session.Sink.
type Sink = func(agentbridge.Update)

// Kinds returns a sink that only forwards updates of the given kinds.
// No kinds drops everything. A nil sink yields nil.
func Kinds(sink Sink, kinds ...agentbridge.UpdateKind) Sink {
	allowed := make(map[agentbridge.UpdateKind]struct{}, len(kinds))
	for _, k := range kinds {
		allowed[k] = struct{}{}
	}
	return Where(sink, func(u agentbridge.Update) bool {
		_, ok := allowed[u.Kind]
		return ok
	})
}

// Visible returns a sink that drops updates with no content, title or
// status, such as a text block whose extraction path was absent.
func Visible(sink Sink) Sink {
	return Where(sink, func(u agentbridge.Update) bool {
		return u.Content != "" || u.Title != "" || u.Status != ""
	})
}

// Where returns a sink that forwards updates accepted by the predicate.
func Where(sink Sink, accept func(agentbridge.Update) bool) Sink {
	if sink == nil {
		return nil
	}
	return func(u agentbridge.Update) {
		if accept(u) {
			sink(u)
		}
	}
}

// ParseKinds parses a comma-separated kind list such as "message,tool_call".
// Blank entries are skipped; "all" selects every kind. A list that selects
// nothing is an error.
func ParseKinds(s string) ([]agentbridge.UpdateKind, error) {
	var kinds []agentbridge.UpdateKind
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		switch part {
		case "":
			continue
		case "all":
			return append([]agentbridge.UpdateKind(nil), agentbridge.UpdateKinds...), nil
		}
		k, err := agentbridge.ParseUpdateKind(part)
		if err != nil {
			return nil, fmt.Errorf("filter: %w", err)
		}
		kinds = append(kinds, k)
	}
	if len(kinds) == 0 {
		return nil, errors.New("filter: no update kinds selected")
	}
	return kinds, nil
}
