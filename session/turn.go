package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmora/agentbridge"
	"github.com/dmora/agentbridge/engine/cli"
	"github.com/dmora/agentbridge/parser"
)

// runTurn drains proc's stdout until the terminal result line, stream
// closure, the turn timeout, or ctx cancellation, whichever comes first.
// Each decoded line is mapped to updates before result detection so the
// sink sees the line's updates before the turn closes. Lines already
// buffered after the result are not processed.
func (m *Manager) runTurn(ctx context.Context, s *session, proc *cli.Process, sink Sink) (agentbridge.PromptResult, error) {
	var timeout <-chan time.Time
	if m.opts.turnTimeout > 0 {
		timer := time.NewTimer(m.opts.turnTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	res := agentbridge.PromptResult{Updates: []agentbridge.Update{}}
	lines := proc.Lines()
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return res, streamClosed(proc)
			}
			event, ok := parser.Decode(line)
			if !ok {
				continue
			}
			s.harvest(m.parser, event)
			for _, u := range m.parser.ParseEvent(event, line) {
				res.Updates = append(res.Updates, u)
				if sink != nil {
					sink(u)
				}
			}
			if r := m.parser.ResultOf(event); r.IsResult {
				res.Output = r.Content
				return res, nil
			}

		case <-timeout:
			return res, fmt.Errorf("%w after %s", agentbridge.ErrTurnTimeout, m.opts.turnTimeout)

		case <-ctx.Done():
			return res, ctx.Err()
		}
	}
}

// streamClosed reports a turn whose output ended without a result line,
// carrying the subprocess's exit status when it failed.
func streamClosed(proc *cli.Process) error {
	err := proc.Wait()
	if err == nil || errors.Is(err, agentbridge.ErrTerminated) {
		return agentbridge.ErrNoResult
	}
	return fmt.Errorf("%w: %w", agentbridge.ErrNoResult, err)
}
