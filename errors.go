package agentbridge

import (
	"errors"
	"strconv"
)

// Sentinel errors for session and turn operations.
var (
	// ErrUnavailable indicates the agent binary cannot be started
	// (not found on PATH, not executable).
	ErrUnavailable = errors.New("agentbridge: agent unavailable")

	// ErrSessionNotFound indicates the requested session does not exist.
	ErrSessionNotFound = errors.New("agentbridge: session not found")

	// ErrSessionInactive indicates the session was cancelled and accepts
	// no further prompts.
	ErrSessionInactive = errors.New("agentbridge: session inactive")

	// ErrTurnTimeout indicates a prompt turn did not produce a terminal
	// result before the turn deadline.
	ErrTurnTimeout = errors.New("agentbridge: turn timed out")

	// ErrTerminated indicates the agent process was stopped by the bridge
	// rather than exiting on its own.
	ErrTerminated = errors.New("agentbridge: process terminated")

	// ErrNoResult indicates the agent closed its output without emitting
	// a line that satisfies the terminal-result rule.
	ErrNoResult = errors.New("agentbridge: agent exited without result")
)

// ExitError represents a subprocess that exited with a non-zero status.
// Wraps the underlying error to preserve the error chain; consumers can
// errors.As to *exec.ExitError for OS-level detail (signal info, etc.).
//
// Code semantics: positive = exit status, negative (-1) = signal-killed.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "agentbridge: exit status " + strconv.Itoa(e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode extracts the exit code from an error chain containing *ExitError.
// Returns (0, false) if the error does not contain an ExitError.
func ExitCode(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}
