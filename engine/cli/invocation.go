package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dmora/agentbridge/adapter"
)

// ErrNullByte indicates a prompt, directory or resume id containing a null
// byte, which cannot be passed to a subprocess.
var ErrNullByte = errors.New("cli: argument contains null byte")

// Turn is the per-turn input to BuildInvocation.
type Turn struct {
	// Prompt is the text delivered to the agent, already rendered with any
	// conversation history.
	Prompt string

	// CWD is the agent's working directory. It is passed through the
	// adapter's cwd flag when one is configured and always becomes the
	// subprocess directory.
	CWD string

	// ResumeID is the conversation id to resume. Ignored unless the
	// adapter supports resume.
	ResumeID string
}

// Invocation is a fully resolved subprocess command line.
type Invocation struct {
	Binary string
	Args   []string

	// Stdin is written to the subprocess followed by closing its standard
	// input. Nil leaves standard input empty.
	Stdin []byte

	// Dir is the subprocess working directory. Empty inherits the parent's.
	Dir string
}

// BuildInvocation assembles the command line for one turn in a fixed order:
// base command, output flag and value, auto-approval flags, working
// directory flag, resume flag and id, then prompt delivery.
func BuildInvocation(cfg *adapter.Config, turn Turn) (Invocation, error) {
	if len(cfg.Command) == 0 || cfg.Command[0] == "" {
		return Invocation{}, fmt.Errorf("cli: adapter %q has no command", cfg.Name)
	}
	for _, s := range []string{turn.Prompt, turn.CWD, turn.ResumeID} {
		if strings.ContainsRune(s, '\x00') {
			return Invocation{}, ErrNullByte
		}
	}

	args := make([]string, 0, len(cfg.Command)+len(cfg.AutoApprove)+8)
	args = append(args, cfg.Command[1:]...)

	if out := cfg.Output; out != nil {
		if out.Flag != "" {
			args = append(args, out.Flag)
		}
		if out.Value != "" {
			args = append(args, out.Value)
		}
	}
	args = append(args, cfg.AutoApprove...)
	if cfg.CWDFlag != "" && turn.CWD != "" {
		args = append(args, cfg.CWDFlag, turn.CWD)
	}
	if cfg.SupportsResume() && turn.ResumeID != "" {
		args = append(args, cfg.Resume.Flag, turn.ResumeID)
	}

	inv := Invocation{Binary: cfg.Command[0], Dir: turn.CWD}
	switch {
	case cfg.Prompt.Stdin:
		inv.Stdin = []byte(turn.Prompt + "\n")
	case cfg.Prompt.Flag != "":
		args = append(args, cfg.Prompt.Flag, turn.Prompt)
	default:
		args = append(args, turn.Prompt)
	}
	inv.Args = args
	return inv, nil
}

// String renders the invocation for logs. The prompt is not elided.
func (inv Invocation) String() string {
	parts := make([]string, 0, len(inv.Args)+1)
	parts = append(parts, inv.Binary)
	for _, a := range inv.Args {
		if a == "" || strings.ContainsAny(a, " \t\n\"'") {
			a = fmt.Sprintf("%q", a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}
