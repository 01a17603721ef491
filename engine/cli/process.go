//go:build !windows

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/dmora/agentbridge"
)

// Process is a running agent subprocess. Its stdout is delivered as
// complete lines on the Lines channel, which is closed once the
// subprocess has exited and its output is exhausted.
type Process struct {
	cmd  *exec.Cmd
	opts Options

	lines chan []byte
	quit  chan struct{} // closed by Stop/Kill to unblock the read loop
	done  chan struct{} // closed after Wait returns

	termErr  error
	stopping bool
	mu       sync.Mutex

	quitOnce sync.Once
	stopOnce sync.Once
}

// Start launches inv and begins reading its stdout.
// Returns [agentbridge.ErrUnavailable] when the binary is not found.
func Start(inv Invocation, opts ...Option) (*Process, error) {
	o := ResolveOptions(opts...)

	resolved, err := exec.LookPath(inv.Binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", agentbridge.ErrUnavailable, inv.Binary, err)
	}
	if inv.Dir != "" {
		info, err := os.Stat(inv.Dir)
		if err != nil {
			return nil, fmt.Errorf("cli: CWD: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("cli: CWD is not a directory: %s", inv.Dir)
		}
	}

	cmd, stdin, stdout, err := spawnCmd(resolved, inv, o)
	if err != nil {
		return nil, fmt.Errorf("cli: start: %w", err)
	}

	p := &Process{
		cmd:   cmd,
		opts:  o,
		lines: make(chan []byte, o.OutputBuffer),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	if stdin != nil {
		go writeStdin(stdin, inv.Stdin)
	}
	go p.readLoop(stdout)
	return p, nil
}

// spawnCmd builds, configures, and starts an exec.Cmd in its own process
// group so that signals reach any children the agent spawns.
func spawnCmd(binary string, inv Invocation, o Options) (*exec.Cmd, io.WriteCloser, io.ReadCloser, error) {
	cmd := exec.Command(binary, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Env = o.Env
	cmd.Stderr = o.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("stdout pipe: %w", err)
	}

	var stdin io.WriteCloser
	if inv.Stdin != nil {
		stdin, err = cmd.StdinPipe()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("stdin pipe: %w", err)
		}
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, nil, err
	}
	return cmd, stdin, stdout, nil
}

// writeStdin delivers the prompt and closes the pipe. Write errors mean the
// agent exited early, which the read loop reports.
func writeStdin(w io.WriteCloser, data []byte) {
	_, _ = w.Write(data)
	_ = w.Close()
}

// Lines returns the channel of stdout lines. Each slice is owned by the
// receiver.
func (p *Process) Lines() <-chan []byte { return p.lines }

// Done is closed once the subprocess has exited and Lines is closed.
func (p *Process) Done() <-chan struct{} { return p.done }

// Pid returns the subprocess id.
func (p *Process) Pid() int { return p.cmd.Process.Pid }

// Wait blocks until the subprocess exits and returns its terminal error:
// nil on clean exit, *agentbridge.ExitError on non-zero status, or
// agentbridge.ErrTerminated when stopped by Stop or Kill.
func (p *Process) Wait() error {
	<-p.done
	return p.termErr
}

// Err returns the terminal error, or nil if still running.
func (p *Process) Err() error {
	select {
	case <-p.done:
		return p.termErr
	default:
		return nil
	}
}

// Stop terminates the process group. Safe to call multiple times.
// Sends SIGTERM, then SIGKILL after the grace period or when ctx ends.
// Blocks until the subprocess has exited.
func (p *Process) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		p.markStopping()
		_ = p.signal(unix.SIGTERM)

		select {
		case <-p.done:
		case <-time.After(p.opts.GracePeriod):
			_ = p.signal(unix.SIGKILL)
		case <-ctx.Done():
			_ = p.signal(unix.SIGKILL)
		}
	})
	return p.Wait()
}

// Kill sends SIGKILL to the process group without waiting.
func (p *Process) Kill() {
	p.markStopping()
	_ = p.signal(unix.SIGKILL)
}

func (p *Process) markStopping() {
	p.mu.Lock()
	p.stopping = true
	p.mu.Unlock()
	p.quitOnce.Do(func() { close(p.quit) })
}

// signal delivers sig to the whole process group, returning nil if it has
// already exited.
func (p *Process) signal(sig unix.Signal) error {
	select {
	case <-p.done:
		return nil
	default:
	}
	pid := p.cmd.Process.Pid
	err := unix.Kill(-pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return signalProcess(p.cmd.Process, sig)
	}
	return err
}

// signalProcess sends sig to a process, returning nil if the process
// has already exited (os.ErrProcessDone).
func signalProcess(proc *os.Process, sig os.Signal) error {
	err := proc.Signal(sig)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// readLoop pumps stdout lines until EOF, a scanner failure, or Stop/Kill,
// then reaps the subprocess.
func (p *Process) readLoop(stdout io.ReadCloser) {
	var scanErr error
	defer func() {
		if scanErr != nil {
			_ = p.signal(unix.SIGKILL)
		}
		waitErr := p.cmd.Wait()

		p.mu.Lock()
		stopping := p.stopping
		p.mu.Unlock()
		switch {
		case stopping:
			waitErr = agentbridge.ErrTerminated
		case scanErr != nil:
			waitErr = fmt.Errorf("cli: scanner: %w", scanErr)
		default:
			waitErr = wrapExitError(waitErr)
		}
		p.termErr = waitErr
		close(p.lines)
		close(p.done)
	}()

	scanErr = p.scanLines(stdout)
}

// scanLines reads newline-delimited stdout. A partial trailing fragment is
// held by the scanner until its newline arrives or the stream ends.
func (p *Process) scanLines(stdout io.Reader) error {
	scanner := bufio.NewScanner(stdout)
	initCap := min(4096, p.opts.ScannerBuffer)
	scanner.Buffer(make([]byte, 0, initCap), p.opts.ScannerBuffer)

	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		select {
		case p.lines <- line:
		case <-p.quit:
			return nil
		}
	}
	return scanner.Err()
}

// wrapExitError converts a non-zero *exec.ExitError to *agentbridge.ExitError.
// nil → nil, non-ExitError → passthrough, code 0 → nil (clean exit).
// Preserves the error chain via ExitError.Unwrap.
func wrapExitError(err error) error {
	if err == nil {
		return nil
	}
	var ee *exec.ExitError
	if !errors.As(err, &ee) {
		return err
	}
	code := ee.ExitCode()
	if code == 0 {
		return nil
	}
	return &agentbridge.ExitError{Code: code, Err: err}
}
