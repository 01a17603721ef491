//go:build !windows

package cli_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmora/agentbridge"
	"github.com/dmora/agentbridge/engine/cli"
)

const (
	binEcho = "echo"
	binBash = "bash"
	binCat  = "cat"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func start(t *testing.T, inv cli.Invocation, opts ...cli.Option) *cli.Process {
	t.Helper()
	p, err := cli.Start(inv, opts...)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { p.Kill(); _ = p.Wait() })
	return p
}

// drain collects all lines from a process.
func drain(p *cli.Process) []string {
	var out []string
	for l := range p.Lines() {
		out = append(out, string(l))
	}
	return out
}

func TestStart_Echo(t *testing.T) {
	p := start(t, cli.Invocation{Binary: binEcho, Args: []string{"hello"}})
	lines := drain(p)
	if len(lines) != 1 || lines[0] != "hello" {
		t.Fatalf("lines = %q", lines)
	}
	if err := p.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestStart_PartialTrailingLine(t *testing.T) {
	p := start(t, cli.Invocation{
		Binary: binBash,
		Args:   []string{"-c", `printf 'one\ntw'; sleep 0.1; printf 'o\nthree'`},
	})
	want := []string{"one", "two", "three"}
	if got := drain(p); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("lines = %q, want %q", got, want)
	}
}

func TestStart_Stdin(t *testing.T) {
	p := start(t, cli.Invocation{Binary: binCat, Stdin: []byte("prompt text\n")})
	lines := drain(p)
	if len(lines) != 1 || lines[0] != "prompt text" {
		t.Fatalf("lines = %q", lines)
	}
}

func TestStart_Dir(t *testing.T) {
	dir := t.TempDir()
	p := start(t, cli.Invocation{Binary: binBash, Args: []string{"-c", "pwd -P"}, Dir: dir})
	lines := drain(p)
	if len(lines) != 1 || !strings.HasSuffix(lines[0], dir[strings.LastIndex(dir, "/"):]) {
		t.Fatalf("pwd = %q, want %s", lines, dir)
	}
}

func TestStart_NotFound(t *testing.T) {
	_, err := cli.Start(cli.Invocation{Binary: "agentbridge-no-such-binary"})
	if !errors.Is(err, agentbridge.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestStart_InvalidDir(t *testing.T) {
	if _, err := cli.Start(cli.Invocation{Binary: binEcho, Dir: "/nonexistent/agentbridge"}); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestStart_Stderr(t *testing.T) {
	var buf bytes.Buffer
	p := start(t, cli.Invocation{Binary: binBash, Args: []string{"-c", "echo oops >&2"}}, cli.WithStderr(&buf))
	drain(p)
	_ = p.Wait()
	if strings.TrimSpace(buf.String()) != "oops" {
		t.Errorf("stderr = %q", buf.String())
	}
}

func TestWait_ErrorExit(t *testing.T) {
	p := start(t, cli.Invocation{Binary: binBash, Args: []string{"-c", "exit 42"}})
	drain(p)
	err := p.Wait()
	code, ok := agentbridge.ExitCode(err)
	if !ok || code != 42 {
		t.Fatalf("Wait = %v, want exit code 42", err)
	}
}

func TestStop_Graceful(t *testing.T) {
	p := start(t, cli.Invocation{Binary: binBash, Args: []string{"-c", "sleep 60"}})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Stop(ctx); !errors.Is(err, agentbridge.ErrTerminated) {
		t.Fatalf("expected ErrTerminated, got %v", err)
	}
	select {
	case <-p.Done():
	default:
		t.Fatal("Done should be closed after Stop")
	}
}

func TestStop_ForceKill(t *testing.T) {
	p := start(t, cli.Invocation{
		Binary: binBash,
		// Trap SIGTERM and ignore it to force the SIGKILL path.
		Args: []string{"-c", `trap "" TERM; echo ready; sleep 60`},
	}, cli.WithGracePeriod(200*time.Millisecond))
	<-p.Lines() // trap installed

	begin := time.Now()
	_ = p.Stop(testCtx(t))
	if elapsed := time.Since(begin); elapsed > 2*time.Second {
		t.Fatalf("Stop took too long: %v", elapsed)
	}
}

func TestStop_ContextDeadline(t *testing.T) {
	p := start(t, cli.Invocation{
		Binary: binBash,
		Args:   []string{"-c", `trap "" TERM; echo ready; sleep 60`},
	}, cli.WithGracePeriod(30*time.Second))
	<-p.Lines()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	begin := time.Now()
	_ = p.Stop(ctx)
	if elapsed := time.Since(begin); elapsed > 2*time.Second {
		t.Fatalf("Stop took too long: %v", elapsed)
	}
}

func TestStop_Idempotent(t *testing.T) {
	p := start(t, cli.Invocation{Binary: binEcho, Args: []string{"x"}})
	drain(p)
	ctx := testCtx(t)
	_ = p.Stop(ctx)
	_ = p.Stop(ctx) // second call must not panic
}

func TestStop_UnblocksUndrainedOutput(t *testing.T) {
	// More lines than the buffer holds, never read.
	p := start(t, cli.Invocation{
		Binary: binBash,
		Args:   []string{"-c", "for i in $(seq 1 1000); do echo line$i; done; sleep 60"},
	}, cli.WithOutputBuffer(1))
	time.Sleep(100 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		_ = p.Stop(testCtx(t))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop blocked on an undrained output channel")
	}
}

func TestKill_ProcessGroup(t *testing.T) {
	// The child sleep inherits stdout; only a group kill closes the pipe.
	p := start(t, cli.Invocation{
		Binary: binBash,
		Args:   []string{"-c", "sleep 60 & echo started; wait"},
	})
	<-p.Lines()
	p.Kill()

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process group survived Kill")
	}
	if err := p.Err(); !errors.Is(err, agentbridge.ErrTerminated) {
		t.Errorf("Err = %v, want ErrTerminated", err)
	}
}

func TestErr_BeforeExit(t *testing.T) {
	p := start(t, cli.Invocation{Binary: binBash, Args: []string{"-c", "sleep 60"}})
	if err := p.Err(); err != nil {
		t.Errorf("Err while running = %v", err)
	}
	if p.Pid() <= 0 {
		t.Errorf("Pid = %d", p.Pid())
	}
}

func TestScanner_LineTooLong(t *testing.T) {
	p := start(t, cli.Invocation{
		Binary: binBash,
		Args:   []string{"-c", "head -c 2048 /dev/zero | tr '\\0' x; echo"},
	}, cli.WithScannerBuffer(256))
	drain(p)
	if err := p.Wait(); err == nil || !strings.Contains(err.Error(), "scanner") {
		t.Fatalf("Wait = %v, want scanner error", err)
	}
}
