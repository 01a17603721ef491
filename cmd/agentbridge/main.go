// agentbridge exposes a headless command-line agent as a JSON-RPC agent
// speaking newline-delimited JSON over standard input and output.
//
// The agent is described by an adapter document, either a file (JSON,
// JSONC or YAML) or one of the built-in documents:
//
//	agentbridge --config ./my-agent.yaml
//	agentbridge --agent claude
//
// Logs go to standard error; standard output carries protocol messages
// only.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/dmora/agentbridge"
	"github.com/dmora/agentbridge/acp"
	"github.com/dmora/agentbridge/adapter"
	"github.com/dmora/agentbridge/engine/cli"
	"github.com/dmora/agentbridge/filter"
	"github.com/dmora/agentbridge/session"
)

const version = "0.1.0"

// usageError marks invalid invocations, reported with exit status 2.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }
func (e usageError) ExitCode() int { return 2 }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "agentbridge: %v\n", err)
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		os.Exit(1)
	}
}

type flags struct {
	config    string
	agent     string
	timeout   time.Duration
	grace     time.Duration
	check     bool
	updates   string
	dropEmpty bool
	verbose   bool
	logFormat string
	version   bool
	help      bool
}

func parseFlags(args []string, stderr io.Writer) (*flags, error) {
	var f flags
	flagSet := pflag.NewFlagSet("agentbridge", pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVarP(&f.config, "config", "c", "", "adapter document (.json, .jsonc, .yaml)")
	flagSet.StringVar(&f.agent, "agent", "", "built-in adapter: "+strings.Join(adapter.BuiltinNames(), ", "))
	flagSet.DurationVar(&f.timeout, "timeout", session.DefaultTurnTimeout, "per-turn timeout (0 disables)")
	flagSet.DurationVar(&f.grace, "grace", 5*time.Second, "time between SIGTERM and SIGKILL when stopping an agent")
	flagSet.StringVar(&f.updates, "updates", "all", "update kinds to forward: comma-separated list of "+kindList())
	flagSet.BoolVar(&f.dropEmpty, "drop-empty", false, "do not forward updates without content, title or status")
	flagSet.BoolVar(&f.check, "check", false, "validate the adapter and agent binary, then exit")
	flagSet.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")
	flagSet.StringVar(&f.logFormat, "log-format", "text", "log format: text or json")
	flagSet.BoolVar(&f.version, "version", false, "print version and exit")
	flagSet.BoolVarP(&f.help, "help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(stderr, flagSet)
			f.help = true
			return &f, nil
		}
		return nil, usageError{err}
	}
	if f.help {
		printHelp(stderr, flagSet)
		return &f, nil
	}

	rest := flagSet.Args()
	switch {
	case len(rest) > 1:
		return nil, usageError{fmt.Errorf("unexpected argument: %s", rest[1])}
	case len(rest) == 1 && f.config != "":
		return nil, usageError{errors.New("config given both as --config and as an argument")}
	case len(rest) == 1:
		f.config = rest[0]
	}
	if !f.version && (f.config == "") == (f.agent == "") {
		return nil, usageError{errors.New("exactly one of --config or --agent is required")}
	}
	if f.logFormat != "text" && f.logFormat != "json" {
		return nil, usageError{fmt.Errorf("invalid --log-format %q (want text or json)", f.logFormat)}
	}
	return &f, nil
}

func kindList() string {
	names := make([]string, len(agentbridge.UpdateKinds))
	for i, k := range agentbridge.UpdateKinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `agentbridge: expose a headless CLI agent over JSON-RPC on stdio.

Usage:
  agentbridge [flags] [config]

Examples:
  # Bridge Claude Code with the built-in adapter
  agentbridge --agent claude

  # Validate a custom adapter without starting the bridge
  agentbridge --config ./my-agent.yaml --check

Flags:
`)
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}

func newLogger(w io.Writer, f *flags) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if f.verbose {
		opts.Level = slog.LevelDebug
	}
	if f.logFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func loadConfig(f *flags) (*adapter.Config, error) {
	if f.agent != "" {
		return adapter.Builtin(f.agent)
	}
	return adapter.Load(f.config)
}

// checkBinary reports whether the adapter's executable resolves on PATH.
func checkBinary(cfg *adapter.Config) (string, error) {
	path, err := exec.LookPath(cfg.Binary())
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", agentbridge.ErrUnavailable, cfg.Binary(), err)
	}
	return path, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	f, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if f.help {
		return nil
	}
	if f.version {
		fmt.Fprintf(stdout, "agentbridge %s\n", version)
		return nil
	}

	kinds, err := filter.ParseKinds(f.updates)
	if err != nil {
		return usageError{err}
	}

	log := newLogger(stderr, f)
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	path, err := checkBinary(cfg)
	if err != nil {
		return err
	}
	if f.check {
		fmt.Fprintf(stdout, "ok: %s (%s, %s mode)\n", cfg.Name, path, cfg.SessionMode)
		return nil
	}

	if file, ok := stdin.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		log.Warn("stdin is a terminal; expecting newline-delimited JSON-RPC messages")
	}

	mgr, err := session.NewManager(cfg,
		session.WithTurnTimeout(f.timeout),
		session.WithLogger(log),
		session.WithProcessOptions(cli.WithGracePeriod(f.grace), cli.WithStderr(stderr)),
	)
	if err != nil {
		return err
	}
	defer mgr.Close()

	log.Info("bridge started", "adapter", cfg.Name, "binary", path, "mode", cfg.SessionMode)
	srvOpts := []acp.ServerOption{
		acp.WithLogger(log),
		acp.WithAgentInfo(acp.Implementation{Name: "agentbridge", Title: cfg.Name, Version: version}),
		acp.WithUpdateKinds(kinds...),
	}
	if f.dropEmpty {
		srvOpts = append(srvOpts, acp.WithDropEmpty())
	}
	srv := acp.NewServer(mgr, srvOpts...)
	err = srv.Serve(ctx, stdin, stdout)
	if errors.Is(err, context.Canceled) {
		log.Info("shutting down")
		return nil
	}
	return err
}
