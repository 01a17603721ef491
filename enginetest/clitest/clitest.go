package clitest

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/dmora/agentbridge/adapter"
	"github.com/dmora/agentbridge/engine/cli"
	"github.com/dmora/agentbridge/parser"
)

// resumeID is a conversation id shaped like the ids real agents report.
const resumeID = "ses_abcdefghij1234567890abcd"

// RunAdapterTests runs every compliance suite against an adapter document.
// The factory is called once per subtest so suites cannot observe each
// other's mutations.
func RunAdapterTests(t *testing.T, factory func() *adapter.Config) {
	t.Helper()

	t.Run("Validate", func(t *testing.T) {
		if err := factory().Validate(); err != nil {
			t.Fatalf("Validate: %v", err)
		}
	})
	t.Run("Invocation", func(t *testing.T) {
		RunInvocationTests(t, factory)
	})
	t.Run("Parser", func(t *testing.T) {
		RunParserTests(t, factory)
	})
	if factory().SupportsResume() {
		t.Run("Resume", func(t *testing.T) {
			RunResumeTests(t, factory)
		})
	}
}

// RunInvocationTests tests the command line built for one turn.
func RunInvocationTests(t *testing.T, factory func() *adapter.Config) {
	t.Helper()
	runInvocationStructural(t, factory)
	runInvocationSafety(t, factory)
}

func build(t *testing.T, cfg *adapter.Config, turn cli.Turn) cli.Invocation {
	t.Helper()
	inv, err := cli.BuildInvocation(cfg, turn)
	if err != nil {
		t.Fatalf("BuildInvocation: %v", err)
	}
	return inv
}

// runInvocationStructural tests structural invariants: non-empty binary,
// non-nil args, prompt delivered exactly as configured.
func runInvocationStructural(t *testing.T, factory func() *adapter.Config) {
	t.Helper()

	t.Run("ZeroTurn", func(t *testing.T) {
		inv := build(t, factory(), cli.Turn{})
		if inv.Binary == "" {
			t.Error("binary must be non-empty")
		}
		if inv.Args == nil {
			t.Error("args must be non-nil")
		}
	})

	t.Run("BinaryMatchesCommand", func(t *testing.T) {
		cfg := factory()
		inv := build(t, cfg, cli.Turn{Prompt: "hello"})
		if inv.Binary != cfg.Binary() {
			t.Errorf("binary = %q, want %q", inv.Binary, cfg.Binary())
		}
	})

	t.Run("PromptDelivered", func(t *testing.T) {
		cfg := factory()
		inv := build(t, cfg, cli.Turn{Prompt: "hello world"})
		switch {
		case cfg.Prompt.Stdin:
			if string(inv.Stdin) != "hello world\n" {
				t.Errorf("stdin = %q, want prompt plus newline", inv.Stdin)
			}
			if slices.Contains(inv.Args, "hello world") {
				t.Error("stdin prompt must not also appear in args")
			}
		case cfg.Prompt.Flag != "":
			n := len(inv.Args)
			if n < 2 || inv.Args[n-2] != cfg.Prompt.Flag || inv.Args[n-1] != "hello world" {
				t.Errorf("args %v must end with %s and the prompt", inv.Args, cfg.Prompt.Flag)
			}
		default:
			if n := len(inv.Args); n == 0 || inv.Args[n-1] != "hello world" {
				t.Errorf("args %v must end with the positional prompt", inv.Args)
			}
		}
	})

	t.Run("WorkingDirectory", func(t *testing.T) {
		cfg := factory()
		inv := build(t, cfg, cli.Turn{Prompt: "hello", CWD: "/tmp/project"})
		if inv.Dir != "/tmp/project" {
			t.Errorf("Dir = %q, want /tmp/project", inv.Dir)
		}
		if cfg.CWDFlag != "" && !slices.Contains(inv.Args, "/tmp/project") {
			t.Errorf("args %v must pass the cwd through %s", inv.Args, cfg.CWDFlag)
		}
	})
}

// runInvocationSafety tests null-byte defenses.
func runInvocationSafety(t *testing.T, factory func() *adapter.Config) {
	t.Helper()

	t.Run("NoNullBytesInArgs", func(t *testing.T) {
		inv := build(t, factory(), cli.Turn{Prompt: "hello", CWD: "/tmp", ResumeID: resumeID})
		if strings.Contains(inv.Binary, "\x00") {
			t.Error("binary must not contain null bytes")
		}
		if i, ok := indexNullArg(inv.Args); ok {
			t.Errorf("args[%d] contains null bytes", i)
		}
	})

	for name, turn := range map[string]cli.Turn{
		"NullBytePromptRejected":   {Prompt: "hello\x00world"},
		"NullByteCWDRejected":      {Prompt: "hello", CWD: "/tmp\x00evil"},
		"NullByteResumeIDRejected": {Prompt: "hello", ResumeID: "id\x00evil"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := cli.BuildInvocation(factory(), turn)
			if !errors.Is(err, cli.ErrNullByte) {
				t.Errorf("BuildInvocation error = %v, want ErrNullByte", err)
			}
		})
	}
}

// RunResumeTests tests resume flag placement for adapters that support it.
func RunResumeTests(t *testing.T, factory func() *adapter.Config) {
	t.Helper()

	t.Run("NoResumeID", func(t *testing.T) {
		cfg := factory()
		inv := build(t, cfg, cli.Turn{Prompt: "hello"})
		if slices.Contains(inv.Args, cfg.Resume.Flag) {
			t.Errorf("args %v must omit %s without a conversation id", inv.Args, cfg.Resume.Flag)
		}
	})

	t.Run("ValidResume", func(t *testing.T) {
		cfg := factory()
		inv := build(t, cfg, cli.Turn{Prompt: "hello", ResumeID: resumeID})
		i := slices.Index(inv.Args, cfg.Resume.Flag)
		if i < 0 || i+1 >= len(inv.Args) || inv.Args[i+1] != resumeID {
			t.Errorf("args %v must contain %s %s", inv.Args, cfg.Resume.Flag, resumeID)
		}
	})
}

// RunParserTests tests the adapter's output mapping against adversarial
// input.
func RunParserTests(t *testing.T, factory func() *adapter.Config) {
	t.Helper()

	newParser := func(t *testing.T) *parser.Parser {
		t.Helper()
		p, err := parser.New(factory())
		if err != nil {
			t.Fatalf("parser.New: %v", err)
		}
		return p
	}

	t.Run("Compiles", func(t *testing.T) {
		newParser(t)
	})

	t.Run("BlankLinesIgnored", func(t *testing.T) {
		p := newParser(t)
		for _, input := range []string{"", "   ", "\t"} {
			if got := p.ParseLine(input); len(got) != 0 {
				t.Errorf("ParseLine(%q) = %v, want no updates", input, got)
			}
			if p.ParseResult(input).IsResult {
				t.Errorf("ParseResult(%q) reported a result", input)
			}
		}
	})

	t.Run("NonJSONIgnored", func(t *testing.T) {
		p := newParser(t)
		if got := p.ParseLine("not json"); len(got) != 0 {
			t.Errorf("ParseLine(\"not json\") = %v, want no updates", got)
		}
	})

	t.Run("GarbageNoPanic", func(t *testing.T) {
		p := newParser(t)
		for _, input := range garbageCorpus {
			_ = p.ParseLine(input)
			_ = p.ParseResult(input)
		}
	})

	t.Run("UpdatesHaveValidKind", func(t *testing.T) {
		p := newParser(t)
		corpus := make([]string, 0, len(garbageCorpus)+3)
		corpus = append(corpus, garbageCorpus...)
		corpus = append(corpus, `{"type":99}`, `{"type":"unknown"}`, `{"type":["assistant"]}`)
		for _, input := range corpus {
			for _, u := range p.ParseLine(input) {
				if !u.Kind.Valid() {
					t.Errorf("ParseLine(%q) produced kind %q", input, u.Kind)
				}
			}
		}
	})
}

// garbageCorpus is a fixed set of adversarial inputs used by robustness tests.
var garbageCorpus = []string{
	"\x00",
	strings.Repeat("x", 65536),
	"{{{",
	"\xff\xfe",
	`{"":null}`,
	"null",
	"[]",
	`{"type":null,"message":{"content":null}}`,
	`{"type":true}`,
}

// indexNullArg returns the index of the first arg containing a null byte.
func indexNullArg(args []string) (int, bool) {
	for i, a := range args {
		if strings.Contains(a, "\x00") {
			return i, true
		}
	}
	return 0, false
}
