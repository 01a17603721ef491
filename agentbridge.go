// Package agentbridge lets headless command-line coding agents speak the
// Agent Client Protocol (ACP) without agent-specific code.
//
// A declarative adapter document (package adapter) describes how to invoke
// an agent and how to read its newline-delimited JSON output. The bridge
// compiles that document into an output parser, drives the agent through a
// session manager, and exposes the result as a JSON-RPC 2.0 loop on
// stdin/stdout.
//
// # Core Types
//
//   - [Update]: one canonical progress event translated from agent output
//   - [UpdateKind]: the four-kind update vocabulary
//   - [PromptResult]: the outcome of one prompt turn
//   - [ExitError]: a subprocess that exited with a non-zero status
//
// # Packages
//
//   - adapter: configuration model, loading, built-in documents
//   - jsonpath: path expressions over decoded JSON
//   - parser: mapping rules compiled into a line transducer
//   - history: conversation rendering for agents without memory
//   - engine/cli: subprocess invocation and stdout streaming
//   - session: session registry and turn execution
//   - acp: JSON-RPC connection and protocol dispatcher
//   - filter: sink middleware selecting which updates reach a client
//   - enginetest/clitest: compliance suites for adapter documents
//
// The agentbridge command (cmd/agentbridge) wires these together on
// stdin/stdout.
//
// # Quick Start
//
//	cfg, err := adapter.Load("claude.json")
//	if err != nil { log.Fatal(err) }
//	mgr, err := session.NewManager(cfg)
//	if err != nil { log.Fatal(err) }
//	id, _ := mgr.Create("/path/to/repo")
//	res, err := mgr.Prompt(ctx, id, "Hello", func(u agentbridge.Update) {
//	    fmt.Println(u.Kind, u.Content)
//	})
package agentbridge
