// Package cli turns an adapter document into subprocess invocations and
// manages the resulting agent processes.
//
// [BuildInvocation] is pure: it assembles the argument vector, working
// directory and optional standard-input payload for one turn. [Start]
// launches an [Invocation] in its own process group and exposes stdout as a
// channel of complete lines. [Process.Stop] sends SIGTERM then SIGKILL after
// a grace period; [Process.Kill] skips the grace period.
//
// # Platform Support
//
// Process lifecycle relies on Unix process groups and signals and is not
// available on Windows. [BuildInvocation] is available on all platforms.
//
// # Consumer Obligations
//
// Callers must either drain [Process.Lines] to completion or call
// [Process.Stop] or [Process.Kill] to release subprocess resources.
// Failing to do so may leave the subprocess running and leak goroutines.
package cli
