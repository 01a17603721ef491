//go:build ignore

// Command mock-agent simulates a headless CLI agent emitting
// newline-delimited JSON for session tests. The value of --scenario selects
// the behavior; the prompt arrives as --prompt, a trailing argument, or a
// line on stdin.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

func emit(v map[string]any) {
	b, _ := json.Marshal(v)
	fmt.Println(string(b))
}

// writePID records the agent's pid in its working directory so tests can
// check that the bridge reaped it.
func writePID() {
	_ = os.WriteFile("agent.pid", []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func main() {
	var scenario, resume, cwd, prompt string
	var havePrompt bool
	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--scenario":
			i++
			scenario = args[i]
		case "--resume":
			i++
			resume = args[i]
		case "--cwd":
			i++
			cwd = args[i]
		case "--prompt":
			i++
			prompt, havePrompt = args[i], true
		case "--yes":
		default:
			prompt, havePrompt = args[i], true
		}
	}
	if !havePrompt {
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			fmt.Fprintln(os.Stderr, "mock-agent: no prompt received")
			os.Exit(2)
		}
		prompt = scanner.Text()
	}

	sessionID := resume
	if sessionID == "" {
		sessionID = fmt.Sprintf("mock-%d", os.Getpid())
	}

	switch scenario {
	case "echo":
		emit(map[string]any{"type": "system", "session_id": sessionID, "cwd": cwd})
		emit(map[string]any{"type": "assistant", "message": map[string]any{"text": "Thinking"}})
		emit(map[string]any{"type": "tool_use", "name": "Read"})
		emit(map[string]any{"type": "assistant", "message": map[string]any{"text": "resumed:" + resume}})
		emit(map[string]any{"type": "result", "result": prompt, "session_id": "late-id"})

	case "noisy":
		writePID()
		fmt.Println("warming up...")
		fmt.Println()
		fmt.Println(`{"type":"assistant","message":{"text":"one"}`) // truncated JSON
		emit(map[string]any{"type": "assistant", "message": map[string]any{"text": "two"}})
		emit(map[string]any{"type": "result", "result": "done"})
		emit(map[string]any{"type": "assistant", "message": map[string]any{"text": "after result"}})
		time.Sleep(10 * time.Second)

	case "slow":
		writePID()
		emit(map[string]any{"type": "assistant", "message": map[string]any{"text": "started"}})
		time.Sleep(60 * time.Second)

	case "fail":
		emit(map[string]any{"type": "assistant", "message": map[string]any{"text": "partial"}})
		os.Exit(3)

	case "silent":
		emit(map[string]any{"type": "assistant", "message": map[string]any{"text": "no result"}})

	default:
		fmt.Fprintf(os.Stderr, "mock-agent: unknown scenario %q\n", scenario)
		os.Exit(2)
	}
}
