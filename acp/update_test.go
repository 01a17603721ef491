package acp

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/dmora/agentbridge"
)

func stubToolCallID(t *testing.T, id string) {
	t.Helper()
	orig := newToolCallID
	newToolCallID = func() string { return id }
	t.Cleanup(func() { newToolCallID = orig })
}

func discriminator(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var h sessionUpdateHeader
	if err := json.Unmarshal(data, &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	return h.SessionUpdate
}

func TestToWire_Discriminators(t *testing.T) {
	tests := []struct {
		kind agentbridge.UpdateKind
		want string
	}{
		{agentbridge.UpdateMessage, "agent_message_chunk"},
		{agentbridge.UpdateThought, "agent_thought_chunk"},
		{agentbridge.UpdateToolCall, "tool_call"},
		{agentbridge.UpdatePlan, "plan"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			payload, ok := toWire(agentbridge.Update{Kind: tt.kind, Content: "x"})
			if !ok {
				t.Fatal("toWire reported no protocol form")
			}
			if got := discriminator(t, payload); got != tt.want {
				t.Errorf("sessionUpdate = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestToWire_UnknownKind(t *testing.T) {
	if _, ok := toWire(agentbridge.Update{Kind: "telemetry"}); ok {
		t.Error("unknown kind should have no protocol form")
	}
}

func TestToWire_MessageChunk(t *testing.T) {
	payload, _ := toWire(agentbridge.Update{Kind: agentbridge.UpdateMessage, Content: "Hello"})
	data, _ := json.Marshal(payload)
	want := `{"sessionUpdate":"agent_message_chunk","content":{"type":"text","text":"Hello"}}`
	if string(data) != want {
		t.Errorf("payload = %s\nwant      %s", data, want)
	}
}

func TestBuildToolCall(t *testing.T) {
	stubToolCallID(t, "call_1")

	got := buildToolCall(agentbridge.Update{
		Kind:    agentbridge.UpdateToolCall,
		Title:   "Read",
		Status:  "running",
		Content: "main.go",
	}).(ToolCall)
	want := ToolCall{
		SessionUpdate: "tool_call",
		ToolCallID:    "call_1",
		Title:         "Read",
		Kind:          "other",
		Status:        ToolStatusInProgress,
		Content: []ToolCallContent{{
			Type:    "content",
			Content: ContentBlock{Type: "text", Text: "main.go"},
		}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tool call = %+v\nwant        %+v", got, want)
	}
}

func TestBuildToolCall_TitleFallback(t *testing.T) {
	stubToolCallID(t, "call_2")

	got := buildToolCall(agentbridge.Update{Kind: agentbridge.UpdateToolCall, Content: "ls -la\nmore"}).(ToolCall)
	if got.Title != "ls -la" {
		t.Errorf("Title = %q, want first content line", got.Title)
	}
	if got.Status != ToolStatusPending {
		t.Errorf("Status = %q, want pending", got.Status)
	}

	empty := buildToolCall(agentbridge.Update{Kind: agentbridge.UpdateToolCall, Title: "Bash"}).(ToolCall)
	if empty.Content != nil {
		t.Errorf("Content = %+v, want none for empty content", empty.Content)
	}
}

func TestBuildToolCall_UniqueIDs(t *testing.T) {
	a := buildToolCall(agentbridge.Update{Title: "a"}).(ToolCall)
	b := buildToolCall(agentbridge.Update{Title: "b"}).(ToolCall)
	if a.ToolCallID == b.ToolCallID {
		t.Errorf("tool call ids collide: %q", a.ToolCallID)
	}
}

func TestNormalizeToolStatus(t *testing.T) {
	tests := map[string]string{
		"":            ToolStatusPending,
		"pending":     ToolStatusPending,
		"queued":      ToolStatusPending,
		"in_progress": ToolStatusInProgress,
		"Running":     ToolStatusInProgress,
		"completed":   ToolStatusCompleted,
		" success ":   ToolStatusCompleted,
		"done":        ToolStatusCompleted,
		"failed":      ToolStatusFailed,
		"ERROR":       ToolStatusFailed,
	}
	for in, want := range tests {
		if got := normalizeToolStatus(in); got != want {
			t.Errorf("normalizeToolStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildPlan(t *testing.T) {
	got := buildPlan(agentbridge.Update{Kind: agentbridge.UpdatePlan, Content: "- read files\n\n* edit main.go\n  run tests  \n"}).(Plan)
	want := []PlanEntry{
		{Content: "read files", Priority: "medium", Status: "pending"},
		{Content: "edit main.go", Priority: "medium", Status: "pending"},
		{Content: "run tests", Priority: "medium", Status: "pending"},
	}
	if !reflect.DeepEqual(got.Entries, want) {
		t.Errorf("entries = %+v\nwant      %+v", got.Entries, want)
	}
}

func TestBuildPlan_Empty(t *testing.T) {
	got := buildPlan(agentbridge.Update{Kind: agentbridge.UpdatePlan}).(Plan)
	data, _ := json.Marshal(got)
	if string(data) != `{"sessionUpdate":"plan","entries":[]}` {
		t.Errorf("empty plan = %s", data)
	}
}
