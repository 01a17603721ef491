package filter

import (
	"reflect"
	"testing"

	"github.com/dmora/agentbridge"
)

func upd(k agentbridge.UpdateKind, content string) agentbridge.Update {
	return agentbridge.Update{Kind: k, Content: content}
}

func collect() (Sink, *[]agentbridge.Update) {
	var got []agentbridge.Update
	return func(u agentbridge.Update) { got = append(got, u) }, &got
}

func feed(sink Sink, updates ...agentbridge.Update) {
	for _, u := range updates {
		sink(u)
	}
}

// --- Kinds tests ---

func TestKinds_PassesRequestedKinds(t *testing.T) {
	sink, got := collect()
	feed(Kinds(sink, agentbridge.UpdateMessage, agentbridge.UpdateToolCall),
		upd(agentbridge.UpdateThought, "t"),
		upd(agentbridge.UpdateMessage, "m"),
		upd(agentbridge.UpdatePlan, "p"),
		upd(agentbridge.UpdateToolCall, "c"),
	)

	if len(*got) != 2 {
		t.Fatalf("got %d updates, want 2", len(*got))
	}
	if (*got)[0].Kind != agentbridge.UpdateMessage {
		t.Errorf("got[0].Kind = %q, want %q", (*got)[0].Kind, agentbridge.UpdateMessage)
	}
	if (*got)[1].Kind != agentbridge.UpdateToolCall {
		t.Errorf("got[1].Kind = %q, want %q", (*got)[1].Kind, agentbridge.UpdateToolCall)
	}
}

func TestKinds_NoKindsDropsAll(t *testing.T) {
	sink, got := collect()
	feed(Kinds(sink), upd(agentbridge.UpdateMessage, "m"), upd(agentbridge.UpdatePlan, "p"))
	if len(*got) != 0 {
		t.Errorf("got %d updates, want 0 (no kinds = drop all)", len(*got))
	}
}

func TestKinds_NilSink(t *testing.T) {
	if Kinds(nil, agentbridge.UpdateMessage) != nil {
		t.Error("Kinds(nil) should be nil")
	}
}

// --- Visible tests ---

func TestVisible(t *testing.T) {
	sink, got := collect()
	feed(Visible(sink),
		upd(agentbridge.UpdateMessage, ""),
		upd(agentbridge.UpdateMessage, "hi"),
		agentbridge.Update{Kind: agentbridge.UpdateToolCall, Title: "Read"},
		agentbridge.Update{Kind: agentbridge.UpdateToolCall, Status: "completed"},
	)
	if len(*got) != 3 {
		t.Errorf("got %d updates, want 3", len(*got))
	}
}

func TestComposition(t *testing.T) {
	sink, got := collect()
	feed(Visible(Kinds(sink, agentbridge.UpdateMessage)),
		upd(agentbridge.UpdateMessage, ""),
		upd(agentbridge.UpdateThought, "t"),
		upd(agentbridge.UpdateMessage, "m"),
	)
	if len(*got) != 1 || (*got)[0].Content != "m" {
		t.Errorf("got %+v", *got)
	}
}

// --- ParseKinds tests ---

func TestParseKinds(t *testing.T) {
	tests := []struct {
		in   string
		want []agentbridge.UpdateKind
	}{
		{"message", []agentbridge.UpdateKind{agentbridge.UpdateMessage}},
		{" message , tool_call ,", []agentbridge.UpdateKind{agentbridge.UpdateMessage, agentbridge.UpdateToolCall}},
		{"all", agentbridge.UpdateKinds},
	}
	for _, tt := range tests {
		got, err := ParseKinds(tt.in)
		if err != nil {
			t.Errorf("ParseKinds(%q): %v", tt.in, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseKinds(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseKinds_Empty(t *testing.T) {
	for _, in := range []string{"", " ", ",, ,"} {
		if kinds, err := ParseKinds(in); err == nil {
			t.Errorf("ParseKinds(%q) = %v, want error", in, kinds)
		}
	}
}

func TestParseKinds_Unknown(t *testing.T) {
	if _, err := ParseKinds("message,telemetry"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
