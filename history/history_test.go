package history

import (
	"strings"
	"sync"
	"testing"
)

func TestBuildPrompt_Empty(t *testing.T) {
	b := New("")
	if got := b.BuildPrompt("hello"); got != "hello" {
		t.Errorf("BuildPrompt = %q, want input unchanged", got)
	}
}

func TestBuildPrompt_Order(t *testing.T) {
	b := New("")
	b.AddTurn("Q1", "A1")
	got := b.BuildPrompt("Q2")

	i1, i2, i3 := strings.Index(got, "Q1"), strings.Index(got, "A1"), strings.Index(got, "Q2")
	if i1 < 0 || i2 < 0 || i3 < 0 || !(i1 < i2 && i2 < i3) {
		t.Fatalf("BuildPrompt = %q, want Q1, A1, Q2 in order", got)
	}
	want := "User: Q1\nAssistant: A1\n\nUser: Q2"
	if got != want {
		t.Errorf("BuildPrompt =\n%q\nwant\n%q", got, want)
	}
}

func TestBuildPrompt_CustomTemplate(t *testing.T) {
	b := New("Q={{input}} A={{output}} ({{input}})")
	b.AddTurn("one", "1")
	b.AddTurn("two", "2")
	want := "Q=one A=1 (one)\n\nQ=two A=2 (two)\n\nUser: three"
	if got := b.BuildPrompt("three"); got != want {
		t.Errorf("BuildPrompt = %q, want %q", got, want)
	}
}

func TestBuildPrompt_PlaceholdersInContentNotExpanded(t *testing.T) {
	b := New("")
	b.AddTurn("say {{output}}", "ok")
	want := "User: say {{output}}\nAssistant: ok"
	if got := b.FormatHistory(); got != want {
		t.Errorf("FormatHistory = %q, want %q", got, want)
	}
}

func TestAuxiliary(t *testing.T) {
	b := New("")
	if b.Template() != DefaultTemplate {
		t.Errorf("Template() = %q", b.Template())
	}
	if b.FormatHistory() != "" {
		t.Error("empty history should format to empty string")
	}
	b.AddTurn("a", "b")
	b.AddTurn("c", "d")
	if b.Len() != 2 {
		t.Errorf("Len() = %d, want 2", b.Len())
	}

	turns := b.Turns()
	turns[0].Input = "mutated"
	if b.Turns()[0].Input != "a" {
		t.Error("Turns() must return a copy")
	}

	b.Clear()
	if b.Len() != 0 || b.BuildPrompt("x") != "x" {
		t.Error("Clear() should empty the history")
	}
}

func TestConcurrentAddTurn(t *testing.T) {
	b := New("")
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.AddTurn("q", "a")
			_ = b.BuildPrompt("next")
		}()
	}
	wg.Wait()
	if b.Len() != 50 {
		t.Errorf("Len() = %d, want 50", b.Len())
	}
}
