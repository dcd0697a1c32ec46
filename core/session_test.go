package core

import "testing"

func TestSession_MergeStateAndClone(t *testing.T) {
	s := NewSession("s1")

	delta := map[string]any{"a": 1, "b": "x"}

	s.MergeState(delta)
	if v, ok := s.GetState("a"); !ok || v.(int) != 1 {
		t.Fatalf("State not applied: %+v", s.State)
	}

	clone := s.Clone()
	if clone == s {
		t.Error("Clone should be a different pointer")
	}

	clone.SetState("c", 2)
	if _, exists := s.GetState("c"); exists {
		t.Error("Original should not have clone's new key")
	}
}

func TestSession_AddEventAndGetEvents(t *testing.T) {
	userEv := NewUserMessageEvent("run-123", "hi")
	assistantEv := NewMessageEvent("assistant", "hello")
	s := NewSession("s2")
	s.AddEvent(assistantEv)
	s.AddEvent(userEv)
	all := s.GetEvents()
	if len(all) != 2 {
		t.Fatalf("expected 2 events, got %d", len(all))
	}
	orig := all[0].Author
	all[0].Author = "changed"
	if s.GetEvents()[0].Author != orig {
		t.Error("events slice should be copied on read")
	}
}

func TestSession_HistoryExcludesPartials(t *testing.T) {
	s := NewSession("s3")
	partial := NewMessageEvent("assistant", "chun")
	b := true
	partial.Partial = &b
	s.AddEvent(partial)
	s.AddEvent(NewMessageEvent("assistant", "chunk done"))

	history := s.History()
	if len(history) != 1 {
		t.Fatalf("expected 1 non-partial event, got %d", len(history))
	}
	if history[0].Text() != "chunk done" {
		t.Errorf("unexpected history text %q", history[0].Text())
	}
}

func TestSession_HistoryExcludesControlEvents(t *testing.T) {
	s := NewSession("s4")
	s.AddEvent(NewUserMessageEvent("run-1", "run this"))
	s.AddEvent(NewStopEvent("run-1", "team", "done"))
	s.AddEvent(NewErrorEvent("run-1", "runner", "E1", "boom"))

	history := s.History()
	if len(history) != 1 {
		t.Fatalf("expected only the user message, got %d events", len(history))
	}
	if history[0].Author != "user" {
		t.Errorf("unexpected author %q", history[0].Author)
	}
}
