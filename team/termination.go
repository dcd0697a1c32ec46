package team

import (
	"fmt"
	"strings"
	"sync"

	"github.com/agenthive/agenthive/core"
)

// TerminationCondition decides when a group chat run ends. The team feeds it
// every new batch of events; when the condition is met it returns a stop
// event carrying the reason. A met condition stays met: further Check calls
// keep returning a stop event until Reset, so running a finished team without
// resetting it stops immediately.
type TerminationCondition interface {
	// Check inspects the newest batch of events and returns a stop event
	// when the condition is met, nil otherwise.
	Check(events []core.Event) *core.Event
	// Terminated reports whether the condition has already been met.
	Terminated() bool
	// Reset re-arms the condition for a new run.
	Reset()
}

// MaxMessageTermination stops a run after a maximum number of messages
// (events carrying content) have been produced, the initial task included.
type MaxMessageTermination struct {
	mu     sync.Mutex
	max    int
	count  int
	reason string
}

// NewMaxMessageTermination creates a condition stopping after max messages.
func NewMaxMessageTermination(max int) *MaxMessageTermination {
	return &MaxMessageTermination{max: max}
}

// Check implements TerminationCondition.
func (t *MaxMessageTermination) Check(events []core.Event) *core.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.reason != "" {
		return t.stopEventLocked()
	}
	for _, ev := range events {
		if ev.Content != nil {
			t.count++
		}
	}
	if t.count >= t.max {
		t.reason = fmt.Sprintf("Maximum number of messages %d reached, current message count: %d", t.max, t.count)
		return t.stopEventLocked()
	}
	return nil
}

func (t *MaxMessageTermination) stopEventLocked() *core.Event {
	ev := core.NewStopEvent("", "max_message_termination", t.reason)
	return &ev
}

// Terminated implements TerminationCondition.
func (t *MaxMessageTermination) Terminated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason != ""
}

// Reset implements TerminationCondition.
func (t *MaxMessageTermination) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count = 0
	t.reason = ""
}

// TextMentionTermination stops a run once a message mentions the given text,
// e.g. an agreed keyword like "TERMINATE" or "APPROVE".
type TextMentionTermination struct {
	mu     sync.Mutex
	text   string
	reason string
}

// NewTextMentionTermination creates a condition watching for text mentions.
func NewTextMentionTermination(text string) *TextMentionTermination {
	return &TextMentionTermination{text: text}
}

// Check implements TerminationCondition.
func (t *TextMentionTermination) Check(events []core.Event) *core.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.reason != "" {
		return t.stopEventLocked()
	}
	for _, ev := range events {
		if containsText(ev, t.text) {
			t.reason = fmt.Sprintf("Text '%s' mentioned", t.text)
			return t.stopEventLocked()
		}
	}
	return nil
}

func (t *TextMentionTermination) stopEventLocked() *core.Event {
	ev := core.NewStopEvent("", "text_mention_termination", t.reason)
	return &ev
}

// Terminated implements TerminationCondition.
func (t *TextMentionTermination) Terminated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason != ""
}

// Reset implements TerminationCondition.
func (t *TextMentionTermination) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reason = ""
}

// OrTermination combines conditions; the run stops as soon as any of them is
// met.
type OrTermination struct {
	conditions []TerminationCondition
}

// NewOrTermination combines the given conditions with OR semantics.
func NewOrTermination(conditions ...TerminationCondition) *OrTermination {
	return &OrTermination{conditions: conditions}
}

// Check implements TerminationCondition.
func (t *OrTermination) Check(events []core.Event) *core.Event {
	for _, c := range t.conditions {
		if stop := c.Check(events); stop != nil {
			return stop
		}
	}
	return nil
}

// Terminated implements TerminationCondition.
func (t *OrTermination) Terminated() bool {
	for _, c := range t.conditions {
		if c.Terminated() {
			return true
		}
	}
	return false
}

// Reset implements TerminationCondition.
func (t *OrTermination) Reset() {
	for _, c := range t.conditions {
		c.Reset()
	}
}

func containsText(ev core.Event, text string) bool {
	if ev.Content == nil {
		return false
	}
	return strings.Contains(ev.Text(), text)
}
