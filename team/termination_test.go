package team

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthive/agenthive/core"
)

func msgEvent(author, text string) core.Event {
	return core.NewMessageEvent(author, text)
}

func TestMaxMessageTermination(t *testing.T) {
	cond := NewMaxMessageTermination(2)

	assert.Nil(t, cond.Check([]core.Event{msgEvent("a", "one")}))
	assert.False(t, cond.Terminated())

	stop := cond.Check([]core.Event{msgEvent("b", "two")})
	require.NotNil(t, stop)
	assert.True(t, cond.Terminated())
	assert.Contains(t, *stop.Actions.StopReason, "Maximum number of messages 2 reached")

	// Spent: keeps reporting until Reset, even on empty batches.
	assert.NotNil(t, cond.Check(nil))

	cond.Reset()
	assert.False(t, cond.Terminated())
	assert.Nil(t, cond.Check([]core.Event{msgEvent("a", "one")}))
}

func TestMaxMessageTermination_IgnoresContentlessEvents(t *testing.T) {
	cond := NewMaxMessageTermination(1)
	stopOnly := core.NewStopEvent("", "x", "reason")
	assert.Nil(t, cond.Check([]core.Event{stopOnly}))
}

func TestTextMentionTermination(t *testing.T) {
	cond := NewTextMentionTermination("APPROVE")

	assert.Nil(t, cond.Check([]core.Event{msgEvent("a", "still working")}))

	stop := cond.Check([]core.Event{msgEvent("b", "looks great, APPROVE")})
	require.NotNil(t, stop)
	assert.Contains(t, *stop.Actions.StopReason, "APPROVE")

	assert.NotNil(t, cond.Check(nil))
	cond.Reset()
	assert.Nil(t, cond.Check([]core.Event{msgEvent("a", "fresh start")}))
}

func TestOrTermination(t *testing.T) {
	byCount := NewMaxMessageTermination(3)
	byText := NewTextMentionTermination("DONE")
	cond := NewOrTermination(byCount, byText)

	assert.Nil(t, cond.Check([]core.Event{msgEvent("a", "one")}))

	stop := cond.Check([]core.Event{msgEvent("b", "all DONE")})
	require.NotNil(t, stop)
	assert.Contains(t, *stop.Actions.StopReason, "DONE")
	assert.True(t, cond.Terminated())

	cond.Reset()
	assert.False(t, cond.Terminated())
}
