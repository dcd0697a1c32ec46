package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthive/agenthive/artifact"
	"github.com/agenthive/agenthive/core"
	"github.com/agenthive/agenthive/model"
	"github.com/agenthive/agenthive/session"
	"github.com/agenthive/agenthive/tool"
)

func newTestRunContext(t *testing.T, taskText string) (*core.RunContext, chan core.Event) {
	t.Helper()
	emit := make(chan core.Event, 256)
	store := session.NewInMemoryStore()
	sess, err := store.Create("s1")
	require.NoError(t, err)
	rc := core.NewRunContext(
		context.Background(),
		"s1", "run1",
		core.AgentInfo{Name: "tester", Type: "model"},
		core.NewTextContent("user", taskText),
		emit,
		sess,
		store,
		artifact.NewInMemoryStore(),
		core.NewTurnLimiter(0),
		nil,
	)
	return rc, emit
}

func drainEvents(emit chan core.Event) []core.Event {
	var events []core.Event
	for {
		select {
		case ev := <-emit:
			events = append(events, ev)
		default:
			return events
		}
	}
}

func finalEvents(events []core.Event) []core.Event {
	var finals []core.Event
	for _, ev := range events {
		if !ev.IsPartial() {
			finals = append(finals, ev)
		}
	}
	return finals
}

func TestModelAgent_Run(t *testing.T) {
	llm := model.NewMockModel("mock-1", "mock")
	llm.AddResponse("What is 2+2?", "4")
	a := NewModelAgent("MathBot", llm)

	rc, emit := newTestRunContext(t, "What is 2+2?")
	require.NoError(t, a.Run(rc))

	finals := finalEvents(drainEvents(emit))
	require.Len(t, finals, 1)
	assert.Equal(t, "MathBot", finals[0].Author)
	assert.Equal(t, "4", finals[0].Text())
	require.NotNil(t, finals[0].TurnComplete)
	assert.True(t, *finals[0].TurnComplete)
}

func TestModelAgent_StreamingPartials(t *testing.T) {
	llm := model.NewMockModel("mock-1", "mock")
	llm.AddResponse("hi", "hey")
	a := NewModelAgent("Chat", llm)

	rc, emit := newTestRunContext(t, "hi")
	require.NoError(t, a.Run(rc))

	events := drainEvents(emit)
	var partials int
	for _, ev := range events {
		if ev.IsPartial() {
			partials++
		}
	}
	assert.Equal(t, len("hey"), partials)
}

func TestModelAgent_OutputKey(t *testing.T) {
	llm := model.NewMockModel("mock-1", "mock")
	llm.AddResponse("summarize", "a summary")
	a := NewModelAgent("Summarizer", llm, func(o *ModelAgentOptions) {
		o.OutputKey = "summary"
		o.EnableStreaming = false
	})

	rc, emit := newTestRunContext(t, "summarize")
	require.NoError(t, a.Run(rc))

	finals := finalEvents(drainEvents(emit))
	require.Len(t, finals, 1)
	require.NotNil(t, finals[0].Actions.StateDelta)
	assert.Equal(t, "a summary", finals[0].Actions.StateDelta["summary"])
}

func TestModelAgent_ContextWindowBounded(t *testing.T) {
	llm := model.NewMockModel("mock-1", "mock")
	a := NewModelAgent("Chat", llm, func(o *ModelAgentOptions) {
		o.MaxHistoryMessages = 4
		o.EnableStreaming = false
	})

	for i := 0; i < 5; i++ {
		rc, emit := newTestRunContext(t, "ping")
		require.NoError(t, a.Run(rc))
		drainEvents(emit)
	}
	assert.Len(t, a.contextWindow(), 4)
}

func TestModelAgent_LimiterExceeded(t *testing.T) {
	llm := model.NewMockModel("mock-1", "mock")
	a := NewModelAgent("Chat", llm, func(o *ModelAgentOptions) { o.EnableStreaming = false })

	rc, emit := newTestRunContext(t, "hello")
	rc.Limiter = core.NewTurnLimiter(1)
	require.NoError(t, a.Run(rc))
	drainEvents(emit)

	rc.Task = core.NewTextContent("user", "again")
	err := a.Run(rc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max model calls")
}

// scriptedModel emits a fixed sequence of responses, one per Generate call.
type scriptedModel struct {
	responses []model.Response
	calls     int
}

func (m *scriptedModel) Generate(_ context.Context, _ model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)
	if m.calls < len(m.responses) {
		respCh <- m.responses[m.calls]
	}
	m.calls++
	close(respCh)
	close(errCh)
	return respCh, errCh
}

func (m *scriptedModel) Info() model.Info {
	return model.Info{Name: "scripted", Provider: "mock", SupportsTools: true}
}

func TestModelAgent_ToolCallLoop(t *testing.T) {
	callContent := core.Content{
		Role: "assistant",
		Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID:        "fc1",
			Name:      "get_time",
			Arguments: `{}`,
		}}},
	}
	llm := &scriptedModel{responses: []model.Response{
		{Content: callContent, FinishReason: "tool_calls"},
		{Content: core.NewTextContent("assistant", "It is noon."), FinishReason: "stop"},
	}}

	timeTool := tool.NewFunctionTool("get_time", "Current time", map[string]any{"type": "object"}, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return "12:00", nil
	})
	a := NewModelAgent("Clock", llm, func(o *ModelAgentOptions) {
		o.EnableStreaming = false
		o.Tools = []tool.Tool{timeTool}
	})

	rc, emit := newTestRunContext(t, "what time is it?")
	require.NoError(t, a.Run(rc))

	events := drainEvents(emit)
	require.Len(t, events, 3) // tool call, tool response, final answer
	assert.Len(t, events[0].GetFunctionCalls(), 1)
	responses := events[1].GetFunctionResponses()
	require.Len(t, responses, 1)
	assert.Equal(t, "12:00", responses[0].Response)
	assert.Equal(t, "It is noon.", events[2].Text())
	assert.Equal(t, 2, llm.calls)
}

func TestModelAgent_UnknownToolReportedToModel(t *testing.T) {
	callContent := core.Content{
		Role: "assistant",
		Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID:   "fc1",
			Name: "does_not_exist",
		}}},
	}
	llm := &scriptedModel{responses: []model.Response{
		{Content: callContent, FinishReason: "tool_calls"},
		{Content: core.NewTextContent("assistant", "I cannot do that."), FinishReason: "stop"},
	}}
	a := NewModelAgent("Chat", llm, func(o *ModelAgentOptions) { o.EnableStreaming = false })

	rc, emit := newTestRunContext(t, "do something")
	require.NoError(t, a.Run(rc))

	events := drainEvents(emit)
	require.Len(t, events, 3)
	responses := events[1].GetFunctionResponses()
	require.Len(t, responses, 1)
	assert.Contains(t, responses[0].Error, "not found")
}

func TestModelAgent_SaveLoadState(t *testing.T) {
	llm := model.NewMockModel("mock-1", "mock")
	llm.AddResponse("remember 42", "noted")
	a := NewModelAgent("Memo", llm, func(o *ModelAgentOptions) { o.EnableStreaming = false })

	rc, emit := newTestRunContext(t, "remember 42")
	require.NoError(t, a.Run(rc))
	drainEvents(emit)

	snapshot, err := a.SaveState()
	require.NoError(t, err)

	restored := NewModelAgent("Memo", llm, func(o *ModelAgentOptions) { o.EnableStreaming = false })
	require.NoError(t, restored.LoadState(snapshot))

	window := restored.contextWindow()
	require.Len(t, window, 2)
	assert.Equal(t, "remember 42", window[0].Text())
	assert.Equal(t, "noted", window[1].Text())
}

func TestModelAgent_LoadState_TypeMismatch(t *testing.T) {
	snapshot, err := core.NewSnapshot("team.selector", map[string]any{})
	require.NoError(t, err)

	a := NewModelAgent("Chat", model.NewMockModel("mock-1", "mock"))
	err = a.LoadState(snapshot)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot type mismatch")
}

func TestModelAgent_Reset(t *testing.T) {
	llm := model.NewMockModel("mock-1", "mock")
	a := NewModelAgent("Chat", llm, func(o *ModelAgentOptions) { o.EnableStreaming = false })

	rc, emit := newTestRunContext(t, "hello")
	require.NoError(t, a.Run(rc))
	drainEvents(emit)
	require.NotEmpty(t, a.contextWindow())

	require.NoError(t, a.Reset())
	assert.Empty(t, a.contextWindow())
}
