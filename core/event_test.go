package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_Helpers(t *testing.T) {
	ev := NewFunctionCallEvent("agent", "lookup", `{"q":"x"}`)
	calls := ev.GetFunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "lookup", calls[0].Name)
	assert.False(t, ev.IsFinalResponse())

	resp := NewFunctionResponseEvent("agent", "id-1", "lookup", "ok", nil)
	frs := resp.GetFunctionResponses()
	require.Len(t, frs, 1)
	assert.Equal(t, "ok", frs[0].Response)

	msg := NewMessageEvent("agent", "done")
	assert.True(t, msg.IsFinalResponse())
	assert.Equal(t, "done", msg.Text())
}

func TestEvent_StopEvent(t *testing.T) {
	ev := NewStopEvent("run-1", "team", "max messages reached")
	require.True(t, ev.IsStop())
	assert.Equal(t, "max messages reached", *ev.Actions.StopReason)
}

func TestContent_JSONRoundTrip(t *testing.T) {
	c := Content{Role: "assistant", Parts: []Part{
		TextPart{Text: "hello"},
		FunctionCallPart{FunctionCall: FunctionCall{ID: "1", Name: "calc", Arguments: `{"a":2}`}},
		FunctionResponsePart{FunctionResponse: FunctionResponse{ID: "1", Name: "calc", Response: map[string]any{"sum": 4.0}}},
		FilePart{File: FileRef{Name: "plot.png", MIMEType: "image/png", Path: "/mnt/data/plot.png"}},
	}}

	raw, err := json.Marshal(c)
	require.NoError(t, err)

	var decoded Content
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded.Parts, 4)
	assert.Equal(t, "hello", decoded.Text())

	fc, ok := decoded.Parts[1].(FunctionCallPart)
	require.True(t, ok)
	assert.Equal(t, "calc", fc.FunctionCall.Name)

	fp, ok := decoded.Parts[3].(FilePart)
	require.True(t, ok)
	assert.Equal(t, "/mnt/data/plot.png", fp.File.Path)
}

func TestContent_JSONUnknownPart(t *testing.T) {
	var c Content
	err := json.Unmarshal([]byte(`{"role":"user","parts":[{"type":"video"}]}`), &c)
	require.Error(t, err)
}
