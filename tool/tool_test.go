package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthive/agenthive/artifact"
	"github.com/agenthive/agenthive/core"
	"github.com/agenthive/agenthive/session"
)

func testRunContext(t *testing.T) *core.RunContext {
	t.Helper()
	emit := make(chan core.Event, 16)
	store := session.NewInMemoryStore()
	sess, err := store.Create("s1")
	require.NoError(t, err)
	return core.NewRunContext(
		context.Background(),
		"s1", "run1",
		core.AgentInfo{Name: "tester", Type: "model"},
		core.NewTextContent("user", "hi"),
		emit,
		sess,
		store,
		artifact.NewInMemoryStore(),
		core.NewTurnLimiter(0),
		nil,
	)
}

func sumParams() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}
}

func TestFunctionTool_Call(t *testing.T) {
	sumTool := NewFunctionTool("sum", "Add numbers", sumParams(), func(_ *core.ToolContext, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})

	tc := core.NewToolContext(testRunContext(t), "fc1")
	result, err := sumTool.Call(tc, map[string]any{"a": 2.0, "b": 3.0})
	require.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	sumTool := NewFunctionTool("sum", "Add numbers", sumParams(), func(_ *core.ToolContext, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})

	tc := core.NewToolContext(testRunContext(t), "fc2")
	_, err := sumTool.Call(tc, map[string]any{"a": 2.0})
	require.Error(t, err)
	toolErr, ok := err.(*ToolError)
	require.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	failTool := NewFunctionTool("fail", "Fails", map[string]any{"type": "object"}, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, assert.AnError
	})

	tc := core.NewToolContext(testRunContext(t), "fc3")
	_, err := failTool.Call(tc, map[string]any{})
	require.Error(t, err)
	toolErr, ok := err.(*ToolError)
	require.True(t, ok)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
}

func TestToolContext_StateAndActions(t *testing.T) {
	rc := testRunContext(t)
	tc := core.NewToolContext(rc, "fc4")

	tc.SetState("counter", 1)
	actions := tc.Actions()
	require.NotNil(t, actions.StateDelta)
	assert.Equal(t, 1, actions.StateDelta["counter"])

	tc.Handoff("NextAgent")
	require.NotNil(t, tc.Actions().Handoff)
	assert.Equal(t, "NextAgent", *tc.Actions().Handoff)

	tc.RequestStop("done")
	require.NotNil(t, tc.Actions().StopReason)
	assert.Equal(t, "done", *tc.Actions().StopReason)
}

func TestToolContext_Artifacts(t *testing.T) {
	rc := testRunContext(t)
	tc := core.NewToolContext(rc, "fc5")

	require.NoError(t, tc.SaveArtifact("report.txt", []byte("contents")))
	data, err := tc.GetArtifact("report.txt")
	require.NoError(t, err)
	assert.Equal(t, "contents", string(data))
	assert.Equal(t, 1, tc.Actions().ArtifactDelta["report.txt"])
}

func TestDefinitions(t *testing.T) {
	sumTool := NewFunctionTool("sum", "Add numbers", sumParams(), func(_ *core.ToolContext, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})

	defs := Definitions([]Tool{sumTool})
	require.Len(t, defs, 1)
	assert.Equal(t, "function", defs[0].Type)
	assert.Equal(t, "sum", defs[0].Function.Name)
	assert.Equal(t, "Add numbers", defs[0].Function.Description)
	assert.Equal(t, sumParams(), defs[0].Function.Parameters)
}

func TestFunctionToolFromStruct(t *testing.T) {
	type echoArgs struct {
		Message string `json:"message" description:"Text to echo"`
	}
	echoTool := NewFunctionToolFromStruct("echo", "Echo the message", echoArgs{}, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return args["message"], nil
	})

	params := echoTool.Parameters()
	props, ok := params["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "message")

	tc := core.NewToolContext(testRunContext(t), "fc6")
	result, err := echoTool.Call(tc, map[string]any{"message": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", result)
}
