package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthive/agenthive/codeexec"
	"github.com/agenthive/agenthive/core"
)

// fakeExecutor records inputs and returns a canned result.
type fakeExecutor struct {
	result    codeexec.ExecutionResult
	inputs    []codeexec.ExecutionInput
	restarted int
}

func (f *fakeExecutor) Execute(_ context.Context, input codeexec.ExecutionInput) (codeexec.ExecutionResult, error) {
	f.inputs = append(f.inputs, input)
	return f.result, nil
}

func (f *fakeExecutor) Restart(context.Context) error {
	f.restarted++
	return nil
}

func TestCodeExecAgent_RunsTaskBlocks(t *testing.T) {
	exec := &fakeExecutor{result: codeexec.ExecutionResult{Output: "4\n"}}
	a := NewCodeExecAgent("Executor", exec)

	rc, emit := newTestRunContext(t, "Run this:\n```python\nprint(2+2)\n```")
	require.NoError(t, a.Run(rc))

	require.Len(t, exec.inputs, 1)
	require.Len(t, exec.inputs[0].Blocks, 1)
	assert.Equal(t, "python", exec.inputs[0].Blocks[0].Language)
	assert.Equal(t, "print(2+2)", exec.inputs[0].Blocks[0].Code)

	events := drainEvents(emit)
	require.Len(t, events, 1)
	assert.Equal(t, "Executor", events[0].Author)
	assert.Contains(t, events[0].Text(), "4")
}

func TestCodeExecAgent_FailureSurfacesExitCode(t *testing.T) {
	exec := &fakeExecutor{result: codeexec.ExecutionResult{
		Output:   "ZeroDivisionError",
		ExitCode: 1,
	}}
	a := NewCodeExecAgent("Executor", exec)

	rc, emit := newTestRunContext(t, "```python\n1/0\n```")
	require.NoError(t, a.Run(rc))

	events := drainEvents(emit)
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Text(), "ZeroDivisionError")
	assert.Contains(t, events[0].Text(), "exit code: 1")
}

func TestCodeExecAgent_SavesProducedFiles(t *testing.T) {
	exec := &fakeExecutor{result: codeexec.ExecutionResult{
		Output: "wrote plot.png\n",
		Files:  []codeexec.File{{Name: "plot.png", Content: []byte{0x89, 0x50}}},
	}}
	a := NewCodeExecAgent("Executor", exec)

	rc, emit := newTestRunContext(t, "```python\nplot()\n```")
	require.NoError(t, a.Run(rc))

	data, err := rc.GetArtifact("plot.png")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 0x50}, data)

	events := drainEvents(emit)
	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].Actions.ArtifactDelta["plot.png"])
}

func TestCodeExecAgent_NoCodeBlocks(t *testing.T) {
	exec := &fakeExecutor{}
	a := NewCodeExecAgent("Executor", exec)

	rc, emit := newTestRunContext(t, "just words, no fences")
	require.NoError(t, a.Run(rc))

	assert.Empty(t, exec.inputs)
	events := drainEvents(emit)
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Text(), "No code blocks")
}

func TestCodeExecAgent_LanguageFilter(t *testing.T) {
	exec := &fakeExecutor{result: codeexec.ExecutionResult{Output: "ok"}}
	a := NewCodeExecAgent("Executor", exec, func(o *CodeExecAgentOptions) {
		o.Languages = []string{"python"}
	})

	rc, emit := newTestRunContext(t, "```bash\nls\n```\n```python\nprint('hi')\n```")
	require.NoError(t, a.Run(rc))
	drainEvents(emit)

	require.Len(t, exec.inputs, 1)
	require.Len(t, exec.inputs[0].Blocks, 1)
	assert.Equal(t, "python", exec.inputs[0].Blocks[0].Language)
}

func TestCodeExecAgent_FallsBackToHistory(t *testing.T) {
	exec := &fakeExecutor{result: codeexec.ExecutionResult{Output: "ran"}}
	a := NewCodeExecAgent("Executor", exec)

	rc, emit := newTestRunContext(t, "please run the code above")
	rc.Session.AddEvent(core.NewMessageEvent("Coder", "Here you go:\n```python\nprint('x')\n```"))
	require.NoError(t, a.Run(rc))
	drainEvents(emit)

	require.Len(t, exec.inputs, 1)
	assert.Equal(t, "print('x')", exec.inputs[0].Blocks[0].Code)
}

func TestCodeExecAgent_ResetRestartsExecutor(t *testing.T) {
	exec := &fakeExecutor{}
	a := NewCodeExecAgent("Executor", exec)

	require.NoError(t, a.Reset())
	assert.Equal(t, 1, exec.restarted)
}

func TestCodeExecAgent_SaveLoadState(t *testing.T) {
	exec := &fakeExecutor{result: codeexec.ExecutionResult{Output: "ok"}}
	a := NewCodeExecAgent("Executor", exec)

	rc, emit := newTestRunContext(t, "```python\npass\n```")
	require.NoError(t, a.Run(rc))
	drainEvents(emit)

	snapshot, err := a.SaveState()
	require.NoError(t, err)

	restored := NewCodeExecAgent("Executor", exec)
	require.NoError(t, restored.LoadState(snapshot))
	assert.Equal(t, 1, restored.executions)

	// Model agent snapshots must not load into a code exec agent.
	other, err := core.NewSnapshot(SnapshotTypeModelAgent, map[string]any{})
	require.NoError(t, err)
	assert.Error(t, restored.LoadState(other))
}
