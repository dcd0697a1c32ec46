package core

import (
	"context"

	"github.com/agenthive/agenthive/logging"
)

// ToolContext provides a constrained, auditable surface for tool / function
// implementations invoked by an agent. It accumulates EventActions (state
// deltas, handoffs, artifact diffs) without directly mutating the underlying
// session until the owning agent applies them to its next emitted event.
type ToolContext struct {
	runCtx         *RunContext
	functionCallID string
	agentInfo      AgentInfo
	eventActions   EventActions
}

// NewToolContext constructs a tool context bound to a parent RunContext and
// unique functionCallID.
func NewToolContext(runCtx *RunContext, functionCallID string) *ToolContext {
	return &ToolContext{
		runCtx:         runCtx,
		functionCallID: functionCallID,
		agentInfo:      runCtx.Agent,
		eventActions:   EventActions{},
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.runCtx.Context }

// SessionID returns the session ID associated with the tool invocation.
func (tc *ToolContext) SessionID() string { return tc.runCtx.SessionID }

// RunID returns the run ID associated with the tool invocation.
func (tc *ToolContext) RunID() string { return tc.runCtx.RunID }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.runCtx.Logger }

// FunctionCallID returns the function call ID associated with the tool invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// AgentName returns the agent name associated with the tool invocation.
func (tc *ToolContext) AgentName() string { return tc.agentInfo.Name }

// GetState retrieves a staged or persisted state value for the given key.
func (tc *ToolContext) GetState(k string) (any, bool) { return tc.runCtx.GetState(k) }

// SetState stages a state mutation collected into the tool's EventActions.
func (tc *ToolContext) SetState(k string, v any) {
	if tc.eventActions.StateDelta == nil {
		tc.eventActions.StateDelta = map[string]any{}
	}
	tc.eventActions.StateDelta[k] = v
}

// Handoff requests transfer of the conversation to the named agent once the
// current turn completes.
func (tc *ToolContext) Handoff(agentName string) { tc.eventActions.Handoff = &agentName }

// RequestStop asks the orchestrating team to terminate the run with reason.
func (tc *ToolContext) RequestStop(reason string) { tc.eventActions.StopReason = &reason }

// SaveArtifact persists bytes via the run's ArtifactStore and records the
// artifact id in the tool's EventActions.
func (tc *ToolContext) SaveArtifact(id string, data []byte) error {
	if err := tc.runCtx.SaveArtifact(id, data); err != nil {
		return err
	}
	if tc.eventActions.ArtifactDelta == nil {
		tc.eventActions.ArtifactDelta = map[string]int{}
	}
	tc.eventActions.ArtifactDelta[id] = 1
	return nil
}

// GetArtifact retrieves previously saved artifact bytes.
func (tc *ToolContext) GetArtifact(id string) ([]byte, error) { return tc.runCtx.GetArtifact(id) }

// Actions returns the accumulated event actions for merging into the next
// emitted event.
func (tc *ToolContext) Actions() EventActions { return tc.eventActions }
