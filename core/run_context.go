package core

import (
	"context"
	"fmt"

	"github.com/agenthive/agenthive/logging"
)

// RunContext carries execution state & helpers for an agent or team turn.
// It encapsulates the mutable, per-run scope passed to Run methods,
// aggregating:
//   - The ambient cancellation Context
//   - Identifiers (SessionID, RunID, Agent info)
//   - Input task Content
//   - The event emission channel
//   - Backing services (session, artifact) for persistence concerns
//   - A working Session snapshot and pending StateDelta / artifact buffers
//   - Branch label for nested teams
//   - The shared TurnLimiter bounding model calls per run
//
// State mutations performed via SetState accumulate in StateDelta until
// CommitStateDelta or EmitEvent applies them. Child produces an isolated
// delta/artifact buffer while keeping references to underlying services.
type RunContext struct {
	Context          context.Context
	SessionID, RunID string
	Agent            AgentInfo
	Task             Content
	Emit             chan<- Event
	Sessions         SessionStore
	Artifacts        ArtifactStore
	Session          *Session
	StateDelta       map[string]any
	ArtifactIDs      []string
	Branch           string
	Limiter          *TurnLimiter
	Logger           logging.Logger
}

// NewRunContext constructs a RunContext with empty state and artifact buffers.
func NewRunContext(
	ctx context.Context,
	sessionID, runID string,
	agent AgentInfo,
	task Content,
	emit chan<- Event,
	sess *Session,
	sessions SessionStore,
	artifacts ArtifactStore,
	limiter *TurnLimiter,
	logger logging.Logger,
) *RunContext {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &RunContext{
		Context:     ctx,
		SessionID:   sessionID,
		RunID:       runID,
		Agent:       agent,
		Task:        task,
		Emit:        emit,
		Session:     sess,
		Sessions:    sessions,
		Artifacts:   artifacts,
		StateDelta:  map[string]any{},
		ArtifactIDs: []string{},
		Limiter:     limiter,
		Logger:      logger,
	}
}

// Done mirrors context.Context's Done.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// GetState returns a staged (delta) value if present, else the persisted
// session value. The boolean reports whether a value was found.
func (rc *RunContext) GetState(k string) (any, bool) {
	if v, ok := rc.StateDelta[k]; ok {
		return v, true
	}
	if rc.Session != nil {
		return rc.Session.GetState(k)
	}
	return nil, false
}

// SetState stages a state mutation in the in-memory delta buffer. The change
// is persisted when CommitStateDelta is called or an emitted event merges it.
func (rc *RunContext) SetState(k string, v any) { rc.StateDelta[k] = v }

// ApplyStateDelta merges all pairs from d into the staged StateDelta.
func (rc *RunContext) ApplyStateDelta(d map[string]any) {
	for k, v := range d {
		rc.StateDelta[k] = v
	}
}

// SaveArtifact stores bytes in the ArtifactStore and stages the id for the
// next emitted event.
func (rc *RunContext) SaveArtifact(id string, data []byte) error {
	if rc.Artifacts == nil {
		return fmt.Errorf("artifact store not configured")
	}
	if err := rc.Artifacts.Save(rc.SessionID, id, data); err != nil {
		return err
	}
	rc.ArtifactIDs = append(rc.ArtifactIDs, id)
	return nil
}

// GetArtifact retrieves previously saved artifact bytes.
func (rc *RunContext) GetArtifact(id string) ([]byte, error) {
	if rc.Artifacts == nil {
		return nil, fmt.Errorf("artifact store not configured")
	}
	return rc.Artifacts.Get(rc.SessionID, id)
}

// ListArtifacts returns artifact IDs stored for the session.
func (rc *RunContext) ListArtifacts() ([]string, error) {
	if rc.Artifacts == nil {
		return []string{}, nil
	}
	return rc.Artifacts.List(rc.SessionID)
}

// RefreshSession reloads the session snapshot from the SessionStore.
func (rc *RunContext) RefreshSession() error {
	if rc.Sessions == nil {
		return fmt.Errorf("session store not configured")
	}
	s, err := rc.Sessions.Get(rc.SessionID)
	if err != nil {
		return err
	}
	rc.Session = s
	return nil
}

// CommitStateDelta persists the accumulated StateDelta via the SessionStore
// then clears the in-memory delta. It is a no-op when there are no staged
// mutations.
func (rc *RunContext) CommitStateDelta() error {
	if len(rc.StateDelta) == 0 {
		return nil
	}
	if rc.Sessions == nil {
		return fmt.Errorf("session store not configured")
	}
	if err := rc.Sessions.ApplyDelta(rc.SessionID, rc.StateDelta); err != nil {
		return err
	}
	rc.StateDelta = map[string]any{}
	return nil
}

// History returns the conversational events of the session snapshot (see
// Session.History).
func (rc *RunContext) History() []Event {
	if rc.Session == nil {
		return []Event{}
	}
	return rc.Session.History()
}

// Child derives a context for a nested execution path (a team driving one of
// its members). It replaces the Emit channel, resets pending StateDelta &
// artifact buffers, and optionally sets agent info and a branch label.
// Use in teams to intercept or isolate member output without mutating the
// parent's transient buffers.
func (rc *RunContext) Child(emit chan<- Event, agent AgentInfo, branch string) *RunContext {
	finalBranch := rc.Branch
	if branch != "" {
		finalBranch = branch
	}
	return &RunContext{
		Context:     rc.Context,
		SessionID:   rc.SessionID,
		RunID:       rc.RunID,
		Agent:       agent,
		Task:        rc.Task,
		Emit:        emit,
		Session:     rc.Session,
		Sessions:    rc.Sessions,
		Artifacts:   rc.Artifacts,
		StateDelta:  map[string]any{}, // fresh buffers
		ArtifactIDs: []string{},
		Branch:      finalBranch,
		Limiter:     rc.Limiter,
		Logger:      rc.Logger,
	}
}

// EmitEvent merges pending StateDelta / artifact ids into ev.Actions, sends it
// on the Emit channel, then resets those buffers. If the context is cancelled
// before emission it returns the cancellation error.
func (rc *RunContext) EmitEvent(ev Event) error {
	if len(rc.StateDelta) > 0 {
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = map[string]any{}
		}
		for k, v := range rc.StateDelta {
			ev.Actions.StateDelta[k] = v
		}
	}
	if len(rc.ArtifactIDs) > 0 {
		if ev.Actions.ArtifactDelta == nil {
			ev.Actions.ArtifactDelta = map[string]int{}
		}
		for _, id := range rc.ArtifactIDs {
			ev.Actions.ArtifactDelta[id] = 1
		}
	}
	select {
	case <-rc.Context.Done():
		return rc.Context.Err()
	case rc.Emit <- ev:
	}
	rc.StateDelta = map[string]any{}
	rc.ArtifactIDs = []string{}
	return nil
}
