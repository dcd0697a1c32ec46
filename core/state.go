package core

import (
	"encoding/json"
	"fmt"
)

// SnapshotVersion is the current version written into snapshot envelopes.
// Loaders accept equal or lower versions of the same type.
const SnapshotVersion = 1

// StateOwner is implemented by components whose internal memory can be
// captured and restored: agents (message history), teams (shared thread,
// speaker cursor, member states) and anything else that participates in
// save/load of a running conversation.
//
// SaveState must return a self-describing JSON document (see Snapshot) so a
// snapshot saved from one component cannot be silently loaded into another.
type StateOwner interface {
	SaveState() (json.RawMessage, error)
	LoadState(data json.RawMessage) error
}

// Snapshot is the versioned envelope wrapping every serialized component
// state. Type identifies the producing component kind (e.g. "agent.model",
// "team.selector"), Payload carries the component specific document.
type Snapshot struct {
	Type    string          `json:"type"`
	Version int             `json:"version"`
	Payload json.RawMessage `json:"payload"`
}

// NewSnapshot wraps payload in a Snapshot envelope of the given type and
// returns its JSON encoding.
func NewSnapshot(snapshotType string, payload any) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot payload: %w", err)
	}
	env, err := json.Marshal(Snapshot{Type: snapshotType, Version: SnapshotVersion, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot envelope: %w", err)
	}
	return env, nil
}

// OpenSnapshot validates the envelope type/version and returns the payload.
// Loading a snapshot of a mismatched type fails rather than silently
// corrupting component memory.
func OpenSnapshot(snapshotType string, data json.RawMessage) (json.RawMessage, error) {
	var env Snapshot
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot envelope: %w", err)
	}
	if env.Type != snapshotType {
		return nil, fmt.Errorf("snapshot type mismatch: have %q, want %q", env.Type, snapshotType)
	}
	if env.Version > SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d newer than supported %d", env.Version, SnapshotVersion)
	}
	return env.Payload, nil
}
