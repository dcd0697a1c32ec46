package core

// Agent defines the interface implemented by every conversation participant.
//
// Agents are the processing units of AgentHive. They receive the evolving
// conversation through a RunContext, do their work (call a model, execute
// code, invoke tools) and emit events to communicate results back to the team
// or runner driving them.
//
// Implementations must:
//   - Respect context cancellation for graceful shutdown
//   - Emit events through the provided RunContext
//   - Support state capture/restore via the embedded StateOwner contract
type Agent interface {
	Name() string
	Description() string
	Run(rc *RunContext) error
	Reset() error

	StateOwner
}

// AgentInfo carries identifying details about an agent used in contexts & events.
// Name is the external identifier; Type categorizes implementation (e.g. "model", "codeexec").
type AgentInfo struct{ Name, Type string }
