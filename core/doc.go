// Package core contains the shared domain types of AgentHive: role based
// Content composed of polymorphic Parts, the Event stream unit, the Session
// container with its persistence interfaces, per-run execution context,
// state snapshot contracts and turn limiting.
//
// Higher level packages (agent, team, runner, codeexec) depend on core; core
// depends only on logging and the standard library plus uuid.
package core
