// Package team implements group chat orchestration: a fixed set of agents
// share one conversation thread and a coordinator picks, turn by turn, which
// participant speaks next until a termination condition is met.
//
// Two coordinators are provided. RoundRobinGroupChat rotates through the
// participants in declaration order. SelectorGroupChat asks a language model
// to pick the next speaker from the participant roster and the transcript so
// far, falling back to round robin when the model cannot produce a valid name.
//
// Teams implement core.StateOwner: a snapshot captures the shared thread, the
// speaker cursor and the state of every participant, so a conversation can be
// persisted and resumed later.
package team
