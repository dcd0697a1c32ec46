package team

import (
	"context"

	"github.com/agenthive/agenthive/core"
)

// SnapshotTypeRoundRobin tags state snapshots produced by RoundRobinGroupChat.
const SnapshotTypeRoundRobin = "team.roundrobin"

// RoundRobinGroupChat rotates through its participants in declaration order,
// one speaker per turn, until the termination condition (or turn cap) ends
// the run.
type RoundRobinGroupChat struct {
	*groupChat
}

// NewRoundRobinGroupChat creates a round robin team over the participants.
// A termination condition or MaxTurns cap is required.
func NewRoundRobinGroupChat(name string, participants []core.Agent, optFns ...func(o *Options)) (*RoundRobinGroupChat, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	gc, err := newGroupChat(name, SnapshotTypeRoundRobin, participants, opts)
	if err != nil {
		return nil, err
	}
	t := &RoundRobinGroupChat{groupChat: gc}
	gc.selector = t
	return t, nil
}

// selectSpeaker implements speakerSelector by plain rotation.
func (t *RoundRobinGroupChat) selectSpeaker(_ context.Context, _ *core.TurnLimiter) (core.Agent, error) {
	return t.advanceCursor(nil), nil
}
