package team

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/agenthive/agenthive/artifact"
	"github.com/agenthive/agenthive/core"
	"github.com/agenthive/agenthive/logging"
	"github.com/agenthive/agenthive/session"
)

// Team is a multi-agent orchestration: Run streams the events of one
// conversation task, RunSync collects them, Reset prepares the team for a
// fresh conversation. Teams carry conversational memory between Run calls,
// captured and restored through core.StateOwner.
type Team interface {
	Name() string
	Run(ctx context.Context, task core.Content) (<-chan core.Event, <-chan error)
	RunSync(ctx context.Context, task core.Content) (*TaskResult, error)
	Reset(ctx context.Context) error

	core.StateOwner
}

// TaskResult is the collected outcome of a synchronous team run.
type TaskResult struct {
	// Messages are the complete (non-partial) events produced during the
	// run, the initial task message included.
	Messages []core.Event
	// StopReason explains why the run ended.
	StopReason string
}

// Options configure a group chat team.
type Options struct {
	// Termination decides when a run ends. Required unless MaxTurns is set.
	Termination TerminationCondition
	// MaxTurns hard-caps the number of speaker turns per run regardless of
	// the termination condition. Zero means no cap.
	MaxTurns int
	// MaxModelCalls bounds model calls per run (speaker selections
	// included) through the shared core.TurnLimiter. Zero means unlimited.
	MaxModelCalls int
	// SessionStore persists the conversation; defaults to in-memory.
	SessionStore core.SessionStore
	// ArtifactStore receives files produced by members; defaults to in-memory.
	ArtifactStore core.ArtifactStore
	// Logger receives orchestration logs; defaults to NoOpLogger.
	Logger logging.Logger
}

// speakerSelector picks the next participant. The round robin and selector
// teams plug their strategies into the shared groupChat loop through it.
type speakerSelector interface {
	selectSpeaker(ctx context.Context, limiter *core.TurnLimiter) (core.Agent, error)
}

// groupChat is the shared run loop of both team flavors: it owns the message
// thread, drives one speaker per turn, persists events, applies event actions
// and consults the termination condition after every batch.
type groupChat struct {
	name         string
	participants []core.Agent
	byName       map[string]core.Agent
	termination  TerminationCondition
	maxTurns     int
	maxCalls     int
	sessions     core.SessionStore
	artifacts    core.ArtifactStore
	logger       logging.Logger
	snapshotType string
	selector     speakerSelector

	mu          sync.Mutex
	sessionID   string
	thread      []core.Event
	lastSeen    map[string]int // thread index each participant has consumed
	prevSpeaker string
	cursor      int
	forcedNext  string // set by a member handoff action
	running     bool
}

func newGroupChat(name, snapshotType string, participants []core.Agent, opts Options) (*groupChat, error) {
	if name == "" {
		return nil, fmt.Errorf("team name must not be empty")
	}
	if len(participants) == 0 {
		return nil, fmt.Errorf("team %s needs at least one participant", name)
	}
	if opts.Termination == nil && opts.MaxTurns <= 0 {
		return nil, fmt.Errorf("team %s needs a termination condition or a max turns cap", name)
	}
	byName := make(map[string]core.Agent, len(participants))
	for _, p := range participants {
		if p.Name() == "" {
			return nil, fmt.Errorf("team %s has a participant with an empty name", name)
		}
		if _, dup := byName[p.Name()]; dup {
			return nil, fmt.Errorf("team %s has duplicate participant name %s", name, p.Name())
		}
		byName[p.Name()] = p
	}
	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore()
	}
	if opts.ArtifactStore == nil {
		opts.ArtifactStore = artifact.NewInMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &groupChat{
		name:         name,
		participants: participants,
		byName:       byName,
		termination:  opts.Termination,
		maxTurns:     opts.MaxTurns,
		maxCalls:     opts.MaxModelCalls,
		sessions:     opts.SessionStore,
		artifacts:    opts.ArtifactStore,
		logger:       opts.Logger,
		snapshotType: snapshotType,
		lastSeen:     map[string]int{},
	}, nil
}

// Name returns the team name.
func (g *groupChat) Name() string { return g.name }

// Run starts an asynchronous conversation run. The event channel streams all
// member events (partials included) plus the final stop event; the error
// channel delivers at most one error. Both close when the run ends. A team
// runs one task at a time.
func (g *groupChat) Run(ctx context.Context, task core.Content) (<-chan core.Event, <-chan error) {
	events := make(chan core.Event, 256)
	errs := make(chan error, 1)
	go func() {
		defer close(events)
		defer close(errs)
		if err := g.runLoop(ctx, task, events); err != nil {
			errs <- err
		}
	}()
	return events, errs
}

// RunSync runs the task to completion and collects the non-partial messages
// and the stop reason.
func (g *groupChat) RunSync(ctx context.Context, task core.Content) (*TaskResult, error) {
	events, errs := g.Run(ctx, task)
	result := &TaskResult{}
	for ev := range events {
		if ev.IsPartial() {
			continue
		}
		if ev.IsStop() {
			result.StopReason = *ev.Actions.StopReason
			continue
		}
		result.Messages = append(result.Messages, ev)
	}
	if err := <-errs; err != nil {
		return nil, err
	}
	return result, nil
}

func (g *groupChat) runLoop(ctx context.Context, task core.Content, events chan<- core.Event) error {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return fmt.Errorf("team %s is already running a task", g.name)
	}
	g.running = true
	if g.sessionID == "" {
		g.sessionID = core.NewID()
	}
	sessionID := g.sessionID
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		g.running = false
		g.mu.Unlock()
	}()

	runID := core.NewID()
	if _, err := g.sessions.Get(sessionID); err != nil {
		return fmt.Errorf("load team session: %w", err)
	}
	limiter := core.NewTurnLimiter(g.maxCalls)

	var taskBatch []core.Event
	if len(task.Parts) > 0 {
		taskEv := core.NewUserContentEvent(runID, &task)
		if err := g.recordEvent(taskEv); err != nil {
			return err
		}
		if err := emitTo(ctx, events, taskEv); err != nil {
			return err
		}
		taskBatch = append(taskBatch, taskEv)
	}
	// A spent condition (previous run hit it, no Reset since) fires here
	// even on an empty batch, ending the run before anyone speaks.
	if stop := g.checkTermination(runID, taskBatch); stop != nil {
		return g.finish(ctx, events, *stop)
	}

	for turn := 1; ; turn++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if g.maxTurns > 0 && turn > g.maxTurns {
			reason := fmt.Sprintf("Maximum number of turns %d reached", g.maxTurns)
			return g.finish(ctx, events, core.NewStopEvent(runID, g.name, reason))
		}

		speaker, err := g.nextSpeaker(ctx, limiter)
		if err != nil {
			return fmt.Errorf("select next speaker: %w", err)
		}

		batch, err := g.runSpeaker(ctx, runID, speaker, limiter, events)
		if err != nil {
			return fmt.Errorf("run participant %s: %w", speaker.Name(), err)
		}
		g.logger.Debug("team.turn.done", "team", g.name, "speaker", speaker.Name(), "turn", turn, "messages", len(batch))

		// A member may request a stop directly (tool RequestStop action).
		for _, ev := range batch {
			if ev.IsStop() {
				return g.finish(ctx, events, core.NewStopEvent(runID, ev.Author, *ev.Actions.StopReason))
			}
		}
		if stop := g.checkTermination(runID, batch); stop != nil {
			return g.finish(ctx, events, *stop)
		}
	}
}

// nextSpeaker honors a pending handoff before consulting the configured
// selection strategy.
func (g *groupChat) nextSpeaker(ctx context.Context, limiter *core.TurnLimiter) (core.Agent, error) {
	g.mu.Lock()
	forced := g.forcedNext
	g.forcedNext = ""
	g.mu.Unlock()
	if forced != "" {
		target, ok := g.byName[forced]
		if !ok {
			return nil, fmt.Errorf("handoff to unknown participant %s", forced)
		}
		return target, nil
	}
	return g.selector.selectSpeaker(ctx, limiter)
}

// runSpeaker executes one participant turn: it builds the member task from
// the thread entries the member has not seen yet, streams the member's events
// outward, persists complete events and returns them as the turn batch.
func (g *groupChat) runSpeaker(ctx context.Context, runID string, speaker core.Agent, limiter *core.TurnLimiter, events chan<- core.Event) ([]core.Event, error) {
	sess, err := g.sessions.Get(g.sessionID)
	if err != nil {
		return nil, fmt.Errorf("load team session: %w", err)
	}

	memberEmit := make(chan core.Event, 64)
	rc := core.NewRunContext(
		ctx,
		g.sessionID, runID,
		core.AgentInfo{Name: speaker.Name(), Type: "member"},
		g.memberTask(speaker.Name()),
		memberEmit,
		sess,
		g.sessions,
		g.artifacts,
		limiter,
		g.logger,
	)

	runErr := make(chan error, 1)
	go func() {
		defer close(memberEmit)
		runErr <- speaker.Run(rc)
	}()

	var batch []core.Event
	for ev := range memberEmit {
		if err := emitTo(ctx, events, ev); err != nil {
			// Drain so the member goroutine can finish.
			for range memberEmit {
			}
			<-runErr
			return nil, err
		}
		if ev.IsPartial() {
			continue
		}
		if err := g.recordEvent(ev); err != nil {
			<-runErr
			return nil, err
		}
		batch = append(batch, ev)
	}
	if err := <-runErr; err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.lastSeen[speaker.Name()] = len(g.thread)
	g.prevSpeaker = speaker.Name()
	g.mu.Unlock()
	return batch, nil
}

// recordEvent appends a complete event to the shared thread, persists it and
// applies its actions (state deltas, handoffs).
func (g *groupChat) recordEvent(ev core.Event) error {
	g.mu.Lock()
	g.thread = append(g.thread, ev)
	if ev.Actions.Handoff != nil {
		g.forcedNext = *ev.Actions.Handoff
	}
	g.mu.Unlock()

	if err := g.sessions.AppendEvent(g.sessionID, ev); err != nil {
		return fmt.Errorf("persist event: %w", err)
	}
	if len(ev.Actions.StateDelta) > 0 {
		if err := g.sessions.ApplyDelta(g.sessionID, ev.Actions.StateDelta); err != nil {
			return fmt.Errorf("apply state delta: %w", err)
		}
	}
	return nil
}

// memberTask renders the thread entries the member has not consumed yet as a
// single user message ("author: text" transcript lines).
func (g *groupChat) memberTask(name string) core.Content {
	g.mu.Lock()
	defer g.mu.Unlock()
	var sb strings.Builder
	for _, ev := range g.thread[g.lastSeen[name]:] {
		text := ev.Text()
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%s: %s", ev.Author, text)
	}
	return core.NewTextContent("user", sb.String())
}

func (g *groupChat) checkTermination(runID string, batch []core.Event) *core.Event {
	if g.termination == nil {
		return nil
	}
	stop := g.termination.Check(batch)
	if stop != nil {
		stop.RunID = runID
	}
	return stop
}

// finish persists and emits the stop event ending the run.
func (g *groupChat) finish(ctx context.Context, events chan<- core.Event, stop core.Event) error {
	if err := g.sessions.AppendEvent(g.sessionID, stop); err != nil {
		return fmt.Errorf("persist stop event: %w", err)
	}
	g.logger.Info("team.run.stopped", "team", g.name, "reason", *stop.Actions.StopReason)
	return emitTo(ctx, events, stop)
}

// Reset clears the shared thread and speaker bookkeeping, re-arms the
// termination condition, resets every participant and detaches from the
// current session so the next run starts a fresh one.
func (g *groupChat) Reset(_ context.Context) error {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return fmt.Errorf("team %s cannot reset while running", g.name)
	}
	g.thread = nil
	g.lastSeen = map[string]int{}
	g.prevSpeaker = ""
	g.cursor = 0
	g.forcedNext = ""
	g.sessionID = ""
	g.mu.Unlock()

	if g.termination != nil {
		g.termination.Reset()
	}
	for _, p := range g.participants {
		if err := p.Reset(); err != nil {
			return fmt.Errorf("reset participant %s: %w", p.Name(), err)
		}
	}
	return nil
}

// teamState is the snapshot payload shared by the group chat flavors.
type teamState struct {
	Thread      []core.Event               `json:"thread"`
	Cursor      int                        `json:"cursor"`
	PrevSpeaker string                     `json:"prev_speaker"`
	LastSeen    map[string]int             `json:"last_seen"`
	Members     map[string]json.RawMessage `json:"members"`
}

// SaveState implements core.StateOwner. The snapshot bundles the shared
// thread, the speaker cursor and a per-participant snapshot keyed by name.
func (g *groupChat) SaveState() (json.RawMessage, error) {
	g.mu.Lock()
	st := teamState{
		Thread:      append([]core.Event(nil), g.thread...),
		Cursor:      g.cursor,
		PrevSpeaker: g.prevSpeaker,
		LastSeen:    make(map[string]int, len(g.lastSeen)),
		Members:     make(map[string]json.RawMessage, len(g.participants)),
	}
	for k, v := range g.lastSeen {
		st.LastSeen[k] = v
	}
	g.mu.Unlock()

	for _, p := range g.participants {
		memberSnap, err := p.SaveState()
		if err != nil {
			return nil, fmt.Errorf("save participant %s state: %w", p.Name(), err)
		}
		st.Members[p.Name()] = memberSnap
	}
	return core.NewSnapshot(g.snapshotType, st)
}

// LoadState implements core.StateOwner. Snapshots naming a participant this
// team does not have fail loading so state cannot silently be dropped.
func (g *groupChat) LoadState(data json.RawMessage) error {
	payload, err := core.OpenSnapshot(g.snapshotType, data)
	if err != nil {
		return err
	}
	var st teamState
	if err := json.Unmarshal(payload, &st); err != nil {
		return fmt.Errorf("unmarshal team state: %w", err)
	}
	for name, memberSnap := range st.Members {
		p, ok := g.byName[name]
		if !ok {
			return fmt.Errorf("snapshot references unknown participant %s", name)
		}
		if err := p.LoadState(memberSnap); err != nil {
			return fmt.Errorf("load participant %s state: %w", name, err)
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.thread = st.Thread
	g.cursor = st.Cursor
	g.prevSpeaker = st.PrevSpeaker
	g.lastSeen = st.LastSeen
	if g.lastSeen == nil {
		g.lastSeen = map[string]int{}
	}
	return nil
}

// advanceCursor returns the next participant in declaration order whose name
// is in the candidate set, advancing the rotation cursor. With an empty set
// every participant is a candidate.
func (g *groupChat) advanceCursor(candidates map[string]bool) core.Agent {
	g.mu.Lock()
	defer g.mu.Unlock()
	for range g.participants {
		p := g.participants[g.cursor%len(g.participants)]
		g.cursor++
		if len(candidates) == 0 || candidates[p.Name()] {
			return p
		}
	}
	// Candidate set excluded everyone; fall back to plain rotation.
	p := g.participants[g.cursor%len(g.participants)]
	g.cursor++
	return p
}

// threadCopy returns a snapshot of the shared message thread.
func (g *groupChat) threadCopy() []core.Event {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]core.Event(nil), g.thread...)
}

func emitTo(ctx context.Context, ch chan<- core.Event, ev core.Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case ch <- ev:
		return nil
	}
}
