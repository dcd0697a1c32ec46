package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/agenthive/agenthive/artifact"
	"github.com/agenthive/agenthive/core"
	"github.com/agenthive/agenthive/logging"
	"github.com/agenthive/agenthive/session"
)

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// MaxConcurrentRuns limits runs executing at the same time; further Run
	// calls wait for a free slot. Zero means unlimited.
	MaxConcurrentRuns int
	// EventBufferSize sets channel buffering for streamed events.
	EventBufferSize int
	// MaxModelCalls limits model calls per run via the shared TurnLimiter.
	// Zero means unlimited.
	MaxModelCalls int
	// SessionStore persists conversations; defaults to in-memory.
	SessionStore core.SessionStore
	// ArtifactStore stores produced files; defaults to in-memory.
	ArtifactStore core.ArtifactStore
	// Logger receives orchestration logs; defaults to NoOpLogger.
	Logger logging.Logger
}

// Runner coordinates execution of a root agent: it resolves the session,
// creates run contexts, streams events, applies side effects and persists
// history. Public methods are safe for concurrent use.
type Runner struct {
	agent core.Agent

	eventBufferSize int
	maxModelCalls   int

	sessions  core.SessionStore
	artifacts core.ArtifactStore
	logger    logging.Logger

	slots      chan struct{} // nil when unlimited
	mu         sync.Mutex
	activeRuns map[string]context.CancelFunc
}

// New constructs a Runner for the given root agent with optional overrides.
func New(agent core.Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxConcurrentRuns: 10,
		EventBufferSize:   100,
		MaxModelCalls:     100,
		SessionStore:      session.NewInMemoryStore(),
		ArtifactStore:     artifact.NewInMemoryStore(),
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var slots chan struct{}
	if opts.MaxConcurrentRuns > 0 {
		slots = make(chan struct{}, opts.MaxConcurrentRuns)
	}
	return &Runner{
		agent:           agent,
		eventBufferSize: opts.EventBufferSize,
		maxModelCalls:   opts.MaxModelCalls,
		sessions:        opts.SessionStore,
		artifacts:       opts.ArtifactStore,
		logger:          opts.Logger,
		slots:           slots,
		activeRuns:      make(map[string]context.CancelFunc),
	}
}

// Run starts an asynchronous run of the root agent against the session. It
// returns the run id, the event stream and an error channel delivering at
// most one error; both channels close when the run ends.
func (r *Runner) Run(ctx context.Context, sessionID string, userContent core.Content) (string, <-chan core.Event, <-chan error, error) {
	if r.slots != nil {
		select {
		case <-ctx.Done():
			return "", nil, nil, ctx.Err()
		case r.slots <- struct{}{}:
		}
	}
	release := func() {
		if r.slots != nil {
			<-r.slots
		}
	}

	sess, err := r.sessions.Get(sessionID)
	if err != nil {
		release()
		return "", nil, nil, fmt.Errorf("get session: %w", err)
	}

	runID := core.NewID()
	userEvent := core.NewUserContentEvent(runID, &userContent)
	if err := r.sessions.AppendEvent(sessionID, userEvent); err != nil {
		release()
		return "", nil, nil, fmt.Errorf("append user event: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	agentEmit := make(chan core.Event, r.eventBufferSize)
	eventsCh := make(chan core.Event, r.eventBufferSize)
	errorsCh := make(chan error, 1)

	rc := core.NewRunContext(
		ctx,
		sessionID, runID,
		core.AgentInfo{Name: r.agent.Name(), Type: "agent"},
		userContent,
		agentEmit,
		sess,
		r.sessions,
		r.artifacts,
		core.NewTurnLimiter(r.maxModelCalls),
		r.logger,
	)

	runErr := make(chan error, 1)
	go func() {
		defer close(agentEmit)
		runErr <- r.agent.Run(rc)
	}()

	go func() {
		defer func() {
			close(eventsCh)
			close(errorsCh)
			r.mu.Lock()
			delete(r.activeRuns, runID)
			r.mu.Unlock()
			cancel()
			release()
		}()

		if err := r.processEvents(rc, sessionID, agentEmit, eventsCh); err != nil {
			errorsCh <- err
			for range agentEmit {
			}
			<-runErr
			return
		}
		if err := <-runErr; err != nil {
			errorsCh <- fmt.Errorf("agent execution failed: %w", err)
		}
	}()

	r.logger.Info("runner.run.started", "run", runID, "session", sessionID, "agent", r.agent.Name())
	return runID, eventsCh, errorsCh, nil
}

// RunSync runs to completion and returns the complete (non-partial) events.
func (r *Runner) RunSync(ctx context.Context, sessionID string, userContent core.Content) ([]core.Event, error) {
	_, eventsCh, errorsCh, err := r.Run(ctx, sessionID, userContent)
	if err != nil {
		return nil, err
	}
	var events []core.Event
	for ev := range eventsCh {
		if !ev.IsPartial() {
			events = append(events, ev)
		}
	}
	if err := <-errorsCh; err != nil {
		return nil, err
	}
	return events, nil
}

// processEvents applies side effects and persists every complete event before
// forwarding it to the caller.
func (r *Runner) processEvents(rc *core.RunContext, sessionID string, agentEmit <-chan core.Event, eventsCh chan<- core.Event) error {
	for {
		select {
		case <-rc.Done():
			return rc.Err()
		case ev, ok := <-agentEmit:
			if !ok {
				return nil
			}
			if err := r.applyEventActions(sessionID, ev); err != nil {
				return fmt.Errorf("apply event actions: %w", err)
			}
			if !ev.IsPartial() {
				if err := r.sessions.AppendEvent(sessionID, ev); err != nil {
					return fmt.Errorf("append event: %w", err)
				}
			}
			select {
			case <-rc.Done():
				return rc.Err()
			case eventsCh <- ev:
				r.logger.Debug("runner.event.delivered", "event", ev.ID, "session", sessionID)
			}
		}
	}
}

// applyEventActions applies the orchestration side effects carried by an
// event. Artifacts are written by agents directly; the delta is only logged
// here so operators can trace file production.
func (r *Runner) applyEventActions(sessionID string, ev core.Event) error {
	if len(ev.Actions.StateDelta) > 0 {
		if err := r.sessions.ApplyDelta(sessionID, ev.Actions.StateDelta); err != nil {
			return fmt.Errorf("apply state delta: %w", err)
		}
	}
	for id := range ev.Actions.ArtifactDelta {
		r.logger.Debug("runner.event.artifact", "artifact", id, "session", sessionID)
	}
	if ev.Actions.Handoff != nil {
		r.logger.Debug("runner.event.handoff", "target", *ev.Actions.Handoff, "session", sessionID)
	}
	return nil
}

// Cancel aborts a running run by id.
func (r *Runner) Cancel(runID string) error {
	r.mu.Lock()
	cancel, ok := r.activeRuns[runID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("run %s not found", runID)
	}
	cancel()
	return nil
}

// CancelAll aborts every active run.
func (r *Runner) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cancel := range r.activeRuns {
		cancel()
	}
}

// ActiveRuns returns the ids of runs currently executing.
func (r *Runner) ActiveRuns() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.activeRuns))
	for id := range r.activeRuns {
		ids = append(ids, id)
	}
	return ids
}
