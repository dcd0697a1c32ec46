// Package agenthive provides a high-level façade over the runner, team and
// store abstractions enabling rapid construction of multi-agent systems. Most
// applications interact with this package by:
//  1. Creating an AgentHive via New() (optionally overriding the default
//     in-memory stores and NoOp logger)
//  2. Registering agents (model, code execution, custom) and teams (round
//     robin or selector group chats)
//  3. Invoking agents asynchronously (Invoke) or synchronously (InvokeSync),
//     or running a registered team against a task (RunTeam / RunTeamSync)
//
// All defaults are safe for local development and testing; production
// deployments typically supply a durable session store (session/redis) and a
// structured logger.
package agenthive

import (
	"context"
	"fmt"
	"sync"

	"github.com/agenthive/agenthive/artifact"
	"github.com/agenthive/agenthive/config"
	"github.com/agenthive/agenthive/core"
	"github.com/agenthive/agenthive/logging"
	"github.com/agenthive/agenthive/runner"
	"github.com/agenthive/agenthive/session"
	sessionredis "github.com/agenthive/agenthive/session/redis"
	"github.com/agenthive/agenthive/team"
)

// Options configures the AgentHive instance.
type Options struct {
	// MaxConcurrentRuns limits simultaneously executing agent runs.
	MaxConcurrentRuns int
	// EventBufferSize sets the channel buffer size for event streaming.
	EventBufferSize int
	// MaxModelCalls bounds model calls per run. Zero means unlimited.
	MaxModelCalls int

	// Stores default to in-memory implementations when nil.
	SessionStore  core.SessionStore
	ArtifactStore core.ArtifactStore

	// Logger defaults to the NoOp logger when nil.
	Logger logging.Logger
}

// AgentHive is the high-level façade aggregating runners, teams and the
// shared stores.
type AgentHive struct {
	opts Options

	mu      sync.RWMutex
	runners map[string]*runner.Runner
	teams   map[string]team.Team
}

// New creates an AgentHive with optional overrides. Any unset store is
// initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *AgentHive {
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
	return &AgentHive{
		opts:    opts,
		runners: make(map[string]*runner.Runner),
		teams:   make(map[string]team.Team),
	}
}

// NewFromConfig assembles an AgentHive from a deployment configuration: a
// structured slog logger per the logging section, the Redis session store
// when a Redis URL is configured (in-memory otherwise), and run limits from
// the limits section. Functional options apply on top for overrides the
// config file does not cover (e.g. a custom artifact store).
func NewFromConfig(cfg *config.Config, optFns ...func(o *Options)) (*AgentHive, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.NewSlogLogger(level, cfg.Logging.Format, false)

	var store core.SessionStore = session.NewInMemoryStore()
	if cfg.Redis.URL != "" {
		redisStore, err := sessionredis.NewStore(cfg.Redis.URL, func(o *sessionredis.Options) {
			if cfg.Redis.KeyPrefix != "" {
				o.KeyPrefix = cfg.Redis.KeyPrefix
			}
			o.TTL = cfg.Redis.TTL.Std()
		})
		if err != nil {
			return nil, fmt.Errorf("configure redis session store: %w", err)
		}
		store = redisStore
	}

	return New(append([]func(o *Options){func(o *Options) {
		o.MaxConcurrentRuns = cfg.Limits.MaxConcurrentRuns
		o.EventBufferSize = cfg.Limits.EventBufferSize
		o.MaxModelCalls = cfg.Limits.MaxModelCalls
		o.SessionStore = store
		o.Logger = logger
	}}, optFns...)...), nil
}

// Logger returns the configured logger (for wiring into teams and clients).
func (h *AgentHive) Logger() logging.Logger { return h.opts.Logger }

// SessionStore returns the shared session store (for wiring into teams).
func (h *AgentHive) SessionStore() core.SessionStore { return h.opts.SessionStore }

// ArtifactStore returns the shared artifact store.
func (h *AgentHive) ArtifactStore() core.ArtifactStore { return h.opts.ArtifactStore }

// RegisterAgent makes the agent invokable by name. The agent gets its own
// runner sharing the hive's stores and logger.
func (h *AgentHive) RegisterAgent(a core.Agent) {
	r := runner.New(a, func(o *runner.Options) {
		o.MaxConcurrentRuns = h.opts.MaxConcurrentRuns
		o.EventBufferSize = h.opts.EventBufferSize
		o.MaxModelCalls = h.opts.MaxModelCalls
		o.SessionStore = h.opts.SessionStore
		o.ArtifactStore = h.opts.ArtifactStore
		o.Logger = h.opts.Logger
	})
	h.mu.Lock()
	h.runners[a.Name()] = r
	h.mu.Unlock()
}

// RegisterTeam makes the team runnable by name.
func (h *AgentHive) RegisterTeam(t team.Team) {
	h.mu.Lock()
	h.teams[t.Name()] = t
	h.mu.Unlock()
}

// Invoke starts an asynchronous run of a registered agent, returning the run
// id plus event and error channels.
func (h *AgentHive) Invoke(ctx context.Context, sessionID, agentName string, userContent core.Content) (string, <-chan core.Event, <-chan error, error) {
	h.mu.RLock()
	r, ok := h.runners[agentName]
	h.mu.RUnlock()
	if !ok {
		return "", nil, nil, fmt.Errorf("agent %s not registered", agentName)
	}
	return r.Run(ctx, sessionID, userContent)
}

// InvokeSync runs a registered agent to completion and returns the complete
// events it produced.
func (h *AgentHive) InvokeSync(ctx context.Context, sessionID, agentName string, userContent core.Content) ([]core.Event, error) {
	h.mu.RLock()
	r, ok := h.runners[agentName]
	h.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("agent %s not registered", agentName)
	}
	return r.RunSync(ctx, sessionID, userContent)
}

// RunTeam starts an asynchronous run of a registered team against the task.
func (h *AgentHive) RunTeam(ctx context.Context, teamName string, task core.Content) (<-chan core.Event, <-chan error, error) {
	h.mu.RLock()
	t, ok := h.teams[teamName]
	h.mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("team %s not registered", teamName)
	}
	events, errs := t.Run(ctx, task)
	return events, errs, nil
}

// RunTeamSync runs a registered team to completion.
func (h *AgentHive) RunTeamSync(ctx context.Context, teamName string, task core.Content) (*team.TaskResult, error) {
	h.mu.RLock()
	t, ok := h.teams[teamName]
	h.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("team %s not registered", teamName)
	}
	return t.RunSync(ctx, task)
}

// ResetTeam resets a registered team for a fresh conversation.
func (h *AgentHive) ResetTeam(ctx context.Context, teamName string) error {
	h.mu.RLock()
	t, ok := h.teams[teamName]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("team %s not registered", teamName)
	}
	return t.Reset(ctx)
}
