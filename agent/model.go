package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/agenthive/agenthive/core"
	"github.com/agenthive/agenthive/model"
	"github.com/agenthive/agenthive/tool"
)

// SnapshotTypeModelAgent tags state snapshots produced by ModelAgent.
const SnapshotTypeModelAgent = "agent.model"

func boolPtr(b bool) *bool { return &b }

// ModelAgentOptions configures a ModelAgent instance.
//
// Use functional options with NewModelAgent to override defaults.
type ModelAgentOptions struct {
	Instruction           Instruction
	EnableStreaming       bool
	EnableFunctionCalling bool
	ToolTimeout           time.Duration
	OutputKey             string
	MaxHistoryMessages    int
	MaxToolTurns          int
	Tools                 []tool.Tool
}

// ModelAgent drives a language model to produce conversation turns.
//
// It keeps a bounded buffer of the messages it has seen and produced (its
// model context) so that repeated turns within a team share memory, supports
// streaming partial responses, and can run a function calling loop against
// registered tools. The buffered context is what SaveState captures, so a
// restored agent resumes mid-conversation.
type ModelAgent struct {
	BaseAgent
	llm                   model.Model
	instruction           Instruction
	tools                 map[string]tool.Tool
	enableStreaming       bool
	enableFunctionCalling bool
	toolTimeout           time.Duration
	outputKey             string
	maxHistoryMessages    int
	maxToolTurns          int

	mu      sync.Mutex
	history []core.Content // buffered model context
}

// NewModelAgent creates a model-backed agent with sensible defaults:
// streaming and function calling enabled, a 15 second tool timeout, a
// 20 message context window and at most 8 consecutive tool turns.
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Instruction:           NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		EnableStreaming:       true,
		EnableFunctionCalling: true,
		ToolTimeout:           15 * time.Second,
		MaxHistoryMessages:    20,
		MaxToolTurns:          8,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	a := &ModelAgent{
		BaseAgent:             NewBaseAgent(name),
		llm:                   llm,
		instruction:           opts.Instruction,
		tools:                 make(map[string]tool.Tool),
		enableStreaming:       opts.EnableStreaming,
		enableFunctionCalling: opts.EnableFunctionCalling,
		toolTimeout:           opts.ToolTimeout,
		outputKey:             opts.OutputKey,
		maxHistoryMessages:    opts.MaxHistoryMessages,
		maxToolTurns:          opts.MaxToolTurns,
	}
	a.RegisterTools(opts.Tools...)
	return a
}

// RegisterTool adds a function tool to the agent's capability set.
func (a *ModelAgent) RegisterTool(t tool.Tool) { a.tools[t.Name()] = t }

// RegisterTools adds multiple tools to the agent's capability set.
func (a *ModelAgent) RegisterTools(tools ...tool.Tool) {
	for _, t := range tools {
		a.RegisterTool(t)
	}
}

// UnregisterTool removes a tool. Returns true if it was registered.
func (a *ModelAgent) UnregisterTool(name string) bool {
	if _, ok := a.tools[name]; ok {
		delete(a.tools, name)
		return true
	}
	return false
}

// HasTool checks if a tool is registered with the agent.
func (a *ModelAgent) HasTool(name string) bool {
	_, ok := a.tools[name]
	return ok
}

// ListTools returns the names of all registered tools.
func (a *ModelAgent) ListTools() []string {
	names := make([]string, 0, len(a.tools))
	for name := range a.tools {
		names = append(names, name)
	}
	return names
}

// Run implements core.Agent. It appends the incoming task to the buffered
// context, then performs model turns until the model produces a final
// response without pending tool calls. Each tool response re-enters the
// model, bounded by MaxToolTurns.
func (a *ModelAgent) Run(rc *core.RunContext) error {
	rc.Logger.Debug("agent.run.start", "agent", a.Name(), "run", rc.RunID)

	if len(rc.Task.Parts) > 0 {
		a.appendContext(rc.Task)
	}

	for turn := 0; ; turn++ {
		if a.maxToolTurns > 0 && turn >= a.maxToolTurns {
			return fmt.Errorf("agent %s exceeded %d consecutive tool turns", a.Name(), a.maxToolTurns)
		}
		pendingTools, err := a.generateOnce(rc)
		if err != nil {
			return err
		}
		if !pendingTools {
			return nil
		}
	}
}

// generateOnce performs a single model call (streaming included) plus any tool
// executions it triggers. It reports whether tool responses were produced,
// meaning the model should be consulted again.
func (a *ModelAgent) generateOnce(rc *core.RunContext) (bool, error) {
	if rc.Limiter != nil {
		if err := rc.Limiter.Increment(); err != nil {
			return false, err
		}
	}

	instructions, err := a.instruction.Resolve(rc)
	if err != nil {
		return false, fmt.Errorf("resolve instructions: %w", err)
	}

	req := model.Request{
		Instructions: instructions,
		Contents:     a.contextWindow(),
		Stream:       a.enableStreaming,
	}
	if a.enableFunctionCalling && len(a.tools) > 0 {
		tools := make([]tool.Tool, 0, len(a.tools))
		for _, t := range a.tools {
			tools = append(tools, t)
		}
		req.Tools = tool.Definitions(tools)
	}

	start := time.Now()
	respCh, errCh := a.llm.Generate(rc.Context, req)

	var final *core.Event
	for {
		select {
		case <-rc.Done():
			return false, rc.Err()
		case err, ok := <-errCh:
			if ok && err != nil {
				return false, fmt.Errorf("model generate: %w", err)
			}
			errCh = nil
			if respCh == nil {
				goto done
			}
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				if errCh == nil {
					goto done
				}
				continue
			}
			ev := core.NewEvent(rc.RunID, a.Name())
			content := resp.Content
			ev.Content = &content
			ev.Partial = boolPtr(resp.Partial)
			if !resp.Partial {
				if len(ev.GetFunctionCalls()) == 0 {
					ev.TurnComplete = boolPtr(true)
				}
				final = &ev
				continue // emitted below with state delta attached
			}
			if err := rc.EmitEvent(ev); err != nil {
				return false, err
			}
		}
	}

done:
	rc.Logger.Debug("agent.model.call", "agent", a.Name(), "model", a.llm.Info().Name, "duration_ms", time.Since(start).Milliseconds())
	if final == nil {
		return false, fmt.Errorf("model %s produced no final response", a.llm.Info().Name)
	}

	a.appendContext(*final.Content)
	if a.outputKey != "" && len(final.GetFunctionCalls()) == 0 {
		rc.SetState(a.outputKey, final.Text())
	}
	if err := rc.EmitEvent(*final); err != nil {
		return false, err
	}

	calls := final.GetFunctionCalls()
	if len(calls) == 0 {
		return false, nil
	}
	for _, call := range calls {
		if err := a.executeToolCall(rc, call); err != nil {
			return false, err
		}
	}
	return true, nil
}

// executeToolCall runs one requested tool, emits the function response event
// and appends the outcome to the buffered context so the next model turn sees
// it. Tool failures are reported back to the model rather than aborting the run.
func (a *ModelAgent) executeToolCall(rc *core.RunContext, call core.FunctionCall) error {
	toolRC := rc
	if a.toolTimeout > 0 {
		tctx, cancel := context.WithTimeout(rc.Context, a.toolTimeout)
		defer cancel()
		scoped := *rc
		scoped.Context = tctx
		toolRC = &scoped
	}
	toolCtx := core.NewToolContext(toolRC, call.ID)

	var result any
	var err error
	t, ok := a.tools[call.Name]
	if !ok {
		err = fmt.Errorf("tool %s not found", call.Name)
	} else {
		args := map[string]any{}
		if call.Arguments != "" {
			if uerr := json.Unmarshal([]byte(call.Arguments), &args); uerr != nil {
				err = fmt.Errorf("unmarshal tool arguments: %w", uerr)
			}
		}
		if err == nil {
			start := time.Now()
			result, err = t.Call(toolCtx, args)
			rc.Logger.Info("agent.tool.executed", "agent", a.Name(), "tool", call.Name, "duration_ms", time.Since(start).Milliseconds(), "error", err != nil)
		}
	}

	ev := core.NewFunctionResponseEvent(a.Name(), call.ID, call.Name, result, err)
	ev.RunID = rc.RunID
	ev.Actions = toolCtx.Actions()
	a.appendContext(*ev.Content)
	return rc.EmitEvent(ev)
}

// appendContext adds content to the buffered model context, trimming the
// oldest entries beyond MaxHistoryMessages.
func (a *ModelAgent) appendContext(c core.Content) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = append(a.history, c)
	if a.maxHistoryMessages > 0 && len(a.history) > a.maxHistoryMessages {
		a.history = a.history[len(a.history)-a.maxHistoryMessages:]
	}
}

// contextWindow returns a copy of the buffered model context.
func (a *ModelAgent) contextWindow() []core.Content {
	a.mu.Lock()
	defer a.mu.Unlock()
	window := make([]core.Content, len(a.history))
	copy(window, a.history)
	return window
}

// Reset implements core.Agent by clearing the buffered model context.
func (a *ModelAgent) Reset() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = nil
	return nil
}

type modelAgentState struct {
	History []core.Content `json:"history"`
}

// SaveState implements core.StateOwner. The snapshot captures the buffered
// model context so a restored agent continues the conversation where it
// stopped.
func (a *ModelAgent) SaveState() (json.RawMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return core.NewSnapshot(SnapshotTypeModelAgent, modelAgentState{History: a.history})
}

// LoadState implements core.StateOwner, replacing the buffered model context.
// Snapshots of a different component type are rejected.
func (a *ModelAgent) LoadState(data json.RawMessage) error {
	payload, err := core.OpenSnapshot(SnapshotTypeModelAgent, data)
	if err != nil {
		return err
	}
	var st modelAgentState
	if err := json.Unmarshal(payload, &st); err != nil {
		return fmt.Errorf("unmarshal model agent state: %w", err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = st.History
	return nil
}
