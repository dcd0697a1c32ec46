package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/agenthive/agenthive/codeexec"
	"github.com/agenthive/agenthive/core"
)

// SnapshotTypeCodeExecAgent tags state snapshots produced by CodeExecAgent.
const SnapshotTypeCodeExecAgent = "agent.codeexec"

// CodeExecAgentOptions configures a CodeExecAgent instance.
type CodeExecAgentOptions struct {
	// Delimiter marks fenced code blocks in incoming messages.
	Delimiter codeexec.Delimiter
	// Languages restricts which fence language tags are executed. Empty
	// accepts every block the executor supports.
	Languages []string
	// SaveFiles stores files produced by executions in the ArtifactStore.
	SaveFiles bool
	// NoCodeReply is the message emitted when the inspected conversation
	// contains no executable code blocks.
	NoCodeReply string
}

// CodeExecAgent watches the conversation for fenced code blocks and executes
// them through the configured executor, replying with the combined output.
// Exit codes and runtime exception names surface verbatim in the reply so
// model agents downstream can react to failures.
type CodeExecAgent struct {
	BaseAgent
	executor  codeexec.Executor
	delimiter codeexec.Delimiter
	languages map[string]bool
	saveFiles bool
	noCode    string

	mu         sync.Mutex
	executions int
}

// NewCodeExecAgent creates an agent executing code via the given executor.
func NewCodeExecAgent(name string, executor codeexec.Executor, optFns ...func(o *CodeExecAgentOptions)) *CodeExecAgent {
	opts := CodeExecAgentOptions{
		Delimiter:   codeexec.DefaultDelimiter,
		SaveFiles:   true,
		NoCodeReply: "No code blocks found in the conversation.",
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	languages := make(map[string]bool, len(opts.Languages))
	for _, lang := range opts.Languages {
		languages[lang] = true
	}

	a := &CodeExecAgent{
		BaseAgent: NewBaseAgent(name),
		executor:  executor,
		delimiter: opts.Delimiter,
		languages: languages,
		saveFiles: opts.SaveFiles,
		noCode:    opts.NoCodeReply,
	}
	a.SetDescription(fmt.Sprintf("Agent %s executes fenced code blocks and reports their output.", name))
	return a
}

// Run implements core.Agent. It extracts code blocks from the incoming task
// (falling back to the most recent message in the session history), executes
// them and emits the combined result as its reply.
func (a *CodeExecAgent) Run(rc *core.RunContext) error {
	blocks := a.findBlocks(rc)
	if len(blocks) == 0 {
		ev := core.NewMessageEvent(a.Name(), a.noCode)
		ev.RunID = rc.RunID
		ev.TurnComplete = boolPtr(true)
		return rc.EmitEvent(ev)
	}

	start := time.Now()
	result, err := a.executor.Execute(rc.Context, codeexec.ExecutionInput{
		Blocks:      blocks,
		ExecutionID: core.NewID(),
	})
	if err != nil {
		rc.Logger.Error("agent.codeexec.failed", "agent", a.Name(), "error", err.Error())
		return fmt.Errorf("execute code blocks: %w", err)
	}
	rc.Logger.Info("agent.codeexec.done",
		"agent", a.Name(),
		"blocks", len(blocks),
		"exit_code", result.ExitCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	a.mu.Lock()
	a.executions++
	a.mu.Unlock()

	if a.saveFiles {
		for _, f := range result.Files {
			if err := rc.SaveArtifact(f.Name, f.Content); err != nil {
				return fmt.Errorf("save produced file %s: %w", f.Name, err)
			}
		}
	}

	ev := core.NewMessageEvent(a.Name(), result.String())
	ev.RunID = rc.RunID
	ev.TurnComplete = boolPtr(true)
	return rc.EmitEvent(ev)
}

// findBlocks locates executable code blocks: first in the incoming task, then
// in the newest complete session message. Blocks with a language tag outside
// the configured set are skipped.
func (a *CodeExecAgent) findBlocks(rc *core.RunContext) []codeexec.CodeBlock {
	if blocks := a.filter(codeexec.ExtractCodeBlocks(rc.Task.Text(), a.delimiter)); len(blocks) > 0 {
		return blocks
	}
	history := rc.History()
	for i := len(history) - 1; i >= 0; i-- {
		ev := history[i]
		if ev.Author == a.Name() {
			continue
		}
		if blocks := a.filter(codeexec.ExtractCodeBlocks(ev.Text(), a.delimiter)); len(blocks) > 0 {
			return blocks
		}
	}
	return nil
}

func (a *CodeExecAgent) filter(blocks []codeexec.CodeBlock) []codeexec.CodeBlock {
	if len(a.languages) == 0 {
		return blocks
	}
	kept := blocks[:0]
	for _, b := range blocks {
		if a.languages[b.Language] {
			kept = append(kept, b)
		}
	}
	return kept
}

// Reset implements core.Agent. When the executor supports restarting (remote
// session pools), Reset rotates its session so accumulated variables and files
// are discarded.
func (a *CodeExecAgent) Reset() error {
	a.mu.Lock()
	a.executions = 0
	a.mu.Unlock()
	if r, ok := a.executor.(codeexec.Restartable); ok {
		return r.Restart(context.Background())
	}
	return nil
}

type codeExecAgentState struct {
	Executions int `json:"executions"`
}

// SaveState implements core.StateOwner.
func (a *CodeExecAgent) SaveState() (json.RawMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return core.NewSnapshot(SnapshotTypeCodeExecAgent, codeExecAgentState{Executions: a.executions})
}

// LoadState implements core.StateOwner.
func (a *CodeExecAgent) LoadState(data json.RawMessage) error {
	payload, err := core.OpenSnapshot(SnapshotTypeCodeExecAgent, data)
	if err != nil {
		return err
	}
	var st codeExecAgentState
	if err := json.Unmarshal(payload, &st); err != nil {
		return fmt.Errorf("unmarshal codeexec agent state: %w", err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.executions = st.Executions
	return nil
}
