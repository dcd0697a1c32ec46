package team

import (
	"context"
	"fmt"
	"strings"

	"github.com/agenthive/agenthive/core"
	"github.com/agenthive/agenthive/model"
)

// SnapshotTypeSelector tags state snapshots produced by SelectorGroupChat.
const SnapshotTypeSelector = "team.selector"

// defaultSelectorPrompt asks the model to pick the next speaker. It is
// rendered with %s substitutions for roles, candidate names and transcript.
const defaultSelectorPrompt = `You are coordinating a conversation between the following participants:
%s

Read the conversation below, then pick which participant should speak next.
Answer with exactly one name from: %s. Reply with the name only.

%s`

// SelectorFunc overrides model-based speaker selection. It receives the
// conversation thread and the candidate names and returns the chosen name, or
// "" to defer to the model.
type SelectorFunc func(thread []core.Event, candidates []string) string

// SelectorOptions configure a SelectorGroupChat.
type SelectorOptions struct {
	Options

	// AllowRepeatedSpeaker permits the previous speaker to be chosen again.
	// When false (default) the previous speaker is removed from the
	// candidate set as long as more than one candidate remains.
	AllowRepeatedSpeaker bool
	// MaxSelectionRetries bounds the attempts to get a valid name from the
	// model before falling back to round robin order. Default 2.
	MaxSelectionRetries int
	// SelectorFunc short-circuits the model when it returns a name.
	SelectorFunc SelectorFunc
	// SelectorPrompt overrides the selection prompt. Rendered with three %s
	// verbs: participant roles, candidate names, transcript.
	SelectorPrompt string
}

// SelectorGroupChat asks a language model to pick the next speaker each turn.
// The selection prompt lists the participant names with their descriptions,
// the transcript so far and the candidate names; the model must reply with
// exactly one participant name. Invalid answers are retried a bounded number
// of times, then the team falls back to round robin order.
type SelectorGroupChat struct {
	*groupChat
	llm           model.Model
	allowRepeated bool
	maxRetries    int
	selectorFunc  SelectorFunc
	prompt        string
}

// NewSelectorGroupChat creates a model-coordinated team over the
// participants. A termination condition or MaxTurns cap is required.
func NewSelectorGroupChat(name string, llm model.Model, participants []core.Agent, optFns ...func(o *SelectorOptions)) (*SelectorGroupChat, error) {
	if llm == nil {
		return nil, fmt.Errorf("selector team %s needs a model", name)
	}
	opts := SelectorOptions{
		MaxSelectionRetries: 2,
		SelectorPrompt:      defaultSelectorPrompt,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	gc, err := newGroupChat(name, SnapshotTypeSelector, participants, opts.Options)
	if err != nil {
		return nil, err
	}
	t := &SelectorGroupChat{
		groupChat:     gc,
		llm:           llm,
		allowRepeated: opts.AllowRepeatedSpeaker,
		maxRetries:    opts.MaxSelectionRetries,
		selectorFunc:  opts.SelectorFunc,
		prompt:        opts.SelectorPrompt,
	}
	gc.selector = t
	return t, nil
}

// selectSpeaker implements speakerSelector: candidate filtering, optional
// custom function, model selection with retries, round robin fallback.
func (t *SelectorGroupChat) selectSpeaker(ctx context.Context, limiter *core.TurnLimiter) (core.Agent, error) {
	candidates := t.candidateNames()
	if len(candidates) == 1 {
		return t.byName[candidates[0]], nil
	}

	if t.selectorFunc != nil {
		if name := t.selectorFunc(t.threadCopy(), candidates); name != "" {
			chosen, ok := t.byName[name]
			if !ok {
				return nil, fmt.Errorf("selector func returned unknown participant %s", name)
			}
			return chosen, nil
		}
	}

	prompt := t.renderPrompt(candidates)
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if limiter != nil {
			if err := limiter.Increment(); err != nil {
				return nil, err
			}
		}
		reply, err := t.generateSelection(ctx, prompt)
		if err != nil {
			return nil, err
		}
		if name, ok := matchCandidate(reply, candidates); ok {
			t.logger.Debug("team.selector.chose", "team", t.name, "speaker", name, "attempt", attempt)
			return t.byName[name], nil
		}
		t.logger.Warn("team.selector.invalid", "team", t.name, "reply", reply, "attempt", attempt)
	}

	// The model never produced a usable name; keep the conversation moving.
	candidateSet := make(map[string]bool, len(candidates))
	for _, name := range candidates {
		candidateSet[name] = true
	}
	fallback := t.advanceCursor(candidateSet)
	t.logger.Warn("team.selector.fallback", "team", t.name, "speaker", fallback.Name())
	return fallback, nil
}

// candidateNames returns the selectable participant names, excluding the
// previous speaker unless repetition is allowed or it is the only option.
func (t *SelectorGroupChat) candidateNames() []string {
	t.mu.Lock()
	prev := t.prevSpeaker
	t.mu.Unlock()

	names := make([]string, 0, len(t.participants))
	for _, p := range t.participants {
		if !t.allowRepeated && len(t.participants) > 1 && p.Name() == prev {
			continue
		}
		names = append(names, p.Name())
	}
	return names
}

func (t *SelectorGroupChat) renderPrompt(candidates []string) string {
	var roles strings.Builder
	for _, p := range t.participants {
		fmt.Fprintf(&roles, "%s: %s\n", p.Name(), p.Description())
	}

	var transcript strings.Builder
	for _, ev := range t.threadCopy() {
		text := ev.Text()
		if text == "" {
			continue
		}
		fmt.Fprintf(&transcript, "%s: %s\n", ev.Author, text)
	}

	return fmt.Sprintf(t.prompt, strings.TrimRight(roles.String(), "\n"), strings.Join(candidates, ", "), transcript.String())
}

// generateSelection performs one non-streaming model call returning the final
// response text.
func (t *SelectorGroupChat) generateSelection(ctx context.Context, prompt string) (string, error) {
	req := model.Request{
		Instructions: "You select the next speaker in a group conversation.",
		Contents:     []core.Content{core.NewTextContent("user", prompt)},
	}
	respCh, errCh := t.llm.Generate(ctx, req)

	var reply string
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case err, ok := <-errCh:
			if ok && err != nil {
				return "", fmt.Errorf("selector model: %w", err)
			}
			errCh = nil
			if respCh == nil {
				return reply, nil
			}
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				if errCh == nil {
					return reply, nil
				}
				continue
			}
			if !resp.Partial {
				reply = resp.Content.Text()
			}
		}
	}
}

// matchCandidate resolves a model reply to a candidate name: exact match
// after trimming, otherwise the unique candidate mentioned in the reply.
// Ambiguous replies (zero or several mentions) do not match.
func matchCandidate(reply string, candidates []string) (string, bool) {
	trimmed := strings.Trim(strings.TrimSpace(reply), `"'.`)
	for _, name := range candidates {
		if trimmed == name {
			return name, true
		}
	}
	var mentioned []string
	for _, name := range candidates {
		if strings.Contains(reply, name) {
			mentioned = append(mentioned, name)
		}
	}
	if len(mentioned) == 1 {
		return mentioned[0], true
	}
	return "", false
}
