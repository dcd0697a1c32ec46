// Package codeexec defines the code execution contract used by agents: an
// Executor runs one or more code blocks and reports combined output, exit
// status and any produced files. Implementations range from a local
// subprocess runner (codeexec/local) to a client for a remote hosted session
// pool (codeexec/sessionpool).
package codeexec

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Executor runs code blocks and returns their result.
type Executor interface {
	// Execute runs the blocks in input order and returns the combined result.
	// A non-nil error indicates the executor itself failed; code that ran and
	// exited non-zero is reported through ExecutionResult.ExitCode instead.
	Execute(ctx context.Context, input ExecutionInput) (ExecutionResult, error)
}

// Restartable is implemented by executors with a persistent interpreter
// context (e.g. a remote session). Restart discards all in-memory variables
// accumulated by prior Execute calls.
type Restartable interface {
	Restart(ctx context.Context) error
}

// ExecutionInput carries the code blocks for one execution plus a caller
// supplied id used for workspace naming and correlation.
type ExecutionInput struct {
	Blocks      []CodeBlock
	ExecutionID string
}

// File represents a file produced during code execution.
type File struct {
	Name     string
	Content  []byte
	MIMEType string
}

// ExecutionResult is the outcome of running the blocks of one ExecutionInput.
// Output carries stdout; Stderr carries the runtime's diagnostics, including
// the exception name on failed runs. String merges both, so the exception
// name reaches the conversation verbatim. ExitCode is zero on success.
type ExecutionResult struct {
	Output   string
	Stderr   string
	ExitCode int
	Files    []File
}

// String formats the result into a human-readable string suitable for
// feeding back into a conversation.
func (r ExecutionResult) String() string {
	var sb strings.Builder
	if r.Output != "" {
		sb.WriteString(r.Output)
	}
	if r.Stderr != "" {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(r.Stderr)
	}
	if r.ExitCode != 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "exit code: %d", r.ExitCode)
	}
	if len(r.Files) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		names := make([]string, 0, len(r.Files))
		for _, f := range r.Files {
			names = append(names, f.Name)
		}
		sb.WriteString("saved files: " + strings.Join(names, ", "))
	}
	if sb.Len() == 0 {
		return "no output"
	}
	return sb.String()
}

// CodeBlock represents a single block of code to be executed.
type CodeBlock struct {
	Code     string
	Language string
}

// Delimiter defines the start and end markers for fenced code blocks.
type Delimiter struct {
	Start string
	End   string
}

// DefaultDelimiter is the markdown triple-backtick fence.
var DefaultDelimiter = Delimiter{Start: "```", End: "```"}

// ExtractCodeBlocks extracts fenced code blocks from markdown-ish text.
//
// The first line after the opening fence is treated as the language tag.
//
//	input: "```python\nprint('hi')\n```"
//	output: []CodeBlock{{Code: "print('hi')\n", Language: "python"}}
func ExtractCodeBlocks(input string, delimiter Delimiter) []CodeBlock {
	startDelim := regexp.QuoteMeta(delimiter.Start)
	endDelim := regexp.QuoteMeta(delimiter.End)

	pattern := regexp.MustCompile(`(?s)` + startDelim + `([^\n]*)\n(.*?)` + endDelim)
	matches := pattern.FindAllStringSubmatch(input, -1)

	var blocks []CodeBlock
	for _, match := range matches {
		lang := strings.TrimSpace(match[1])
		code := match[2]
		if strings.TrimSpace(code) == "" {
			continue
		}
		blocks = append(blocks, CodeBlock{Code: code, Language: lang})
	}
	return blocks
}
