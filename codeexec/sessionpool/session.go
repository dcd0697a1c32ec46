package sessionpool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/agenthive/agenthive/codeexec"
	"github.com/agenthive/agenthive/core"
)

// executeRequest is the wire form of a code execution call.
type executeRequest struct {
	Properties executeProperties `json:"properties"`
}

type executeProperties struct {
	CodeInputType string `json:"codeInputType"` // "inline"
	ExecutionType string `json:"executionType"` // "synchronous"
	Code          string `json:"code"`
}

// executeResponse is the wire form of an execution result. Status is
// "Succeeded" or "Failed"; on failure Stderr carries the runtime's own
// diagnostics including the exception name.
type executeResponse struct {
	Properties struct {
		Status   string `json:"status"`
		Stdout   string `json:"stdout"`
		Stderr   string `json:"stderr"`
		Result   any    `json:"result"`
		ExitCode *int   `json:"exitCode"`
	} `json:"properties"`
}

// SessionOptions configure a Session handle.
type SessionOptions struct {
	// Identifier pins the handle to an existing remote session. When empty a
	// fresh opaque identifier is generated.
	Identifier string
}

// Session is a handle to one remote interpreter context. In-memory variables
// persist across Execute calls on the same handle until Restart is called.
// It implements codeexec.Executor and codeexec.Restartable.
type Session struct {
	client *Client

	mu         sync.RWMutex
	identifier string
}

// NewSession binds a session handle to the pool client.
func NewSession(client *Client, optFns ...func(o *SessionOptions)) *Session {
	opts := SessionOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Identifier == "" {
		opts.Identifier = core.NewID()
	}
	return &Session{client: client, identifier: opts.Identifier}
}

// Identifier returns the current opaque session identifier.
func (s *Session) Identifier() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identifier
}

// Restart abandons the current remote session by rotating the identifier.
// All in-memory variables accumulated by prior executions become unreachable;
// the next Execute call lands in a fresh interpreter context.
func (s *Session) Restart(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identifier = core.NewID()
	return nil
}

// Execute implements codeexec.Executor: each block runs in order inside the
// remote session. Execution stops at the first block reporting failure; its
// exit code and the service-reported diagnostics (exception name included)
// are returned in the result.
func (s *Session) Execute(ctx context.Context, input codeexec.ExecutionInput) (codeexec.ExecutionResult, error) {
	var stdout, stderr strings.Builder
	for _, block := range input.Blocks {
		if lang := strings.ToLower(block.Language); lang != "" && lang != "python" && lang != "py" && lang != "python3" {
			return codeexec.ExecutionResult{}, fmt.Errorf("session pool executes python only, got %q", block.Language)
		}
		res, err := s.ExecuteCode(ctx, block.Code)
		if err != nil {
			return codeexec.ExecutionResult{}, err
		}
		stdout.WriteString(res.Output)
		stderr.WriteString(res.Stderr)
		if res.ExitCode != 0 {
			return codeexec.ExecutionResult{Output: stdout.String(), Stderr: stderr.String(), ExitCode: res.ExitCode}, nil
		}
	}
	return codeexec.ExecutionResult{Output: stdout.String(), Stderr: stderr.String()}, nil
}

// ExecuteCode runs one snippet synchronously in the remote session and maps
// the service response onto an ExecutionResult. The expression result, when
// present and not already printed, is appended to Output the way an
// interactive interpreter would echo it.
func (s *Session) ExecuteCode(ctx context.Context, code string) (codeexec.ExecutionResult, error) {
	reqBody := executeRequest{Properties: executeProperties{
		CodeInputType: "inline",
		ExecutionType: "synchronous",
		Code:          code,
	}}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return codeexec.ExecutionResult{}, fmt.Errorf("marshal execute request: %w", err)
	}

	rawURL := s.client.buildURL(s.Identifier(), "code", "execute")
	respBody, err := s.client.do(ctx, http.MethodPost, rawURL, "application/json", func() (io.Reader, error) {
		return strings.NewReader(string(payload)), nil
	})
	if err != nil {
		return codeexec.ExecutionResult{}, err
	}

	var resp executeResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return codeexec.ExecutionResult{}, fmt.Errorf("decode execute response: %w", err)
	}

	result := codeexec.ExecutionResult{
		Output: resp.Properties.Stdout,
		Stderr: resp.Properties.Stderr,
	}
	if r := resp.Properties.Result; r != nil {
		echo := fmt.Sprintf("%v", r)
		if echo != "" && !strings.Contains(result.Output, echo) {
			if result.Output != "" && !strings.HasSuffix(result.Output, "\n") {
				result.Output += "\n"
			}
			result.Output += echo
		}
	}
	if resp.Properties.Status == "Failed" {
		result.ExitCode = 1
		if resp.Properties.ExitCode != nil {
			result.ExitCode = *resp.Properties.ExitCode
		}
	}
	return result, nil
}
