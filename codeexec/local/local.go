// Package local provides an Executor that runs code blocks on the local host
// by writing them to files and invoking the matching interpreter (python3 or
// bash). It is intended for development and tests; production deployments
// should prefer the remote session pool client (codeexec/sessionpool).
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/agenthive/agenthive/codeexec"
)

// Options configure the local executor.
type Options struct {
	// WorkDir pins execution to a fixed directory. When empty a fresh temp
	// directory is created per execution.
	WorkDir string
	// Timeout bounds each code block run.
	Timeout time.Duration
	// KeepTempFiles disables removal of per-execution temp directories.
	KeepTempFiles bool
}

// Executor runs code blocks on the local host (unsafe for untrusted code).
type Executor struct {
	workDir       string
	timeout       time.Duration
	keepTempFiles bool
}

// New creates a local Executor.
func New(optFns ...func(o *Options)) *Executor {
	opts := Options{Timeout: 30 * time.Second}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Executor{workDir: opts.WorkDir, timeout: opts.Timeout, keepTempFiles: opts.KeepTempFiles}
}

// Execute runs each block in sequence and returns the combined result. The
// first block that exits non-zero stops the run; its exit code and stderr are
// reported in the result.
func (e *Executor) Execute(ctx context.Context, input codeexec.ExecutionInput) (codeexec.ExecutionResult, error) {
	workDir, cleanup, err := e.resolveWorkDir(input.ExecutionID)
	if err != nil {
		return codeexec.ExecutionResult{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	var stdout, stderr strings.Builder
	for i, block := range input.Blocks {
		filePath, err := writeCodeFile(workDir, block, i)
		if err != nil {
			return codeexec.ExecutionResult{}, err
		}
		args := interpreterArgs(block.Language, filePath)
		if args == nil {
			return codeexec.ExecutionResult{}, fmt.Errorf("unsupported language: %s", block.Language)
		}

		out, errOut, exitCode, err := e.runCommand(ctx, workDir, args)
		stdout.WriteString(out)
		stderr.WriteString(errOut)
		if err != nil {
			return codeexec.ExecutionResult{}, err
		}
		if exitCode != 0 {
			return codeexec.ExecutionResult{Output: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode}, nil
		}
	}

	return codeexec.ExecutionResult{Output: stdout.String(), Stderr: stderr.String()}, nil
}

func (e *Executor) resolveWorkDir(executionID string) (string, func(), error) {
	if e.workDir != "" {
		dir := e.workDir
		if !filepath.IsAbs(dir) {
			if abs, err := filepath.Abs(dir); err == nil {
				dir = abs
			}
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", nil, fmt.Errorf("create work directory: %w", err)
		}
		return dir, nil, nil
	}

	dir, err := os.MkdirTemp("", "codeexec_"+executionID)
	if err != nil {
		return "", nil, fmt.Errorf("create temp directory: %w", err)
	}
	if e.keepTempFiles {
		return dir, nil, nil
	}
	return dir, func() { os.RemoveAll(dir) }, nil
}

func writeCodeFile(workDir string, block codeexec.CodeBlock, index int) (string, error) {
	var ext string
	var mode os.FileMode = 0o644
	switch strings.ToLower(block.Language) {
	case "python", "py", "python3":
		ext = ".py"
	case "bash", "sh", "shell":
		ext = ".sh"
		mode = 0o755
	default:
		return "", fmt.Errorf("unsupported language: %s", block.Language)
	}
	filePath := filepath.Join(workDir, fmt.Sprintf("code_%d%s", index, ext))
	if err := os.WriteFile(filePath, []byte(strings.TrimSpace(block.Code)+"\n"), mode); err != nil {
		return "", fmt.Errorf("write %s file: %w", block.Language, err)
	}
	return filePath, nil
}

func interpreterArgs(language, filePath string) []string {
	switch strings.ToLower(language) {
	case "python", "py", "python3":
		return []string{"python3", filePath}
	case "bash", "sh", "shell":
		return []string{"bash", filePath}
	default:
		return nil
	}
}

// runCommand executes args in workDir. A non-zero interpreter exit is not an
// error here; it is surfaced through the exit code so callers can relay the
// interpreter's own diagnostics (exception names on stderr).
func (e *Executor) runCommand(ctx context.Context, workDir string, args []string) (string, string, int, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(timeoutCtx, args[0], args[1:]...)
	cmd.Dir = workDir
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.String(), stderr.String(), exitErr.ExitCode(), nil
		}
		if timeoutCtx.Err() != nil {
			return stdout.String(), stderr.String(), 0, fmt.Errorf("execution timed out after %s: %w", e.timeout, timeoutCtx.Err())
		}
		return stdout.String(), stderr.String(), 0, fmt.Errorf("run command %s: %w", strings.Join(args, " "), err)
	}
	return stdout.String(), stderr.String(), 0, nil
}
