package codeexec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCodeBlocks(t *testing.T) {
	input := "Here is a plan.\n```python\nprint('hi')\n```\nAnd a script:\n```sh\nls\n```\n"
	blocks := ExtractCodeBlocks(input, DefaultDelimiter)
	require.Len(t, blocks, 2)
	assert.Equal(t, "python", blocks[0].Language)
	assert.Equal(t, "print('hi')\n", blocks[0].Code)
	assert.Equal(t, "sh", blocks[1].Language)
}

func TestExtractCodeBlocks_NoBlocks(t *testing.T) {
	blocks := ExtractCodeBlocks("just prose, no fences", DefaultDelimiter)
	assert.Empty(t, blocks)
}

func TestExtractCodeBlocks_SkipsEmpty(t *testing.T) {
	blocks := ExtractCodeBlocks("```python\n   \n```", DefaultDelimiter)
	assert.Empty(t, blocks)
}

func TestExecutionResult_String(t *testing.T) {
	r := ExecutionResult{Output: "4\n", ExitCode: 0}
	assert.Equal(t, "4\n", r.String())

	r = ExecutionResult{Stderr: "NameError: name 'x' is not defined", ExitCode: 1}
	s := r.String()
	assert.Contains(t, s, "NameError")
	assert.Contains(t, s, "exit code: 1")

	assert.Equal(t, "no output", ExecutionResult{}.String())
}
