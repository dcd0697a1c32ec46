package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthive/agenthive/core"
)

func TestInstruction_Static(t *testing.T) {
	instr := NewInstructionFromText("You are a poet.")
	assert.True(t, instr.IsStatic())

	rc, _ := newTestRunContext(t, "hi")
	text, err := instr.Resolve(rc)
	require.NoError(t, err)
	assert.Equal(t, "You are a poet.", text)
}

func TestInstruction_TemplateRendersSessionState(t *testing.T) {
	instr := NewInstructionFromText("Answer in {{.language}}.")

	rc, _ := newTestRunContext(t, "hi")
	rc.Session.SetState("language", "German")

	text, err := instr.Resolve(rc)
	require.NoError(t, err)
	assert.Equal(t, "Answer in German.", text)
}

func TestInstruction_Provider(t *testing.T) {
	instr := NewInstructionFromFunc(func(rc *core.RunContext) (string, error) {
		return "Session " + rc.SessionID, nil
	})
	assert.False(t, instr.IsStatic())

	rc, _ := newTestRunContext(t, "hi")
	text, err := instr.Resolve(rc)
	require.NoError(t, err)
	assert.Equal(t, "Session s1", text)
}
