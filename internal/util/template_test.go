package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate_PlainTextFastPath(t *testing.T) {
	out, err := RenderTemplate("no markers here", nil)
	require.NoError(t, err)
	assert.Equal(t, "no markers here", out)
}

func TestRenderTemplate_StateLookup(t *testing.T) {
	out, err := RenderTemplate("Answer in {{.language}}.", map[string]any{"language": "French"})
	require.NoError(t, err)
	assert.Equal(t, "Answer in French.", out)
}

func TestRenderTemplate_NoHTMLEscaping(t *testing.T) {
	// Instructions frequently contain quotes and angle brackets; they must
	// reach the model untouched.
	out, err := RenderTemplate(`Reply "{{.word}}" inside <result> tags.`, map[string]any{"word": `"yes" & <no>`})
	require.NoError(t, err)
	assert.Equal(t, `Reply ""yes" & <no>" inside <result> tags.`, out)
}

func TestRenderTemplate_Helpers(t *testing.T) {
	state := map[string]any{"topic": "oceans", "items": []any{"a", "b"}}

	out, err := RenderTemplate("{{.topic | upper}}: {{join \", \" .items}} ({{.tone | default \"neutral\"}})", state)
	require.NoError(t, err)
	assert.Equal(t, "OCEANS: a, b (neutral)", out)
}

func TestRenderTemplate_ParseError(t *testing.T) {
	_, err := RenderTemplate("{{.unclosed", nil)
	assert.Error(t, err)
}
