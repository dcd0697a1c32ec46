package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthive/agenthive/core"
)

func TestBuildMessages_RolesAndToolResponses(t *testing.T) {
	m := &Model{}
	contents := []core.Content{
		core.NewTextContent("system", "Be brief."),
		core.NewTextContent("user", "What is the weather?"),
		{Role: "assistant", Parts: []core.Part{core.FunctionCallPart{
			FunctionCall: core.FunctionCall{ID: "fc1", Name: "get_weather", Arguments: `{"city":"Berlin"}`},
		}}},
		{Role: "tool", Parts: []core.Part{core.FunctionResponsePart{
			FunctionResponse: core.FunctionResponse{ID: "fc1", Name: "get_weather", Response: "sunny"},
		}}},
	}

	messages := m.buildMessages(contents)

	// System and tool contents do not become standalone messages; the tool
	// result is embedded after its originating call.
	require.Len(t, messages, 2)
	assert.Equal(t, "user", string(messages[0].Role))
	assert.Equal(t, "assistant", string(messages[1].Role))
	require.Len(t, messages[1].Content, 2)
}

func TestExtractSystemMessage(t *testing.T) {
	m := &Model{}
	blocks := m.extractSystemMessage([]core.Content{
		core.NewTextContent("system", "Be brief."),
		core.NewTextContent("user", "hi"),
	})
	require.Len(t, blocks, 1)
	assert.Equal(t, "Be brief.", blocks[0].Text)
}

func TestBuildUserContent_FileAndDataParts(t *testing.T) {
	m := &Model{}
	blocks := m.buildUserContent([]core.Part{
		core.TextPart{Text: "Look at this:"},
		core.FilePart{File: core.FileRef{Name: "plot.png", MIMEType: "image/png", Bytes: []byte{1, 2, 3}}},
		core.FilePart{File: core.FileRef{Name: "data.csv", Path: "/mnt/data/data.csv"}},
		core.DataPart{Data: map[string]any{"rows": float64(3)}},
	})

	require.Len(t, blocks, 4)
	require.NotNil(t, blocks[0].OfText)
	assert.NotNil(t, blocks[1].OfImage)
	require.NotNil(t, blocks[2].OfText)
	assert.Contains(t, blocks[2].OfText.Text, "/mnt/data/data.csv")
	require.NotNil(t, blocks[3].OfText)
	assert.Contains(t, blocks[3].OfText.Text, "rows")
}
