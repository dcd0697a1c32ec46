// Package tool implements function calling for model agents: structured
// capabilities a model can invoke by name, with schema-validated arguments
// and uniform error reporting.
package tool

import (
	"fmt"

	"github.com/agenthive/agenthive/core"
	"github.com/agenthive/agenthive/internal/util"
	"github.com/agenthive/agenthive/model"
)

// Tool is a capability a model agent can expose to its model. The ToolContext
// passed to Call gives implementations access to session state, flow control
// (handoff, stop requests) and artifact storage, so a tool can steer a group
// chat or persist files, not just compute a value.
type Tool interface {
	// Name is the unique identifier used in function call declarations and
	// routing. snake_case recommended.
	Name() string

	// Description tells the model when and how to use the tool.
	Description() string

	// Parameters is a minimal JSON schema for the accepted arguments (the
	// subset util.ValidateParameters enforces: type, properties, required,
	// enum).
	Parameters() map[string]any

	// Call executes the tool. Arguments arrive parsed from the model's JSON
	// and validated against Parameters.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// Definitions converts registered tools into the normalized declarations a
// model.Request carries.
func Definitions(tools []Tool) []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError is the uniform error surface for tool failures. The Code lets
// the model agent report validation mistakes differently from execution
// failures when feeding the error back to the model.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
