package core

import (
	"encoding/json"
	"fmt"
)

// partEnvelope is the tagged wire form of a Part. Content marshals each part
// with a "type" discriminator so heterogeneous part slices survive JSON
// round-trips (session stores, state snapshots).
type partEnvelope struct {
	Type     string           `json:"type"`
	Text     string           `json:"text,omitempty"`
	Data     map[string]any   `json:"data,omitempty"`
	File     *FileRef         `json:"file,omitempty"`
	Call     *FunctionCall    `json:"function_call,omitempty"`
	Response *functionRespRaw `json:"function_response,omitempty"`
	Metadata map[string]any   `json:"metadata,omitempty"`
}

// functionRespRaw mirrors FunctionResponse with a raw response payload so the
// arbitrary Response shape decodes without type loss beyond JSON semantics.
type functionRespRaw struct {
	ID       string          `json:"id,omitempty"`
	Name     string          `json:"name"`
	Response json.RawMessage `json:"response,omitempty"`
	Error    string          `json:"error,omitempty"`
}

const (
	partTypeText             = "text"
	partTypeData             = "data"
	partTypeFile             = "file"
	partTypeFunctionCall     = "function_call"
	partTypeFunctionResponse = "function_response"
)

// MarshalJSON encodes the content as {"role":..., "parts":[{tagged part}...]}.
func (c Content) MarshalJSON() ([]byte, error) {
	envs := make([]partEnvelope, 0, len(c.Parts))
	for _, p := range c.Parts {
		env, err := encodePart(p)
		if err != nil {
			return nil, err
		}
		envs = append(envs, env)
	}
	return json.Marshal(struct {
		Role  string         `json:"role,omitempty"`
		Parts []partEnvelope `json:"parts"`
	}{Role: c.Role, Parts: envs})
}

// UnmarshalJSON decodes the tagged part union produced by MarshalJSON.
func (c *Content) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role  string         `json:"role"`
		Parts []partEnvelope `json:"parts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Role = raw.Role
	c.Parts = make([]Part, 0, len(raw.Parts))
	for _, env := range raw.Parts {
		p, err := decodePart(env)
		if err != nil {
			return err
		}
		c.Parts = append(c.Parts, p)
	}
	return nil
}

func encodePart(p Part) (partEnvelope, error) {
	switch v := p.(type) {
	case TextPart:
		return partEnvelope{Type: partTypeText, Text: v.Text, Metadata: v.Metadata}, nil
	case DataPart:
		return partEnvelope{Type: partTypeData, Data: v.Data, Metadata: v.Metadata}, nil
	case FilePart:
		f := v.File
		return partEnvelope{Type: partTypeFile, File: &f, Metadata: v.Metadata}, nil
	case FunctionCallPart:
		fc := v.FunctionCall
		return partEnvelope{Type: partTypeFunctionCall, Call: &fc, Metadata: v.Metadata}, nil
	case FunctionResponsePart:
		raw, err := json.Marshal(v.FunctionResponse.Response)
		if err != nil {
			return partEnvelope{}, fmt.Errorf("encode function response: %w", err)
		}
		return partEnvelope{Type: partTypeFunctionResponse, Response: &functionRespRaw{
			ID:       v.FunctionResponse.ID,
			Name:     v.FunctionResponse.Name,
			Response: raw,
			Error:    v.FunctionResponse.Error,
		}, Metadata: v.Metadata}, nil
	default:
		return partEnvelope{}, fmt.Errorf("unknown part type %T", p)
	}
}

func decodePart(env partEnvelope) (Part, error) {
	switch env.Type {
	case partTypeText:
		return TextPart{Text: env.Text, Metadata: env.Metadata}, nil
	case partTypeData:
		return DataPart{Data: env.Data, Metadata: env.Metadata}, nil
	case partTypeFile:
		var f FileRef
		if env.File != nil {
			f = *env.File
		}
		return FilePart{File: f, Metadata: env.Metadata}, nil
	case partTypeFunctionCall:
		var fc FunctionCall
		if env.Call != nil {
			fc = *env.Call
		}
		return FunctionCallPart{FunctionCall: fc, Metadata: env.Metadata}, nil
	case partTypeFunctionResponse:
		fr := FunctionResponse{}
		if env.Response != nil {
			fr.ID = env.Response.ID
			fr.Name = env.Response.Name
			fr.Error = env.Response.Error
			if len(env.Response.Response) > 0 {
				var v any
				if err := json.Unmarshal(env.Response.Response, &v); err != nil {
					return nil, fmt.Errorf("decode function response: %w", err)
				}
				fr.Response = v
			}
		}
		return FunctionResponsePart{FunctionResponse: fr, Metadata: env.Metadata}, nil
	default:
		return nil, fmt.Errorf("unknown part type %q", env.Type)
	}
}
