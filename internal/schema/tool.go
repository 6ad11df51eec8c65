// Package schema contains the core types shared across tellergate packages:
// tool definitions, parameter specs, result envelopes, and the error taxonomy.
// Concrete behaviour lives in the owning packages; this package is pure data.
package schema

import "fmt"

// ParamType is the wire type of a tool parameter.
type ParamType string

const (
	ParamString ParamType = "string"
	ParamNumber ParamType = "number"
	ParamBool   ParamType = "boolean"
)

// ParamSpec describes one parameter of a tool.
//
// Specs are declared in order; that order is the order missing fields are
// reported in, so conversational prompts stay stable across turns.
type ParamSpec struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Required    bool      `json:"required"`
	Description string    `json:"description,omitempty"`

	// FromAuth marks parameters filled from the caller's auth context
	// (e.g. authToken). They are validated like any other parameter but are
	// never asked of the user.
	FromAuth bool `json:"fromAuth,omitempty"`

	// Constraints. Enum is a closed value set; Min/Max bound numbers;
	// Pattern is a regular expression strings must match.
	Enum    []string `json:"enum,omitempty"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Pattern string   `json:"pattern,omitempty"`
}

// ToolDefinition is one invocable banking operation. Immutable after startup.
type ToolDefinition struct {
	Name        string      `json:"name"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	Params      []ParamSpec `json:"parameters"`

	// Idempotent operations (reads) may be retried on transient downstream
	// failures. Non-idempotent operations (transfers, blocks) never are.
	Idempotent bool `json:"idempotent"`
}

// Param returns the spec for name, or nil.
func (t *ToolDefinition) Param(name string) *ParamSpec {
	for i := range t.Params {
		if t.Params[i].Name == name {
			return &t.Params[i]
		}
	}
	return nil
}

// UserParams returns the required parameters a user can be asked for, in
// declaration order. FromAuth parameters are excluded.
func (t *ToolDefinition) UserParams() []ParamSpec {
	var out []ParamSpec
	for _, p := range t.Params {
		if p.Required && !p.FromAuth {
			out = append(out, p)
		}
	}
	return out
}

// MinOf / MaxOf build the optional numeric bound pointers used in catalogs.
func MinOf(v float64) *float64 { return &v }
func MaxOf(v float64) *float64 { return &v }

func (t *ToolDefinition) String() string {
	return fmt.Sprintf("%s (%s)", t.Name, t.Category)
}
