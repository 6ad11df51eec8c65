package tools

import (
	"fmt"
	"sort"

	"github.com/tellergate/tellergate/internal/schema"
)

// Validate checks params against def's parameter specs and returns every
// failing field, not just the first. Returns nil when params are valid.
//
// Field order: declared parameters in declaration order, then unknown
// parameters sorted by name, so error output is deterministic.
func (r *Registry) Validate(def *schema.ToolDefinition, params map[string]any) []schema.FieldError {
	var fields []schema.FieldError

	for _, spec := range def.Params {
		val, present := params[spec.Name]
		if !present || val == nil {
			if spec.Required {
				fields = append(fields, schema.FieldError{
					Field:   spec.Name,
					Message: "required parameter is missing",
				})
			}
			continue
		}
		if msg := r.checkValue(def.Name, spec, val); msg != "" {
			fields = append(fields, schema.FieldError{Field: spec.Name, Message: msg})
		}
	}

	var unknown []string
	for name := range params {
		if def.Param(name) == nil {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		fields = append(fields, schema.FieldError{Field: name, Message: "unknown parameter"})
	}

	return fields
}

// checkValue validates one present value against its spec.
// Returns "" when valid, otherwise the failure message.
func (r *Registry) checkValue(tool string, spec schema.ParamSpec, val any) string {
	switch spec.Type {
	case schema.ParamString:
		s, ok := val.(string)
		if !ok {
			return fmt.Sprintf("expected string, got %T", val)
		}
		if len(spec.Enum) > 0 && !containsString(spec.Enum, s) {
			return fmt.Sprintf("must be one of %v", spec.Enum)
		}
		if re := r.pattern(tool, spec.Name); re != nil && !re.MatchString(s) {
			return fmt.Sprintf("must match %s", spec.Pattern)
		}

	case schema.ParamNumber:
		n, ok := toFloat(val)
		if !ok {
			return fmt.Sprintf("expected number, got %T", val)
		}
		if spec.Min != nil && n < *spec.Min {
			return fmt.Sprintf("must be >= %v", *spec.Min)
		}
		if spec.Max != nil && n > *spec.Max {
			return fmt.Sprintf("must be <= %v", *spec.Max)
		}

	case schema.ParamBool:
		if _, ok := val.(bool); !ok {
			return fmt.Sprintf("expected boolean, got %T", val)
		}
	}

	return ""
}

// toFloat accepts the numeric representations JSON decoding and Go callers
// actually produce.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
