package tools

import (
	"fmt"
	"iter"
	"regexp"
	"sort"

	"github.com/tellergate/tellergate/internal/schema"
)

// Registry is the immutable catalog of tool definitions, built once at
// process start. Lookup by name is O(1); listing preserves catalog order.
type Registry struct {
	ordered  []schema.ToolDefinition
	byName   map[string]*schema.ToolDefinition
	patterns map[string]*regexp.Regexp // "tool/param" → compiled Pattern
}

// NewRegistry builds a Registry from defs, rejecting duplicate names,
// unparseable patterns, and constraints that contradict the declared type.
// Catalog problems are startup errors, never runtime surprises.
func NewRegistry(defs []schema.ToolDefinition) (*Registry, error) {
	r := &Registry{
		ordered:  defs,
		byName:   make(map[string]*schema.ToolDefinition, len(defs)),
		patterns: make(map[string]*regexp.Regexp),
	}

	for i := range defs {
		def := &r.ordered[i]
		if def.Name == "" {
			return nil, fmt.Errorf("registry: tool %d has no name", i)
		}
		if _, dup := r.byName[def.Name]; dup {
			return nil, fmt.Errorf("registry: duplicate tool %q", def.Name)
		}
		for _, p := range def.Params {
			if err := checkParamSpec(p); err != nil {
				return nil, fmt.Errorf("registry: %s.%s: %w", def.Name, p.Name, err)
			}
			if p.Pattern != "" {
				re, err := regexp.Compile(p.Pattern)
				if err != nil {
					return nil, fmt.Errorf("registry: %s.%s: bad pattern: %w", def.Name, p.Name, err)
				}
				r.patterns[def.Name+"/"+p.Name] = re
			}
		}
		r.byName[def.Name] = def
	}

	return r, nil
}

func checkParamSpec(p schema.ParamSpec) error {
	switch p.Type {
	case schema.ParamString, schema.ParamNumber, schema.ParamBool:
	default:
		return fmt.Errorf("unknown type %q", p.Type)
	}
	if len(p.Enum) > 0 && p.Type != schema.ParamString {
		return fmt.Errorf("enum constraint requires string type")
	}
	if (p.Min != nil || p.Max != nil) && p.Type != schema.ParamNumber {
		return fmt.Errorf("min/max constraint requires number type")
	}
	if p.Pattern != "" && p.Type != schema.ParamString {
		return fmt.Errorf("pattern constraint requires string type")
	}
	return nil
}

// Get returns the tool named name, or nil.
func (r *Registry) Get(name string) *schema.ToolDefinition {
	return r.byName[name]
}

// Len returns the number of registered tools.
func (r *Registry) Len() int { return len(r.ordered) }

// List returns a restartable sequence of tool definitions in catalog order,
// optionally filtered by category (empty = all). Read-only.
func (r *Registry) List(category string) iter.Seq[schema.ToolDefinition] {
	return func(yield func(schema.ToolDefinition) bool) {
		for _, def := range r.ordered {
			if category != "" && def.Category != category {
				continue
			}
			if !yield(def) {
				return
			}
		}
	}
}

// CategoryCount is one entry of the Categories listing.
type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Categories returns the distinct category names with tool counts,
// sorted by name.
func (r *Registry) Categories() []CategoryCount {
	counts := make(map[string]int)
	for _, def := range r.ordered {
		counts[def.Category]++
	}
	out := make([]CategoryCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, CategoryCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// pattern returns the compiled Pattern regexp for tool/param, or nil.
func (r *Registry) pattern(tool, param string) *regexp.Regexp {
	return r.patterns[tool+"/"+param]
}
