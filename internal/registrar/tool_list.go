package registrar

import (
	"encoding/json"
	"sort"

	"github.com/cmdlink/cmdlink/internal/schema"
)

// ToolList is an immutable-by-convention set of callable functions. The
// registrar builds a fresh list on every sync and swaps it in whole, so
// readers never observe a half-updated set.
type ToolList struct {
	tools map[string]schema.Tool
	order []string
}

func NewToolList() *ToolList {
	return &ToolList{tools: make(map[string]schema.Tool)}
}

// Add inserts or replaces a tool. Replacement keeps the original position
// so declaration order stays stable across duplicate names.
func (l *ToolList) Add(t schema.Tool) {
	if _, exists := l.tools[t.Name()]; !exists {
		l.order = append(l.order, t.Name())
	}
	l.tools[t.Name()] = t
}

func (l *ToolList) Get(name string) (schema.Tool, bool) {
	t, ok := l.tools[name]
	return t, ok
}

func (l *ToolList) Len() int { return len(l.tools) }

func (l *ToolList) Names() []string {
	names := make([]string, len(l.order))
	copy(names, l.order)
	return names
}

// Definitions renders every tool as an OpenAI function-calling definition.
func (l *ToolList) Definitions() []map[string]any {
	defs := make([]map[string]any, 0, len(l.order))
	for _, name := range l.order {
		t := l.tools[name]
		defs = append(defs, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name(),
				"description": t.Description(),
				"parameters":  json.RawMessage(t.Parameters()),
			},
		})
	}
	return defs
}

// SortedNames returns the tool names in lexical order, for stable display.
func (l *ToolList) SortedNames() []string {
	names := l.Names()
	sort.Strings(names)
	return names
}
