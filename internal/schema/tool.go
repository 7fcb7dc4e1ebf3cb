// Package schema contains the core contracts shared across cmdlink packages.
// Concrete implementations live in their respective packages; this package is
// the single canonical source of truth for every interface definition.
package schema

import (
	"context"
	"encoding/json"
)

// Tool is the interface every LLM-callable function must satisfy.
// Dynamically declared command bindings are exposed through this interface.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON Schema (as raw JSON bytes) for this tool's parameters.
	Parameters() json.RawMessage
	Execute(ctx context.Context, params map[string]any) (string, error)
}
