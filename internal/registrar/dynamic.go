package registrar

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cmdlink/cmdlink/internal/binding"
	"github.com/cmdlink/cmdlink/internal/bus"
	"github.com/cmdlink/cmdlink/internal/capture"
	"github.com/cmdlink/cmdlink/internal/config"
)

// dynamicTool exposes one enabled binding as a callable function. Every
// dynamic tool shares the same single-parameter shape: an optional free-form
// "args" string appended to the bound command.
type dynamicTool struct {
	binding binding.Binding
	desc    string
	argDesc string
	engine  *capture.Engine
}

func (t *dynamicTool) Name() string        { return t.binding.FunctionName }
func (t *dynamicTool) Description() string { return t.desc }

func (t *dynamicTool) Parameters() json.RawMessage {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"args": map[string]any{
				"type":        "string",
				"description": t.argDesc,
			},
		},
	}
	raw, _ := json.Marshal(params)
	return raw
}

func (t *dynamicTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	args, _ := params["args"].(string)
	origin := bus.OriginFrom(ctx)

	res, err := t.engine.Execute(ctx, capture.Request{
		Binding: t.binding,
		Args:    args,
		Origin:  origin,
	})
	if err != nil {
		return "", fmt.Errorf("executing %q: %w", t.binding.CommandName, err)
	}

	switch {
	case res.Mode == config.ForwardOnly && !res.Empty():
		// Output already replayed to the session; nothing for the caller.
		return "", nil
	case res.Empty():
		return "no output captured", nil
	default:
		return res.Text(), nil
	}
}
