// Package registrar keeps the set of declared callable functions in step
// with the binding store. A sync rebuilds the whole set from the current
// enabled bindings and publishes it atomically.
package registrar

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/cmdlink/cmdlink/internal/binding"
	"github.com/cmdlink/cmdlink/internal/capture"
	"github.com/cmdlink/cmdlink/internal/config"
	"github.com/cmdlink/cmdlink/internal/schema"
)

// Registrar owns the published function set. Reads go through Functions and
// always see a complete, consistent snapshot.
type Registrar struct {
	cfg    *config.Provider
	engine *capture.Engine
	funcs  atomic.Pointer[ToolList]
}

func NewRegistrar(cfg *config.Provider, engine *capture.Engine) *Registrar {
	r := &Registrar{cfg: cfg, engine: engine}
	r.funcs.Store(NewToolList())
	return r
}

// Functions returns the currently published function set.
func (r *Registrar) Functions() *ToolList {
	return r.funcs.Load()
}

// Lookup finds a published function by name.
func (r *Registrar) Lookup(name string) (schema.Tool, bool) {
	return r.funcs.Load().Get(name)
}

// Sync rebuilds the function set from the enabled bindings in config and
// swaps it in. With the plugin disabled the published set becomes empty.
// Duplicate function names resolve to the last declaration. Returns the
// number of published functions.
func (r *Registrar) Sync() int {
	snap := r.cfg.Snapshot()
	next := NewToolList()

	if snap.Basic.EnablePlugin {
		for _, b := range snap.Bindings.Entries {
			if !b.Enabled {
				continue
			}
			next.Add(&dynamicTool{
				binding: b,
				desc:    composeDescription(b, snap.Tool),
				argDesc: composeArgDescription(b, snap.Tool),
				engine:  r.engine,
			})
		}
	}

	prev := r.funcs.Swap(next)
	slog.Info("registrar: synced functions", "published", next.Len(), "previous", prev.Len())
	return next.Len()
}

func composeDescription(b binding.Binding, tool config.ToolConfig) string {
	desc := fmt.Sprintf("Run the %q command.", b.CommandText())
	if b.Description != "" {
		desc += " " + b.Description
	}
	if tool.Description != "" {
		desc += " " + tool.Description
	}
	return desc
}

func composeArgDescription(b binding.Binding, tool config.ToolConfig) string {
	if b.ArgDescription != "" {
		return b.ArgDescription
	}
	return tool.ArgDescription
}
