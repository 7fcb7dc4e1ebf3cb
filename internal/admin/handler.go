// Package admin implements the chat-facing management commands for the
// binding table: add, ls, rm, enable, disable, exec, refresh and help.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cmdlink/cmdlink/internal/binding"
	"github.com/cmdlink/cmdlink/internal/capture"
	"github.com/cmdlink/cmdlink/internal/config"
	"github.com/cmdlink/cmdlink/internal/dispatch"
	"github.com/cmdlink/cmdlink/internal/registrar"
)

const helpText = `link add <command> <function> [description]  declare a command binding
link ls [--enabled|--disabled]               list bindings
link rm <command>                            remove a binding
link enable <command>                        enable a binding
link disable <command>                       disable a binding
link exec <command> [args]                   run a binding and show its output
link refresh                                 republish the function set
link help                                    show this help

Multi-segment commands use "--" in place of spaces, e.g. "rmd--ls".`

// Handler wires the management verbs into the dispatcher.
type Handler struct {
	cfg    *config.Provider
	store  *binding.Store
	reg    *registrar.Registrar
	engine *capture.Engine
}

func NewHandler(cfg *config.Provider, store *binding.Store, reg *registrar.Registrar, engine *capture.Engine) *Handler {
	return &Handler{cfg: cfg, store: store, reg: reg, engine: engine}
}

// Register installs every management verb on the processor.
func (h *Handler) Register(p *dispatch.Processor) {
	p.Handle("link add", h.guard(h.add))
	p.Handle("link ls", h.guard(h.list))
	p.Handle("link rm", h.guard(h.remove))
	p.Handle("link enable", h.guard(h.setEnabled(true)))
	p.Handle("link disable", h.guard(h.setEnabled(false)))
	p.Handle("link exec", h.guard(h.exec))
	p.Handle("link refresh", h.guard(h.refresh))
	p.Handle("link help", func(ctx context.Context, call dispatch.Call) {
		call.Emit(helpText)
	})
	p.Handle("link", func(ctx context.Context, call dispatch.Call) {
		call.Emit(helpText)
	})
}

type verb func(ctx context.Context, call dispatch.Call)

// guard rejects every management verb while the plugin is disabled.
func (h *Handler) guard(fn verb) dispatch.HandlerFunc {
	return func(ctx context.Context, call dispatch.Call) {
		if !h.cfg.Snapshot().Basic.EnablePlugin {
			call.Emit("cmdlink is disabled; enable it in the configuration first")
			return
		}
		fn(ctx, call)
	}
}

func (h *Handler) add(ctx context.Context, call dispatch.Call) {
	parts := strings.SplitN(strings.TrimSpace(call.Args), " ", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		call.Emit("usage: link add <command> <function> [description]")
		return
	}
	b := binding.Binding{
		CommandName:  parts[0],
		FunctionName: parts[1],
		Enabled:      true,
	}
	if len(parts) == 3 {
		b.Description = strings.TrimSpace(parts[2])
	}
	if err := h.store.Add(b); err != nil {
		call.Emit(renderError(err))
		return
	}
	h.maybeRefresh()
	call.Emit(fmt.Sprintf("bound %q -> %s", binding.NormalizeName(parts[0]), parts[1]))
}

func (h *Handler) list(ctx context.Context, call dispatch.Call) {
	filter := binding.FilterAll
	switch strings.TrimSpace(call.Args) {
	case "--enabled":
		filter = binding.FilterEnabled
	case "--disabled":
		filter = binding.FilterDisabled
	case "", "--all":
	default:
		call.Emit("usage: link ls [--enabled|--disabled]")
		return
	}

	entries := h.store.List(filter)
	if len(entries) == 0 {
		call.Emit("no bindings")
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d binding(s):\n", len(entries))
	for _, e := range entries {
		state := "enabled"
		if !e.Enabled {
			state = "disabled"
		}
		fmt.Fprintf(&sb, "  %s -> %s [%s]", e.CommandName, e.FunctionName, state)
		if e.Description != "" {
			fmt.Fprintf(&sb, " — %s", e.Description)
		}
		sb.WriteByte('\n')
	}
	call.Emit(strings.TrimRight(sb.String(), "\n"))
}

func (h *Handler) remove(ctx context.Context, call dispatch.Call) {
	name := strings.TrimSpace(call.Args)
	if name == "" {
		call.Emit("usage: link rm <command>")
		return
	}
	if err := h.store.Remove(name); err != nil {
		call.Emit(renderError(err))
		return
	}
	h.maybeRefresh()
	call.Emit(fmt.Sprintf("removed %q", binding.NormalizeName(name)))
}

func (h *Handler) setEnabled(enabled bool) verb {
	word, usage := "enabled", "usage: link enable <command>"
	if !enabled {
		word, usage = "disabled", "usage: link disable <command>"
	}
	return func(ctx context.Context, call dispatch.Call) {
		name := strings.TrimSpace(call.Args)
		if name == "" {
			call.Emit(usage)
			return
		}
		changed, err := h.store.SetEnabled(name, enabled)
		if err != nil {
			call.Emit(renderError(err))
			return
		}
		if !changed {
			call.Emit(fmt.Sprintf("%q is already %s", binding.NormalizeName(name), word))
			return
		}
		h.maybeRefresh()
		call.Emit(fmt.Sprintf("%s %q", word, binding.NormalizeName(name)))
	}
}

func (h *Handler) exec(ctx context.Context, call dispatch.Call) {
	parts := strings.SplitN(strings.TrimSpace(call.Args), " ", 2)
	if parts[0] == "" {
		call.Emit("usage: link exec <command> [args]")
		return
	}
	b, err := h.store.Get(parts[0])
	if err != nil {
		call.Emit(renderError(err))
		return
	}
	args := ""
	if len(parts) == 2 {
		args = parts[1]
	}

	res, err := h.engine.Execute(ctx, capture.Request{Binding: b, Args: args, Origin: call.Origin})
	if err != nil {
		call.Emit(renderError(err))
		return
	}
	switch {
	case res.Mode == config.ForwardOnly && !res.Empty():
		// Output was already replayed to this session.
	case res.Empty():
		call.Emit("no output captured")
	default:
		call.Emit(res.Text())
	}
}

func (h *Handler) refresh(ctx context.Context, call dispatch.Call) {
	n := h.reg.Sync()
	call.Emit(fmt.Sprintf("published %d function(s)", n))
}

// maybeRefresh republishes the function set after a successful mutation when
// auto refresh is on.
func (h *Handler) maybeRefresh() {
	if !h.cfg.Snapshot().Basic.AutoRefreshOnChange {
		return
	}
	n := h.reg.Sync()
	slog.Debug("admin: auto refreshed", "published", n)
}

func renderError(err error) string {
	switch {
	case errors.Is(err, binding.ErrNotFound):
		return fmt.Sprintf("not found: %v", err)
	case errors.Is(err, binding.ErrDuplicateCommand),
		errors.Is(err, binding.ErrDuplicateFunction):
		return fmt.Sprintf("conflict: %v", err)
	default:
		return fmt.Sprintf("error: %v", err)
	}
}
