package admin

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cmdlink/cmdlink/internal/binding"
	"github.com/cmdlink/cmdlink/internal/bus"
	"github.com/cmdlink/cmdlink/internal/capture"
	"github.com/cmdlink/cmdlink/internal/config"
	"github.com/cmdlink/cmdlink/internal/dispatch"
	"github.com/cmdlink/cmdlink/internal/registrar"
)

func newTestHandler(t *testing.T) (*Handler, *binding.Store, *config.Provider) {
	t.Helper()
	provider, err := config.NewProvider(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	store := binding.NewStore(provider)
	router := dispatch.NewRouter()
	b := bus.NewMessageBus(10)
	engine := capture.NewEngine(provider, dispatch.NewProcessor(provider, b, router), router, b)
	reg := registrar.NewRegistrar(provider, engine)
	return NewHandler(provider, store, reg, engine), store, provider
}

// run invokes one verb and collects everything it emits.
func run(t *testing.T, fn func(ctx context.Context, call dispatch.Call), args string) []string {
	t.Helper()
	var out []string
	fn(context.Background(), dispatch.Call{
		Args:   args,
		Origin: bus.Origin{Channel: "cli", ChatID: "direct"},
		Emit:   func(text string) { out = append(out, text) },
	})
	return out
}

func TestAdd(t *testing.T) {
	h, store, _ := newTestHandler(t)

	out := run(t, h.add, "rmd--ls rmd_ls List reminders")
	if len(out) != 1 || !strings.Contains(out[0], "rmd_ls") {
		t.Fatalf("out = %v", out)
	}

	b, err := store.Get("rmd--ls")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if b.Description != "List reminders" {
		t.Errorf("Description = %q", b.Description)
	}
	if !b.Enabled {
		t.Error("new binding should be enabled")
	}
}

func TestAdd_Usage(t *testing.T) {
	h, _, _ := newTestHandler(t)

	out := run(t, h.add, "only-command")
	if len(out) != 1 || !strings.HasPrefix(out[0], "usage:") {
		t.Errorf("out = %v", out)
	}
}

func TestAdd_DuplicateReportsConflict(t *testing.T) {
	h, _, _ := newTestHandler(t)

	run(t, h.add, "rmd fn")
	out := run(t, h.add, "rmd other")
	if len(out) != 1 || !strings.HasPrefix(out[0], "conflict:") {
		t.Errorf("out = %v", out)
	}
}

func TestList(t *testing.T) {
	h, _, _ := newTestHandler(t)

	if out := run(t, h.list, ""); out[0] != "no bindings" {
		t.Errorf("empty table: out = %v", out)
	}

	run(t, h.add, "a fa")
	run(t, h.add, "b fb")
	run(t, h.setEnabled(false), "b")

	out := run(t, h.list, "--enabled")
	if len(out) != 1 || !strings.Contains(out[0], "a -> fa") || strings.Contains(out[0], "b -> fb") {
		t.Errorf("enabled filter: out = %v", out)
	}
	out = run(t, h.list, "--disabled")
	if !strings.Contains(out[0], "b -> fb") {
		t.Errorf("disabled filter: out = %v", out)
	}
}

func TestRemove(t *testing.T) {
	h, store, _ := newTestHandler(t)

	run(t, h.add, "rmd fn")
	out := run(t, h.remove, "rmd")
	if !strings.Contains(out[0], "removed") {
		t.Errorf("out = %v", out)
	}
	if _, err := store.Get("rmd"); err == nil {
		t.Error("binding still present after rm")
	}

	out = run(t, h.remove, "rmd")
	if !strings.HasPrefix(out[0], "not found:") {
		t.Errorf("out = %v", out)
	}
}

func TestEnableDisable(t *testing.T) {
	h, store, _ := newTestHandler(t)

	run(t, h.add, "rmd fn")
	out := run(t, h.setEnabled(false), "rmd")
	if !strings.Contains(out[0], "disabled") {
		t.Errorf("out = %v", out)
	}
	b, _ := store.Get("rmd")
	if b.Enabled {
		t.Error("binding should be disabled")
	}

	out = run(t, h.setEnabled(false), "rmd")
	if !strings.Contains(out[0], "already disabled") {
		t.Errorf("out = %v", out)
	}
}

func TestGuard_PluginDisabled(t *testing.T) {
	h, store, provider := newTestHandler(t)

	if err := provider.Update(func(c *config.Config) error {
		c.Basic.EnablePlugin = false
		return nil
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	out := run(t, func(ctx context.Context, call dispatch.Call) {
		h.guard(h.add)(ctx, call)
	}, "rmd fn")
	if len(out) != 1 || !strings.Contains(out[0], "disabled") {
		t.Errorf("out = %v", out)
	}
	if got := len(store.List(binding.FilterAll)); got != 0 {
		t.Errorf("guarded verb still mutated the table: %d entries", got)
	}
}

func TestAutoRefreshAfterMutation(t *testing.T) {
	h, _, _ := newTestHandler(t)

	run(t, h.add, "rmd fn")
	if got := h.reg.Functions().Len(); got != 1 {
		t.Errorf("published = %d, want 1 after auto refresh", got)
	}

	run(t, h.setEnabled(false), "rmd")
	if got := h.reg.Functions().Len(); got != 0 {
		t.Errorf("published = %d, want 0 after disable", got)
	}
}

func TestRefreshVerb(t *testing.T) {
	h, _, _ := newTestHandler(t)

	run(t, h.add, "rmd fn")
	out := run(t, h.refresh, "")
	if len(out) != 1 || !strings.Contains(out[0], "1 function") {
		t.Errorf("out = %v", out)
	}
}
