package capture

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/cmdlink/cmdlink/internal/binding"
	"github.com/cmdlink/cmdlink/internal/bus"
	"github.com/cmdlink/cmdlink/internal/config"
	"github.com/cmdlink/cmdlink/internal/dispatch"
)

// scriptedDispatcher runs a script against the capture window instead of a
// real command processor.
type scriptedDispatcher struct {
	script func(id string)
	lines  []string
}

func (d *scriptedDispatcher) Submit(_ context.Context, sub dispatch.Submission) error {
	d.lines = append(d.lines, sub.CommandLine)
	go d.script(sub.ID)
	return nil
}

func newTestEngine(t *testing.T, script func(r *dispatch.Router, id string), mutate func(*config.Config)) (*Engine, *scriptedDispatcher, *bus.MessageBus) {
	t.Helper()
	provider, err := config.NewProvider(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if mutate != nil {
		if err := provider.Update(func(c *config.Config) error {
			mutate(c)
			return nil
		}); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	router := dispatch.NewRouter()
	disp := &scriptedDispatcher{script: func(id string) { script(router, id) }}
	b := bus.NewMessageBus(10)
	return NewEngine(provider, disp, router, b), disp, b
}

func TestExecute_TextOnlyReturnsSingleChunkVerbatim(t *testing.T) {
	engine, disp, _ := newTestEngine(t, func(r *dispatch.Router, id string) {
		r.Emit(id, "No reminders.")
		r.Finish(id)
	}, func(c *config.Config) {
		c.Execution.ResponseMode = string(config.TextOnly)
	})

	res, err := engine.Execute(context.Background(), Request{
		Binding: binding.Binding{CommandName: "rmd--ls"},
		Origin:  bus.Origin{Channel: "cli", ChatID: "direct"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.TimedOut {
		t.Error("completed capture must not report timeout")
	}
	if res.Text() != "No reminders." {
		t.Errorf("Text() = %q, want %q", res.Text(), "No reminders.")
	}
	if len(disp.lines) != 1 || disp.lines[0] != "/rmd ls" {
		t.Errorf("dispatched lines = %v, want [/rmd ls]", disp.lines)
	}
}

func TestExecute_ForwardAndTextReplaysChunksInOrder(t *testing.T) {
	engine, _, b := newTestEngine(t, func(r *dispatch.Router, id string) {
		r.Emit(id, "one")
		r.Emit(id, "two")
		r.Finish(id)
	}, func(c *config.Config) {
		c.Execution.ResponseMode = string(config.ForwardAndText)
		c.Execution.ForwardIntervalSec = 0
	})

	origin := bus.Origin{Channel: "telegram", ChatID: "42"}
	res, err := engine.Execute(context.Background(), Request{
		Binding: binding.Binding{CommandName: "rmd--ls"},
		Origin:  origin,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Text() != "one\ntwo" {
		t.Errorf("Text() = %q", res.Text())
	}

	for _, want := range []string{"one", "two"} {
		select {
		case out := <-b.Outbound:
			if out.Content != want || out.Channel != origin.Channel || out.ChatID != origin.ChatID {
				t.Errorf("outbound = %+v, want content %q to %s:%s", out, want, origin.Channel, origin.ChatID)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing forwarded chunk %q", want)
		}
	}
}

func TestExecute_ArgsAppendedToCommandLine(t *testing.T) {
	engine, disp, _ := newTestEngine(t, func(r *dispatch.Router, id string) {
		r.Finish(id)
	}, nil)

	_, err := engine.Execute(context.Background(), Request{
		Binding: binding.Binding{CommandName: "rmd--add"},
		Args:    "text=water time=10:00",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if disp.lines[0] != "/rmd add text=water time=10:00" {
		t.Errorf("dispatched %q", disp.lines[0])
	}
}

func TestExecute_SilentCompletionIsEmptyNotError(t *testing.T) {
	engine, _, b := newTestEngine(t, func(r *dispatch.Router, id string) {
		r.Finish(id) // command ran but produced nothing
	}, nil)

	res, err := engine.Execute(context.Background(), Request{
		Binding: binding.Binding{CommandName: "mute"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Empty() || res.TimedOut {
		t.Errorf("res = %+v, want empty and not timed out", res)
	}
	select {
	case out := <-b.Outbound:
		t.Errorf("nothing should be forwarded for an empty capture, got %+v", out)
	default:
	}
}

func TestExecute_DeadlineWithNoOutputTimesOut(t *testing.T) {
	engine, _, _ := newTestEngine(t, func(r *dispatch.Router, id string) {
		// Never emits and never finishes, like an unknown command.
	}, func(c *config.Config) {
		c.Execution.CaptureTimeoutSec = 1 // minimum
	})

	start := time.Now()
	res, err := engine.Execute(context.Background(), Request{
		Binding: binding.Binding{CommandName: "ghost"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.TimedOut || !res.Empty() {
		t.Errorf("res = %+v, want timed out and empty", res)
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Errorf("returned after %v, before the deadline", elapsed)
	}
}

func TestExecute_CancelledContext(t *testing.T) {
	engine, _, b := newTestEngine(t, func(r *dispatch.Router, id string) {
		r.Emit(id, "partial")
		// Window stays open.
	}, func(c *config.Config) {
		c.Execution.ResponseMode = string(config.ForwardOnly)
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := engine.Execute(ctx, Request{
		Binding: binding.Binding{CommandName: "slow"},
	})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got: %v", err)
	}
	select {
	case out := <-b.Outbound:
		t.Errorf("no partial output may be forwarded after cancellation, got %+v", out)
	default:
	}
}

func TestExecute_ForwardingPacedByInterval(t *testing.T) {
	engine, _, b := newTestEngine(t, func(r *dispatch.Router, id string) {
		r.Emit(id, "one")
		r.Emit(id, "two")
		r.Emit(id, "three")
		r.Finish(id)
	}, func(c *config.Config) {
		c.Execution.ResponseMode = string(config.ForwardOnly)
		c.Execution.ForwardIntervalSec = 0.1
	})

	start := time.Now()
	res, err := engine.Execute(context.Background(), Request{
		Binding: binding.Binding{CommandName: "rmd--ls"},
		Origin:  bus.Origin{Channel: "cli", ChatID: "direct"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Chunks) != 3 {
		t.Fatalf("chunks = %v", res.Chunks)
	}
	// Two inter-chunk pauses of 100ms each.
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Errorf("forwarding finished in %v, faster than the configured pace", elapsed)
	}
	for i := 0; i < 3; i++ {
		select {
		case <-b.Outbound:
		default:
			t.Fatalf("missing forwarded chunk %d", i)
		}
	}
}

func TestExecute_ForwardOnlyDoesNotForwardWhenEmpty(t *testing.T) {
	engine, _, b := newTestEngine(t, func(r *dispatch.Router, id string) {
		r.Finish(id)
	}, func(c *config.Config) {
		c.Execution.ResponseMode = string(config.ForwardOnly)
	})

	res, err := engine.Execute(context.Background(), Request{
		Binding: binding.Binding{CommandName: "quiet"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Empty() {
		t.Errorf("res = %+v", res)
	}
	select {
	case out := <-b.Outbound:
		t.Errorf("unexpected outbound %+v", out)
	default:
	}
}
