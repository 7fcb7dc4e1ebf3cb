// Package capture runs one command invocation end to end: it builds the
// command line, submits it to the dispatcher, collects the output emitted
// for that invocation until completion or deadline, and applies the
// configured response policy.
package capture

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cmdlink/cmdlink/internal/binding"
	"github.com/cmdlink/cmdlink/internal/bus"
	"github.com/cmdlink/cmdlink/internal/command"
	"github.com/cmdlink/cmdlink/internal/config"
	"github.com/cmdlink/cmdlink/internal/dispatch"
)

// ErrCancelled means the caller's context ended before the capture window
// closed. No partial output is forwarded in that case.
var ErrCancelled = errors.New("capture cancelled")

// Request describes one command invocation to execute and capture.
type Request struct {
	Binding binding.Binding
	Args    string
	Origin  bus.Origin
}

// Result is the outcome of one captured invocation.
type Result struct {
	Chunks   []string
	TimedOut bool
	Mode     config.ResponseMode
}

// Text joins the captured chunks into the text returned to the function
// caller. A single chunk comes back verbatim.
func (r Result) Text() string {
	return strings.Join(r.Chunks, "\n")
}

func (r Result) Empty() bool { return len(r.Chunks) == 0 }

// Engine owns the capture lifecycle for every invocation.
type Engine struct {
	cfg    *config.Provider
	disp   dispatch.Dispatcher
	router *dispatch.Router
	bus    *bus.MessageBus
}

func NewEngine(cfg *config.Provider, disp dispatch.Dispatcher, router *dispatch.Router, b *bus.MessageBus) *Engine {
	return &Engine{cfg: cfg, disp: disp, router: router, bus: b}
}

// Execute builds the command line for req, dispatches it under a fresh
// invocation id, and waits for output until the command completes or the
// capture deadline passes. The deadline is absolute, fixed at submission
// time; output arriving does not extend it.
//
// The response policy decides what happens to captured chunks: forward
// modes replay each chunk to the originating session, paced by the
// configured interval; text modes surface the joined text to the caller
// through Result.Text.
func (e *Engine) Execute(ctx context.Context, req Request) (Result, error) {
	snap := e.cfg.Snapshot()
	mode := snap.Execution.Mode()

	line, err := command.Build(req.Binding, req.Args, snap.Basic.WakePrefix)
	if err != nil {
		return Result{Mode: mode}, err
	}

	id := uuid.NewString()
	ch := e.router.Open(id)
	defer e.router.Release(id)

	if err := e.disp.Submit(ctx, dispatch.Submission{
		ID:          id,
		Origin:      req.Origin,
		CommandLine: line,
	}); err != nil {
		return Result{Mode: mode}, err
	}

	deadline := time.NewTimer(snap.Execution.CaptureTimeout())
	defer deadline.Stop()

	res := Result{Mode: mode}
collect:
	for {
		select {
		case chunk, ok := <-ch:
			if !ok {
				break collect // command signalled completion
			}
			res.Chunks = append(res.Chunks, chunk.Text)
		case <-deadline.C:
			// Commands that legitimately produce nothing are
			// indistinguishable from unknown ones here; both end
			// as a timed-out empty capture.
			res.TimedOut = res.Empty()
			break collect
		case <-ctx.Done():
			return Result{Mode: mode}, ErrCancelled
		}
	}

	slog.Info("capture: window closed",
		"invocation", id,
		"command", req.Binding.CommandName,
		"chunks", len(res.Chunks),
		"timedOut", res.TimedOut)

	if (mode == config.ForwardOnly || mode == config.ForwardAndText) && !res.Empty() {
		if err := e.forward(ctx, req.Origin, res.Chunks, snap.Execution.ForwardInterval()); err != nil {
			return res, err
		}
	}
	return res, nil
}

// forward replays captured chunks to the originating session in capture
// order, sleeping the configured interval between consecutive messages.
func (e *Engine) forward(ctx context.Context, origin bus.Origin, chunks []string, interval time.Duration) error {
	for i, text := range chunks {
		if i > 0 && interval > 0 {
			t := time.NewTimer(interval)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return ErrCancelled
			}
		}
		e.bus.PublishOutbound(bus.OutboundMessage{
			Channel: origin.Channel,
			ChatID:  origin.ChatID,
			Content: text,
		})
	}
	return nil
}
