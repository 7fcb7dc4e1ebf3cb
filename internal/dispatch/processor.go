package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cmdlink/cmdlink/internal/bus"
	"github.com/cmdlink/cmdlink/internal/config"
)

// ErrDispatchUnavailable means the command processor rejected a submission.
var ErrDispatchUnavailable = errors.New("command dispatcher unavailable")

// Dispatcher executes a command line against a session and emits output
// asynchronously through the invocation's capture window. Submit returns as
// soon as the command is queued; it never blocks on the command's side effects.
type Dispatcher interface {
	Submit(ctx context.Context, sub Submission) error
}

// Submission is one command line to execute.
type Submission struct {
	// ID keys the capture window output is routed to. Empty for plain chat
	// input: output then goes to the outbound bus addressed to Origin.
	ID          string
	Origin      bus.Origin
	CommandLine string
}

// Call is what a command handler receives.
type Call struct {
	Args   string
	Origin bus.Origin
	Emit   func(text string)
}

// HandlerFunc executes one command. Output goes through call.Emit; every
// Emit becomes one captured chunk (or one outbound message).
type HandlerFunc func(ctx context.Context, call Call)

// Processor is the in-process host dispatcher: it consumes inbound bus
// messages and direct submissions, strips the wake prefix, resolves the
// longest matching registered command path, and runs its handler.
type Processor struct {
	cfg    *config.Provider
	bus    *bus.MessageBus
	router *Router

	mu       sync.RWMutex
	handlers map[string]HandlerFunc // key: space-joined command path

	queue   chan Submission
	running atomic.Bool
}

func NewProcessor(cfg *config.Provider, b *bus.MessageBus, router *Router) *Processor {
	return &Processor{
		cfg:      cfg,
		bus:      b,
		router:   router,
		handlers: make(map[string]HandlerFunc),
		queue:    make(chan Submission, 100),
	}
}

// Handle registers a handler under a space-joined command path, e.g.
// "link add" or "rmd ls". Later registrations replace earlier ones.
func (p *Processor) Handle(path string, fn HandlerFunc) {
	p.mu.Lock()
	p.handlers[strings.TrimSpace(path)] = fn
	p.mu.Unlock()
}

// Submit queues a command line for execution. Fails with
// ErrDispatchUnavailable when the processor is not running or saturated.
func (p *Processor) Submit(_ context.Context, sub Submission) error {
	if !p.running.Load() {
		return ErrDispatchUnavailable
	}
	select {
	case p.queue <- sub:
		return nil
	default:
		return fmt.Errorf("%w: queue full", ErrDispatchUnavailable)
	}
}

// Run consumes submissions and inbound bus messages until ctx is cancelled.
// Each command executes in its own goroutine so a slow command never delays
// the next one.
func (p *Processor) Run(ctx context.Context) error {
	p.running.Store(true)
	defer p.running.Store(false)

	for {
		select {
		case sub := <-p.queue:
			go p.execute(ctx, sub)
		case msg := <-p.bus.Inbound:
			slog.Debug("dispatch: inbound", "session", msg.Origin.SessionKey(), "content", msg.Preview())
			go p.execute(ctx, Submission{Origin: msg.Origin, CommandLine: msg.Content})
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Processor) execute(ctx context.Context, sub Submission) {
	defer func() {
		if sub.ID != "" {
			p.router.Finish(sub.ID)
		}
	}()

	prefix := p.cfg.Snapshot().Basic.WakePrefix
	if prefix == "" || !strings.HasPrefix(sub.CommandLine, prefix) {
		// Not a command; nothing listens for plain text in this host.
		return
	}
	body := strings.TrimPrefix(sub.CommandLine, prefix)

	path, fn, args := p.resolve(body)
	if fn == nil {
		slog.Warn("dispatch: unknown command", "line", sub.CommandLine, "session", sub.Origin.SessionKey())
		return
	}

	emit := func(text string) {
		if sub.ID != "" {
			p.router.Emit(sub.ID, text)
			return
		}
		p.bus.PublishOutbound(bus.OutboundMessage{
			Channel: sub.Origin.Channel,
			ChatID:  sub.Origin.ChatID,
			Content: text,
		})
	}

	slog.Info("dispatch: executing", "command", path, "session", sub.Origin.SessionKey())
	fn(ctx, Call{Args: args, Origin: sub.Origin, Emit: emit})
}

// resolve finds the longest registered command path matching the start of
// body and returns it with the remaining text as raw args.
func (p *Processor) resolve(body string) (string, HandlerFunc, string) {
	fields := strings.Fields(body)
	p.mu.RLock()
	defer p.mu.RUnlock()
	for n := len(fields); n > 0; n-- {
		path := strings.Join(fields[:n], " ")
		if fn, ok := p.handlers[path]; ok {
			// Args are everything after the matched fields, verbatim.
			args := strings.TrimPrefix(body[fieldEnd(body, fields[:n]):], " ")
			return path, fn, args
		}
	}
	return "", nil, ""
}

// fieldEnd returns the byte offset just past the last of the given leading
// fields in body. Walking field by field keeps the offset correct when
// fields are separated by more than one space, so the args slice stays
// untouched.
func fieldEnd(body string, fields []string) int {
	off := 0
	for _, f := range fields {
		off += strings.Index(body[off:], f) + len(f)
	}
	return off
}
