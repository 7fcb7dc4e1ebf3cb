// Package dispatch routes command lines into the host command processor and
// output chunks back to the capture window that owns each invocation.
package dispatch

import (
	"log/slog"
	"sync"
	"time"
)

// OutputChunk is one unit of output emitted by an executing command.
type OutputChunk struct {
	Text string
	At   time.Time
}

// windowBuffer is the per-invocation chunk buffer; emitters only block once
// the reader falls this far behind.
const windowBuffer = 64

// emitWait bounds how long Emit waits on a full window before dropping.
const emitWait = time.Second

type window struct {
	mu   sync.Mutex
	ch   chan OutputChunk
	done bool
}

// Router maps invocation identifiers to the capture windows receiving their
// output. The dispatcher's emit path looks up by identifier and pushes; the
// capture engine owns the receive side and the deadline timer.
type Router struct {
	mu      sync.Mutex
	windows map[string]*window
}

func NewRouter() *Router {
	return &Router{windows: make(map[string]*window)}
}

// Open registers a capture window for the invocation and returns its receive
// side. The channel is closed when the command signals completion.
func (r *Router) Open(id string) <-chan OutputChunk {
	r.mu.Lock()
	defer r.mu.Unlock()
	w := &window{ch: make(chan OutputChunk, windowBuffer)}
	r.windows[id] = w
	return w.ch
}

// Emit delivers one chunk to the invocation's window, in arrival order.
// Chunks for unknown or finished invocations are dropped. A full window
// applies backpressure instead of dropping: Emit waits for the reader to
// drain, bounded by emitWait so a stalled reader cannot wedge the emitter.
func (r *Router) Emit(id, text string) bool {
	r.mu.Lock()
	w, ok := r.windows[id]
	r.mu.Unlock()
	if !ok {
		return false
	}

	// The window mutex is held across the send so Finish cannot close the
	// channel underneath a blocked emitter.
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return false
	}
	chunk := OutputChunk{Text: text, At: time.Now()}
	select {
	case w.ch <- chunk:
		return true
	default:
	}
	select {
	case w.ch <- chunk:
		return true
	case <-time.After(emitWait):
		slog.Warn("dispatch: capture window full, dropping chunk", "invocation", id)
		return false
	}
}

// Finish signals "no more output" for the invocation by closing its channel.
// Safe to call more than once.
func (r *Router) Finish(id string) {
	r.mu.Lock()
	w, ok := r.windows[id]
	r.mu.Unlock()
	if !ok {
		return
	}
	w.mu.Lock()
	if !w.done {
		w.done = true
		close(w.ch)
	}
	w.mu.Unlock()
}

// Release removes the window. Later Emit and Finish calls for the id become
// no-ops; the capture engine calls this when its window closes.
func (r *Router) Release(id string) {
	r.mu.Lock()
	w, ok := r.windows[id]
	delete(r.windows, id)
	r.mu.Unlock()
	if !ok {
		return
	}
	w.mu.Lock()
	if !w.done {
		w.done = true
		close(w.ch)
	}
	w.mu.Unlock()
}
