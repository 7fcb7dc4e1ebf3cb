package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/cmdlink/cmdlink/internal/binding"
)

// Provider owns the live configuration snapshot. Readers call Snapshot and
// get an immutable document; writers go through Update, which clones the
// current snapshot, applies the mutation, persists, and publishes the new
// snapshot in one step. Watch keeps the snapshot in sync with external edits
// (WebUI, text editor) so operations always see live values.
type Provider struct {
	path string

	mu  sync.Mutex // serializes Update and Reload
	cur atomic.Pointer[Config]

	subsMu sync.Mutex
	subs   []func()
}

// NewProvider loads the document at path (defaults apply if missing) and
// returns a Provider serving it.
func NewProvider(path string) (*Provider, error) {
	if path == "" {
		path = ConfigPath()
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	p := &Provider{path: path}
	p.cur.Store(cfg)
	return p, nil
}

// Path returns the backing file path.
func (p *Provider) Path() string { return p.path }

// Snapshot returns the current document. Callers must treat it as read-only.
func (p *Provider) Snapshot() *Config { return p.cur.Load() }

// Update applies mutate to a clone of the current document, persists the
// result, and publishes it. If mutate or Save fails, the old snapshot stays
// in force and the error is returned.
func (p *Provider) Update(mutate func(*Config) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next, err := cloneConfig(p.cur.Load())
	if err != nil {
		return err
	}
	if err := mutate(next); err != nil {
		return err
	}
	if err := Save(next, p.path); err != nil {
		return err
	}
	p.cur.Store(next)
	p.notify()
	return nil
}

// Reload re-reads the document from disk and publishes it.
func (p *Provider) Reload() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cfg, err := Load(p.path)
	if err != nil {
		return err
	}
	p.cur.Store(cfg)
	p.notify()
	return nil
}

// OnChange registers fn to run after every published snapshot change.
// Callbacks run synchronously; keep them short.
func (p *Provider) OnChange(fn func()) {
	p.subsMu.Lock()
	p.subs = append(p.subs, fn)
	p.subsMu.Unlock()
}

func (p *Provider) notify() {
	p.subsMu.Lock()
	subs := make([]func(), len(p.subs))
	copy(subs, p.subs)
	p.subsMu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

// Watch reloads the snapshot whenever the backing file changes on disk.
// Events are debounced because editors and our own Save produce bursts.
// Blocks until ctx is cancelled.
func (p *Provider) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watch: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(p.path)); err != nil {
		return fmt.Errorf("config watch %s: %w", filepath.Dir(p.path), err)
	}

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Name != p.path || !ev.Op.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, func() {
				if err := p.Reload(); err != nil {
					slog.Warn("config: reload failed", "err", err)
					return
				}
				slog.Info("config: reloaded", "path", p.path)
			})
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config: watch error", "err", err)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func cloneConfig(cfg *Config) (*Config, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("clone config: %w", err)
	}
	next := DefaultConfig()
	if err := json.Unmarshal(data, &next); err != nil {
		return nil, fmt.Errorf("clone config: %w", err)
	}
	return &next, nil
}

// ---------------------------------------------------------------------------
// binding.Source
// ---------------------------------------------------------------------------

// Bindings returns the live binding list.
func (p *Provider) Bindings() []binding.Binding {
	return p.Snapshot().Bindings.Entries
}

// UpdateBindings atomically replaces the binding list via Update.
func (p *Provider) UpdateBindings(mutate func(entries []binding.Binding) ([]binding.Binding, error)) error {
	return p.Update(func(c *Config) error {
		next, err := mutate(c.Bindings.Entries)
		if err != nil {
			return err
		}
		c.Bindings.Entries = next
		return nil
	})
}

// AllowDuplicateFunction reports whether two bindings may share a function name.
func (p *Provider) AllowDuplicateFunction() bool {
	return p.Snapshot().Bindings.AllowDuplicateFunction
}

// StrictValidation reports whether function names are pattern-checked on add.
func (p *Provider) StrictValidation() bool {
	return p.Snapshot().Basic.StrictValidation
}
