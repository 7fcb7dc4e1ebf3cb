package binding

import (
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"
)

// Filter selects which bindings List returns.
type Filter string

const (
	FilterAll      Filter = "all"
	FilterEnabled  Filter = "enabled"
	FilterDisabled Filter = "disabled"
)

var functionNameRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Source is the persisted home of the binding list, normally the live
// configuration document. UpdateBindings must apply the whole mutation
// atomically: either the new list is persisted and published, or the old
// list stays in force and an error is returned.
type Source interface {
	Bindings() []Binding
	UpdateBindings(mutate func(entries []Binding) ([]Binding, error)) error
	AllowDuplicateFunction() bool
	StrictValidation() bool
}

// Store exposes CRUD over the binding table. Reads see a consistent snapshot
// of the source; writes are serialized by a single mutex so concurrent
// mutations never interleave.
type Store struct {
	mu  sync.Mutex
	src Source
}

func NewStore(src Source) *Store {
	return &Store{src: src}
}

// Add inserts a new binding. The command name is normalized to storage form
// before insertion. Fails without side effects on any validation error.
func (s *Store) Add(b Binding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b.CommandName = NormalizeName(b.CommandName)
	if err := validateName(b); err != nil {
		return err
	}
	if s.src.StrictValidation() && !functionNameRe.MatchString(b.FunctionName) {
		return fmt.Errorf("%w: %q", ErrInvalidFunctionName, b.FunctionName)
	}
	if b.Group == "" {
		b.Group = "default"
	}
	if b.Aliases == nil {
		b.Aliases = []string{}
	}
	if b.CreatedAt == "" {
		b.CreatedAt = time.Now().Format(time.RFC3339)
	}

	err := s.src.UpdateBindings(func(entries []Binding) ([]Binding, error) {
		for _, e := range entries {
			if e.CommandName == b.CommandName {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateCommand, b.CommandName)
			}
			if !s.src.AllowDuplicateFunction() && e.FunctionName == b.FunctionName {
				return nil, fmt.Errorf("%w: %q is mapped to %q", ErrDuplicateFunction, b.FunctionName, e.CommandName)
			}
		}
		return append(entries, b), nil
	})
	if err != nil {
		return err
	}
	slog.Info("store: added binding", "command", b.CommandName, "function", b.FunctionName)
	return nil
}

// Remove deletes the binding for commandName.
func (s *Store) Remove(commandName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	commandName = NormalizeName(commandName)
	err := s.src.UpdateBindings(func(entries []Binding) ([]Binding, error) {
		out := make([]Binding, 0, len(entries))
		found := false
		for _, e := range entries {
			if e.CommandName == commandName {
				found = true
				continue
			}
			out = append(out, e)
		}
		if !found {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, commandName)
		}
		return out, nil
	})
	if err != nil {
		return err
	}
	slog.Info("store: removed binding", "command", commandName)
	return nil
}

// Get returns the binding for commandName.
func (s *Store) Get(commandName string) (Binding, error) {
	commandName = NormalizeName(commandName)
	for _, e := range s.src.Bindings() {
		if e.CommandName == commandName {
			return e, nil
		}
	}
	return Binding{}, fmt.Errorf("%w: %q", ErrNotFound, commandName)
}

// List returns bindings in insertion order, filtered by enabled state.
func (s *Store) List(f Filter) []Binding {
	entries := s.src.Bindings()
	out := make([]Binding, 0, len(entries))
	for _, e := range entries {
		switch f {
		case FilterEnabled:
			if !e.Enabled {
				continue
			}
		case FilterDisabled:
			if e.Enabled {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

// SetEnabled flips a binding's enabled state. The returned bool reports
// whether the state actually changed (false when it was already as asked).
func (s *Store) SetEnabled(commandName string, enabled bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	commandName = NormalizeName(commandName)
	changed := false
	err := s.src.UpdateBindings(func(entries []Binding) ([]Binding, error) {
		out := make([]Binding, len(entries))
		copy(out, entries)
		for i := range out {
			if out[i].CommandName != commandName {
				continue
			}
			changed = out[i].Enabled != enabled
			out[i].Enabled = enabled
			return out, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrNotFound, commandName)
	})
	if err != nil {
		return false, err
	}
	slog.Info("store: set enabled", "command", commandName, "enabled", enabled)
	return changed, nil
}

func validateName(b Binding) error {
	if b.CommandName == "" {
		return fmt.Errorf("%w: empty command name", ErrEmptySegment)
	}
	for _, seg := range b.Segments() {
		if seg == "" {
			return fmt.Errorf("%w: %q", ErrEmptySegment, b.CommandName)
		}
	}
	if b.FunctionName == "" {
		return fmt.Errorf("%w: empty", ErrInvalidFunctionName)
	}
	return nil
}
