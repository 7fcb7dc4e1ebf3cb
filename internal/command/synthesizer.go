// Package command synthesizes the exact command line submitted to the
// dispatcher from a binding, raw caller arguments, and the session's wake
// prefix.
package command

import (
	"errors"
	"strings"

	"github.com/cmdlink/cmdlink/internal/binding"
)

// ErrMissingContext means the binding or the wake prefix was absent.
var ErrMissingContext = errors.New("missing binding or wake prefix")

// Build returns the command line to dispatch: wake prefix + space-joined
// command segments + raw arguments.
//
// The prefix test is a literal string check so a command that already starts
// with the session's prefix is never double-prefixed; building an already
// built line yields the same line. Arguments pass through verbatim — no
// quoting, escaping or trimming beyond skipping a fully-empty argument.
func Build(b binding.Binding, rawArgs, wakePrefix string) (string, error) {
	if b.CommandName == "" || wakePrefix == "" {
		return "", ErrMissingContext
	}

	line := b.CommandText()
	if !strings.HasPrefix(line, wakePrefix) {
		line = wakePrefix + line
	}
	if rawArgs != "" {
		line += " " + rawArgs
	}
	return line, nil
}
