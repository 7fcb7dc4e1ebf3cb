// Package binding maintains the mapping table between structured command
// names and the callable function names exposed to the model.
package binding

import "strings"

// Separator joins command path segments for storage and lookup.
// "rmd--ls" stores the two-segment command "rmd ls"; the separator is never
// part of the text handed to the dispatcher.
const Separator = "--"

// Binding maps one command to one callable function, plus the metadata shown
// to the model as the function's documentation.
type Binding struct {
	CommandName    string   `json:"commandName" yaml:"commandName"`
	FunctionName   string   `json:"functionName" yaml:"functionName"`
	Description    string   `json:"description,omitempty" yaml:"description,omitempty"`
	ArgDescription string   `json:"argDescription,omitempty" yaml:"argDescription,omitempty"`
	Group          string   `json:"group,omitempty" yaml:"group,omitempty"`
	Enabled        bool     `json:"enabled" yaml:"enabled"`
	Aliases        []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	CreatedAt      string   `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
}

// Segments splits CommandName on the storage separator.
func (b Binding) Segments() []string {
	return strings.Split(b.CommandName, Separator)
}

// CommandText returns the command as the dispatcher expects it: segments
// joined by single spaces, e.g. "rmd ls".
func (b Binding) CommandText() string {
	return strings.Join(b.Segments(), " ")
}

// JoinSegments is the inverse of Segments.
func JoinSegments(segs []string) string {
	return strings.Join(segs, Separator)
}

// NormalizeName canonicalizes a user-supplied command name: space-separated
// input ("rmd ls") becomes separator-joined storage form ("rmd--ls").
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if strings.Contains(name, Separator) {
		return name
	}
	return JoinSegments(strings.Fields(name))
}
