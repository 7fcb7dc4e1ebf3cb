package binding

import "errors"

var (
	// ErrDuplicateCommand means the command name is already mapped.
	ErrDuplicateCommand = errors.New("command already mapped")
	// ErrDuplicateFunction means the function name is taken and duplicates
	// are disallowed by configuration.
	ErrDuplicateFunction = errors.New("function name already in use")
	// ErrInvalidFunctionName means the function name fails strict validation.
	ErrInvalidFunctionName = errors.New("function name must contain only letters, digits and underscores")
	// ErrNotFound means no binding exists for the command name.
	ErrNotFound = errors.New("no mapping for command")
	// ErrEmptySegment means the command name contains an empty path segment.
	ErrEmptySegment = errors.New("command name contains an empty segment")
)
