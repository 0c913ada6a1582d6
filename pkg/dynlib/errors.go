package dynlib

import (
	"fmt"
	"strings"
)

// LoadError is returned when a library file is missing, malformed or
// cannot be linked into the process.
type LoadError struct {
	Path  string
	Cause error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("unable to load library '%s': %v", e.Path, e.Cause)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// DependencyNotFoundError is returned when none of the dependencies of
// a library matches the expected name prefix.
type DependencyNotFoundError struct {
	Library      string
	Prefix       string
	Dependencies []string
}

func (e *DependencyNotFoundError) Error() string {
	return fmt.Sprintf(
		"no dependency of '%s' starts with '%s' (dependencies: [%s])",
		e.Library, e.Prefix, strings.Join(e.Dependencies, ", "),
	)
}

// SymbolNotFoundError is returned when a library does not export the
// requested symbol.
type SymbolNotFoundError struct {
	Library string
	Symbol  string
	Cause   error
}

func (e *SymbolNotFoundError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("symbol '%s' not found in '%s'", e.Symbol, e.Library)
	}
	return fmt.Sprintf("symbol '%s' not found in '%s': %v", e.Symbol, e.Library, e.Cause)
}

func (e *SymbolNotFoundError) Unwrap() error {
	return e.Cause
}
