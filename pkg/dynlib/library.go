// Package dynlib loads shared libraries into the current process and
// inspects their declared dependencies.
package dynlib

import (
	"context"
)

// Symbol is an exported function of a loaded library.
type Symbol interface {
	Name() string
	Addr() uintptr

	// Call invokes the function using the C calling convention and
	// returns the first result register.
	Call(args ...uintptr) uintptr
}

// Library is a handle of a library loaded into the process.
type Library interface {
	Path() string
	Lookup(name string) (Symbol, error)
	Close() error
}

// Loader opens libraries.
type Loader interface {
	Open(ctx context.Context, path string) (Library, error)
}
