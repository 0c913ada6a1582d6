//go:build darwin || freebsd || linux || netbsd

package dynlib

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/ebitengine/purego"
	"github.com/facebookincubator/go-belt/tool/logger"
)

// DlLoader loads libraries with dlopen(3).
type DlLoader struct {
	Mode int
}

var _ Loader = (*DlLoader)(nil)

// NewLoader returns a loader that resolves all relocations immediately
// and makes the library symbols available to subsequently loaded
// libraries, so the shim can see what the engine already pulled in.
func NewLoader() *DlLoader {
	return &DlLoader{
		Mode: purego.RTLD_NOW | purego.RTLD_GLOBAL,
	}
}

func (l *DlLoader) Open(
	ctx context.Context,
	path string,
) (_ret Library, _err error) {
	logger.Debugf(ctx, "Open(ctx, '%s')", path)
	defer func() { logger.Debugf(ctx, "/Open(ctx, '%s'): %v", path, _err) }()

	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}
	if info.IsDir() {
		return nil, &LoadError{Path: path, Cause: fmt.Errorf("is a directory")}
	}
	logger.Infof(ctx, "loading '%s' (%s)", path, humanize.Bytes(uint64(info.Size())))

	handle, err := purego.Dlopen(path, l.Mode)
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}

	return &sharedLibrary{
		path:   path,
		handle: handle,
	}, nil
}

type sharedLibrary struct {
	path   string
	handle uintptr
}

func (lib *sharedLibrary) Path() string {
	return lib.path
}

func (lib *sharedLibrary) Lookup(name string) (Symbol, error) {
	addr, err := purego.Dlsym(lib.handle, name)
	if err != nil {
		return nil, &SymbolNotFoundError{Library: lib.path, Symbol: name, Cause: err}
	}
	if addr == 0 {
		return nil, &SymbolNotFoundError{Library: lib.path, Symbol: name}
	}
	return cSymbol{name: name, addr: addr}, nil
}

func (lib *sharedLibrary) Close() error {
	if err := purego.Dlclose(lib.handle); err != nil {
		return fmt.Errorf("unable to close '%s': %w", lib.path, err)
	}
	return nil
}

type cSymbol struct {
	name string
	addr uintptr
}

func (s cSymbol) Name() string {
	return s.name
}

func (s cSymbol) Addr() uintptr {
	return s.addr
}

func (s cSymbol) Call(args ...uintptr) uintptr {
	r1, _, _ := purego.SyscallN(s.addr, args...)
	return r1
}
