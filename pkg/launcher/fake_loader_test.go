package launcher

import (
	"context"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"github.com/xaionaro-go/enginelauncher/pkg/dynlib"
)

type fakeSymbol struct {
	name string
	lib  *fakeLibrary
}

func (s fakeSymbol) Name() string  { return s.name }
func (s fakeSymbol) Addr() uintptr { return 0x1000 }
func (s fakeSymbol) Call(args ...uintptr) uintptr {
	s.lib.mu.Lock()
	fn := s.lib.onCall[s.name]
	s.lib.calls[s.name] = append(s.lib.calls[s.name], append([]uintptr(nil), args...))
	s.lib.mu.Unlock()
	if fn != nil {
		fn(args...)
	}
	return 0
}

type fakeLibrary struct {
	path     string
	exported map[string]bool

	mu     sync.Mutex
	calls  map[string][][]uintptr
	onCall map[string]func(args ...uintptr)
}

var _ dynlib.Library = (*fakeLibrary)(nil)

func newFakeLibrary(path string, symbols ...string) *fakeLibrary {
	lib := &fakeLibrary{
		path:     path,
		exported: map[string]bool{},
		calls:    map[string][][]uintptr{},
		onCall:   map[string]func(args ...uintptr){},
	}
	for _, s := range symbols {
		lib.exported[s] = true
	}
	return lib
}

func (lib *fakeLibrary) Path() string { return lib.path }
func (lib *fakeLibrary) Close() error { return nil }

func (lib *fakeLibrary) Lookup(name string) (dynlib.Symbol, error) {
	if !lib.exported[name] {
		return nil, &dynlib.SymbolNotFoundError{Library: lib.path, Symbol: name, Cause: fmt.Errorf("undefined symbol: %s", name)}
	}
	return fakeSymbol{name: name, lib: lib}, nil
}

func (lib *fakeLibrary) Calls(name string) [][]uintptr {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	return lib.calls[name]
}

type fakeLoader struct {
	libraries map[string]*fakeLibrary
	failing   map[string]error

	mu     sync.Mutex
	opened []string
}

var _ dynlib.Loader = (*fakeLoader)(nil)

func newFakeLoader(libs ...*fakeLibrary) *fakeLoader {
	l := &fakeLoader{
		libraries: map[string]*fakeLibrary{},
		failing:   map[string]error{},
	}
	for _, lib := range libs {
		l.libraries[lib.path] = lib
	}
	return l
}

func (l *fakeLoader) Open(_ context.Context, path string) (dynlib.Library, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.opened = append(l.opened, path)
	if err := l.failing[path]; err != nil {
		return nil, &dynlib.LoadError{Path: path, Cause: err}
	}
	lib, ok := l.libraries[path]
	if !ok {
		return nil, &dynlib.LoadError{Path: path, Cause: os.ErrNotExist}
	}
	return lib, nil
}

func (l *fakeLoader) Opened() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.opened...)
}

// readArgv decodes a (argc, char **argv) pair passed to a fake symbol.
func readArgv(argc, argv uintptr) []string {
	ptrs := unsafe.Slice((*uintptr)(unsafe.Pointer(argv)), int(argc))
	result := make([]string, 0, len(ptrs))
	for _, p := range ptrs {
		var b []byte
		for c := (*byte)(unsafe.Pointer(p)); *c != 0; c = (*byte)(unsafe.Add(unsafe.Pointer(c), 1)) {
			b = append(b, *c)
		}
		result = append(result, string(b))
	}
	return result
}
