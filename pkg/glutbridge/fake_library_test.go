package glutbridge

import (
	"fmt"
	"sync"

	"github.com/xaionaro-go/enginelauncher/pkg/dynlib"
)

type fakeSymbol struct {
	name  string
	addr  uintptr
	calls *[][]uintptr
	mu    *sync.Mutex
}

func (s fakeSymbol) Name() string  { return s.name }
func (s fakeSymbol) Addr() uintptr { return s.addr }
func (s fakeSymbol) Call(args ...uintptr) uintptr {
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.calls = append(*s.calls, append([]uintptr(nil), args...))
	return 0
}

// fakeShim exports "reg_fn_<name>" for every name in exported and records
// the function pointers it receives.
type fakeShim struct {
	path     string
	exported map[string]bool

	mu      sync.Mutex
	calls   map[string]*[][]uintptr
	lookups []string
}

var _ dynlib.Library = (*fakeShim)(nil)

func newFakeShim(path string, names ...string) *fakeShim {
	s := &fakeShim{
		path:     path,
		exported: map[string]bool{},
		calls:    map[string]*[][]uintptr{},
	}
	for _, name := range names {
		s.exported[RegistrationPrefix+name] = true
	}
	return s
}

func (s *fakeShim) Path() string { return s.path }
func (s *fakeShim) Close() error { return nil }

func (s *fakeShim) Lookup(name string) (dynlib.Symbol, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups = append(s.lookups, name)
	if !s.exported[name] {
		return nil, &dynlib.SymbolNotFoundError{Library: s.path, Symbol: name, Cause: fmt.Errorf("undefined symbol: %s", name)}
	}
	calls := s.calls[name]
	if calls == nil {
		calls = &[][]uintptr{}
		s.calls[name] = calls
	}
	return fakeSymbol{name: name, addr: 0x1000, calls: calls, mu: &s.mu}, nil
}

func (s *fakeShim) received(name string) [][]uintptr {
	s.mu.Lock()
	defer s.mu.Unlock()
	calls := s.calls[RegistrationPrefix+name]
	if calls == nil {
		return nil
	}
	return *calls
}

func (s *fakeShim) lookedUp() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lookups...)
}

// fakeCallbacks hands out distinct fake addresses.
type fakeCallbacks struct {
	next    uintptr
	created int
}

func (f *fakeCallbacks) New(fn any) (uintptr, error) {
	f.created++
	f.next += 0x10
	return 0x7f0000000000 + f.next, nil
}

func names(entryPoints []EntryPoint) []string {
	result := make([]string, 0, len(entryPoints))
	for _, ep := range entryPoints {
		result = append(result, ep.Name)
	}
	return result
}
