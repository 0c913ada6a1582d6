package launcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/xaionaro-go/enginelauncher/pkg/dynlib"
	"github.com/xaionaro-go/enginelauncher/pkg/dynlib/dynlibtest"
	"github.com/xaionaro-go/enginelauncher/pkg/glutbridge"
	"github.com/xaionaro-go/enginelauncher/pkg/logredirect"
	"golang.org/x/sys/unix"
)

const shimName = "libglut-1a2b.so"

type testEnv struct {
	InstallDir string
	EnginePath string
	ShimPath   string
	Engine     *fakeLibrary
	Shim       *fakeLibrary
	Loader     *fakeLoader
}

// newTestEnv prepares an install directory with an engine library which
// depends on needed, and a shim file when the shim is among them.
func newTestEnv(t *testing.T, needed ...string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		InstallDir: dir,
		EnginePath: filepath.Join(dir, DefaultEngineLibrary),
		ShimPath:   filepath.Join(dir, shimName),
	}
	if err := dynlibtest.WriteSharedObject(env.EnginePath, needed); err != nil {
		t.Fatalf("unable to write the engine library: %v", err)
	}
	for _, name := range needed {
		if name == shimName {
			if err := os.WriteFile(env.ShimPath, []byte("shim"), 0o644); err != nil {
				t.Fatalf("unable to write the shim library: %v", err)
			}
		}
	}

	var regSymbols []string
	for _, ep := range glutbridge.EntryPoints(glutbridge.NewHeadlessHost(context.Background())) {
		regSymbols = append(regSymbols, ep.RegistrationSymbol())
	}
	env.Engine = newFakeLibrary(env.EnginePath, DefaultEntrySymbol)
	env.Shim = newFakeLibrary(env.ShimPath, regSymbols...)
	env.Loader = newFakeLoader(env.Engine, env.Shim)
	return env
}

func (env *testEnv) newLauncher(t *testing.T, opts ...Option) *Launcher {
	t.Helper()
	ctx := context.Background()
	opts = append(Options{
		OptionInstallDir(env.InstallDir),
		OptionLogRedirect(false),
	}, opts...)
	l := New(ctx, env.Loader, opts...)

	var mu sync.Mutex
	next := uintptr(0x7f0000)
	l.Bridge.NewCallback = func(fn any) (uintptr, error) {
		mu.Lock()
		defer mu.Unlock()
		next += 0x10
		return next, nil
	}
	return l
}

func collectStates(ch <-chan State) func() []State {
	var (
		wg     sync.WaitGroup
		states []State
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for s := range ch {
			states = append(states, s)
		}
	}()
	return func() []State {
		wg.Wait()
		return states
	}
}

func runLauncher(t *testing.T, l *Launcher) (ExitCode, []State, error) {
	t.Helper()
	ctx := context.Background()
	wait := collectStates(l.SubscribeStates(ctx))
	code, err := l.Run(ctx)
	states := wait()
	if got := l.State(ctx); got != StateTerminal {
		t.Fatalf("expected the terminal state after Run, got %s", got)
	}
	return code, states, err
}

func statesUpTo(last State) []State {
	var result []State
	for _, s := range AllStates() {
		if s > last {
			break
		}
		result = append(result, s)
	}
	return append(result, StateTerminal)
}

func TestRunSuccess(t *testing.T) {
	env := newTestEnv(t, "libc.so", shimName, "libm.so")
	var entryArgs []string
	env.Engine.onCall[DefaultEntrySymbol] = func(args ...uintptr) {
		entryArgs = readArgv(args[0], args[1])
	}

	l := env.newLauncher(t, OptionResourcePath("/sdcard/index.html"), OptionWindowSize(1280, 720))
	code, states, err := runLauncher(t, l)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != ExitCodeOK {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if !reflect.DeepEqual(states, AllStates()) {
		t.Fatalf("unexpected transitions\nwant: %v\n got: %v", AllStates(), states)
	}
	if want := []string{DefaultProgramName, "/sdcard/index.html"}; !reflect.DeepEqual(entryArgs, want) {
		t.Fatalf("unexpected entry arguments\nwant: %q\n got: %q", want, entryArgs)
	}
	if want := []string{env.EnginePath, env.ShimPath}; !reflect.DeepEqual(env.Loader.Opened(), want) {
		t.Fatalf("unexpected libraries opened\nwant: %q\n got: %q", want, env.Loader.Opened())
	}

	host := l.Host.(*glutbridge.HeadlessHost)
	if w, h := host.Get(glutbridge.GLUTInitWindowWidth), host.Get(glutbridge.GLUTInitWindowHeight); w != 1280 || h != 720 {
		t.Fatalf("expected the initial window size 1280x720, got %dx%d", w, h)
	}

	ctx := context.Background()
	table := l.Bridge.Table(ctx)
	if got, want := table.Registered(), len(glutbridge.EntryPoints(host)); got != want {
		t.Fatalf("expected %d registered slots, got %d", want, got)
	}
	for _, slot := range table {
		calls := env.Shim.Calls(slot.RegistrationSymbol)
		if len(calls) != 1 || len(calls[0]) != 1 || calls[0][0] != slot.Addr {
			t.Fatalf("'%s' was expected to receive 0x%X once, got %v", slot.RegistrationSymbol, slot.Addr, calls)
		}
	}
	if report := l.Report(ctx); report.Count(glutbridge.OutcomeRegistered) != len(table) {
		t.Fatalf("unexpected report: %#+v", report)
	}
}

func TestRunEngineLoadFailure(t *testing.T) {
	env := newTestEnv(t, shimName)
	l := env.newLauncher(t, OptionEngineLibrary("/nonexistent/path"))
	code, states, err := runLauncher(t, l)

	var loadErr *dynlib.LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected a *dynlib.LoadError, got %T: %v", err, err)
	}
	if code != ExitCodeEngineLoad {
		t.Fatalf("expected exit code %d, got %d", ExitCodeEngineLoad, code)
	}
	if want := statesUpTo(StateLogRedirectionStarted); !reflect.DeepEqual(states, want) {
		t.Fatalf("unexpected transitions\nwant: %v\n got: %v", want, states)
	}
}

func TestRunShimDependencyNotFound(t *testing.T) {
	env := newTestEnv(t, "libc.so", "libEGL.so")
	code, states, err := runLauncher(t, env.newLauncher(t))

	var notFound *dynlib.DependencyNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected a *dynlib.DependencyNotFoundError, got %T: %v", err, err)
	}
	if notFound.Library != env.EnginePath {
		t.Fatalf("expected the engine path in the error, got '%s'", notFound.Library)
	}
	if code != ExitCodeShimDependencyNotFound {
		t.Fatalf("expected exit code %d, got %d", ExitCodeShimDependencyNotFound, code)
	}
	if want := statesUpTo(StateEngineLibraryLoaded); !reflect.DeepEqual(states, want) {
		t.Fatalf("unexpected transitions\nwant: %v\n got: %v", want, states)
	}
}

func TestRunShimLoadFailure(t *testing.T) {
	t.Run("missingFile", func(t *testing.T) {
		env := newTestEnv(t, shimName)
		if err := os.Remove(env.ShimPath); err != nil {
			t.Fatal(err)
		}
		code, _, err := runLauncher(t, env.newLauncher(t))
		if code != ExitCodeShimLoad {
			t.Fatalf("expected exit code %d, got %d (%v)", ExitCodeShimLoad, code, err)
		}
	})
	t.Run("loaderError", func(t *testing.T) {
		env := newTestEnv(t, shimName)
		env.Loader.failing[env.ShimPath] = errors.New("wrong ELF class")
		code, states, err := runLauncher(t, env.newLauncher(t))
		var loadErr *dynlib.LoadError
		if !errors.As(err, &loadErr) || loadErr.Path != env.ShimPath {
			t.Fatalf("expected a *dynlib.LoadError for the shim, got %T: %v", err, err)
		}
		if code != ExitCodeShimLoad {
			t.Fatalf("expected exit code %d, got %d", ExitCodeShimLoad, code)
		}
		if want := statesUpTo(StateEngineLibraryLoaded); !reflect.DeepEqual(states, want) {
			t.Fatalf("unexpected transitions\nwant: %v\n got: %v", want, states)
		}
	})
}

func TestRunRegistrationPolicies(t *testing.T) {
	const missing = "reg_fn_glutSwapBuffers"

	t.Run("stopOnFirstMiss", func(t *testing.T) {
		env := newTestEnv(t, shimName)
		delete(env.Shim.exported, missing)
		l := env.newLauncher(t, OptionRegistrationPolicy(glutbridge.PolicyStopOnFirstMiss))
		code, states, err := runLauncher(t, l)

		var aborted *glutbridge.RegistrationAbortedError
		if !errors.As(err, &aborted) {
			t.Fatalf("expected a *glutbridge.RegistrationAbortedError, got %T: %v", err, err)
		}
		if code != ExitCodeRegistrationAborted {
			t.Fatalf("expected exit code %d, got %d", ExitCodeRegistrationAborted, code)
		}
		if want := statesUpTo(StateShimLibraryLoaded); !reflect.DeepEqual(states, want) {
			t.Fatalf("unexpected transitions\nwant: %v\n got: %v", want, states)
		}
		if calls := env.Engine.Calls(DefaultEntrySymbol); len(calls) != 0 {
			t.Fatalf("the entry must not be called, got %v", calls)
		}
	})

	t.Run("skipMissing", func(t *testing.T) {
		env := newTestEnv(t, shimName)
		delete(env.Shim.exported, missing)
		l := env.newLauncher(t)
		code, _, err := runLauncher(t, l)
		if err != nil || code != ExitCodeOK {
			t.Fatalf("expected success, got %d: %v", code, err)
		}
		report := l.Report(context.Background())
		if got := report.Missing(); !reflect.DeepEqual(got, []string{"glutSwapBuffers"}) {
			t.Fatalf("unexpected missing entries: %v", got)
		}
		if len(env.Engine.Calls(DefaultEntrySymbol)) != 1 {
			t.Fatalf("the entry must be called once")
		}
	})
}

func TestRunEntrySymbolMissing(t *testing.T) {
	env := newTestEnv(t, shimName)
	delete(env.Engine.exported, DefaultEntrySymbol)
	code, states, err := runLauncher(t, env.newLauncher(t))

	var symErr *dynlib.SymbolNotFoundError
	if !errors.As(err, &symErr) || symErr.Symbol != DefaultEntrySymbol {
		t.Fatalf("expected a *dynlib.SymbolNotFoundError for '%s', got %T: %v", DefaultEntrySymbol, err, err)
	}
	if code != ExitCodeEntrySymbolMissing {
		t.Fatalf("expected exit code %d, got %d", ExitCodeEntrySymbolMissing, code)
	}
	if want := statesUpTo(StateAllSymbolsRegistered); !reflect.DeepEqual(states, want) {
		t.Fatalf("unexpected transitions\nwant: %v\n got: %v", want, states)
	}
}

func TestRunEntryArgumentsFailure(t *testing.T) {
	env := newTestEnv(t, shimName)
	code, states, err := runLauncher(t, env.newLauncher(t, OptionResourcePath("/mnt/sdcard/a\x00b.html")))
	if err == nil {
		t.Fatalf("expected an error")
	}
	if code != ExitCodeEntryArguments {
		t.Fatalf("expected exit code %d, got %d", ExitCodeEntryArguments, code)
	}
	if want := statesUpTo(StateAllSymbolsRegistered); !reflect.DeepEqual(states, want) {
		t.Fatalf("unexpected transitions\nwant: %v\n got: %v", want, states)
	}
	if calls := env.Engine.Calls(DefaultEntrySymbol); len(calls) != 0 {
		t.Fatalf("the entry must not be called, got %v", calls)
	}
}

func TestRunInvalidConfig(t *testing.T) {
	env := newTestEnv(t, shimName)
	code, states, err := runLauncher(t, env.newLauncher(t, OptionEntrySymbol("")))
	if err == nil || code != ExitCodeConfig {
		t.Fatalf("expected a config error, got %d: %v", code, err)
	}
	if want := []State{StateIdle, StateTerminal}; !reflect.DeepEqual(states, want) {
		t.Fatalf("unexpected transitions\nwant: %v\n got: %v", want, states)
	}
	if len(env.Loader.Opened()) != 0 {
		t.Fatalf("nothing must be loaded, got %v", env.Loader.Opened())
	}
}

func TestRunOnlyOnce(t *testing.T) {
	env := newTestEnv(t, shimName)
	l := env.newLauncher(t)
	ctx := context.Background()
	if code, err := l.Run(ctx); err != nil || code != ExitCodeOK {
		t.Fatalf("expected success, got %d: %v", code, err)
	}
	if _, err := l.Run(ctx); err == nil {
		t.Fatalf("expected the second Run to fail")
	}
	if calls := env.Engine.Calls(DefaultEntrySymbol); len(calls) != 1 {
		t.Fatalf("the entry must be called exactly once, got %d", len(calls))
	}
}

type lineSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *lineSink) WriteLine(_ context.Context, tag string, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, tag+": "+line)
	return nil
}

func TestRunRedirectsEngineOutput(t *testing.T) {
	env := newTestEnv(t, shimName)
	out, err := os.Create(filepath.Join(t.TempDir(), "stdout"))
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()
	fd := int(out.Fd())

	env.Engine.onCall[DefaultEntrySymbol] = func(args ...uintptr) {
		unix.Write(fd, []byte("engine started\nloading page\n"))
	}

	sink := &lineSink{}
	l := env.newLauncher(t, OptionLogRedirect(true))
	l.Sink = sink
	l.Streams = []logredirect.Stream{{Tag: "stdout", FD: fd}}

	ctx := context.Background()
	if code, err := l.Run(ctx); err != nil || code != ExitCodeOK {
		t.Fatalf("expected success, got %d: %v", code, err)
	}
	if err := l.Close(ctx); err != nil {
		t.Fatalf("unable to close: %v", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if want := []string{"stdout: engine started", "stdout: loading page"}; !reflect.DeepEqual(sink.lines, want) {
		t.Fatalf("unexpected captured lines\nwant: %q\n got: %q", want, sink.lines)
	}
}
