// Package launcher runs the bootstrap sequence: it prepares the windowing
// host, captures the standard streams, loads the engine library and its
// windowing shim, registers the windowing entry points with the shim and
// hands the process over to the engine's entry symbol.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/enginelauncher/pkg/dynlib"
	"github.com/xaionaro-go/enginelauncher/pkg/glutbridge"
	"github.com/xaionaro-go/enginelauncher/pkg/logredirect"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/xsync"
)

type Launcher struct {
	Config  Config
	Loader  dynlib.Loader
	Host    glutbridge.Host
	Bridge  *glutbridge.Bridge
	Metrics *Metrics

	// Sink receives the captured standard streams; nil means the platform
	// log (see logredirect.NewSystemSink).
	Sink logredirect.Sink

	// Streams overrides the captured descriptors; nil means stdout and stderr.
	Streams []logredirect.Stream

	locker      xsync.Mutex
	state       State
	stateSince  time.Time
	ran         bool
	subscribers map[chan State]struct{}
	terminated  chan struct{}
	redirector  *logredirect.Redirector
	engine      dynlib.Library
	shim        dynlib.Library
	report      *glutbridge.RegistrationReport
	argv        *cArgv
}

func New(
	ctx context.Context,
	loader dynlib.Loader,
	opts ...Option,
) *Launcher {
	cfg := Options(opts).Config()
	return &Launcher{
		Config:      cfg,
		Loader:      loader,
		Host:        glutbridge.NewHeadlessHost(ctx),
		Bridge:      glutbridge.New(cfg.RegistrationPolicy),
		subscribers: map[chan State]struct{}{},
		terminated:  make(chan struct{}),
		stateSince:  time.Now(),
	}
}

func (l *Launcher) State(ctx context.Context) State {
	return xsync.DoR1(ctx, &l.locker, func() State {
		return l.state
	})
}

// Report returns the outcome of the registration pass, if it happened.
func (l *Launcher) Report(ctx context.Context) *glutbridge.RegistrationReport {
	return xsync.DoR1(ctx, &l.locker, func() *glutbridge.RegistrationReport {
		return l.report
	})
}

// SubscribeStates returns a channel which first receives the current
// state and then every transition. It is closed after StateTerminal or
// when ctx is cancelled.
func (l *Launcher) SubscribeStates(ctx context.Context) <-chan State {
	ch := make(chan State, int(endOfState))
	l.locker.Do(ctx, func() {
		ch <- l.state
		if l.state == StateTerminal {
			close(ch)
			return
		}
		l.subscribers[ch] = struct{}{}
	})
	observability.Go(ctx, func(ctx context.Context) {
		select {
		case <-ctx.Done():
		case <-l.terminated:
			return
		}
		l.locker.Do(context.WithoutCancel(ctx), func() {
			if _, ok := l.subscribers[ch]; !ok {
				return
			}
			delete(l.subscribers, ch)
			close(ch)
		})
	})
	return ch
}

func (l *Launcher) setState(ctx context.Context, state State) {
	logger.Infof(ctx, "bootstrap state: %s", state)
	l.locker.Do(ctx, func() {
		if state <= l.state {
			logger.Errorf(ctx, "attempt to move the state backwards: %s -> %s", l.state, state)
			return
		}
		now := time.Now()
		l.Metrics.observeState(state, now.Sub(l.stateSince).Seconds())
		l.state, l.stateSince = state, now
		for ch := range l.subscribers {
			select {
			case ch <- state:
			default:
				logger.Warnf(ctx, "a state subscriber is not reading, dropping %s", state)
			}
			if state == StateTerminal {
				delete(l.subscribers, ch)
				close(ch)
			}
		}
		if state == StateTerminal {
			close(l.terminated)
		}
	})
}

// Run executes the bootstrap sequence once. If the engine entry returns,
// the result is ExitCodeOK; otherwise every fatal step yields its own
// exit code together with the error.
func (l *Launcher) Run(ctx context.Context) (_ret ExitCode, _err error) {
	logger.Debugf(ctx, "Run")
	defer func() { logger.Debugf(ctx, "/Run: %s %v", _ret, _err) }()

	alreadyRan := xsync.DoR1(ctx, &l.locker, func() bool {
		ran := l.ran
		l.ran = true
		return ran
	})
	if alreadyRan {
		return ExitCodeConfig, fmt.Errorf("the bootstrap sequence may run only once")
	}
	if l.Metrics != nil {
		l.Metrics.ExitCode.Set(-1)
	}

	code, err := l.run(ctx)
	l.Metrics.observeExitCode(code)
	if err != nil {
		logger.Errorf(ctx, "bootstrap failed (exit code %d: %s): %v", int(code), code, err)
	}
	l.setState(ctx, StateTerminal)
	return code, err
}

func (l *Launcher) run(ctx context.Context) (ExitCode, error) {
	cfg := l.Config
	if err := cfg.Validate(); err != nil {
		return ExitCodeConfig, fmt.Errorf("invalid config: %w", err)
	}
	if l.Loader == nil {
		return ExitCodeConfig, fmt.Errorf("no library loader is set")
	}
	logger.Tracef(ctx, "config: %s", spew.Sdump(cfg))

	l.initWindowSize(ctx)
	l.setState(ctx, StateWindowSizeInitialized)

	if err := l.startLogRedirection(ctx); err != nil {
		logger.Errorf(ctx, "unable to redirect the standard streams, continuing without it: %v", err)
	}
	l.setState(ctx, StateLogRedirectionStarted)

	enginePath := cfg.EngineLibraryPath()
	engine, err := l.Loader.Open(ctx, enginePath)
	if err != nil {
		return ExitCodeEngineLoad, fmt.Errorf("unable to load the engine library: %w", err)
	}
	l.locker.Do(ctx, func() { l.engine = engine })
	l.setState(ctx, StateEngineLibraryLoaded)

	resolver := dynlib.Resolver{InstallDir: cfg.InstallDir, Prefix: cfg.ShimPrefix}
	shimPath, err := resolver.ResolveShim(ctx, enginePath)
	if err != nil {
		return shimResolutionExitCode(err, enginePath), fmt.Errorf("unable to resolve the windowing shim: %w", err)
	}
	logger.Infof(ctx, "loading the windowing shim '%s'", shimPath)
	shim, err := l.Loader.Open(ctx, shimPath)
	if err != nil {
		return ExitCodeShimLoad, fmt.Errorf("unable to load the windowing shim: %w", err)
	}
	l.locker.Do(ctx, func() { l.shim = shim })
	l.setState(ctx, StateShimLibraryLoaded)

	report, err := l.Bridge.RegisterAll(ctx, shim, glutbridge.EntryPoints(l.Host))
	l.locker.Do(ctx, func() { l.report = report })
	l.Metrics.observeReport(report)
	if err != nil {
		return ExitCodeRegistrationAborted, fmt.Errorf("unable to register the entry points: %w", err)
	}
	if missing := report.Missing(); len(missing) > 0 {
		logger.Warnf(ctx, "the shim does not export registration symbols for %v", missing)
	}
	l.setState(ctx, StateAllSymbolsRegistered)

	entry, err := engine.Lookup(cfg.EntrySymbol)
	if err != nil {
		return ExitCodeEntrySymbolMissing, fmt.Errorf("the engine library is unusable: %w", err)
	}
	argv, err := newCArgv([]string{cfg.ProgramName, cfg.ResourcePath})
	if err != nil {
		return ExitCodeEntryArguments, fmt.Errorf("unable to prepare the entry arguments: %w", err)
	}
	l.locker.Do(ctx, func() { l.argv = argv })
	l.setState(ctx, StateEngineEntryInvoked)

	logger.Infof(ctx, "calling %s(%d, %q)", entry.Name(), argv.Argc(), argv.Strings())
	callEntry(entry, argv)
	logger.Infof(ctx, "%s returned", entry.Name())
	return ExitCodeOK, nil
}

func (l *Launcher) initWindowSize(ctx context.Context) {
	logger.Debugf(ctx, "initial window size %dx%d", l.Config.WindowWidth, l.Config.WindowHeight)
	if l.Host == nil {
		l.Host = glutbridge.NewHeadlessHost(ctx)
	}
	l.Host.InitWindowSize(l.Config.WindowWidth, l.Config.WindowHeight)
}

func (l *Launcher) startLogRedirection(ctx context.Context) error {
	cfg := l.Config.LogRedirect
	if !cfg.Enabled {
		logger.Debugf(ctx, "log redirection is disabled")
		return nil
	}

	sink := l.Sink
	if sink == nil {
		var err error
		sink, err = logredirect.NewSystemSink(ctx, cfg.Priority)
		if err != nil {
			return fmt.Errorf("unable to initialize the log sink: %w", err)
		}
	}
	streams := l.Streams
	if streams == nil {
		streams = cfg.Streams()
	}

	r := logredirect.New(sink, streams...)
	r.MaxLineLength = cfg.MaxLineLength
	if l.Metrics != nil {
		r.Metrics = l.Metrics.LogRedirect
	}
	// the redirection lives as long as the process, not as long as the
	// bootstrap call, thus it is detached from ctx cancellation
	if err := r.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	l.locker.Do(ctx, func() { l.redirector = r })
	return nil
}

func shimResolutionExitCode(err error, enginePath string) ExitCode {
	var notFound *dynlib.DependencyNotFoundError
	if errors.As(err, &notFound) {
		return ExitCodeShimDependencyNotFound
	}
	var loadErr *dynlib.LoadError
	if errors.As(err, &loadErr) && loadErr.Path == enginePath {
		// the dependency list itself could not be read
		return ExitCodeShimDependencyNotFound
	}
	return ExitCodeShimLoad
}

// callEntry calls "void entry(int argc, char **argv)" on a locked OS
// thread: the engine sets up thread-bound state (like GL contexts).
func callEntry(entry dynlib.Symbol, argv *cArgv) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	entry.Call(uintptr(argv.Argc()), argv.Argv())
}

// Close stops the log redirection and waits for its readers to drain.
// The loaded libraries and the argument vector stay: the shim may still
// hold the registered callbacks.
func (l *Launcher) Close(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Close")
	defer func() { logger.Debugf(ctx, "/Close: %v", _err) }()

	r := xsync.DoR1(ctx, &l.locker, func() *logredirect.Redirector {
		r := l.redirector
		l.redirector = nil
		return r
	})
	if r == nil {
		return nil
	}
	if err := r.Close(ctx); err != nil {
		return fmt.Errorf("unable to stop the log redirection: %w", err)
	}
	r.Wait()
	return nil
}
