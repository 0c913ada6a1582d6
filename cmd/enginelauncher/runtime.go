package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/facebookincubator/go-belt/tool/logger"
	xlogrus "github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/xaionaro-go/observability"
	"golang.org/x/sys/unix"
)

const metricsNamespace = "enginelauncher"

// logOutput returns where the launcher's own logs go. It never is the
// live stderr descriptor: that one gets redirected into the platform log,
// and the log sink would read its own output back.
func logOutput(flags Flags) (io.WriteCloser, error) {
	if flags.LogFile != "" {
		f, err := os.OpenFile(flags.LogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("unable to open the log file '%s': %w", flags.LogFile, err)
		}
		return f, nil
	}

	fd, err := unix.Dup(unix.Stderr)
	if err != nil {
		return nil, fmt.Errorf("unable to duplicate stderr: %w", err)
	}
	unix.CloseOnExec(fd)
	return os.NewFile(uintptr(fd), "/dev/stderr"), nil
}

func newLogger(flags Flags, out io.Writer) logger.Logger {
	ll := xlogrus.DefaultLogrusLogger()
	ll.SetOutput(out)
	if formatter, ok := ll.Formatter.(*logrus.TextFormatter); ok {
		formatter.FullTimestamp = true
	}
	return xlogrus.New(ll).WithLevel(flags.LoggerLevel)
}

func initRuntime(
	ctx context.Context,
	flags Flags,
) (context.Context, context.CancelFunc, error) {
	var closers []func()
	cancel := func() {
		for idx := len(closers) - 1; idx >= 0; idx-- {
			closers[idx]()
		}
	}

	out, err := logOutput(flags)
	if err != nil {
		return ctx, cancel, err
	}
	closers = append(closers, func() { out.Close() })

	l := newLogger(flags, out)
	ctx = logger.CtxWithLogger(ctx, l)

	if dsn := flags.SentryDSN.Get(); dsn != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			AttachStacktrace: true,
		})
		if err != nil {
			logger.Errorf(ctx, "unable to initialize Sentry: %v", err)
		} else {
			logger.Debugf(ctx, "initialized Sentry")
			closers = append(closers, func() { sentry.Flush(flags.ShutdownTimeout) })
		}
	}

	ctx, cancelCtx := context.WithCancel(ctx)
	closers = append(closers, cancelCtx)

	if flags.ListenNetPprof != "" {
		observability.Go(ctx, func(ctx context.Context) {
			logger.Infof(ctx, "starting to listen for net/pprof requests at '%s'", flags.ListenNetPprof)
			logger.Error(ctx, http.ListenAndServe(flags.ListenNetPprof, nil))
		})
	}

	return ctx, cancel, nil
}

func newMetricsRegistry(collectorSets ...[]prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	for _, set := range collectorSets {
		reg.MustRegister(set...)
	}
	return reg
}

func serveMetrics(
	ctx context.Context,
	addr string,
	reg *prometheus.Registry,
) error {
	listener, err := getListener(ctx, addr)
	if err != nil {
		return fmt.Errorf("unable to listen at '%s': %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux}

	observability.Go(ctx, func(ctx context.Context) {
		<-ctx.Done()
		srv.Close()
	})
	observability.Go(ctx, func(ctx context.Context) {
		logger.Infof(ctx, "serving metrics at %s", listener.Addr())
		err := srv.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf(ctx, "unable to serve metrics: %v", err)
		}
	})
	return nil
}

// reportError sends a fatal error to Sentry (a no-op if it is not initialized).
func reportError(err error) {
	if err == nil {
		return
	}
	sentry.CaptureException(err)
}
