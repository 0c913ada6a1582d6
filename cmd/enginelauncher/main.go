package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	child_process_manager "github.com/AgustinSRG/go-child-process-manager"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/enginelauncher/pkg/dynlib"
	"github.com/xaionaro-go/enginelauncher/pkg/launcher"
	"github.com/xaionaro-go/enginelauncher/pkg/launcherserver"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/xsync"
)

func main() {
	os.Exit(int(run(os.Args)))
}

func run(args []string) launcher.ExitCode {
	err := child_process_manager.InitializeChildProcessManager()
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to initialize the child process manager: %v\n", err)
		return launcher.ExitCodeConfig
	}
	defer child_process_manager.DisposeChildProcessManager()

	flags, err := parseFlags(args)
	if errors.Is(err, pflag.ErrHelp) {
		return launcher.ExitCodeOK
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return launcher.ExitCodeConfig
	}

	if flags.PrintConfig {
		b, err := flags.Launcher.MarshalYAMLBytes()
		if err != nil {
			fmt.Fprintf(os.Stderr, "unable to serialize the config: %v\n", err)
			return launcher.ExitCodeConfig
		}
		os.Stdout.Write(b)
		return launcher.ExitCodeOK
	}

	ctx, cancelFunc, err := initRuntime(context.Background(), flags)
	defer cancelFunc()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return launcher.ExitCodeConfig
	}
	ctx = xsync.WithNoLogging(ctx, true)

	logger.Debugf(ctx, "flags == %#+v", flags)

	platformInit(ctx)
	logger.Debugf(ctx, "platform initialized")

	metrics := launcher.NewMetrics(metricsNamespace)
	l := launcher.New(ctx, dynlib.NewLoader(), launcher.OptionConfig(flags.Launcher))
	l.Metrics = metrics

	if flags.ListenMetrics != "" {
		reg := newMetricsRegistry(metrics.Collectors())
		if err := serveMetrics(ctx, flags.ListenMetrics, reg); err != nil {
			logger.Errorf(ctx, "%v", err)
			return launcher.ExitCodeConfig
		}
	}

	if flags.ListenControlSocket != "" {
		logger.Debugf(ctx, "flags.ListenControlSocket == '%s'", flags.ListenControlSocket)
		listener, err := getListener(ctx, flags.ListenControlSocket)
		if err != nil {
			logger.Errorf(ctx, "unable to listen at '%s': %v", flags.ListenControlSocket, err)
			return launcher.ExitCodeConfig
		}

		srv := launcherserver.New(ctx, l)
		observability.Go(ctx, func(ctx context.Context) {
			logger.Infof(ctx, "listening for gRPC clients at %s (%T)", listener.Addr(), listener)
			if err := srv.ServeContext(ctx, listener); err != nil {
				logger.Errorf(ctx, "%v", err)
			}
		})
	}

	code, err := l.Run(ctx)
	if err != nil {
		reportError(err)
		// the capture is left running on failure: the platform log keeps
		// whatever the process prints until it exits
		return code
	}

	if err := l.Close(ctx); err != nil {
		logger.Warnf(ctx, "%v", err)
	}
	logger.Infof(ctx, "finished")
	return code
}
