package main

import (
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/enginelauncher/pkg/glutbridge"
	"github.com/xaionaro-go/enginelauncher/pkg/launcher"
	"github.com/xaionaro-go/secret"
)

type Flags struct {
	ConfigPath          string
	ListenControlSocket string
	ListenMetrics       string
	ListenNetPprof      string
	LoggerLevel         logger.Level
	LogFile             string
	SentryDSN           secret.String
	ShutdownTimeout     time.Duration
	PrintConfig         bool

	Launcher launcher.Config
}

func parseFlags(args []string) (Flags, error) {
	p := pflag.NewFlagSet(args[0], pflag.ContinueOnError)

	defaults := launcher.DefaultConfig()
	flags := Flags{
		LoggerLevel: logger.LevelInfo,
	}
	p.StringVar(&flags.ConfigPath, "config", "", "path to a YAML configuration file; command-line flags override it")
	p.StringVar(&flags.ListenControlSocket, "listen_control", "", "address to serve the gRPC health service at (a bare path is a unix socket; 'tcp:host:port' for TCP)")
	p.StringVar(&flags.ListenMetrics, "listen_metrics", "", "address to serve prometheus metrics at")
	p.StringVar(&flags.ListenNetPprof, "listen_net_pprof", "", "address to serve net/pprof at")
	p.VarP(&flags.LoggerLevel, "log_level", "v", "logging level")
	p.StringVar(&flags.LogFile, "log_file", "", "write the launcher's own logs to this file")
	sentryDSN := p.String("sentry_dsn", "", "Sentry DSN to report fatal errors to")
	p.DurationVar(&flags.ShutdownTimeout, "shutdown_timeout", 5*time.Second, "time to flush logs and error reports on exit")
	p.BoolVar(&flags.PrintConfig, "print_config", false, "print the effective configuration as YAML and exit")

	installDir := p.String("install_dir", defaults.InstallDir, "directory the engine and the windowing shim libraries are installed to")
	engineLibrary := p.String("engine_library", defaults.EngineLibrary, "engine library: an absolute path or a name within install_dir")
	shimPrefix := p.String("shim_prefix", defaults.ShimPrefix, "name prefix of the windowing shim among the engine's dependencies")
	entrySymbol := p.String("entry_symbol", defaults.EntrySymbol, "entry function exported by the engine library")
	programName := p.String("program_name", defaults.ProgramName, "argv[0] passed to the engine entry")
	resourcePath := p.String("resource_path", defaults.ResourcePath, "argv[1] passed to the engine entry")
	windowWidth := p.Int("window_width", defaults.WindowWidth, "initial window width")
	windowHeight := p.Int("window_height", defaults.WindowHeight, "initial window height")
	registrationPolicy := p.String("registration_policy", defaults.RegistrationPolicy.String(), "what to do when the shim lacks a registration symbol: skip_missing|stop_on_first_miss")
	logRedirect := p.Bool("log_redirect", defaults.LogRedirect.Enabled, "forward stdout and stderr to the platform log")
	maxLineLength := p.Int("log_redirect_max_line_length", defaults.LogRedirect.MaxLineLength, "longer captured lines are split")

	if err := p.Parse(args[1:]); err != nil {
		return flags, err
	}
	if p.NArg() != 0 {
		return flags, fmt.Errorf("unexpected arguments: %q", p.Args())
	}
	flags.SentryDSN = secret.New(*sentryDSN)

	cfg := defaults
	if flags.ConfigPath != "" {
		var err error
		cfg, err = launcher.LoadConfigFile(flags.ConfigPath)
		if err != nil {
			return flags, err
		}
	}

	var err error
	set := func(name string, fn func()) {
		if p.Changed(name) {
			fn()
		}
	}
	set("install_dir", func() { cfg.InstallDir = *installDir })
	set("engine_library", func() { cfg.EngineLibrary = *engineLibrary })
	set("shim_prefix", func() { cfg.ShimPrefix = *shimPrefix })
	set("entry_symbol", func() { cfg.EntrySymbol = *entrySymbol })
	set("program_name", func() { cfg.ProgramName = *programName })
	set("resource_path", func() { cfg.ResourcePath = *resourcePath })
	set("window_width", func() { cfg.WindowWidth = *windowWidth })
	set("window_height", func() { cfg.WindowHeight = *windowHeight })
	set("log_redirect", func() { cfg.LogRedirect.Enabled = *logRedirect })
	set("log_redirect_max_line_length", func() { cfg.LogRedirect.MaxLineLength = *maxLineLength })
	set("registration_policy", func() {
		cfg.RegistrationPolicy, err = glutbridge.PolicyFromString(*registrationPolicy)
	})
	if err != nil {
		return flags, err
	}

	if err := cfg.Validate(); err != nil {
		return flags, fmt.Errorf("invalid configuration: %w", err)
	}
	flags.Launcher = cfg
	return flags, nil
}
