package launcher

import (
	"github.com/xaionaro-go/enginelauncher/pkg/glutbridge"
)

type Option interface {
	apply(*Config)
}

// Options is a helper wrapper around []Option.
type Options []Option

func (opts Options) apply(cfg *Config) {
	for _, opt := range opts {
		opt.apply(cfg)
	}
}

func (opts Options) Config() Config {
	cfg := DefaultConfig()
	opts.apply(&cfg)
	return cfg
}

// OptionConfig replaces the whole configuration; options after it still apply.
type OptionConfig Config

func (o OptionConfig) apply(cfg *Config) {
	*cfg = Config(o)
}

type OptionInstallDir string

func (o OptionInstallDir) apply(cfg *Config) {
	cfg.InstallDir = string(o)
}

type OptionEngineLibrary string

func (o OptionEngineLibrary) apply(cfg *Config) {
	cfg.EngineLibrary = string(o)
}

type OptionEntrySymbol string

func (o OptionEntrySymbol) apply(cfg *Config) {
	cfg.EntrySymbol = string(o)
}

type OptionResourcePath string

func (o OptionResourcePath) apply(cfg *Config) {
	cfg.ResourcePath = string(o)
}

type OptionRegistrationPolicy glutbridge.Policy

func (o OptionRegistrationPolicy) apply(cfg *Config) {
	cfg.RegistrationPolicy = glutbridge.Policy(o)
}

type OptionLogRedirectValue bool

func (o OptionLogRedirectValue) apply(cfg *Config) {
	cfg.LogRedirect.Enabled = bool(o)
}

func OptionLogRedirect(enabled bool) OptionLogRedirectValue {
	return OptionLogRedirectValue(enabled)
}

type OptionWindowSizeValue [2]int

func (o OptionWindowSizeValue) apply(cfg *Config) {
	cfg.WindowWidth, cfg.WindowHeight = o[0], o[1]
}

func OptionWindowSize(width, height int) OptionWindowSizeValue {
	return OptionWindowSizeValue{width, height}
}
