package launcher

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xaionaro-go/enginelauncher/pkg/dynlib"
	"github.com/xaionaro-go/enginelauncher/pkg/glutbridge"
	"github.com/xaionaro-go/enginelauncher/pkg/logredirect"
	"gopkg.in/yaml.v3"
)

const (
	DefaultInstallDir    = "/data/data/com.example.ServoAndroid/lib/"
	DefaultEngineLibrary = "libservo.so"
	DefaultEntrySymbol   = "android_start"
	DefaultProgramName   = "servo"
	DefaultResourcePath  = "/mnt/sdcard/html/demo.html"
	DefaultWindowWidth   = 2560
	DefaultWindowHeight  = 1600
)

type LogRedirectConfig struct {
	Enabled       bool                 `yaml:"enabled"`
	StdoutTag     string               `yaml:"stdout_tag"`
	StderrTag     string               `yaml:"stderr_tag"`
	MaxLineLength int                  `yaml:"max_line_length"`
	Priority      logredirect.Priority `yaml:"priority"`
}

func (cfg LogRedirectConfig) Streams() []logredirect.Stream {
	streams := logredirect.DefaultStreams()
	streams[0].Tag = cfg.StdoutTag
	streams[1].Tag = cfg.StderrTag
	return streams
}

// Config is a configuration of Launcher.
// Keep fields additive (backwards compatible).
type Config struct {
	InstallDir string `yaml:"install_dir"`

	// EngineLibrary is either an absolute path or a name relative to InstallDir.
	EngineLibrary      string            `yaml:"engine_library"`
	ShimPrefix         string            `yaml:"shim_prefix"`
	EntrySymbol        string            `yaml:"entry_symbol"`
	ProgramName        string            `yaml:"program_name"`
	ResourcePath       string            `yaml:"resource_path"`
	WindowWidth        int               `yaml:"window_width"`
	WindowHeight       int               `yaml:"window_height"`
	RegistrationPolicy glutbridge.Policy `yaml:"registration_policy"`
	LogRedirect        LogRedirectConfig `yaml:"log_redirect"`
}

func DefaultConfig() Config {
	return Config{
		InstallDir:         DefaultInstallDir,
		EngineLibrary:      DefaultEngineLibrary,
		ShimPrefix:         dynlib.DefaultShimPrefix,
		EntrySymbol:        DefaultEntrySymbol,
		ProgramName:        DefaultProgramName,
		ResourcePath:       DefaultResourcePath,
		WindowWidth:        DefaultWindowWidth,
		WindowHeight:       DefaultWindowHeight,
		RegistrationPolicy: glutbridge.PolicySkipMissing,
		LogRedirect: LogRedirectConfig{
			Enabled:       true,
			StdoutTag:     logredirect.DefaultStdoutTag,
			StderrTag:     logredirect.DefaultStderrTag,
			MaxLineLength: logredirect.DefaultMaxLineLength,
			Priority:      logredirect.PriorityInfo,
		},
	}
}

func (cfg Config) EngineLibraryPath() string {
	if filepath.IsAbs(cfg.EngineLibrary) {
		return cfg.EngineLibrary
	}
	return filepath.Join(cfg.InstallDir, cfg.EngineLibrary)
}

func (cfg Config) Validate() error {
	var errs []error
	if cfg.EngineLibrary == "" {
		errs = append(errs, fmt.Errorf("engine_library is not set"))
	}
	if !filepath.IsAbs(cfg.EngineLibrary) && cfg.InstallDir == "" {
		errs = append(errs, fmt.Errorf("install_dir is not set, while engine_library '%s' is relative", cfg.EngineLibrary))
	}
	if cfg.ShimPrefix == "" {
		errs = append(errs, fmt.Errorf("shim_prefix is not set"))
	}
	if cfg.EntrySymbol == "" {
		errs = append(errs, fmt.Errorf("entry_symbol is not set"))
	}
	if cfg.WindowWidth <= 0 || cfg.WindowHeight <= 0 {
		errs = append(errs, fmt.Errorf("invalid window size %dx%d", cfg.WindowWidth, cfg.WindowHeight))
	}
	if _, err := glutbridge.PolicyFromString(cfg.RegistrationPolicy.String()); err != nil {
		errs = append(errs, err)
	}
	if cfg.LogRedirect.Enabled {
		if cfg.LogRedirect.StdoutTag == "" || cfg.LogRedirect.StderrTag == "" {
			errs = append(errs, fmt.Errorf("log redirection tags must not be empty"))
		}
		if cfg.LogRedirect.MaxLineLength <= 0 {
			errs = append(errs, fmt.Errorf("invalid max line length %d", cfg.LogRedirect.MaxLineLength))
		}
	}
	return errors.Join(errs...)
}

// LoadConfigFile reads a YAML file on top of the defaults.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("unable to read '%s': %w", path, err)
	}
	if err := cfg.UnmarshalYAMLBytes(b); err != nil {
		return cfg, fmt.Errorf("unable to parse '%s': %w", path, err)
	}
	return cfg, nil
}

func (cfg *Config) UnmarshalYAMLBytes(b []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func (cfg Config) MarshalYAMLBytes() ([]byte, error) {
	return yaml.Marshal(cfg)
}
