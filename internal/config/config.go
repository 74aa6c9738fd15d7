package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sheerbytes/juggler/internal/logging"
)

const envPrefix = "JUGGLER_"

// BackupConfig holds configuration for the juggler binary.
type BackupConfig struct {
	Sources      []string // Files or directories to back up
	Destinations []string // Existing directories receiving every source
	Workers      int      // Concurrent jobs; 0 means one per CPU
	ChunkSize    int      // Bytes per read/write; 0 means 1 MiB
	LogLevel     string
	LogFormat    string // text or json
	ProgressAddr string // Listen address for the websocket progress feed; empty disables it
	ConfigFile   string // HCL job file
	DryRun       bool   // Print the plan without copying
	NoProgress   bool   // Disable the progress display
	ShowHelp     bool
	ShowVersion  bool
}

// ParseBackupConfig parses configuration from args, the environment and an
// optional job file. Precedence, lowest first: defaults, JUGGLER_* env, job
// file, flags. Sources and destinations from the job file and from args are
// concatenated. Positional sources may appear anywhere among the flags.
func ParseBackupConfig(args []string) (BackupConfig, error) {
	fs := flag.NewFlagSet("juggler", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return parseBackupConfigWithFlagSet(fs, args)
}

// parseBackupConfigWithFlagSet is an internal helper for testing with isolated flag sets.
func parseBackupConfigWithFlagSet(fs *flag.FlagSet, args []string) (BackupConfig, error) {
	cfg := BackupConfig{
		LogLevel:  "info",
		LogFormat: "text",
	}

	// Read from environment first
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	// Flags are bound to a scratch copy and applied after the job file.
	var fl BackupConfig
	var destinations []string
	fs.Var((*stringSlice)(&destinations), "d", "destination directory (repeatable)")
	fs.Var((*stringSlice)(&destinations), "destination", "destination directory (repeatable)")
	fs.IntVar(&fl.Workers, "workers", 0, "concurrent backup jobs (default: CPU count)")
	fs.IntVar(&fl.ChunkSize, "chunk-size", 0, "bytes per read/write chunk (default: 1 MiB)")
	fs.StringVar(&fl.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.StringVar(&fl.LogFormat, "log-format", "", "log format (text, json)")
	fs.StringVar(&fl.ProgressAddr, "progress-addr", "", "serve progress over websocket at ADDR/progress")
	fs.StringVar(&fl.ConfigFile, "config", "", "HCL job file")
	fs.BoolVar(&fl.DryRun, "dry-run", false, "print the plan without copying")
	fs.BoolVar(&fl.NoProgress, "no-progress", false, "disable the progress display")
	fs.BoolVar(&fl.ShowHelp, "h", false, "show help")
	fs.BoolVar(&fl.ShowHelp, "help", false, "show help")
	fs.BoolVar(&fl.ShowVersion, "v", false, "show version")
	fs.BoolVar(&fl.ShowVersion, "version", false, "show version")

	sources, err := parseInterleaved(fs, args)
	if err != nil {
		return cfg, err
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg.ShowHelp = fl.ShowHelp
	cfg.ShowVersion = fl.ShowVersion
	if cfg.ShowHelp || cfg.ShowVersion {
		return cfg, nil
	}

	if set["config"] {
		cfg.ConfigFile = fl.ConfigFile
	}
	if cfg.ConfigFile != "" {
		job, err := LoadJobFile(cfg.ConfigFile)
		if err != nil {
			return cfg, err
		}
		job.apply(&cfg)
	}

	// Flags override environment and job file
	cfg.Sources = append(cfg.Sources, sources...)
	cfg.Destinations = append(cfg.Destinations, destinations...)
	if set["workers"] {
		cfg.Workers = fl.Workers
	}
	if set["chunk-size"] {
		cfg.ChunkSize = fl.ChunkSize
	}
	if set["log-level"] {
		cfg.LogLevel = fl.LogLevel
	}
	if set["log-format"] {
		cfg.LogFormat = fl.LogFormat
	}
	if set["progress-addr"] {
		cfg.ProgressAddr = fl.ProgressAddr
	}
	cfg.DryRun = fl.DryRun
	cfg.NoProgress = fl.NoProgress

	return cfg, nil
}

// parseInterleaved parses flags that may be mixed with positional
// arguments and returns the positionals in order. Everything after "--" is
// positional.
func parseInterleaved(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	rest := args
	for {
		if err := fs.Parse(rest); err != nil {
			return nil, err
		}
		remaining := fs.Args()
		consumed := len(rest) - len(remaining)
		if consumed > 0 && rest[consumed-1] == "--" {
			return append(positional, remaining...), nil
		}
		if len(remaining) == 0 {
			return positional, nil
		}
		positional = append(positional, remaining[0])
		rest = remaining[1:]
	}
}

func applyEnv(cfg *BackupConfig) error {
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(envPrefix + "LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv(envPrefix + "PROGRESS_ADDR"); v != "" {
		cfg.ProgressAddr = v
	}
	if v := os.Getenv(envPrefix + "WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sWORKERS %q: %w", envPrefix, v, err)
		}
		cfg.Workers = n
	}
	if v := os.Getenv(envPrefix + "CHUNK_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sCHUNK_SIZE %q: %w", envPrefix, v, err)
		}
		cfg.ChunkSize = n
	}
	return nil
}

// Validate checks that the configuration describes a runnable batch: at
// least one source and destination, every source present, every
// destination an existing directory. All problems are reported together.
func (c BackupConfig) Validate() error {
	var errs []error
	if len(c.Sources) == 0 {
		errs = append(errs, errors.New("at least one source is required"))
	}
	if len(c.Destinations) == 0 {
		errs = append(errs, errors.New("at least one destination (-d) is required"))
	}
	for _, src := range c.Sources {
		if _, err := os.Stat(src); err != nil {
			errs = append(errs, fmt.Errorf("source %q: %w", src, err))
		}
	}
	for _, dst := range c.Destinations {
		info, err := os.Stat(dst)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("destination %q: %w", dst, err))
		case !info.IsDir():
			errs = append(errs, fmt.Errorf("destination %q is not a directory", dst))
		}
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if c.ChunkSize < 0 {
		errs = append(errs, fmt.Errorf("chunk size must not be negative, got %d", c.ChunkSize))
	}
	if !logging.ValidLevel(c.LogLevel) {
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	if !logging.ValidFormat(c.LogFormat) {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// stringSlice implements flag.Value for repeatable string flags.
type stringSlice []string

func (s *stringSlice) String() string {
	if s == nil {
		return ""
	}
	return strings.Join(*s, ",")
}

func (s *stringSlice) Set(value string) error {
	*s = append(*s, value)
	return nil
}

func (s *stringSlice) Get() interface{} {
	return []string(*s)
}

var _ flag.Value = (*stringSlice)(nil)
var _ flag.Getter = (*stringSlice)(nil)
