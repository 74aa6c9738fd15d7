package config

import (
	"flag"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func clearJugglerEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"LOG_LEVEL", "LOG_FORMAT", "PROGRESS_ADDR", "WORKERS", "CHUNK_SIZE"} {
		t.Setenv(envPrefix+name, "")
	}
}

func parse(t *testing.T, args ...string) BackupConfig {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := parseBackupConfigWithFlagSet(fs, args)
	if err != nil {
		t.Fatalf("parse %v: %v", args, err)
	}
	return cfg
}

func TestParseBackupConfig_Defaults(t *testing.T) {
	clearJugglerEnv(t)

	cfg := parse(t)
	if cfg.LogLevel != "info" {
		t.Errorf("expected LogLevel to be info, got %s", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("expected LogFormat to be text, got %s", cfg.LogFormat)
	}
	if cfg.Workers != 0 || cfg.ChunkSize != 0 {
		t.Errorf("expected zero workers and chunk size, got %d and %d", cfg.Workers, cfg.ChunkSize)
	}
	if len(cfg.Sources) != 0 || len(cfg.Destinations) != 0 {
		t.Errorf("expected no paths, got %v %v", cfg.Sources, cfg.Destinations)
	}
}

func TestParseBackupConfig_InterleavedSources(t *testing.T) {
	clearJugglerEnv(t)

	cfg := parse(t, "a.txt", "-d", "/x", "proj", "--destination", "/y", "--workers", "3", "b")
	if want := []string{"a.txt", "proj", "b"}; !reflect.DeepEqual(cfg.Sources, want) {
		t.Errorf("expected sources %v, got %v", want, cfg.Sources)
	}
	if want := []string{"/x", "/y"}; !reflect.DeepEqual(cfg.Destinations, want) {
		t.Errorf("expected destinations %v, got %v", want, cfg.Destinations)
	}
	if cfg.Workers != 3 {
		t.Errorf("expected Workers to be 3, got %d", cfg.Workers)
	}
}

func TestParseBackupConfig_DoubleDashEndsFlags(t *testing.T) {
	clearJugglerEnv(t)

	cfg := parse(t, "-d", "/x", "--", "-odd-name.txt", "b")
	if want := []string{"-odd-name.txt", "b"}; !reflect.DeepEqual(cfg.Sources, want) {
		t.Errorf("expected sources %v, got %v", want, cfg.Sources)
	}
}

func TestParseBackupConfig_EnvFallback(t *testing.T) {
	clearJugglerEnv(t)
	t.Setenv("JUGGLER_LOG_LEVEL", "warn")
	t.Setenv("JUGGLER_WORKERS", "5")
	t.Setenv("JUGGLER_CHUNK_SIZE", "4096")
	t.Setenv("JUGGLER_PROGRESS_ADDR", ":9400")

	cfg := parse(t)
	if cfg.LogLevel != "warn" {
		t.Errorf("expected LogLevel to be warn, got %s", cfg.LogLevel)
	}
	if cfg.Workers != 5 || cfg.ChunkSize != 4096 {
		t.Errorf("expected env workers/chunk size, got %d/%d", cfg.Workers, cfg.ChunkSize)
	}
	if cfg.ProgressAddr != ":9400" {
		t.Errorf("expected ProgressAddr :9400, got %s", cfg.ProgressAddr)
	}
}

func TestParseBackupConfig_FlagsOverrideEnv(t *testing.T) {
	clearJugglerEnv(t)
	t.Setenv("JUGGLER_LOG_LEVEL", "warn")
	t.Setenv("JUGGLER_WORKERS", "5")

	cfg := parse(t, "--log-level", "debug", "--workers", "2")
	if cfg.LogLevel != "debug" {
		t.Errorf("expected LogLevel to be debug (from flag), got %s", cfg.LogLevel)
	}
	if cfg.Workers != 2 {
		t.Errorf("expected Workers to be 2 (from flag), got %d", cfg.Workers)
	}
}

func TestParseBackupConfig_BadEnv(t *testing.T) {
	clearJugglerEnv(t)
	t.Setenv("JUGGLER_WORKERS", "many")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	if _, err := parseBackupConfigWithFlagSet(fs, nil); err == nil {
		t.Fatalf("expected error for non-numeric JUGGLER_WORKERS")
	}
}

func TestParseBackupConfig_UnknownFlag(t *testing.T) {
	clearJugglerEnv(t)

	if _, err := ParseBackupConfig([]string{"--bogus"}); err == nil {
		t.Fatalf("expected error for unknown flag")
	}
}

func TestParseBackupConfig_HelpAndVersion(t *testing.T) {
	clearJugglerEnv(t)

	if cfg := parse(t, "-h"); !cfg.ShowHelp {
		t.Errorf("expected -h to set ShowHelp")
	}
	if cfg := parse(t, "--version"); !cfg.ShowVersion {
		t.Errorf("expected --version to set ShowVersion")
	}
}

func TestParseBackupConfig_JobFileLayering(t *testing.T) {
	clearJugglerEnv(t)
	t.Setenv("JUGGLER_LOG_LEVEL", "warn")
	t.Setenv("JUGGLER_WORKERS", "5")

	dir := t.TempDir()
	path := filepath.Join(dir, "job.hcl")
	body := `
sources      = ["notes.txt", "/abs/proj"]
destinations = ["/mnt/a"]
workers      = 7
log_level    = "error"
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write job file: %v", err)
	}

	cfg := parse(t, "--config", path, "--workers", "2", "extra.txt", "-d", "/mnt/b")
	if cfg.LogLevel != "error" {
		t.Errorf("expected job file to override env log level, got %s", cfg.LogLevel)
	}
	if cfg.Workers != 2 {
		t.Errorf("expected flag to override job file workers, got %d", cfg.Workers)
	}
	wantSources := []string{filepath.Join(dir, "notes.txt"), "/abs/proj", "extra.txt"}
	if !reflect.DeepEqual(cfg.Sources, wantSources) {
		t.Errorf("expected sources %v, got %v", wantSources, cfg.Sources)
	}
	if want := []string{"/mnt/a", "/mnt/b"}; !reflect.DeepEqual(cfg.Destinations, want) {
		t.Errorf("expected destinations %v, got %v", want, cfg.Destinations)
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ok := BackupConfig{Sources: []string{file, dir}, Destinations: []string{dir}, LogLevel: "info", LogFormat: "text"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	bad := BackupConfig{
		Sources:      []string{filepath.Join(dir, "missing")},
		Destinations: []string{file},
		Workers:      -1,
		LogLevel:     "loud",
		LogFormat:    "text",
	}
	err := bad.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"missing", "not a directory", "workers", "log level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %q", want, err.Error())
		}
	}

	if err := (BackupConfig{LogLevel: "info", LogFormat: "text"}).Validate(); err == nil {
		t.Fatalf("expected error for empty sources and destinations")
	}
}
