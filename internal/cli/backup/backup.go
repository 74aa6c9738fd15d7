package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sheerbytes/juggler/internal/backup"
	"github.com/sheerbytes/juggler/internal/config"
	"github.com/sheerbytes/juggler/internal/logging"
	"github.com/sheerbytes/juggler/internal/progress"
	"github.com/sheerbytes/juggler/internal/termio"
	"github.com/sheerbytes/juggler/pkg/manifest"
)

// Exit codes.
const (
	ExitOK     = 0
	ExitFailed = 1
	ExitUsage  = 2
)

// Run executes the juggler command line and returns the process exit code.
func Run(args []string, version string) int {
	return run(context.Background(), args, version, termio.Stdout(), termio.Stderr())
}

func run(ctx context.Context, args []string, version string, stdout, stderr io.Writer) int {
	cfg, err := config.ParseBackupConfig(args)
	if err != nil {
		fmt.Fprintf(stderr, "juggler: %v\n", err)
		PrintUsage(stderr)
		return ExitUsage
	}
	if cfg.ShowHelp {
		PrintUsage(stderr)
		return ExitOK
	}
	if cfg.ShowVersion {
		fmt.Fprintf(stdout, "juggler %s\n", version)
		return ExitOK
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "juggler: invalid arguments:\n%v\n", err)
		fmt.Fprintln(stderr, "run 'juggler --help' for usage")
		return ExitUsage
	}

	interactive := !cfg.NoProgress && !cfg.DryRun && progress.IsTTY(stdout)
	logLevel := cfg.LogLevel
	if interactive && progress.IsTTY(stderr) && logging.ParseLevel(logLevel) < slog.LevelWarn {
		// Info lines would tear the live board on a shared terminal.
		logLevel = "warn"
	}
	logger := logging.New("juggler", logLevel, cfg.LogFormat, stderr)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.DryRun {
		return dryRun(stdout, backup.Requests(cfg.Sources, cfg.Destinations))
	}

	board := progress.NewBoard()
	stopRender := func() {}
	switch {
	case cfg.NoProgress:
	case interactive:
		stopRender = progress.RenderTea(ctx, outputFile(stdout), board, cancel)
	default:
		stopRender = progress.RenderLines(ctx, stdout, board, time.Second)
	}

	var feed *progress.Feed
	if cfg.ProgressAddr != "" {
		feed = progress.NewFeed(board, logger)
		addr, err := feed.Start(cfg.ProgressAddr)
		if err != nil {
			stopRender()
			logger.Error("progress feed failed", "addr", cfg.ProgressAddr, "error", err)
			return ExitFailed
		}
		fmt.Fprintf(stderr, "progress feed at ws://%s/progress\n", addr)
	}

	runner := backup.NewRunner(backup.RunnerConfig{
		Workers:   cfg.Workers,
		ChunkSize: cfg.ChunkSize,
		Progress:  board,
		Logger:    logger,
	})
	logger.Debug("batch starting", "sources", len(cfg.Sources), "destinations", len(cfg.Destinations), "workers", runner.Workers())
	outcomes, runErr := runner.RunAll(ctx, cfg.Sources, cfg.Destinations)

	stopRender()
	if feed != nil {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := feed.Close(closeCtx); err != nil {
			logger.Warn("progress feed shutdown", "error", err)
		}
		closeCancel()
	}

	printSummary(stdout, outcomes)
	if runErr != nil {
		if errors.Is(runErr, backup.ErrCanceled) {
			fmt.Fprintln(stderr, "juggler: interrupted")
		}
		return ExitFailed
	}
	return ExitOK
}

// outputFile unwraps queued writers so bubbletea can drive the terminal directly.
func outputFile(w io.Writer) io.Writer {
	if f, ok := w.(interface{ File() *os.File }); ok {
		return f.File()
	}
	return w
}

func dryRun(w io.Writer, reqs []backup.Request) int {
	code := ExitOK
	for _, req := range reqs {
		m, targets, err := backup.Plan(req)
		if err != nil {
			fmt.Fprintf(w, "%s -> %s: cannot plan: %v\n", req.Source, req.Destination, err)
			code = ExitFailed
			continue
		}
		fmt.Fprintf(w, "%s -> %s: %s, %d files, %s",
			req.Source, filepath.Join(req.Destination, destDir(m)), m.Kind, len(targets), progress.FormatBytes(m.TotalBytes))
		if m.Skipped > 0 {
			fmt.Fprintf(w, ", %d skipped", m.Skipped)
		}
		fmt.Fprintln(w)
	}
	return code
}

// destDir is the directory a job creates directly under its destination root.
func destDir(m manifest.Manifest) string {
	if m.Kind == manifest.KindFile {
		return backup.Stem(m.Base)
	}
	return m.Base
}

func printSummary(w io.Writer, outcomes []backup.Outcome) {
	var failed []backup.Outcome
	files := 0
	var bytes int64
	for _, o := range outcomes {
		files += o.Files
		bytes += o.Bytes
		if o.Failed() {
			failed = append(failed, o)
		}
	}
	fmt.Fprintf(w, "%d of %d backups finished, %d files, %s copied\n",
		len(outcomes)-len(failed), len(outcomes), files, progress.FormatBytes(bytes))
	if len(failed) == 0 {
		return
	}
	fmt.Fprintf(w, "%d failed:\n", len(failed))
	for _, o := range failed {
		fmt.Fprintf(w, "  %s -> %s [%s]: %v\n", o.Request.Source, o.Request.Destination, backup.CodeOf(o.Err), o.Err)
	}
}

// PrintUsage writes the command's help text to w.
func PrintUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: juggler [flags] SOURCE... -d DEST [-d DEST...]")
	fmt.Fprintln(w, "copies every SOURCE (file or directory) into every DEST directory, concurrently")
	fmt.Fprintln(w, "  a file  f.ext  lands at DEST/f/f.ext")
	fmt.Fprintln(w, "  a tree  dir/   lands at DEST/dir/..., only files whose name contains a dot")
	fmt.Fprintln(w, "flags:")
	fmt.Fprintln(w, "  -d, --destination DIR   destination directory (repeatable, must exist)")
	fmt.Fprintln(w, "  --workers N             concurrent backups (default: CPU count, env JUGGLER_WORKERS)")
	fmt.Fprintln(w, "  --chunk-size N          bytes per read/write (default 1048576, env JUGGLER_CHUNK_SIZE)")
	fmt.Fprintln(w, "  --log-level LEVEL       debug, info, warn, error (default info, env JUGGLER_LOG_LEVEL)")
	fmt.Fprintln(w, "  --log-format FORMAT     text or json (default text, env JUGGLER_LOG_FORMAT)")
	fmt.Fprintln(w, "  --progress-addr ADDR    serve live progress at ws://ADDR/progress (env JUGGLER_PROGRESS_ADDR)")
	fmt.Fprintln(w, "  --config FILE           HCL job file with sources, destinations and settings")
	fmt.Fprintln(w, "  --dry-run               print what would be copied and exit")
	fmt.Fprintln(w, "  --no-progress           disable the progress display")
	fmt.Fprintln(w, "  -h, --help              show this help")
	fmt.Fprintln(w, "  -v, --version           show version")
	fmt.Fprintln(w, "exit status: 0 all backups succeeded, 1 some backup failed, 2 bad arguments")
}
