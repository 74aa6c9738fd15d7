package backup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Workers   int // Concurrent jobs; defaults to GOMAXPROCS
	ChunkSize int // Bytes per chunk; defaults to DefaultChunkSize
	Progress  Progress
	Logger    *slog.Logger
}

// Runner runs jobs for every (source, destination) pair on a bounded pool.
type Runner struct {
	workers  int
	copier   *Copier
	progress Progress
	logger   *slog.Logger
}

// NewRunner creates a runner from cfg.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Progress == nil {
		cfg.Progress = Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{
		workers:  cfg.Workers,
		copier:   NewCopier(cfg.ChunkSize),
		progress: cfg.Progress,
		logger:   cfg.Logger,
	}
}

// Workers returns the pool size.
func (r *Runner) Workers() int {
	return r.workers
}

// Requests builds the cross product of sources and destinations, source
// major. Duplicate pairs are kept.
func Requests(sources, destinations []string) []Request {
	reqs := make([]Request, 0, len(sources)*len(destinations))
	for _, src := range sources {
		for _, dst := range destinations {
			reqs = append(reqs, Request{Source: src, Destination: dst})
		}
	}
	return reqs
}

// RunAll backs up every source to every destination.
func (r *Runner) RunAll(ctx context.Context, sources, destinations []string) ([]Outcome, error) {
	return r.Run(ctx, Requests(sources, destinations))
}

// Run executes one job per request and waits for all of them. A failing job
// never stops its siblings. Outcomes are returned in request order, along
// with the first failure in that order, or nil if every job succeeded.
func (r *Runner) Run(ctx context.Context, reqs []Request) ([]Outcome, error) {
	outcomes := make([]Outcome, len(reqs))

	var g errgroup.Group
	g.SetLimit(r.workers)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			outcomes[i] = NewJob(req, r.copier, r.progress, r.logger).Run(ctx)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	var total int64
	for _, o := range outcomes {
		total += o.Bytes
		if o.Failed() {
			failed++
		}
	}
	r.logger.Info("batch finished", "jobs", len(outcomes), "completed", len(outcomes)-failed, "failed", failed, "bytes", total)

	return outcomes, FirstFailure(outcomes)
}

// FirstFailure returns the error of the first failed outcome, annotated with
// its pair, or nil.
func FirstFailure(outcomes []Outcome) error {
	for _, o := range outcomes {
		if o.Failed() {
			return fmt.Errorf("backup %s to %s: %w", o.Request.Source, o.Request.Destination, o.Err)
		}
	}
	return nil
}
