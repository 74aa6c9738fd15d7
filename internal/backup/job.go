// Package backup copies source files and trees into destination roots,
// one job per (source, destination) pair, with byte-level progress.
package backup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/sheerbytes/juggler/pkg/manifest"
)

// Request is one (source, destination root) pair.
type Request struct {
	Source      string
	Destination string
}

// Label is the progress label shown for the request.
func (r Request) Label() string {
	return fmt.Sprintf("Copying %s to %s", r.Source, r.Destination)
}

// Target is one file copy within a job.
type Target struct {
	Source      string
	Destination string
	Size        int64
}

// Outcome is the result of one job.
type Outcome struct {
	Request  Request
	Kind     manifest.Kind
	Files    int   // Files fully copied
	Bytes    int64 // Bytes written, including a partially copied file
	Total    int64 // Bytes planned
	Duration time.Duration
	Err      error // nil on success, otherwise a *CopyError
}

// Failed reports whether the job ended with an error.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Plan scans the request's source and maps every file onto the destination.
// The same scan yields the byte total, so the total always equals the sum
// of the returned targets.
func Plan(req Request) (manifest.Manifest, []Target, error) {
	m, err := manifest.Scan(req.Source)
	if err != nil {
		return m, nil, newCopyError("scan", req.Source, err)
	}

	targets := make([]Target, 0, len(m.Items))
	for _, item := range m.Items {
		var dst string
		if m.Kind == manifest.KindFile {
			dst = MapSingleFile(item.Path, req.Destination)
		} else {
			dst, err = MapTreeFile(m.Root, item.Path, req.Destination)
			if err != nil {
				return m, nil, newCopyError("map", item.Path, err)
			}
		}
		targets = append(targets, Target{Source: item.Path, Destination: dst, Size: item.Size})
	}
	return m, targets, nil
}

// Job copies one Request.
type Job struct {
	req      Request
	copier   *Copier
	progress Progress
	logger   *slog.Logger
}

// NewJob creates a job. A nil progress discards updates; a nil logger
// discards logs.
func NewJob(req Request, copier *Copier, progress Progress, logger *slog.Logger) *Job {
	if copier == nil {
		copier = NewCopier(DefaultChunkSize)
	}
	if progress == nil {
		progress = Discard
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Job{req: req, copier: copier, progress: progress, logger: logger}
}

// Run copies every planned file in order and stops at the first failure.
func (j *Job) Run(ctx context.Context) Outcome {
	start := time.Now()
	out := Outcome{Request: j.req}
	logger := j.logger.With("source", j.req.Source, "destination", j.req.Destination)

	m, targets, err := Plan(j.req)
	if err != nil {
		out.Err = err
		out.Duration = time.Since(start)
		logger.Error("backup plan failed", "error", err, "code", CodeOf(err))
		return out
	}
	out.Kind = m.Kind
	out.Total = m.TotalBytes
	logger.Info("backup started", "kind", m.Kind, "files", m.FileCount, "bytes", m.TotalBytes, "skipped", m.Skipped)

	sink := j.progress.NewSink(m.TotalBytes, j.req.Label())
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Warn("progress sink close failed", "error", err)
		}
	}()

	for _, t := range targets {
		n, err := j.copier.CopyFile(ctx, t.Source, t.Destination, sink.Add)
		out.Bytes += n
		if err != nil {
			out.Err = err
			out.Duration = time.Since(start)
			logger.Error("backup failed", "file", t.Source, "error", err, "code", CodeOf(err), "files_done", out.Files)
			return out
		}
		out.Files++
		logger.Debug("file copied", "file", t.Source, "to", t.Destination, "bytes", n)
	}

	out.Duration = time.Since(start)
	logger.Info("backup finished", "files", out.Files, "bytes", out.Bytes, "duration", out.Duration)
	return out
}
