package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheerbytes/juggler/pkg/manifest"
)

func TestJob_SingleFile(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "home", "notes.txt")
	dst := filepath.Join(tmp, "backup")
	writeFile(t, src, "0123456789", 0644)

	prog := &recordingProgress{}
	out := NewJob(Request{Source: src, Destination: dst}, nil, prog, nil).Run(context.Background())
	require.NoError(t, out.Err)
	assert.Equal(t, manifest.KindFile, out.Kind)
	assert.Equal(t, 1, out.Files)
	assert.Equal(t, int64(10), out.Bytes)

	data, err := os.ReadFile(filepath.Join(dst, "notes", "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))

	sinks := prog.all()
	require.Len(t, sinks, 1)
	assert.Equal(t, int64(10), sinks[0].total)
	assert.Equal(t, "Copying "+src+" to "+dst, sinks[0].label)
	assert.Equal(t, int64(10), sinks[0].sum())
	assert.True(t, sinks[0].closed)
}

func TestJob_TreeSkipsNamesWithoutDot(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "proj")
	dst := filepath.Join(tmp, "backup")
	writeFile(t, filepath.Join(src, "src", "a.py"), "print", 0644)
	writeFile(t, filepath.Join(src, "README"), "hey", 0644)

	prog := &recordingProgress{}
	out := NewJob(Request{Source: src, Destination: dst}, NewCopier(2), prog, nil).Run(context.Background())
	require.NoError(t, out.Err)
	assert.Equal(t, manifest.KindTree, out.Kind)
	assert.Equal(t, int64(5), out.Total)

	if diff := cmp.Diff([]string{"proj/src/a.py"}, listFiles(t, dst)); diff != "" {
		t.Fatalf("destination tree mismatch (-want +got):\n%s", diff)
	}

	sinks := prog.all()
	require.Len(t, sinks, 1)
	assert.Equal(t, int64(5), sinks[0].total)
	assert.Equal(t, []int64{2, 2, 1}, sinks[0].adds)
	assert.True(t, sinks[0].closed)
}

func TestJob_EmptyTreeStillReports(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "empty")
	require.NoError(t, os.MkdirAll(src, 0755))

	prog := &recordingProgress{}
	out := NewJob(Request{Source: src, Destination: filepath.Join(tmp, "b")}, nil, prog, nil).Run(context.Background())
	require.NoError(t, out.Err)
	assert.Zero(t, out.Files)

	sinks := prog.all()
	require.Len(t, sinks, 1)
	assert.Zero(t, sinks[0].total)
	assert.Empty(t, sinks[0].adds)
	assert.True(t, sinks[0].closed)
}

func TestJob_AbortsOnFirstFailure(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "proj")
	dst := filepath.Join(tmp, "X")
	writeFile(t, filepath.Join(src, "a.txt"), "aaa", 0644)
	writeFile(t, filepath.Join(src, "b", "c.txt"), "ccc", 0644)
	writeFile(t, filepath.Join(src, "z.txt"), "zzz", 0644)
	// A file where the b/ directory must go makes c.txt uncopyable.
	writeFile(t, filepath.Join(dst, "proj", "b"), "", 0644)

	prog := &recordingProgress{}
	out := NewJob(Request{Source: src, Destination: dst}, nil, prog, nil).Run(context.Background())
	require.Error(t, out.Err)
	assert.True(t, errors.Is(out.Err, ErrIO))
	assert.Equal(t, 1, out.Files)
	assert.Equal(t, int64(3), out.Bytes)

	_, err := os.Stat(filepath.Join(dst, "proj", "z.txt"))
	assert.True(t, os.IsNotExist(err), "files after the failure must not be attempted")

	sinks := prog.all()
	require.Len(t, sinks, 1)
	assert.True(t, sinks[0].closed, "sink must be closed on failure")
	assert.Equal(t, int64(3), sinks[0].sum())
}

func TestJob_MissingSourceFailsBeforeProgress(t *testing.T) {
	tmp := t.TempDir()
	prog := &recordingProgress{}
	out := NewJob(Request{Source: filepath.Join(tmp, "gone"), Destination: tmp}, nil, prog, nil).Run(context.Background())
	require.Error(t, out.Err)
	assert.Equal(t, CodeNotFound, CodeOf(out.Err))
	assert.Empty(t, prog.all())
}

func TestJob_RerunOverwrites(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "proj")
	dst := filepath.Join(tmp, "backup")
	writeFile(t, filepath.Join(src, "a.txt"), "first", 0644)
	writeFile(t, filepath.Join(src, "d", "b.md"), "# b", 0644)

	req := Request{Source: src, Destination: dst}
	require.NoError(t, NewJob(req, nil, nil, nil).Run(context.Background()).Err)
	first := listFiles(t, dst)

	require.NoError(t, NewJob(req, nil, nil, nil).Run(context.Background()).Err)
	if diff := cmp.Diff(first, listFiles(t, dst)); diff != "" {
		t.Fatalf("rerun changed the tree (-first +second):\n%s", diff)
	}
	data, err := os.ReadFile(filepath.Join(dst, "proj", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestPlan_TargetsSumToTotal(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "proj")
	writeFile(t, filepath.Join(src, "x.bin"), "12345678", 0644)
	writeFile(t, filepath.Join(src, "sub", "y.txt"), "12", 0644)

	m, targets, err := Plan(Request{Source: src, Destination: "/b"})
	require.NoError(t, err)

	var sum int64
	for _, tg := range targets {
		sum += tg.Size
	}
	assert.Equal(t, m.TotalBytes, sum)
	assert.Equal(t, int64(10), sum)
}
