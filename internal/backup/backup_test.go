package backup

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, data string, perm os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(data), perm))
	require.NoError(t, os.Chmod(path, perm))
}

// listFiles returns the slash-separated relative paths of every regular file under root.
func listFiles(t *testing.T, root string) []string {
	t.Helper()
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	sort.Strings(files)
	return files
}

type recordingProgress struct {
	mu    sync.Mutex
	sinks []*recordingSink
}

func (p *recordingProgress) NewSink(total int64, label string) Sink {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := &recordingSink{total: total, label: label}
	p.sinks = append(p.sinks, s)
	return s
}

func (p *recordingProgress) all() []*recordingSink {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*recordingSink(nil), p.sinks...)
}

type recordingSink struct {
	mu     sync.Mutex
	total  int64
	label  string
	adds   []int64
	closed bool
}

func (s *recordingSink) Add(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adds = append(s.adds, n)
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) sum() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, n := range s.adds {
		total += n
	}
	return total
}
