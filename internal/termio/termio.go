package termio

import (
	"io"
	"os"
	"sync"
)

// Writer hands writes to a background goroutine so a slow terminal never
// stalls the copy workers that log or report progress.
type Writer struct {
	file    *os.File
	ch      chan []byte
	pending sync.WaitGroup
}

// NewWriter starts a queued writer for f.
func NewWriter(f *os.File) *Writer {
	w := &Writer{
		file: f,
		ch:   make(chan []byte, 1024),
	}
	go func() {
		for buf := range w.ch {
			_, _ = w.file.Write(buf)
			w.pending.Done()
		}
	}()
	return w
}

func (w *Writer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	w.pending.Add(1)
	w.ch <- buf
	return len(p), nil
}

// Flush blocks until every queued write has reached the file.
func (w *Writer) Flush() {
	w.pending.Wait()
}

// File returns the underlying file.
func (w *Writer) File() *os.File {
	return w.file
}

// Stat lets terminal detection see through the queue.
func (w *Writer) Stat() (os.FileInfo, error) {
	return w.file.Stat()
}

type manager struct {
	once   sync.Once
	stdout *Writer
	stderr *Writer
}

var global manager

func Init() {
	global.once.Do(func() {
		global.stdout = NewWriter(os.Stdout)
		global.stderr = NewWriter(os.Stderr)
	})
}

func Stdout() io.Writer {
	Init()
	return global.stdout
}

func Stderr() io.Writer {
	Init()
	return global.stderr
}

func StdoutFile() *os.File {
	Init()
	return global.stdout.file
}

// Flush drains both standard streams. Call it before exiting.
func Flush() {
	Init()
	global.stdout.Flush()
	global.stderr.Flush()
}
