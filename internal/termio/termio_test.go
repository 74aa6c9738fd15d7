package termio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriterFlushDrainsInOrder(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out.log"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	w := NewWriter(f)
	var want strings.Builder
	for i := 0; i < 200; i++ {
		line := fmt.Sprintf("line %d\n", i)
		want.WriteString(line)
		if _, err := w.Write([]byte(line)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	w.Flush()

	got, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != want.String() {
		t.Fatalf("unexpected content: got %d bytes, want %d", len(got), want.Len())
	}
}

func TestWriterCopiesCallerBuffer(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out.log"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	w := NewWriter(f)
	buf := []byte("abc")
	_, _ = w.Write(buf)
	buf[0] = 'x'
	w.Flush()

	got, _ := os.ReadFile(f.Name())
	if string(got) != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
}

func TestWriterStatIsNotTerminalForFiles(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out.log"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	info, err := NewWriter(f).Stat()
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode()&os.ModeCharDevice != 0 {
		t.Fatalf("regular file reported as char device")
	}
}
