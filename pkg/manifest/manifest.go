// Package manifest builds the transfer plan for one backup source: what kind
// of source it is, which files will be copied and how many bytes that is.
package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Kind classifies a source path.
type Kind int

const (
	// KindFile is a single regular file.
	KindFile Kind = iota
	// KindTree is a directory copied recursively.
	KindTree
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindTree:
		return "tree"
	default:
		return "unknown"
	}
}

// FileItem is one regular file selected for copying.
type FileItem struct {
	Path    string      // Source path, joined onto the manifest root
	RelPath string      // Path relative to the root (base name for KindFile)
	Size    int64       // Size in bytes at scan time
	Mode    fs.FileMode // Mode at scan time
	ModTime time.Time   // Modification time at scan time
}

// Manifest is the plan for one source. It is computed once and not
// refreshed if the source changes while it is being copied.
type Manifest struct {
	Root       string     // Source path as given, cleaned
	Base       string     // Base name of the root
	Kind       Kind       // File or tree
	Items      []FileItem // Files to copy, in traversal order
	TotalBytes int64      // Sum of Items sizes
	FileCount  int        // len(Items)
	Skipped    int        // Regular files left out by the name filter
}

// Selected reports whether a file name passes the tree filter: the name must
// contain a dot somewhere. Names without one ("README", "Makefile") are not
// copied and do not count towards the total.
func Selected(name string) bool {
	return strings.Contains(name, ".")
}

// Estimate returns the number of bytes a backup of rootPath will transfer.
func Estimate(rootPath string) (int64, error) {
	m, err := Scan(rootPath)
	return m.TotalBytes, err
}

// Scan classifies rootPath and lists the files a backup of it will copy.
// A missing root returns an error wrapping fs.ErrNotExist. Entries that
// cannot be read during the walk are skipped and reported together in the
// returned error, alongside the partial manifest.
func Scan(rootPath string) (Manifest, error) {
	root := filepath.Clean(rootPath)
	info, err := os.Stat(root)
	if err != nil {
		return Manifest{}, fmt.Errorf("manifest: stat %s: %w", rootPath, err)
	}

	m := Manifest{
		Root:  root,
		Base:  BaseName(root),
		Items: make([]FileItem, 0),
	}

	if !info.IsDir() {
		m.Kind = KindFile
		m.add(FileItem{
			Path:    root,
			RelPath: filepath.Base(root),
			Size:    info.Size(),
			Mode:    info.Mode(),
			ModTime: info.ModTime(),
		})
		return m, nil
	}

	m.Kind = KindTree
	// WalkDir does not descend into a symlinked root, so walk its target and
	// report paths under the root as given.
	walkRoot := root
	if li, err := os.Lstat(root); err == nil && li.Mode()&fs.ModeSymlink != 0 {
		if resolved, err := filepath.EvalSymlinks(root); err == nil {
			walkRoot = resolved
		}
	}
	var scanErrors []error
	err = filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			scanErrors = append(scanErrors, fmt.Errorf("cannot read %s: %w", path, err))
			if d != nil && d.IsDir() && path != walkRoot {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		// Stat follows symlinks so a link to a regular file is copied as that file.
		fi, err := os.Stat(path)
		if err != nil {
			scanErrors = append(scanErrors, fmt.Errorf("cannot stat %s: %w", path, err))
			return nil
		}
		if !fi.Mode().IsRegular() {
			return nil
		}
		if !Selected(d.Name()) {
			m.Skipped++
			return nil
		}

		rel, err := filepath.Rel(walkRoot, path)
		if err != nil {
			return fmt.Errorf("cannot compute relative path: %w", err)
		}
		m.add(FileItem{
			Path:    filepath.Join(root, rel),
			RelPath: rel,
			Size:    fi.Size(),
			Mode:    fi.Mode(),
			ModTime: fi.ModTime(),
		})
		return nil
	})
	if err != nil {
		return m, fmt.Errorf("manifest: walk %s: %w", rootPath, err)
	}
	if len(scanErrors) > 0 {
		return m, fmt.Errorf("manifest: scan of %s completed with %d error(s): %w", rootPath, len(scanErrors), errors.Join(scanErrors...))
	}
	return m, nil
}

func (m *Manifest) add(item FileItem) {
	m.Items = append(m.Items, item)
	m.FileCount++
	m.TotalBytes += item.Size
}

// BaseName is the directory name a backup of root is stored under. Roots
// like "." and "/" are resolved through the absolute path.
func BaseName(root string) string {
	root = filepath.Clean(root)
	base := filepath.Base(root)
	if base != "." && base != string(filepath.Separator) {
		return base
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "root"
	}
	base = filepath.Base(abs)
	if base == string(filepath.Separator) {
		return "root"
	}
	return base
}
