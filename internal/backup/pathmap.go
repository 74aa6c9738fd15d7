package backup

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sheerbytes/juggler/pkg/manifest"
)

// Stem returns name without its final extension. A leading dot does not
// start an extension and neither does a trailing one, so ".bashrc" and
// "notes." are returned unchanged and "a.tar.gz" becomes "a.tar".
func Stem(name string) string {
	i := strings.LastIndex(name, ".")
	if i <= 0 || i == len(name)-1 {
		return name
	}
	return name[:i]
}

// MapSingleFile places a lone file under a directory named after its stem:
// dstRoot/<stem>/<name>.
func MapSingleFile(srcFile, dstRoot string) string {
	name := filepath.Base(srcFile)
	return filepath.Join(dstRoot, Stem(name), name)
}

// MapTreeFile places srcFile, found under srcRoot, at
// dstRoot/<base name of srcRoot>/<path relative to srcRoot>.
func MapTreeFile(srcRoot, srcFile, dstRoot string) (string, error) {
	rel, err := filepath.Rel(srcRoot, srcFile)
	if err != nil {
		return "", fmt.Errorf("map %s under %s: %w", srcFile, srcRoot, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("map %s: not under %s", srcFile, srcRoot)
	}
	return filepath.Join(dstRoot, manifest.BaseName(srcRoot), rel), nil
}
