package backup

import (
	"io/fs"
	"os"

	"github.com/djherbis/times"
)

// modeBits are the bits replicated from source to destination.
const modeBits = fs.ModePerm | fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky

// applyMetadata sets dst's access and modification times from the source's
// info, then its permission bits. Only call it once every byte of dst is
// written. info must be taken before the source is read, or the copy's own
// read shows up as the access time.
func applyMetadata(dst string, info fs.FileInfo) error {
	atime := info.ModTime()
	if info.Sys() != nil {
		atime = times.Get(info).AccessTime()
	}
	if err := os.Chtimes(dst, atime, info.ModTime()); err != nil {
		return newCopyError("chtimes", dst, err)
	}
	if err := os.Chmod(dst, info.Mode()&modeBits); err != nil {
		return newCopyError("chmod", dst, err)
	}
	return nil
}
