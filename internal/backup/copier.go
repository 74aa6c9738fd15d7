package backup

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/sheerbytes/juggler/internal/bufpool"
)

// DefaultChunkSize is the number of bytes moved per read/write cycle.
const DefaultChunkSize = 1 << 20

// Copier copies single files in fixed-size chunks.
type Copier struct {
	chunkSize int
	pool      *bufpool.Pool
}

// NewCopier returns a copier using chunkSize bytes per chunk, or
// DefaultChunkSize when chunkSize is not positive.
func NewCopier(chunkSize int) *Copier {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Copier{
		chunkSize: chunkSize,
		pool:      bufpool.For(chunkSize),
	}
}

// ChunkSize returns the copier's chunk size in bytes.
func (c *Copier) ChunkSize() int {
	return c.chunkSize
}

// CopyFile copies src to dst, creating dst's parent directories and
// truncating any existing dst. onProgress, if set, is called once per chunk
// with that chunk's length, after the chunk is written. Timestamps and then
// permission bits, as src had them when opened, are applied only after the
// last chunk.
//
// On failure the bytes already written stay in dst and the returned error
// is a *CopyError.
func (c *Copier) CopyFile(ctx context.Context, src, dst string, onProgress func(n int64)) (int64, error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, newCopyError("mkdir", dir, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return 0, newCopyError("open", src, err)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return 0, newCopyError("stat", src, err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return 0, newCopyError("create", dst, err)
	}

	written, err := c.copyChunks(ctx, in, out, src, dst, onProgress)
	if err != nil {
		_ = out.Close()
		return written, err
	}
	if err := out.Close(); err != nil {
		return written, newCopyError("close", dst, err)
	}

	if err := applyMetadata(dst, info); err != nil {
		return written, err
	}
	return written, nil
}

func (c *Copier) copyChunks(ctx context.Context, r io.Reader, w io.Writer, src, dst string, onProgress func(n int64)) (int64, error) {
	bp := c.pool.Get()
	defer c.pool.Put(bp)
	buf := *bp

	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, newCopyError("copy", src, err)
		}
		n, rerr := io.ReadFull(r, buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return written, newCopyError("write", dst, err)
			}
			written += int64(n)
			if onProgress != nil {
				onProgress(int64(n))
			}
		}
		switch {
		case rerr == nil:
		case errors.Is(rerr, io.EOF), errors.Is(rerr, io.ErrUnexpectedEOF):
			return written, nil
		default:
			return written, newCopyError("read", src, rerr)
		}
	}
}
