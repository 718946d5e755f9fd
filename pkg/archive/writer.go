package archive

import (
	"archive/tar"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/tapestash/tapestash/pkg/db"
	"github.com/tapestash/tapestash/pkg/scan"
)

// BlockSize is the unit of content streaming: files are read, written and
// hashed in blocks of this size, which bounds peak memory per entry.
const BlockSize = 1 << 20

// ChunkName derives a chunk filename from its ordinal. The zero-padded hex
// ordinal keeps names collision-free and lexicographically ordered for the
// lifetime of the archive.
func ChunkName(ordinal int) string {
	return fmt.Sprintf("%06x.tar", ordinal)
}

type countWriter struct {
	w io.Writer
	n int64
}

func (cw *countWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// Writer owns one open chunk: a tar stream whose current byte position and
// accumulated pre-archive size it tracks across entries. The accumulated
// size is the sum of source sizes added so far, not the encoded size; it
// only has to be a conservative input to the boundary decision.
type Writer struct {
	name        string
	path        string
	f           *os.File
	cw          *countWriter
	tw          *tar.Writer
	accumulated int64
	buf         []byte
}

func NewWriter(cache string, ordinal int) (*Writer, error) {
	name := ChunkName(ordinal)
	path := filepath.Join(cache, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "creating chunk %s", name)
	}
	cw := &countWriter{w: f}
	return &Writer{
		name: name,
		path: path,
		f:    f,
		cw:   cw,
		tw:   tar.NewWriter(cw),
		buf:  make([]byte, BlockSize),
	}, nil
}

func (w *Writer) Name() string { return w.name }
func (w *Writer) Path() string { return w.path }

// Add appends one entry to the chunk and returns its record: the byte offset
// at which its header starts, its size, mtime, and the md5 of its content.
// Directories, placeholders and other non-regular entries get a header only
// and a nil digest.
//
// A regular file is opened before any bytes are emitted, so the usual
// per-entry faults (vanished file, permission denied) leave the chunk
// untouched. If the file shrinks mid-read the declared size is zero-filled
// to keep the stream well-formed; the entry is still reported as failed.
func (w *Writer) Add(root string, entry scan.Entry) (*db.FileRecord, error) {
	full := filepath.Join(root, filepath.FromSlash(entry.Path))
	info, err := os.Lstat(full)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", entry.Path)
	}

	var link string
	if info.Mode()&os.ModeSymlink != 0 {
		if link, err = os.Readlink(full); err != nil {
			return nil, errors.Wrapf(err, "readlink %s", entry.Path)
		}
	}

	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return nil, errors.Wrapf(err, "header for %s", entry.Path)
	}
	hdr.Name = entry.Path
	if info.IsDir() {
		hdr.Name += "/"
	}

	var f *os.File
	if info.Mode().IsRegular() {
		if f, err = os.Open(full); err != nil {
			return nil, errors.Wrapf(err, "open %s", entry.Path)
		}
		defer f.Close()
	}

	offset := w.cw.n
	if err := w.tw.WriteHeader(hdr); err != nil {
		return nil, errors.Wrapf(err, "writing header for %s", entry.Path)
	}

	var digest *string
	if f != nil {
		hasher := md5.New()
		n, err := io.CopyBuffer(io.MultiWriter(w.tw, hasher), io.LimitReader(f, hdr.Size), w.buf)
		if n < hdr.Size {
			if fillErr := w.zeroFill(hdr.Size - n); fillErr != nil {
				return nil, fillErr
			}
			if err == nil {
				err = errors.Errorf("%s truncated during read: got %d of %d bytes", entry.Path, n, hdr.Size)
			}
		}
		if err != nil {
			w.tw.Flush()
			return nil, errors.Wrapf(err, "reading %s", entry.Path)
		}
		sum := hex.EncodeToString(hasher.Sum(nil))
		digest = &sum
	}

	if err := w.tw.Flush(); err != nil {
		return nil, errors.Wrapf(err, "flushing %s", entry.Path)
	}

	return &db.FileRecord{
		Name:   entry.Path,
		Size:   hdr.Size,
		Mtime:  info.ModTime(),
		Digest: digest,
		Chunk:  w.name,
		Offset: offset,
	}, nil
}

func (w *Writer) zeroFill(n int64) error {
	zeros := make([]byte, BlockSize)
	for n > 0 {
		block := int64(len(zeros))
		if n < block {
			block = n
		}
		if _, err := w.tw.Write(zeros[:block]); err != nil {
			return errors.Wrap(err, "zero-filling truncated entry")
		}
		n -= block
	}
	return nil
}

// Close finalizes the tar trailer and closes the chunk file. After Close
// the chunk is a complete, terminated container ready for transfer.
func (w *Writer) Close() error {
	if err := w.tw.Close(); err != nil {
		w.f.Close()
		return errors.Wrapf(err, "finalizing chunk %s", w.name)
	}
	return errors.Wrapf(w.f.Close(), "closing chunk %s", w.name)
}
