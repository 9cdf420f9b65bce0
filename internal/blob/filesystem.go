package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Filesystem stores blobs under a root directory, fanned out two levels
// deep by digest prefix so no single directory grows unbounded.
type Filesystem struct {
	root string
}

// NewFilesystem creates the root directory if needed.
func NewFilesystem(root string) (*Filesystem, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create blob root %s: %w", root, err)
	}
	return &Filesystem{root: root}, nil
}

// Put streams r to a temp file while hashing, then moves it into place
// under its digest. An existing blob with the same digest is kept as is.
func (f *Filesystem) Put(ctx context.Context, r io.Reader) (string, int64, error) {
	tmp, err := os.CreateTemp(f.root, "upload-*")
	if err != nil {
		return "", 0, fmt.Errorf("create temp blob: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err != nil {
		return "", 0, fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", 0, fmt.Errorf("flush blob: %w", err)
	}

	ref := hex.EncodeToString(h.Sum(nil))
	path := f.path(ref)
	if _, err := os.Stat(path); err == nil {
		return ref, size, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", 0, fmt.Errorf("create blob dir: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", 0, fmt.Errorf("place blob %s: %w", ref, err)
	}
	return ref, size, nil
}

// Open returns the blob's content for streaming to a client.
func (f *Filesystem) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	rc, err := os.Open(f.path(ref))
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", ref, err)
	}
	return rc, nil
}

func (f *Filesystem) path(ref string) string {
	return filepath.Join(f.root, ref[:2], ref[2:4], ref[4:])
}
