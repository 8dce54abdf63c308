// Package storage is the content-addressed blob backend. Every ingested
// document is written once, keyed by its SHA-256 digest, and laid out with
// a two-level directory fan-out so no directory accumulates more entries
// than a filesystem handles comfortably.
//
// The store/retrieve split and the write-to-temp-then-rename discipline
// follow [libindex.RemoteFetchArena]'s fetcher: spool to a temp file while
// hashing, validate, then make the file visible under its final name only
// once it's known good.
package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/quay/zlog"

	"github.com/quay/vexgraph"
	"github.com/quay/vexgraph/internal/hashreader"
)

// Store is the public interface C1 exposes to the rest of the module. It is
// implemented by [FS].
type Store interface {
	// Put reads r to completion, persists it under its SHA-256 content
	// address, and returns the digests computed over the stream. Put is
	// idempotent: storing the same bytes twice is a no-op the second time.
	Put(ctx context.Context, r io.Reader) (hashreader.Digests, error)
	// Get opens the blob named by a SHA-256 content digest; an id of any
	// other kind is rejected with an error. It reports (nil, nil) if no
	// such blob exists.
	Get(ctx context.Context, id vexgraph.Id) (io.ReadCloser, error)
	// Has reports whether a blob exists without opening it.
	Has(ctx context.Context, id vexgraph.Id) (bool, error)
}

// FS is a [Store] backed by a local directory tree.
type FS struct {
	root *os.Root
}

var _ Store = (*FS)(nil)

// Open opens (creating if necessary) a content store rooted at dir.
func Open(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: unable to create root %q: %w", dir, err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: unable to open root %q: %w", dir, err)
	}
	return &FS{root: root}, nil
}

// Close releases the backend's handle on the root directory.
func (s *FS) Close() error { return s.root.Close() }

// contentPath returns the two-level fan-out path for a lowercase hex
// SHA-256 digest: content/<h[0:2]>/<h[2:4]>/<h>.
func contentPath(hexSum string) string {
	return filepath.Join("content", hexSum[0:2], hexSum[2:4], hexSum)
}

func (s *FS) Put(ctx context.Context, r io.Reader) (hashreader.Digests, error) {
	hr := hashreader.New(r)

	tmp, err := os.CreateTemp("", "vexgraph-blob-*")
	if err != nil {
		return hashreader.Digests{}, &vexgraph.Error{Op: "storage.Put", Kind: vexgraph.ErrStorage, Inner: err}
	}
	tmpPath := tmp.Name()
	ok := false
	defer func() {
		tmp.Close()
		if !ok {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, hr); err != nil {
		return hashreader.Digests{}, &vexgraph.Error{Op: "storage.Put", Kind: vexgraph.ErrStorage, Inner: err}
	}
	if err := tmp.Sync(); err != nil {
		return hashreader.Digests{}, &vexgraph.Error{Op: "storage.Put", Kind: vexgraph.ErrStorage, Inner: err}
	}
	digests := hr.Sum()

	rel := contentPath(hex.EncodeToString(digests.SHA256))
	if err := s.root.MkdirAll(filepath.Dir(rel), 0o755); err != nil {
		return hashreader.Digests{}, &vexgraph.Error{Op: "storage.Put", Kind: vexgraph.ErrStorage, Inner: err}
	}

	// A blob already on disk with the same content address is identical by
	// construction; skip the rename and leave the existing file untouched.
	if _, err := s.root.Stat(rel); err == nil {
		ok = true
		zlog.Debug(ctx).Str("digest", hex.EncodeToString(digests.SHA256)).Msg("blob already stored")
		return digests, nil
	}

	tmp.Close()
	if err := os.Rename(tmpPath, filepath.Join(s.root.Name(), rel)); err != nil {
		return hashreader.Digests{}, &vexgraph.Error{Op: "storage.Put", Kind: vexgraph.ErrStorage, Inner: err}
	}
	ok = true
	zlog.Debug(ctx).Str("digest", hex.EncodeToString(digests.SHA256)).Int64("size", hr.N()).Msg("blob stored")
	return digests, nil
}

func (s *FS) Get(ctx context.Context, id vexgraph.Id) (io.ReadCloser, error) {
	rel, err := pathForId(id)
	if err != nil {
		return nil, &vexgraph.Error{Op: "storage.Get", Kind: vexgraph.ErrValidation, Inner: err}
	}
	f, err := s.root.Open(rel)
	switch {
	case err == nil:
		return f, nil
	case errors.Is(err, os.ErrNotExist):
		return nil, nil
	default:
		return nil, &vexgraph.Error{Op: "storage.Get", Kind: vexgraph.ErrStorage, Inner: err}
	}
}

func (s *FS) Has(ctx context.Context, id vexgraph.Id) (bool, error) {
	rel, err := pathForId(id)
	if err != nil {
		return false, &vexgraph.Error{Op: "storage.Has", Kind: vexgraph.ErrValidation, Inner: err}
	}
	_, err = s.root.Stat(rel)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, &vexgraph.Error{Op: "storage.Has", Kind: vexgraph.ErrStorage, Inner: err}
	}
}

// pathForId derives a blob's content path from a SHA-256 [vexgraph.Id].
// Only SHA-256 addresses the content store; SHA-384/512 are recorded
// alongside a SourceDocument row for defense-in-depth verification but are
// not independent lookup keys.
func pathForId(id vexgraph.Id) (string, error) {
	if id.Kind() != vexgraph.KindSHA256 {
		return "", fmt.Errorf("storage: blob lookup requires a sha256 id, got %s", id.Kind())
	}
	return contentPath(hex.EncodeToString(id.Checksum())), nil
}
