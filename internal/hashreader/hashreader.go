// Package hashreader wraps an [io.Reader], computing SHA-256, SHA-384, and
// SHA-512 digests of everything read through it. It is the multi-digest
// primitive the storage backend uses to compute a blob's content addresses
// in one pass over the bytes, the way [libindex.RemoteFetchArena] tees a
// single hash.Hash across a fetch instead of re-reading a spool file.
package hashreader

import (
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"io"
)

// Digests holds the three digests computed over a single stream.
type Digests struct {
	SHA256 []byte
	SHA384 []byte
	SHA512 []byte
}

// Reader tees reads through three running hashes.
type Reader struct {
	r          io.Reader
	h256       hash.Hash
	h384, h512 hash.Hash
	n          int64
}

// New wraps r, hashing every byte read through the returned Reader.
func New(r io.Reader) *Reader {
	return &Reader{
		r:    r,
		h256: sha256.New(),
		h384: sha512.New384(),
		h512: sha512.New(),
	}
}

func (hr *Reader) Read(p []byte) (int, error) {
	n, err := hr.r.Read(p)
	if n > 0 {
		hr.h256.Write(p[:n])
		hr.h384.Write(p[:n])
		hr.h512.Write(p[:n])
		hr.n += int64(n)
	}
	return n, err
}

// N reports the number of bytes read so far.
func (hr *Reader) N() int64 { return hr.n }

// Sum returns the digests accumulated so far. It does not consume or reset
// the underlying hashes; call it once the caller knows the stream is
// exhausted (on EOF).
func (hr *Reader) Sum() Digests {
	return Digests{
		SHA256: hr.h256.Sum(nil),
		SHA384: hr.h384.Sum(nil),
		SHA512: hr.h512.Sum(nil),
	}
}
