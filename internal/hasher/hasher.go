// Package hasher computes content digests for the supported addressing
// algorithms. Hashing streams through a fixed-size buffer; the buffer size
// is a throughput knob and never affects the resulting digest.
package hasher

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/docker/go-units"
)

// ChunkSize is the read buffer used when streaming file content.
const ChunkSize = 1 * units.MiB

// New returns a fresh hash state for the named algorithm ("sha1" or "md5").
func New(algorithm string) (hash.Hash, error) {
	switch algorithm {
	case "sha1":
		return sha1.New(), nil
	case "md5":
		return md5.New(), nil
	default:
		return nil, fmt.Errorf("unknown digest algorithm %q", algorithm)
	}
}

// SumReader streams r through the digest function and returns the
// lowercase hex digest.
func SumReader(algorithm string, r io.Reader) (string, error) {
	h, err := New(algorithm)
	if err != nil {
		return "", err
	}
	buf := make([]byte, ChunkSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumFile computes the digest of a file's content.
func SumFile(algorithm, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return SumReader(algorithm, f)
}

// SumBytes computes the digest of an in-memory buffer.
func SumBytes(algorithm string, data []byte) (string, error) {
	h, err := New(algorithm)
	if err != nil {
		return "", err
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}
