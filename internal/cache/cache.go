// Package cache implements the local content-addressed blob cache.
//
// Storage layout (git-style sharding, one namespace per algorithm):
//
//	root/
//	  objects/
//	    sha1/ab/cdef123...  (content-addressed blobs)
//	    md5/01/2345ab...
//	  tmp/                  (staging area for in-flight writes)
//
// Blobs are immutable once published. Writes stage under tmp/, verify the
// digest of the bytes actually written, then publish with an atomic rename,
// so a partially written or corrupted blob is never visible under its final
// digest.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/aweris/hashstore/internal/hasher"
)

var (
	// ErrNotFound indicates the digest has no blob in the cache.
	ErrNotFound = errors.New("cache: object not found")

	// ErrIntegrity indicates the written bytes do not hash to the expected
	// digest.
	ErrIntegrity = errors.New("cache: digest mismatch")
)

// PutResult describes a completed Put.
type PutResult struct {
	Path   string // published blob location
	Size   int64  // blob length in bytes
	Linked bool   // blob is a hard link to the source, not a copy
	Found  bool   // blob was already present; nothing was written
}

// Cache is a content-addressed on-disk blob cache.
type Cache struct {
	root      string
	hardLinks bool
	l         *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-digest write serialization
}

// New creates or opens a cache rooted at dir.
func New(dir string, hardLinks bool, l *zap.Logger) (*Cache, error) {
	if l == nil {
		l = zap.NewNop()
	}
	for _, sub := range []string{"objects", "tmp"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	return &Cache{
		root:      dir,
		hardLinks: hardLinks,
		l:         l,
		locks:     make(map[string]*sync.Mutex),
	}, nil
}

// Root returns the cache root directory.
func (c *Cache) Root() string { return c.root }

// Path returns the blob location for a digest, or ErrNotFound.
func (c *Cache) Path(algorithm, digest string) (string, error) {
	p := c.objectPath(algorithm, digest)
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s://%s", ErrNotFound, algorithm, digest)
		}
		return "", err
	}
	return p, nil
}

// Has reports whether a blob for the digest is present.
func (c *Cache) Has(algorithm, digest string) bool {
	_, err := os.Stat(c.objectPath(algorithm, digest))
	return err == nil
}

// Size returns the length of a cached blob.
func (c *Cache) Size(algorithm, digest string) (int64, error) {
	info, err := os.Stat(c.objectPath(algorithm, digest))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s://%s", ErrNotFound, algorithm, digest)
		}
		return 0, err
	}
	return info.Size(), nil
}

// Put ingests the file at src under the given digest. When hard links are
// enabled and the filesystem allows it, the blob is a hard link to src and
// no data is copied. The digest of the staged bytes is always re-derived;
// a mismatch (wrong caller-supplied digest, or src changed underfoot)
// rejects the put with ErrIntegrity.
//
// Storing an already-present digest is a no-op.
func (c *Cache) Put(ctx context.Context, src, algorithm, digest string) (PutResult, error) {
	target := c.objectPath(algorithm, digest)

	unlock := c.lockDigest(algorithm + digest)
	defer unlock()

	if info, err := os.Stat(target); err == nil {
		return PutResult{Path: target, Size: info.Size(), Found: true}, nil
	}

	tmp, linked, err := c.stage(src)
	if err != nil {
		return PutResult{}, err
	}
	defer os.Remove(tmp) // no-op after successful rename

	actual, err := hasher.SumFile(algorithm, tmp)
	if err != nil {
		return PutResult{}, err
	}
	if actual != digest {
		return PutResult{}, fmt.Errorf("%w: %s hashed to %s, expected %s", ErrIntegrity, src, actual, digest)
	}

	info, err := os.Stat(tmp)
	if err != nil {
		return PutResult{}, err
	}

	if err := c.publish(ctx, tmp, target); err != nil {
		return PutResult{}, err
	}

	c.l.Debug("cached blob",
		zap.String("digest", digest),
		zap.Int64("size", info.Size()),
		zap.Bool("linked", linked))

	return PutResult{Path: target, Size: info.Size(), Linked: linked}, nil
}

// PutBytes stores an in-memory buffer and returns its digest. Used for
// directory manifests and other internally generated blobs.
func (c *Cache) PutBytes(ctx context.Context, algorithm string, data []byte) (string, error) {
	digest, err := hasher.SumBytes(algorithm, data)
	if err != nil {
		return "", err
	}
	target := c.objectPath(algorithm, digest)

	unlock := c.lockDigest(algorithm + digest)
	defer unlock()

	if _, err := os.Stat(target); err == nil {
		return digest, nil
	}

	tmp, err := c.tempFile()
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp)

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", err
	}
	if err := c.publish(ctx, tmp, target); err != nil {
		return "", err
	}
	return digest, nil
}

// PutVerified streams r into the cache under an expected digest, hashing as
// it writes. On mismatch nothing is published and ErrIntegrity is returned:
// a corrupted download can never poison the cache.
func (c *Cache) PutVerified(ctx context.Context, r io.Reader, algorithm, digest string) (int64, error) {
	target := c.objectPath(algorithm, digest)

	unlock := c.lockDigest(algorithm + digest)
	defer unlock()

	if info, err := os.Stat(target); err == nil {
		// Drain so the caller's source is fully consumed either way.
		_, _ = io.Copy(io.Discard, r)
		return info.Size(), nil
	}

	tmp, err := c.tempFile()
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp)

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}

	h, err := hasher.New(algorithm)
	if err != nil {
		f.Close()
		return 0, err
	}

	written, err := io.Copy(io.MultiWriter(f, h), r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, err
	}

	actual := fmt.Sprintf("%x", h.Sum(nil))
	if actual != digest {
		return 0, fmt.Errorf("%w: stream hashed to %s, expected %s", ErrIntegrity, actual, digest)
	}

	if err := c.publish(ctx, tmp, target); err != nil {
		return 0, err
	}
	return written, nil
}

// stage places the source content under tmp/, by hard link when allowed.
func (c *Cache) stage(src string) (tmp string, linked bool, err error) {
	tmp, err = c.tempFile()
	if err != nil {
		return "", false, err
	}

	if c.hardLinks {
		// os.Link refuses to overwrite; drop the placeholder first.
		os.Remove(tmp)
		if err := os.Link(src, tmp); err == nil {
			return tmp, true, nil
		}
		// Cross-device or unsupported filesystem: fall through to a copy.
		c.l.Debug("hard link failed, copying", zap.String("src", src))
	}

	in, err := os.Open(src)
	if err != nil {
		os.Remove(tmp)
		return "", false, err
	}
	defer in.Close()

	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		os.Remove(tmp)
		return "", false, err
	}

	_, err = io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return "", false, err
	}
	return tmp, false, nil
}

// publish atomically moves a verified staging file into place. A canceled
// context aborts before the blob becomes visible.
func (c *Cache) publish(ctx context.Context, tmp, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("publish blob: %w", err)
	}
	return nil
}

func (c *Cache) tempFile() (string, error) {
	f, err := os.CreateTemp(filepath.Join(c.root, "tmp"), "blob-*")
	if err != nil {
		return "", err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return "", err
	}
	return name, nil
}

func (c *Cache) objectPath(algorithm, digest string) string {
	if len(digest) < 2 {
		return filepath.Join(c.root, "objects", algorithm, digest)
	}
	return filepath.Join(c.root, "objects", algorithm, digest[:2], digest[2:])
}

func (c *Cache) lockDigest(key string) func() {
	c.mu.Lock()
	l, ok := c.locks[key]
	if !ok {
		l = &sync.Mutex{}
		c.locks[key] = l
	}
	c.mu.Unlock()
	l.Lock()
	return l.Unlock
}
