package hashstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/aweris/hashstore/internal/cache"
	"github.com/aweris/hashstore/internal/hasher"
	"github.com/aweris/hashstore/internal/remote"
)

// Store is the content-addressable storage engine: a local cache keyed by
// digest, optionally backed by a remote blob database.
//
// A Store's configuration is fixed at New; all methods are safe for
// concurrent use.
type Store struct {
	opts      *Options
	cache     *cache.Cache
	remote    *remote.Client
	manifests *lru.Cache[string, *Manifest]
	l         *zap.Logger
}

// New creates a Store from the given options.
func New(opts ...Option) (*Store, error) {
	o := defaultOptions()
	for _, apply := range opts {
		apply(o)
	}

	if !o.Algorithm.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, o.Algorithm)
	}
	if o.RemoteOnly && o.RemoteURL == "" {
		return nil, fmt.Errorf("%w: remote-only mode requires a remote URL", ErrNoRemote)
	}

	c, err := cache.New(o.CacheDir, o.HardLinks, o.Logger)
	if err != nil {
		return nil, err
	}

	var rc *remote.Client
	if o.RemoteURL != "" {
		rc, err = remote.New(remote.Config{
			BaseURL:         o.RemoteURL,
			Channel:         o.Channel,
			Password:        o.Password,
			Timeout:         o.RemoteTimeout,
			Attempts:        o.RemoteAttempts,
			CompressUploads: o.CompressUploads,
			Logger:          o.Logger,
		})
		if err != nil {
			return nil, err
		}
	}

	manifests, err := lru.New[string, *Manifest](o.ManifestCacheSize)
	if err != nil {
		return nil, err
	}

	return &Store{
		opts:      o,
		cache:     c,
		remote:    rc,
		manifests: manifests,
		l:         o.Logger,
	}, nil
}

// Algorithm returns the digest algorithm used for new stores.
func (s *Store) Algorithm() Algorithm { return s.opts.Algorithm }

// CacheDir returns the local cache root.
func (s *Store) CacheDir() string { return s.cache.Root() }

// StoreFile hashes the file at path, stores it in the local cache
// (hard-linked when enabled) and, when a remote is in use, uploads it.
// The returned address carries the file's basename as its label.
func (s *Store) StoreFile(ctx context.Context, path string) (Address, error) {
	return s.storeFile(ctx, path, filepath.Base(path))
}

func (s *Store) storeFile(ctx context.Context, path, label string) (Address, error) {
	alg := s.opts.Algorithm

	digest, err := hasher.SumFile(string(alg), path)
	if err != nil {
		return Address{}, fmt.Errorf("hash %s: %w", path, err)
	}

	size := int64(0)
	if !s.opts.RemoteOnly {
		res, err := s.cache.Put(ctx, path, string(alg), digest)
		if err != nil {
			return Address{}, translateErr(err)
		}
		size = res.Size
	} else if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}

	if s.useRemote() && !s.opts.GitAnnexMode {
		if err := s.uploadFile(ctx, path, alg, digest, size); err != nil {
			return Address{}, err
		}
	}

	return fileAddress(alg, digest, label), nil
}

// StoreBytes stores an in-memory buffer under its digest. The label is
// cosmetic and becomes the address suffix.
func (s *Store) StoreBytes(ctx context.Context, data []byte, label string) (Address, error) {
	digest, err := s.storeBlobBytes(ctx, data)
	if err != nil {
		return Address{}, err
	}
	return fileAddress(s.opts.Algorithm, digest, label), nil
}

// storeBlobBytes caches and/or uploads a generated blob and returns its digest.
func (s *Store) storeBlobBytes(ctx context.Context, data []byte) (string, error) {
	alg := string(s.opts.Algorithm)

	digest, err := hasher.SumBytes(alg, data)
	if err != nil {
		return "", err
	}
	if !s.opts.RemoteOnly {
		if _, err := s.cache.PutBytes(ctx, alg, data); err != nil {
			return "", translateErr(err)
		}
	}
	if s.useRemote() {
		if err := s.remote.Upload(ctx, alg, digest, bytes.NewReader(data), int64(len(data))); err != nil {
			return "", translateErr(err)
		}
	}
	return digest, nil
}

// LoadFile materializes the content behind addr as a local file and returns
// its path. A non-address argument is treated as a plain filesystem path.
// With a non-empty dest the content is copied there and dest is returned;
// otherwise the cache location is returned.
//
// Directory addresses resolve their relative path through manifests first;
// a bare directory address yields the manifest blob itself.
func (s *Store) LoadFile(ctx context.Context, addr string, dest string) (string, error) {
	if !IsAddress(addr) {
		if _, err := os.Stat(addr); err != nil {
			return "", fmt.Errorf("%w: %s", ErrNotFound, addr)
		}
		if dest == "" {
			return addr, nil
		}
		return dest, copyFile(addr, dest)
	}

	target, err := s.resolveFileAddress(ctx, addr)
	if err != nil {
		return "", err
	}

	path, err := s.ensureLocal(ctx, target, dest)
	if err != nil {
		return "", err
	}
	if dest != "" && path != dest {
		return dest, copyFile(path, dest)
	}
	return path, nil
}

// LoadBytes returns content behind addr, optionally restricted to a byte
// range (see WithStart/WithEnd). Range semantics are identical for local
// and remote sources: start inclusive, end exclusive; an absent start with
// a present end selects the last `end` bytes.
func (s *Store) LoadBytes(ctx context.Context, addr string, opts ...LoadOption) ([]byte, error) {
	var lo loadOpts
	for _, apply := range opts {
		apply(&lo)
	}

	target, err := s.resolveFileAddress(ctx, addr)
	if err != nil {
		return nil, err
	}
	alg, digest := string(target.Algorithm), target.Digest

	// Local hit: serve straight from the cached blob.
	if path, err := s.cache.Path(alg, digest); err == nil {
		size, err := s.cache.Size(alg, digest)
		if err != nil {
			return nil, translateErr(err)
		}
		start, end, err := resolveRange(size, lo)
		if err != nil {
			return nil, err
		}
		return readFileRange(path, start, end)
	}

	if !s.useRemote() {
		return nil, fmt.Errorf("%w: %s (remote disabled)", ErrNotFound, target)
	}

	// Whole-object remote load verifies and populates the cache first.
	if lo.start == nil && lo.end == nil {
		return s.loadBlobBytes(ctx, target.Algorithm, target.Digest)
	}

	// Partial remote load: ranged request, transparent slicing fallback.
	// Partial content cannot be digest-verified, so it is never cached.
	found, size, err := s.remote.Check(ctx, alg, digest)
	if err != nil {
		return nil, translateErr(err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, target)
	}
	start, end, err := resolveRange(size, lo)
	if err != nil {
		return nil, err
	}

	body, err := s.remote.DownloadRange(ctx, alg, digest, start, end)
	if err != nil {
		return nil, translateErr(err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemote, err)
	}
	if int64(len(data)) != end-start {
		return nil, fmt.Errorf("%w: ranged download returned %d bytes, expected %d",
			ErrRemote, len(data), end-start)
	}
	return data, nil
}

// FileInfo describes located content.
type FileInfo struct {
	Address Address
	Path    string // local path when available
	Size    int64
}

// Info locates content by address or plain path and reports where it lives
// and how big it is. Plain paths are hashed with the configured algorithm.
func (s *Store) Info(ctx context.Context, pathOrAddr string) (*FileInfo, error) {
	if !IsAddress(pathOrAddr) {
		info, err := os.Stat(pathOrAddr)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, pathOrAddr)
		}
		digest, err := hasher.SumFile(string(s.opts.Algorithm), pathOrAddr)
		if err != nil {
			return nil, err
		}
		return &FileInfo{
			Address: fileAddress(s.opts.Algorithm, digest, filepath.Base(pathOrAddr)),
			Path:    pathOrAddr,
			Size:    info.Size(),
		}, nil
	}

	target, err := s.resolveFileAddress(ctx, pathOrAddr)
	if err != nil {
		return nil, err
	}
	alg, digest := string(target.Algorithm), target.Digest

	if path, err := s.cache.Path(alg, digest); err == nil {
		size, _ := s.cache.Size(alg, digest)
		return &FileInfo{Address: target, Path: path, Size: size}, nil
	}

	if s.useRemote() {
		found, size, err := s.remote.Check(ctx, alg, digest)
		if err != nil {
			return nil, translateErr(err)
		}
		if found {
			return &FileInfo{Address: target, Size: size}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, target)
}

// ensureLocal returns a local path holding the verified content of a file
// address, downloading on cache miss when a remote is enabled. In
// remote-only mode the download lands at dest (or a temp file) instead of
// the cache.
func (s *Store) ensureLocal(ctx context.Context, addr Address, dest string) (string, error) {
	alg, digest := string(addr.Algorithm), addr.Digest

	if !s.opts.RemoteOnly {
		if path, err := s.cache.Path(alg, digest); err == nil {
			return path, nil
		}
	}

	if !s.useRemote() {
		return "", fmt.Errorf("%w: %s (remote disabled)", ErrNotFound, addr)
	}

	body, err := s.remote.Download(ctx, alg, digest)
	if err != nil {
		return "", translateErr(err)
	}
	defer body.Close()

	if s.opts.RemoteOnly {
		return s.downloadTo(body, alg, digest, dest)
	}

	if _, err := s.cache.PutVerified(ctx, body, alg, digest); err != nil {
		return "", translateErr(err)
	}
	s.l.Debug("downloaded blob into cache", zap.String("address", addr.String()))
	return s.cache.Path(alg, digest)
}

// downloadTo verifies a remote stream against its digest while writing it
// to dest (or a temp file), without touching the cache.
func (s *Store) downloadTo(body io.Reader, alg, digest, dest string) (string, error) {
	if dest == "" {
		f, err := os.CreateTemp("", "hashstore-*")
		if err != nil {
			return "", err
		}
		dest = f.Name()
		f.Close()
	}

	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", err
	}

	h, err := hasher.New(alg)
	if err != nil {
		f.Close()
		return "", err
	}
	_, err = io.Copy(io.MultiWriter(f, h), body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return "", err
	}

	if actual := fmt.Sprintf("%x", h.Sum(nil)); actual != digest {
		os.Remove(dest)
		return "", fmt.Errorf("%w: download hashed to %s, expected %s", ErrIntegrity, actual, digest)
	}
	return dest, nil
}

func (s *Store) uploadFile(ctx context.Context, path string, alg Algorithm, digest string, size int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if size == 0 {
		if info, err := f.Stat(); err == nil {
			size = info.Size()
		}
	}
	if err := s.remote.Upload(ctx, string(alg), digest, f, size); err != nil {
		return translateErr(err)
	}
	return nil
}

func (s *Store) useRemote() bool {
	return s.remote != nil && (s.opts.UseRemote || s.opts.RemoteOnly)
}

// translateErr maps internal package sentinels onto the public taxonomy.
func translateErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, cache.ErrNotFound), errors.Is(err, remote.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, cache.ErrIntegrity):
		return fmt.Errorf("%w: %v", ErrIntegrity, err)
	case errors.Is(err, remote.ErrBackend):
		return fmt.Errorf("%w: %v", ErrRemote, err)
	default:
		return err
	}
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}
