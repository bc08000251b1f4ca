package hashstore

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/aweris/hashstore/internal/hasher"
)

// StoreDir stores a directory tree bottom-up: file blobs first, then one
// manifest per directory referencing the children's addresses. Sibling
// files are hashed and stored in parallel, bounded by the worker option;
// entries are collected by name, so completion order never changes the
// resulting digest. The returned address carries label as its suffix
// (defaulting to the directory's basename).
func (s *Store) StoreDir(ctx context.Context, dir, label string) (Address, error) {
	if label == "" {
		label = filepath.Base(filepath.Clean(dir))
	}

	digest, err := s.storeTree(ctx, dir)
	if err != nil {
		return Address{}, err
	}

	addr := dirAddress(s.opts.Algorithm, digest, label)
	s.l.Debug("stored directory", zap.String("dir", dir), zap.String("address", addr.String()))
	return addr, nil
}

// storeTree stores one directory level and returns its manifest digest.
// Subdirectories recurse depth-first (children before parent); files run
// through a bounded worker pool.
func (s *Store) storeTree(ctx context.Context, dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read dir %s: %w", dir, err)
	}

	m := newManifest()
	var mu sync.Mutex

	p := pool.New().WithMaxGoroutines(s.opts.Workers).WithErrors().WithContext(ctx)

	for _, entry := range entries {
		name := entry.Name()
		full := filepath.Join(dir, name)

		if s.opts.GitAnnexMode && entry.Type()&fs.ModeSymlink != 0 {
			if ref, ok := ResolveAnnexed(full); ok {
				mu.Lock()
				m.Files[name] = FileEntry{Address: ref.Address("").String(), Size: ref.Size}
				mu.Unlock()
				continue
			}
		}

		isDir := entry.IsDir()
		if entry.Type()&fs.ModeSymlink != 0 {
			info, err := os.Stat(full)
			if err != nil {
				return "", fmt.Errorf("stat %s: %w", full, err)
			}
			isDir = info.IsDir()
		}

		if isDir {
			digest, err := s.storeTree(ctx, full)
			if err != nil {
				return "", err
			}
			mu.Lock()
			m.Dirs[name] = DirEntry{Address: dirAddress(s.opts.Algorithm, digest, "").String()}
			mu.Unlock()
			continue
		}

		p.Go(func(ctx context.Context) error {
			addr, err := s.storeFile(ctx, full, "")
			if err != nil {
				return err
			}
			info, err := os.Stat(full)
			if err != nil {
				return err
			}
			mu.Lock()
			m.Files[name] = FileEntry{Address: addr.String(), Size: info.Size()}
			mu.Unlock()
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return "", err
	}

	data, err := m.encode()
	if err != nil {
		return "", err
	}
	return s.storeBlobBytes(ctx, data)
}

// ReadDir resolves a directory address to its manifest. Only the manifests
// along the address's relative path are fetched; listing never descends
// into children.
func (s *Store) ReadDir(ctx context.Context, addr string) (*Manifest, error) {
	a, err := ParseAddress(addr)
	if err != nil {
		return nil, err
	}
	if !a.Dir {
		return nil, fmt.Errorf("%w: %s is a file address", ErrNotADirectory, a)
	}

	m, err := s.resolveManifest(ctx, a.Algorithm, a.Digest)
	if err != nil {
		return nil, err
	}

	for _, seg := range pathSegments(a.Suffix) {
		if sub, ok := m.Dirs[seg]; ok {
			subAddr, err := ParseAddress(sub.Address)
			if err != nil {
				return nil, err
			}
			m, err = s.resolveManifest(ctx, subAddr.Algorithm, subAddr.Digest)
			if err != nil {
				return nil, err
			}
			continue
		}
		if _, ok := m.Files[seg]; ok {
			return nil, fmt.Errorf("%w: %s names a file", ErrNotADirectory, seg)
		}
		return nil, fmt.Errorf("%w: no entry %q under %s", ErrNotFound, seg, a)
	}
	return m, nil
}

// ListDir returns the sorted subdirectory and file names of the directory
// behind addr.
func (s *Store) ListDir(ctx context.Context, addr string) (dirs, files []string, err error) {
	m, err := s.ReadDir(ctx, addr)
	if err != nil {
		return nil, nil, err
	}
	dirs, files = m.Names()
	return dirs, files, nil
}

// resolveFileAddress reduces any address string to a file address. File
// addresses pass through. Directory addresses walk their relative path
// through manifests, fetched lazily segment by segment; a path ending on a
// subdirectory yields the address of that subdirectory's manifest blob, as
// does a bare directory address.
func (s *Store) resolveFileAddress(ctx context.Context, addr string) (Address, error) {
	a, err := ParseAddress(addr)
	if err != nil {
		return Address{}, err
	}
	if !a.Dir {
		return a, nil
	}

	cur := Address{Algorithm: a.Algorithm, Digest: a.Digest}
	segs := pathSegments(a.Suffix)

	for i, seg := range segs {
		m, err := s.resolveManifest(ctx, cur.Algorithm, cur.Digest)
		if err != nil {
			return Address{}, err
		}

		if entry, ok := m.Files[seg]; ok {
			if i != len(segs)-1 {
				return Address{}, fmt.Errorf("%w: %s names a file but the path continues", ErrNotADirectory, seg)
			}
			fa, err := ParseAddress(entry.Address)
			if err != nil {
				return Address{}, err
			}
			fa.Suffix = seg
			return fa, nil
		}
		if entry, ok := m.Dirs[seg]; ok {
			da, err := ParseAddress(entry.Address)
			if err != nil {
				return Address{}, err
			}
			cur = Address{Algorithm: da.Algorithm, Digest: da.Digest}
			continue
		}
		return Address{}, fmt.Errorf("%w: no entry %q under %s", ErrNotFound, seg, a)
	}

	// The manifest blob itself.
	return cur, nil
}

// resolveManifest fetches and parses one manifest, consulting the LRU
// first. Manifests are immutable, so a cache hit never needs revalidation.
func (s *Store) resolveManifest(ctx context.Context, alg Algorithm, digest string) (*Manifest, error) {
	key := string(alg) + ":" + digest
	if m, ok := s.manifests.Get(key); ok {
		return m, nil
	}

	data, err := s.loadBlobBytes(ctx, alg, digest)
	if err != nil {
		return nil, err
	}
	m, err := decodeManifest(data)
	if err != nil {
		return nil, err
	}
	s.manifests.Add(key, m)
	return m, nil
}

// loadBlobBytes returns the verified full content of a blob, from the
// cache or the remote. Remote fetches are digest-verified before use and
// cached unless remote-only mode is on.
func (s *Store) loadBlobBytes(ctx context.Context, alg Algorithm, digest string) ([]byte, error) {
	if !s.opts.RemoteOnly {
		if path, err := s.cache.Path(string(alg), digest); err == nil {
			return os.ReadFile(path)
		}
	}

	if !s.useRemote() {
		return nil, fmt.Errorf("%w: %s://%s (remote disabled)", ErrNotFound, alg, digest)
	}

	body, err := s.remote.Download(ctx, string(alg), digest)
	if err != nil {
		return nil, translateErr(err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemote, err)
	}

	actual, err := hasher.SumBytes(string(alg), data)
	if err != nil {
		return nil, err
	}
	if actual != digest {
		return nil, fmt.Errorf("%w: download hashed to %s, expected %s", ErrIntegrity, actual, digest)
	}

	if !s.opts.RemoteOnly {
		if _, err := s.cache.PutBytes(ctx, string(alg), data); err != nil {
			return nil, translateErr(err)
		}
	}
	return data, nil
}

func pathSegments(p string) []string {
	p = path.Clean("/" + p)
	if p == "/" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(p, "/"), "/")
}
