package hashstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithCacheDir(t.TempDir())}, opts...)
	s, err := New(opts...)
	require.NoError(t, err)
	return s
}

func writeTestFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(WithCacheDir(t.TempDir()), WithAlgorithm(Algorithm("sha256")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedAlgorithm))

	_, err = New(WithCacheDir(t.TempDir()), WithRemoteOnly(true))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoRemote))
}

func TestStoreAndLoadFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	src := writeTestFile(t, t.TempDir(), "data.txt", []byte("hello world"))

	addr, err := s.StoreFile(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, SHA1, addr.Algorithm)
	assert.Equal(t, "data.txt", addr.Suffix)

	// Loading back by canonical address works after the source is gone.
	require.NoError(t, os.Remove(src))

	path, err := s.LoadFile(ctx, addr.String(), "")
	require.NoError(t, err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), got)

	// The annotated form resolves to the same content.
	path2, err := s.LoadFile(ctx, addr.Annotated(), "")
	require.NoError(t, err)
	assert.Equal(t, path, path2)
}

func TestStoreFileIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	a := writeTestFile(t, dir, "a.txt", []byte("same bytes"))
	b := writeTestFile(t, dir, "b.txt", []byte("same bytes"))

	addrA, err := s.StoreFile(ctx, a)
	require.NoError(t, err)
	addrB, err := s.StoreFile(ctx, b)
	require.NoError(t, err)

	// Identical content, identical digest, different labels.
	assert.True(t, addrA.Equal(addrB))
	assert.Equal(t, "a.txt", addrA.Suffix)
	assert.Equal(t, "b.txt", addrB.Suffix)
}

func TestLoadFileToDest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	src := writeTestFile(t, t.TempDir(), "data.bin", []byte("copy me out"))
	addr, err := s.StoreFile(ctx, src)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "out.bin")
	path, err := s.LoadFile(ctx, addr.String(), dest)
	require.NoError(t, err)
	assert.Equal(t, dest, path)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, []byte("copy me out"), got)
}

func TestLoadFilePlainPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	src := writeTestFile(t, t.TempDir(), "plain.txt", []byte("not an address"))

	path, err := s.LoadFile(ctx, src, "")
	require.NoError(t, err)
	assert.Equal(t, src, path)

	_, err = s.LoadFile(ctx, filepath.Join(t.TempDir(), "missing"), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStoreBytes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	addr, err := s.StoreBytes(ctx, []byte("in-memory payload"), "payload.json")
	require.NoError(t, err)
	assert.Equal(t, "payload.json", addr.Suffix)

	got, err := s.LoadBytes(ctx, addr.String())
	require.NoError(t, err)
	assert.Equal(t, []byte("in-memory payload"), got)
}

func TestLoadBytesRange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	addr, err := s.StoreBytes(ctx, []byte("0123456789"), "digits")
	require.NoError(t, err)

	tests := []struct {
		name string
		opts []LoadOption
		want string
	}{
		{"middle window", []LoadOption{WithStart(2), WithEnd(4)}, "23"},
		{"from offset", []LoadOption{WithStart(7)}, "789"},
		{"last n bytes", []LoadOption{WithEnd(3)}, "789"},
		{"last n clamps to size", []LoadOption{WithEnd(100)}, "0123456789"},
		{"end clamps to size", []LoadOption{WithStart(8), WithEnd(100)}, "89"},
		{"empty at size", []LoadOption{WithStart(10)}, ""},
		{"whole object", nil, "0123456789"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.LoadBytes(ctx, addr.String(), tt.opts...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestLoadBytesRangeConcatenation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	content := []byte("the quick brown fox jumps over the lazy dog")
	addr, err := s.StoreBytes(ctx, content, "")
	require.NoError(t, err)

	// Adjacent windows reassemble the object.
	head, err := s.LoadBytes(ctx, addr.String(), WithStart(0), WithEnd(20))
	require.NoError(t, err)
	tail, err := s.LoadBytes(ctx, addr.String(), WithStart(20))
	require.NoError(t, err)
	assert.Equal(t, content, append(head, tail...))
}

func TestLoadBytesRangeErrors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	addr, err := s.StoreBytes(ctx, []byte("0123456789"), "")
	require.NoError(t, err)

	tests := []struct {
		name string
		opts []LoadOption
	}{
		{"start after end", []LoadOption{WithStart(5), WithEnd(2)}},
		{"negative start", []LoadOption{WithStart(-1)}},
		{"negative end", []LoadOption{WithStart(0), WithEnd(-2)}},
		{"start beyond size", []LoadOption{WithStart(11)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.LoadBytes(ctx, addr.String(), tt.opts...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrRange), "got %v", err)
		})
	}
}

func TestLoadBytesNotFoundWithoutRemote(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Valid address, content never stored, no remote configured: the miss
	// must be reported without any network activity.
	_, err := s.LoadBytes(ctx, "sha1://"+sha1Hex)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestInfo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	src := writeTestFile(t, t.TempDir(), "info.dat", []byte("sixteen bytes!!!"))

	// Plain path: hashed on the fly.
	fi, err := s.Info(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, src, fi.Path)
	assert.Equal(t, int64(16), fi.Size)
	assert.Equal(t, "info.dat", fi.Address.Suffix)

	// Stored address: served from the cache.
	addr, err := s.StoreFile(ctx, src)
	require.NoError(t, err)
	fi2, err := s.Info(ctx, addr.String())
	require.NoError(t, err)
	assert.True(t, fi2.Address.Equal(addr))
	assert.Equal(t, int64(16), fi2.Size)
	assert.NotEmpty(t, fi2.Path)

	// Unknown digest.
	_, err = s.Info(ctx, "sha1://"+sha1Hex)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMD5Store(t *testing.T) {
	s := newTestStore(t, WithAlgorithm(MD5))
	ctx := context.Background()

	addr, err := s.StoreBytes(ctx, []byte("abc"), "")
	require.NoError(t, err)
	assert.Equal(t, MD5, addr.Algorithm)
	assert.Equal(t, md5Hex, addr.Digest)
}
