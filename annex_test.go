package hashstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const annexDigest = "c8bc43bb1868301737797b09266c01a1"

// makeAnnexLink lays out a minimal git-annex object store under root and
// links name at it, the way git-annex checks out annexed files.
func makeAnnexLink(t *testing.T, root, name, key string) string {
	t.Helper()
	objDir := filepath.Join(root, ".git", "annex", "objects", "Xk", "7q", key)
	require.NoError(t, os.MkdirAll(objDir, 0o755))

	link := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(link), 0o755))
	rel, err := filepath.Rel(filepath.Dir(link), filepath.Join(objDir, key))
	require.NoError(t, err)
	require.NoError(t, os.Symlink(rel, link))
	return link
}

func TestResolveAnnexed(t *testing.T) {
	root := t.TempDir()
	key := "MD5E-s167484154--" + annexDigest + ".mat"
	link := makeAnnexLink(t, root, "data/recording.mat", key)

	ref, ok := ResolveAnnexed(link)
	require.True(t, ok)
	assert.Equal(t, MD5, ref.Algorithm)
	assert.Equal(t, annexDigest, ref.Digest)
	assert.Equal(t, int64(167484154), ref.Size)
	assert.Equal(t, key, ref.Key)

	addr := ref.Address("recording.mat")
	assert.Equal(t, "md5://"+annexDigest, addr.String())
	assert.Equal(t, "md5://"+annexDigest+".recording.mat", addr.Annotated())
}

func TestResolveAnnexedDanglingLink(t *testing.T) {
	// Annexed content may be absent locally; the key alone names it.
	root := t.TempDir()
	key := "SHA1-s42--" + sha1Hex
	link := filepath.Join(root, "missing.dat")
	require.NoError(t, os.Symlink(
		filepath.Join(root, ".git", "annex", "objects", "ab", "cd", key, key), link))

	ref, ok := ResolveAnnexed(link)
	require.True(t, ok)
	assert.Equal(t, SHA1, ref.Algorithm)
	assert.Equal(t, sha1Hex, ref.Digest)
	assert.Equal(t, int64(42), ref.Size)
}

func TestResolveAnnexedNegatives(t *testing.T) {
	root := t.TempDir()

	regular := writeTestFile(t, root, "regular.txt", []byte("not a link"))
	_, ok := ResolveAnnexed(regular)
	assert.False(t, ok, "regular file")

	outside := filepath.Join(root, "outside.txt")
	require.NoError(t, os.Symlink(regular, outside))
	_, ok = ResolveAnnexed(outside)
	assert.False(t, ok, "symlink outside the annex store")

	_, ok = ResolveAnnexed(filepath.Join(root, "nonexistent"))
	assert.False(t, ok, "missing path")
}

func TestParseAnnexKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		ok   bool
	}{
		{"md5e with extension", "MD5E-s100--" + annexDigest + ".mat", true},
		{"md5 bare", "MD5-s100--" + annexDigest, true},
		{"sha1e", "SHA1E-s5--" + sha1Hex + ".bin", true},
		{"unknown backend", "SHA256E-s100--" + strings.Repeat("ab", 32), false},
		{"single dash", "MD5E-s100-" + annexDigest, false},
		{"missing size prefix", "MD5E-100--" + annexDigest, false},
		{"bad size", "MD5E-sxyz--" + annexDigest, false},
		{"bad digest", "MD5E-s100--nothex", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, ok := parseAnnexKey(tt.key)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				require.NotNil(t, ref)
				assert.True(t, validDigest(ref.Digest, ref.Algorithm))
			}
		})
	}
}

func TestStoreDirGitAnnexMode(t *testing.T) {
	s := newTestStore(t, WithGitAnnexMode(true))
	ctx := context.Background()

	root := t.TempDir()
	key := "MD5E-s167484154--" + annexDigest + ".mat"
	makeAnnexLink(t, root, "tree/big.mat", key)
	writeTestFile(t, root, "tree/small.txt", []byte("ordinary file"))

	addr, err := s.StoreDir(ctx, filepath.Join(root, "tree"), "")
	require.NoError(t, err)

	m, err := s.ReadDir(ctx, addr.String())
	require.NoError(t, err)

	// The annexed file is recorded by reference with its declared size;
	// its content was never read.
	entry, ok := m.Files["big.mat"]
	require.True(t, ok)
	assert.Equal(t, "md5://"+annexDigest, entry.Address)
	assert.Equal(t, int64(167484154), entry.Size)
	assert.False(t, s.cache.Has("md5", annexDigest))

	// The ordinary sibling is stored as usual.
	got, err := s.LoadBytes(ctx, addr.String()+".small.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("ordinary file"), got)
}
