package hashstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestEncodeCanonical(t *testing.T) {
	m := newManifest()
	m.Files["zebra.txt"] = FileEntry{Address: "sha1://" + sha1Hex, Size: 5}
	m.Files["apple.txt"] = FileEntry{Address: "sha1://" + sha1Hex, Size: 7}
	m.Dirs["sub"] = DirEntry{Address: "sha1dir://" + sha1Hex}

	first, err := m.encode()
	require.NoError(t, err)

	// Re-encoding and encoding a copy built in a different insertion order
	// both yield identical bytes.
	again, err := m.encode()
	require.NoError(t, err)
	assert.Equal(t, first, again)

	reordered := newManifest()
	reordered.Dirs["sub"] = DirEntry{Address: "sha1dir://" + sha1Hex}
	reordered.Files["apple.txt"] = FileEntry{Address: "sha1://" + sha1Hex, Size: 7}
	reordered.Files["zebra.txt"] = FileEntry{Address: "sha1://" + sha1Hex, Size: 5}

	other, err := reordered.encode()
	require.NoError(t, err)
	assert.Equal(t, first, other)
}

func TestManifestEncodeEmpty(t *testing.T) {
	data, err := (&Manifest{}).encode()
	require.NoError(t, err)

	// Nil maps serialize as empty objects, never null.
	assert.JSONEq(t, `{"dirs":{},"files":{}}`, string(data))
}

func TestManifestRoundTrip(t *testing.T) {
	m := newManifest()
	m.Files["data.bin"] = FileEntry{Address: "md5://" + md5Hex, Size: 1234}
	m.Dirs["nested"] = DirEntry{Address: "md5dir://" + md5Hex}

	data, err := m.encode()
	require.NoError(t, err)

	got, err := decodeManifest(data)
	require.NoError(t, err)
	assert.Equal(t, m.Files, got.Files)
	assert.Equal(t, m.Dirs, got.Dirs)
}

func TestDecodeManifestRejectsGarbage(t *testing.T) {
	_, err := decodeManifest([]byte("not json at all"))
	assert.Error(t, err)
}

func TestManifestNamesSorted(t *testing.T) {
	m := newManifest()
	for _, name := range []string{"c.txt", "a.txt", "b.txt"} {
		m.Files[name] = FileEntry{}
	}
	for _, name := range []string{"z", "m", "a"} {
		m.Dirs[name] = DirEntry{}
	}

	dirs, files := m.Names()
	assert.Equal(t, []string{"a", "m", "z"}, dirs)
	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, files)
}
