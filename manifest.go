package hashstore

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Manifest lists a directory's immediate entries. It is serialized to
// canonical JSON, stored as an ordinary blob, and addressed by the digest
// of that serialization. Subdirectories are referenced by the address of
// their own manifest, so listing a directory never resolves more than one
// manifest and descending fetches children lazily.
type Manifest struct {
	Dirs  map[string]DirEntry  `json:"dirs"`
	Files map[string]FileEntry `json:"files"`
}

// DirEntry references a subdirectory by the address of its manifest.
type DirEntry struct {
	Address string `json:"address"`
}

// FileEntry references a file blob and records its size.
type FileEntry struct {
	Address string `json:"address"`
	Size    int64  `json:"size"`
}

func newManifest() *Manifest {
	return &Manifest{
		Dirs:  make(map[string]DirEntry),
		Files: make(map[string]FileEntry),
	}
}

// encode serializes the manifest into its canonical byte form: compact
// JSON with object keys sorted (encoding/json sorts map keys), so identical
// directory contents always produce identical bytes regardless of the order
// entries were collected in.
func (m *Manifest) encode() ([]byte, error) {
	if m.Dirs == nil {
		m.Dirs = make(map[string]DirEntry)
	}
	if m.Files == nil {
		m.Files = make(map[string]FileEntry)
	}
	return json.Marshal(m)
}

func decodeManifest(data []byte) (*Manifest, error) {
	m := newManifest()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("%w: parse manifest: %v", ErrMalformedAddress, err)
	}
	return m, nil
}

// Names returns the sorted subdirectory and file names of one manifest.
func (m *Manifest) Names() (dirs, files []string) {
	dirs = sortedKeys(m.Dirs)
	files = sortedKeys(m.Files)
	return dirs, files
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
