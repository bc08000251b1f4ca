package hashstore

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AnnexRef describes content managed by an external git-annex store,
// recorded by reference instead of being read and hashed locally.
type AnnexRef struct {
	Algorithm Algorithm
	Digest    string
	Size      int64

	// Key is the annex object key the reference was derived from, e.g.
	// "MD5E-s167484154--c8bc43bb1868301737797b09266c01a1.mat".
	Key string
}

// Address returns the file address carried by the reference.
func (r *AnnexRef) Address(label string) Address {
	return fileAddress(r.Algorithm, r.Digest, label)
}

// ResolveAnnexed reports whether path is a symbolic link into a git-annex
// object store, and if so returns the reference encoded in the link target.
// The link target is not required to exist: annexed content may be absent
// locally while its key still names it.
func ResolveAnnexed(path string) (*AnnexRef, bool) {
	info, err := os.Lstat(path)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		return nil, false
	}

	link, err := os.Readlink(path)
	if err != nil {
		return nil, false
	}
	if !filepath.IsAbs(link) {
		link = filepath.Join(filepath.Dir(path), link)
	}
	link = filepath.Clean(link)
	if !strings.Contains(link, ".git/annex/objects") {
		return nil, false
	}

	return parseAnnexKey(filepath.Base(link))
}

// parseAnnexKey decodes an annex object key of the form
// "<BACKEND>-s<size>--<hexdigest>[.<ext>]".
func parseAnnexKey(key string) (*AnnexRef, bool) {
	parts := strings.Split(key, "-")
	if len(parts) < 4 || parts[2] != "" {
		return nil, false
	}

	var alg Algorithm
	switch parts[0] {
	case "MD5E", "MD5":
		alg = MD5
	case "SHA1E", "SHA1":
		alg = SHA1
	default:
		return nil, false
	}

	if !strings.HasPrefix(parts[1], "s") {
		return nil, false
	}
	size, err := strconv.ParseInt(parts[1][1:], 10, 64)
	if err != nil {
		return nil, false
	}

	digest, _, _ := strings.Cut(parts[3], ".")
	if !validDigest(digest, alg) {
		return nil, false
	}

	return &AnnexRef{Algorithm: alg, Digest: digest, Size: size, Key: key}, true
}
