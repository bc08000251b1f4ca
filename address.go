package hashstore

import (
	"fmt"
	"strings"
)

// Algorithm is a supported digest algorithm.
type Algorithm string

const (
	SHA1 Algorithm = "sha1"
	MD5  Algorithm = "md5"
)

// hexSize returns the length of a hex-encoded digest for the algorithm.
func (a Algorithm) hexSize() int {
	switch a {
	case SHA1:
		return 40
	case MD5:
		return 32
	}
	return 0
}

// Valid reports whether the algorithm is one of the supported ones.
func (a Algorithm) Valid() bool {
	return a == SHA1 || a == MD5
}

// Address names content by digest. File addresses render as
// "<algo>://<digest>", directory addresses as "<algo>dir://<digest>".
//
// The optional Suffix after a dot is a cosmetic label for files and a
// relative traversal path for directories. It never participates in
// identity: two addresses are equal iff algorithm and digest match.
type Address struct {
	Algorithm Algorithm
	Digest    string
	Dir       bool
	Suffix    string
}

// ParseAddress parses an address string.
func ParseAddress(s string) (Address, error) {
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok {
		return Address{}, fmt.Errorf("%w: %q", ErrMalformedAddress, s)
	}

	var addr Address
	if alg, found := strings.CutSuffix(scheme, "dir"); found && Algorithm(alg).Valid() {
		addr.Algorithm = Algorithm(alg)
		addr.Dir = true
	} else if Algorithm(scheme).Valid() {
		addr.Algorithm = Algorithm(scheme)
	} else {
		return Address{}, fmt.Errorf("%w: scheme %q", ErrUnsupportedAlgorithm, scheme)
	}

	addr.Digest, addr.Suffix, _ = strings.Cut(rest, ".")
	if !validDigest(addr.Digest, addr.Algorithm) {
		return Address{}, fmt.Errorf("%w: digest %q is not a %d-char lowercase hex string",
			ErrMalformedAddress, addr.Digest, addr.Algorithm.hexSize())
	}
	return addr, nil
}

// IsAddress reports whether s looks like a hash address (as opposed to a
// plain filesystem path).
func IsAddress(s string) bool {
	for _, alg := range []Algorithm{SHA1, MD5} {
		if strings.HasPrefix(s, string(alg)+"://") || strings.HasPrefix(s, string(alg)+"dir://") {
			return true
		}
	}
	return false
}

// String returns the canonical form without the suffix.
func (a Address) String() string {
	scheme := string(a.Algorithm)
	if a.Dir {
		scheme += "dir"
	}
	return scheme + "://" + a.Digest
}

// Annotated returns the address including its suffix, when present.
func (a Address) Annotated() string {
	if a.Suffix == "" {
		return a.String()
	}
	return a.String() + "." + a.Suffix
}

// Equal reports address identity. The suffix is ignored.
func (a Address) Equal(b Address) bool {
	return a.Algorithm == b.Algorithm && a.Digest == b.Digest && a.Dir == b.Dir
}

// fileAddress builds a file address from a computed digest.
func fileAddress(alg Algorithm, digest, label string) Address {
	return Address{Algorithm: alg, Digest: digest, Suffix: label}
}

// dirAddress builds a directory address from a manifest digest.
func dirAddress(alg Algorithm, digest, label string) Address {
	return Address{Algorithm: alg, Digest: digest, Dir: true, Suffix: label}
}

func validDigest(digest string, alg Algorithm) bool {
	if len(digest) != alg.hexSize() {
		return false
	}
	for _, c := range digest {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
