package hashstore

import "errors"

var (
	// ErrMalformedAddress indicates an address string that does not match
	// <algo>://<digest>[.<label>] or <algo>dir://<digest>[.<path>].
	ErrMalformedAddress = errors.New("hashstore: malformed address")

	// ErrUnsupportedAlgorithm indicates an address scheme outside sha1/md5.
	ErrUnsupportedAlgorithm = errors.New("hashstore: unsupported algorithm")

	// ErrNotFound indicates content absent from the local cache and, when a
	// remote is configured, from the remote as well.
	ErrNotFound = errors.New("hashstore: not found")

	// ErrIntegrity indicates a digest mismatch after a store or a download.
	ErrIntegrity = errors.New("hashstore: integrity check failed")

	// ErrRemote indicates a remote operation that failed after exhausting
	// its retry budget.
	ErrRemote = errors.New("hashstore: remote error")

	// ErrRange indicates invalid byte range bounds.
	ErrRange = errors.New("hashstore: invalid byte range")

	// ErrNotADirectory indicates path traversal through a file entry.
	ErrNotADirectory = errors.New("hashstore: not a directory")

	// ErrNoRemote indicates a remote operation without a configured remote.
	ErrNoRemote = errors.New("hashstore: no remote configured")
)
