package hashstore

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultWorkers bounds parallel sibling operations during a directory
	// store.
	DefaultWorkers = 4

	// DefaultManifestCacheSize is the number of resolved directory
	// manifests kept in memory, keyed by digest.
	DefaultManifestCacheSize = 512
)

// Options configures a Store. The configuration is applied once in New and
// read-only afterwards.
type Options struct {
	// CacheDir is the local cache root.
	CacheDir string

	// Algorithm selects the digest function for new stores (sha1 or md5).
	// Loading accepts addresses of either algorithm regardless.
	Algorithm Algorithm

	// HardLinks ingests local files into the cache by hard link when the
	// filesystem allows it, instead of copying.
	HardLinks bool

	// GitAnnexMode detects git-annex symlinks during directory stores and
	// records a reference instead of copying content.
	GitAnnexMode bool

	// UseRemote enables remote download on cache miss and upload on store.
	UseRemote bool

	// RemoteOnly bypasses the local cache entirely: stores upload without
	// caching and loads stream from the remote.
	RemoteOnly bool

	// Remote connection parameters.
	RemoteURL      string
	Channel        string
	Password       string
	RemoteTimeout  time.Duration
	RemoteAttempts int

	// CompressUploads zstd-encodes upload bodies.
	CompressUploads bool

	// Workers bounds sibling parallelism in StoreDir.
	Workers int

	// ManifestCacheSize caps the resolved-manifest LRU.
	ManifestCacheSize int

	Logger *zap.Logger
}

// Option is a functional option for New.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		CacheDir:          defaultCacheDir(),
		Algorithm:         SHA1,
		Workers:           DefaultWorkers,
		ManifestCacheSize: DefaultManifestCacheSize,
		Logger:            zap.NewNop(),
	}
}

// WithCacheDir sets the local cache root directory.
func WithCacheDir(dir string) Option {
	return func(o *Options) { o.CacheDir = dir }
}

// WithAlgorithm selects the digest algorithm for new stores.
func WithAlgorithm(alg Algorithm) Option {
	return func(o *Options) { o.Algorithm = alg }
}

// WithHardLinks enables hard-link ingestion into the cache.
func WithHardLinks(enabled bool) Option {
	return func(o *Options) { o.HardLinks = enabled }
}

// WithGitAnnexMode enables git-annex symlink detection.
func WithGitAnnexMode(enabled bool) Option {
	return func(o *Options) { o.GitAnnexMode = enabled }
}

// WithRemote configures the remote blob database connection.
func WithRemote(url, channel, password string) Option {
	return func(o *Options) {
		o.RemoteURL = url
		o.Channel = channel
		o.Password = password
	}
}

// WithUseRemote enables remote upload/download alongside the local cache.
func WithUseRemote(enabled bool) Option {
	return func(o *Options) { o.UseRemote = enabled }
}

// WithRemoteOnly bypasses the local cache entirely.
func WithRemoteOnly(enabled bool) Option {
	return func(o *Options) { o.RemoteOnly = enabled }
}

// WithRemoteTimeout sets the per-request HTTP timeout.
func WithRemoteTimeout(d time.Duration) Option {
	return func(o *Options) { o.RemoteTimeout = d }
}

// WithRemoteAttempts bounds retries for transient remote failures.
func WithRemoteAttempts(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.RemoteAttempts = n
		}
	}
}

// WithCompressUploads zstd-encodes upload bodies.
func WithCompressUploads(enabled bool) Option {
	return func(o *Options) { o.CompressUploads = enabled }
}

// WithWorkers bounds sibling parallelism in StoreDir.
func WithWorkers(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.Workers = n
		}
	}
}

// WithManifestCacheSize caps the resolved-manifest LRU.
func WithManifestCacheSize(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.ManifestCacheSize = n
		}
	}
}

// WithLogger injects a structured logger. Diagnostics never go to stdout.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

func defaultCacheDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "hashstore")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "hashstore")
	}
	return ".hashstore"
}
