// Package remote implements the HTTP blob database client.
//
// The protocol is three endpoints keyed by algorithm and digest, each
// authenticated with a channel name and a request signature:
//
//	GET  {base}/check/{algo}/{digest}?channel=C&signature=S  -> {success, found, size}
//	GET  {base}/get/{algo}/{digest}?channel=C&signature=S    -> raw bytes (Range supported)
//	POST {base}/set/{algo}/{digest}?channel=C&signature=S    -> {success}
//
// Transient failures are retried with exponential backoff up to a bounded
// attempt count. A missing object is never retried.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

const (
	// DefaultAttempts bounds retries for transient failures.
	DefaultAttempts = 3

	// DefaultTimeout applies per HTTP request.
	DefaultTimeout = 60 * time.Second

	// uploadLogThreshold is the payload size above which uploads are logged
	// with a human-readable size.
	uploadLogThreshold = 10 * units.KB
)

var (
	// ErrNotFound indicates the remote does not hold the object.
	ErrNotFound = errors.New("remote: object not found")

	// ErrBackend indicates a failed request after retries were exhausted.
	ErrBackend = errors.New("remote: backend error")
)

// Client talks to a remote blob database.
type Client struct {
	baseURL  string
	channel  string
	password string

	hc       *http.Client
	attempts int
	compress bool
	l        *zap.Logger
}

// Config carries the connection parameters for a Client.
type Config struct {
	BaseURL  string
	Channel  string
	Password string
	Timeout  time.Duration
	Attempts int

	// CompressUploads zstd-encodes upload bodies (Content-Encoding: zstd).
	// Only useful against backends that advertise support for it.
	CompressUploads bool

	Logger *zap.Logger
}

// New creates a Client. The base URL must not be empty.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("remote: base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		channel:  cfg.Channel,
		password: cfg.Password,
		hc:       &http.Client{Timeout: cfg.Timeout},
		attempts: cfg.Attempts,
		compress: cfg.CompressUploads,
		l:        cfg.Logger,
	}, nil
}

type statusResponse struct {
	Success bool   `json:"success"`
	Found   bool   `json:"found"`
	Size    int64  `json:"size"`
	Error   string `json:"error"`
}

// Check asks the remote whether it holds the object, returning its size
// when present.
func (c *Client) Check(ctx context.Context, algorithm, digest string) (bool, int64, error) {
	url := c.endpoint("check", algorithm, digest)

	resp, err := retry(ctx, c.attempts, func() (statusResponse, error) {
		return c.getJSON(ctx, url)
	})
	if err != nil {
		return false, 0, fmt.Errorf("%w: check %s: %v", ErrBackend, digest, err)
	}
	if !resp.Success {
		return false, 0, fmt.Errorf("%w: check %s: %s", ErrBackend, digest, resp.Error)
	}
	return resp.Found, resp.Size, nil
}

// Download streams the whole object. The caller must re-verify the digest
// before trusting or caching the content.
func (c *Client) Download(ctx context.Context, algorithm, digest string) (io.ReadCloser, error) {
	return c.download(ctx, algorithm, digest, -1, -1)
}

// DownloadRange streams bytes [start, end) of the object. When the backend
// ignores the Range header the full object is downloaded and sliced locally;
// the fallback is invisible to the caller.
func (c *Client) DownloadRange(ctx context.Context, algorithm, digest string, start, end int64) (io.ReadCloser, error) {
	if start < 0 || end < start {
		return nil, fmt.Errorf("remote: invalid range [%d, %d)", start, end)
	}
	return c.download(ctx, algorithm, digest, start, end)
}

func (c *Client) download(ctx context.Context, algorithm, digest string, start, end int64) (io.ReadCloser, error) {
	url := c.endpoint("get", algorithm, digest)

	body, err := retry(ctx, c.attempts, func() (io.ReadCloser, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, permanent(err)
		}
		if start >= 0 {
			// Range end is inclusive on the wire.
			req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end-1))
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			return nil, err
		}

		switch resp.StatusCode {
		case http.StatusOK:
			if start < 0 {
				return resp.Body, nil
			}
			// Backend ignored the Range header: slice locally.
			return sliceBody(resp.Body, start, end)
		case http.StatusPartialContent:
			return resp.Body, nil
		case http.StatusNotFound:
			resp.Body.Close()
			return nil, permanent(fmt.Errorf("%w: %s://%s", ErrNotFound, algorithm, digest))
		default:
			msg := readError(resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("download %s: status %d: %s", digest, resp.StatusCode, msg)
		}
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return body, nil
}

// Upload stores the object on the remote. When the remote already holds an
// object of the same size the transfer is skipped; a size mismatch for the
// same digest is reported as a backend error.
func (c *Client) Upload(ctx context.Context, algorithm, digest string, src io.Reader, size int64) error {
	found, remoteSize, err := c.Check(ctx, algorithm, digest)
	if err != nil {
		return err
	}
	if found {
		if remoteSize != size {
			return fmt.Errorf("%w: remote size %d for %s does not match local size %d",
				ErrBackend, remoteSize, digest, size)
		}
		return nil
	}

	if size > uploadLogThreshold {
		c.l.Info("uploading blob",
			zap.String("digest", digest),
			zap.String("size", units.HumanSize(float64(size))))
	}

	body, encoding, err := c.uploadBody(src)
	if err != nil {
		return err
	}

	url := c.endpoint("set", algorithm, digest)
	start := time.Now()

	resp, err := retry(ctx, c.attempts, func() (statusResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return statusResponse{}, permanent(err)
		}
		req.Header.Set("Content-Type", "application/octet-stream")
		if encoding != "" {
			req.Header.Set("Content-Encoding", encoding)
		}
		return c.doJSON(req)
	})
	if err != nil {
		return fmt.Errorf("%w: upload %s: %v", ErrBackend, digest, err)
	}
	if !resp.Success {
		return fmt.Errorf("%w: upload %s: %s", ErrBackend, digest, resp.Error)
	}

	if size > uploadLogThreshold {
		c.l.Info("blob uploaded",
			zap.String("digest", digest),
			zap.String("size", units.HumanSize(float64(size))),
			zap.Duration("elapsed", time.Since(start)))
	}
	return nil
}

// uploadBody reads the payload, optionally zstd-compressing it.
func (c *Client) uploadBody(src io.Reader) (data []byte, encoding string, err error) {
	raw, err := io.ReadAll(src)
	if err != nil {
		return nil, "", err
	}
	if !c.compress {
		return raw, "", nil
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, "", err
	}
	defer enc.Close()

	compressed := enc.EncodeAll(raw, make([]byte, 0, len(raw)))
	if len(compressed) >= len(raw) {
		return raw, "", nil
	}
	return compressed, "zstd", nil
}

func (c *Client) getJSON(ctx context.Context, url string) (statusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return statusResponse{}, permanent(err)
	}
	return c.doJSON(req)
}

func (c *Client) doJSON(req *http.Request) (statusResponse, error) {
	resp, err := c.hc.Do(req)
	if err != nil {
		return statusResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusResponse{}, fmt.Errorf("status %d: %s", resp.StatusCode, readError(resp.Body))
	}

	var out statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return statusResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// signatureNames maps URL path operations to the operation names bound
// into request signatures. The two vocabularies differ on the wire.
var signatureNames = map[string]string{
	"check": "check",
	"get":   "download",
	"set":   "upload",
}

func (c *Client) endpoint(op, algorithm, digest string) string {
	sig := signature(signatureNames[op], algorithm, digest, c.password)
	return fmt.Sprintf("%s/%s/%s/%s?channel=%s&signature=%s",
		c.baseURL, op, algorithm, digest, c.channel, sig)
}

// sliceBody turns a full-object body into a [start, end) window.
func sliceBody(body io.ReadCloser, start, end int64) (io.ReadCloser, error) {
	if _, err := io.CopyN(io.Discard, body, start); err != nil {
		body.Close()
		if err == io.EOF {
			return nil, permanent(errors.New("range start beyond object length"))
		}
		return nil, err
	}
	return &limitedBody{Reader: io.LimitReader(body, end-start), closer: body}, nil
}

type limitedBody struct {
	io.Reader
	closer io.Closer
}

func (b *limitedBody) Close() error { return b.closer.Close() }

func readError(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}
