package payload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/core"
	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/logging"
	"go.uber.org/zap"
)

// DefaultMaxImageBytes bounds remote downloads when no limit is configured.
const DefaultMaxImageBytes = core.DefaultMaxFileSize

// LoadLocal reads an image from disk.
// A missing path is a *core.NotFoundError; any other failure, including a
// directory, is a *core.IOError.
func LoadLocal(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &core.NotFoundError{Path: path}
		}
		return nil, &core.IOError{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &core.IOError{Path: path, Err: errors.New("is a directory")}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &core.IOError{Path: path, Err: err}
	}
	return data, nil
}

// Fetcher downloads images over HTTP for embedding and for URL-shaped results.
//
// Thread Safety: Fetcher is safe for concurrent use.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
	logger   *logging.Logger
}

// NewFetcher creates a Fetcher. A nil client uses http.DefaultClient; a
// non-positive maxBytes uses DefaultMaxImageBytes.
func NewFetcher(client *http.Client, maxBytes int64, logger *logging.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Fetcher{client: client, maxBytes: maxBytes, logger: logger.Named("fetcher")}
}

// LoadRemote downloads url within timeout. Non-2xx responses, timeouts and
// bodies over the size limit are reported as *core.FetchError.
// A zero timeout leaves the deadline to ctx.
func (f *Fetcher) LoadRemote(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &core.FetchError{URL: url, Err: err}
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &core.FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return nil, &core.FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	// Read one byte past the limit to detect oversize bodies.
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, &core.FetchError{URL: url, Err: err}
	}
	if int64(len(data)) > f.maxBytes {
		return nil, &core.FetchError{URL: url, Err: fmt.Errorf("image exceeds %d bytes", f.maxBytes)}
	}
	if len(data) == 0 {
		return nil, &core.FetchError{URL: url, Err: errors.New("empty response body")}
	}

	f.logger.Debug("image fetched",
		zap.String("url", url),
		zap.Int("bytes", len(data)),
		zap.String("content_type", resp.Header.Get("Content-Type")),
		zap.Duration("duration", time.Since(start)))

	return data, nil
}
