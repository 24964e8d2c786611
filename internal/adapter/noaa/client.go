// Package noaa downloads GHCN-Daily files from the NOAA open data bucket.
package noaa

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/wildfire-hex-etl/internal/observability"
)

// ChunkSize is the buffer size used when streaming large files to disk.
const ChunkSize = 8192

// DefaultStreamThreshold is the advertised size at which downloads switch from
// a whole-body read to chunked streaming.
const DefaultStreamThreshold int64 = 1 << 30

// Client fetches files over HTTP. Each file is fetched once; failures are
// returned to the caller without retry.
type Client struct {
	httpClient      *http.Client
	baseURL         string
	readmeURL       string
	streamThreshold int64
	metrics         *observability.Metrics
	logger          *slog.Logger
}

// NewClient creates a GHCN-D download client.
func NewClient(baseURL, readmeURL string, streamThreshold int64, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if streamThreshold <= 0 {
		streamThreshold = DefaultStreamThreshold
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:         strings.TrimRight(baseURL, "/"),
		readmeURL:       readmeURL,
		streamThreshold: streamThreshold,
		metrics:         metrics,
		logger:          logger,
	}
}

// StationsURL is the location of the fixed-width station inventory.
func (c *Client) StationsURL() string {
	return c.baseURL + "/ghcnd-stations.txt"
}

// DailyURL is the location of the gzipped daily archive for a year.
func (c *Client) DailyURL(year int) string {
	return fmt.Sprintf("%s/csv.gz/by_year/%d.csv.gz", c.baseURL, year)
}

// ReadmeURL is the location of the dataset documentation.
func (c *Client) ReadmeURL() string {
	return c.readmeURL
}

// Download fetches url into dest. A HEAD request reads the advertised size:
// below the stream threshold the body is read whole and written in one call,
// otherwise it is copied to disk in ChunkSize pieces. The file appears at dest
// only after a complete transfer.
func (c *Client) Download(ctx context.Context, url, dest string) (int64, error) {
	c.logger.Info("downloading", "url", url, "path", dest)

	size, err := c.contentLength(ctx, url)
	if err != nil {
		c.metrics.DownloadErrors.Inc()
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.metrics.DownloadErrors.Inc()
		return 0, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.DownloadErrors.Inc()
		return 0, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.metrics.DownloadErrors.Inc()
		return 0, fmt.Errorf("get %s: status %d: %s", url, resp.StatusCode, body)
	}

	var n int64
	if size >= c.streamThreshold {
		c.logger.Debug("streaming large file", "url", url, "size", size)
		n, err = writeStreamed(resp.Body, dest)
	} else {
		n, err = writeWhole(resp.Body, dest)
	}
	if err != nil {
		c.metrics.DownloadErrors.Inc()
		return 0, err
	}

	c.metrics.FilesDownloaded.Inc()
	c.metrics.BytesDownloaded.Add(float64(n))
	c.logger.Info("downloaded", "url", url, "bytes", n)
	return n, nil
}

// contentLength issues a HEAD request. A missing or unparsable header counts as
// zero, which selects the whole-body path.
func (c *Client) contentLength(ctx context.Context, url string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create head request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("head %s: %w", url, err)
	}
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("head %s: status %d", url, resp.StatusCode)
	}
	n, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func writeWhole(r io.Reader, dest string) (int64, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("read body: %w", err)
	}
	tmp := dest + ".part"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("write %s: %w", filepath.Base(dest), err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("rename %s: %w", filepath.Base(dest), err)
	}
	return int64(len(body)), nil
}

func writeStreamed(r io.Reader, dest string) (int64, error) {
	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", filepath.Base(dest), err)
	}
	n, err := io.CopyBuffer(onlyWriter{f}, onlyReader{r}, make([]byte, ChunkSize))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("stream %s: %w", filepath.Base(dest), err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("rename %s: %w", filepath.Base(dest), err)
	}
	return n, nil
}

// onlyReader and onlyWriter hide ReadFrom/WriteTo so io.CopyBuffer uses the
// fixed-size buffer.
type onlyReader struct{ io.Reader }

type onlyWriter struct{ io.Writer }
