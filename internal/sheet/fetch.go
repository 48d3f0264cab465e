package sheet

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	appLog "schedbot/internal/log"
)

const defaultBaseURL = "https://docs.google.com"

// Format selects the export flavour requested from the spreadsheet.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
)

// HTTPOptions configures an HTTPReader.
type HTTPOptions struct {
	// SpreadsheetID is the document key from the sheet URL.
	SpreadsheetID string
	// BaseURL defaults to https://docs.google.com; tests point it elsewhere.
	BaseURL string
	Format  Format

	// CacheDir enables the ETag / Last-Modified disk cache. Empty disables it.
	CacheDir string

	Timeout time.Duration

	// RatePerSec limits outgoing requests. Zero or negative means 1/s.
	RatePerSec float64
}

// cacheEntry holds HTTP cache metadata for a single export URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HTTPReader fetches ranges through the spreadsheet's visualization export
// endpoint with HTTP caching (ETag / Last-Modified) and a disk-backed cache.
type HTTPReader struct {
	client  *http.Client
	opts    HTTPOptions
	limiter *rate.Limiter
}

// NewHTTPReader creates a new HTTPReader.
func NewHTTPReader(opts HTTPOptions) *HTTPReader {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Format == "" {
		opts.Format = FormatCSV
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 1
	}
	return &HTTPReader{
		client: &http.Client{
			Timeout: opts.Timeout,
		},
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), 1),
	}
}

// Fetch downloads and decodes one range. Failures are *TransportError; when
// a cached body exists it is served instead of failing.
func (f *HTTPReader) Fetch(ctx context.Context, rangeID string) (Grid, error) {
	body, fromCache, err := f.fetchBody(ctx, rangeID)
	if err != nil {
		return nil, &TransportError{Range: rangeID, Err: err}
	}

	var grid Grid
	switch f.opts.Format {
	case FormatHTML:
		grid, err = DecodeHTML(bytes.NewReader(body))
	default:
		grid, err = DecodeCSV(bytes.NewReader(body))
	}
	if err != nil {
		return nil, &TransportError{Range: rangeID, Err: err}
	}

	appLog.Debug("sheet range decoded", "range", rangeID, "rows", len(grid), "from_cache", fromCache)
	return grid, nil
}

// ExportURL builds the export URL for a range.
func (f *HTTPReader) ExportURL(rangeID string) string {
	sheetName, cells := SplitRange(rangeID)

	q := url.Values{}
	q.Set("tqx", "out:"+string(f.opts.Format))
	q.Set("headers", "0")
	if sheetName != "" {
		q.Set("sheet", sheetName)
	}
	if cells != "" {
		q.Set("range", cells)
	}
	base := strings.TrimRight(f.opts.BaseURL, "/")
	return base + "/spreadsheets/d/" + url.PathEscape(f.opts.SpreadsheetID) + "/gviz/tq?" + q.Encode()
}

func (f *HTTPReader) fetchBody(ctx context.Context, rangeID string) ([]byte, bool, error) {
	if f.opts.SpreadsheetID == "" {
		return nil, false, errors.New("spreadsheet id is empty")
	}
	u := f.ExportURL(rangeID)

	var (
		cachePath  string
		meta       cacheEntry
		cachedBody []byte
	)
	if f.opts.CacheDir != "" {
		cachePath = f.cachePathForURL(u)
		if err := os.MkdirAll(cachePath, 0o700); err != nil {
			return nil, false, err
		}
		meta, _ = f.loadCacheMeta(cachePath)
		cachedBody, _ = f.loadCacheBody(cachePath)
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, err
	}

	// Conditional headers from cache metadata.
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Debug("sheet fetch start", "range", rangeID, "url", redactURL(u))

	resp, err := f.client.Do(req)
	if err != nil {
		// Network error; if we have a cached body, fall back to it.
		if len(cachedBody) > 0 {
			appLog.Error("sheet fetch network error, using cached body", err, "range", rangeID, "url", redactURL(u))
			return cachedBody, true, nil
		}
		return nil, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, false, readErr
		}
		if cachePath != "" {
			newMeta := cacheEntry{
				URL:          u,
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
			}
			if err := f.saveCache(cachePath, newMeta, body); err != nil {
				// Log but still return the freshly fetched body.
				appLog.Error("sheet cache save failed", err, "range", rangeID, "url", redactURL(u))
			}
		}
		appLog.Debug("sheet fetch success", "range", rangeID, "status", resp.StatusCode, "bytes", len(body))
		return body, false, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return nil, false, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Debug("sheet fetch not modified; using cache", "range", rangeID)
		return cachedBody, true, nil

	default:
		if len(cachedBody) > 0 {
			appLog.Error("sheet fetch non-OK, using cached body", errors.New(resp.Status), "range", rangeID, "status", resp.StatusCode)
			return cachedBody, true, nil
		}
		return nil, false, errors.New(resp.Status)
	}
}

func (f *HTTPReader) cachePathForURL(u string) string {
	sum := sha256.Sum256([]byte(u))
	// Use first 16 hex chars as directory name.
	return filepath.Join(f.opts.CacheDir, hex.EncodeToString(sum[:8]))
}

func (f *HTTPReader) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (f *HTTPReader) loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body"))
}

func (f *HTTPReader) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Write body first so meta never points at missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL keeps only scheme and host; the path carries the document key.
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "sheet://...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + redactedSuffix
}
