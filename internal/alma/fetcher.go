package alma

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

// ErrStatus is returned when the catalogue answers with a non-2xx status
var ErrStatus = errors.New("unexpected HTTP status")

// Fetcher retrieves the content of a URL
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher is a rate limited Fetcher that always returns UTF-8 content
type HTTPFetcher struct {
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewHTTPFetcher creates a fetcher with the given request timeout. A
// requestsPerSecond of zero or less disables request spacing.
func NewHTTPFetcher(timeout time.Duration, requestsPerSecond float64) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &HTTPFetcher{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Fetch performs a GET request and returns the decoded body
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/xml, text/xml")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w %d for %s: %s", ErrStatus, resp.StatusCode, url, strings.TrimSpace(string(body)))
	}

	contentType := resp.Header.Get("Content-Type")
	if !declaresForeignCharset(contentType) {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		return body, nil
	}

	reader, err := charset.NewReader(resp.Body, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response charset: %w", err)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return markUTF8(body), nil
}

// declaresForeignCharset reports whether the Content-Type names a charset
// other than UTF-8. Bodies without one are left to their XML declaration.
func declaresForeignCharset(contentType string) bool {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	cs, ok := params["charset"]
	if !ok {
		return false
	}
	cs = strings.ToLower(strings.TrimSpace(cs))
	return cs != "utf-8" && cs != "utf8"
}

var declEncoding = regexp.MustCompile(`^(\s*<\?xml[^>]*?encoding=)["'][^"']*["']`)

// markUTF8 rewrites the encoding of the XML declaration after transcoding
func markUTF8(body []byte) []byte {
	if !bytes.HasPrefix(bytes.TrimSpace(body), []byte("<?xml")) {
		return body
	}
	return declEncoding.ReplaceAll(body, []byte(`${1}"UTF-8"`))
}
