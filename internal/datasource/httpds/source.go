// Package httpds fetches a source extract over HTTP(S). Transport errors,
// 429 and 5xx responses are retried with exponential backoff; a 404 maps to
// fs.ErrNotExist so a missing remote extract is treated like a missing
// local file.
package httpds

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/text/transform"

	"salesetl/internal/datasource/file"
)

// Config tunes the client. Zero values select the defaults noted below.
type Config struct {
	Timeout        time.Duration // whole-request timeout; default 10m
	MaxRetries     int           // retries after the first attempt; default 3, negative disables
	InitialBackoff time.Duration // default 500ms, doubled per retry
	MaxBackoff     time.Duration // default 10s

	// Transport overrides the RoundTripper (tests).
	Transport http.RoundTripper
}

// Source is a remote file.
type Source struct {
	url      string
	encoding string
	client   *retryablehttp.Client
}

// IsURL reports whether path names an HTTP(S) resource.
func IsURL(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// New returns a Source for url.
func New(url string, cfg Config) *Source {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}

	c := retryablehttp.NewClient()
	c.HTTPClient = &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport}
	c.RetryMax = cfg.MaxRetries
	c.RetryWaitMin = cfg.InitialBackoff
	c.RetryWaitMax = cfg.MaxBackoff
	c.CheckRetry = checkRetry
	c.Logger = nil
	return &Source{url: url, client: c}
}

// WithEncoding returns a copy of s that decodes the body from the named
// character set (see file.Encoding).
func (s *Source) WithEncoding(name string) *Source {
	c := *s
	c.encoding = name
	return &c
}

// Open issues the GET and returns the (decoded) body. The caller closes it.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	enc, err := file.Encoding(s.encoding)
	if err != nil {
		return nil, err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("httpds: build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("httpds: get %s: %w", s.url, err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("get %s: %w", s.url, fs.ErrNotExist)
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("httpds: get %s: %s", s.url, resp.Status)
	}
	if enc == nil {
		return resp.Body, nil
	}
	return &decodedBody{Reader: transform.NewReader(resp.Body, enc.NewDecoder()), body: resp.Body}, nil
}

// checkRetry retries transport errors, 429 and 5xx. Anything else is final.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	return retryable(resp.StatusCode), nil
}

func retryable(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

type decodedBody struct {
	io.Reader
	body io.Closer
}

func (d *decodedBody) Close() error { return d.body.Close() }
