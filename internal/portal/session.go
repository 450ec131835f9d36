// Package portal drives the subscriber portal the way a browser would: one
// cookie-carrying session per run, GET a page, scrape its form, replay the
// form with a few fields overridden, and inspect the response.
//
// Nothing here executes JavaScript. Every request is synchronous and bounded
// by the run's request timeout.
package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/net/publicsuffix"

	"planswitch/internal/types"
)

// MaxRedirects bounds the redirect chain followed for a single request.
const MaxRedirects = 10

// maxBodyBytes caps how much of a response body is read (after decoding).
const maxBodyBytes = 8 << 20

// Browser-like headers sent on every request. Some portals serve different
// markup to clients they do not recognize.
const (
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	browserAccept    = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"
	browserLanguage  = "en-US,en;q=0.9"
)

var errTooManyRedirects = fmt.Errorf("stopped after %d redirects", MaxRedirects)

// errServerStatus marks a 5xx response as a failure for the breaker while
// still handing the page back to the caller.
var errServerStatus = errors.New("portal returned a server error status")

// Breaker is the circuit breaker shared by every session of a process. It
// trips on consecutive transport failures so that a dead portal fails runs
// fast instead of letting each one wait for its timeout.
type Breaker = gobreaker.CircuitBreaker[*Page]

// NewBreaker creates a Breaker that opens after threshold consecutive
// failures and half-opens after cooldown.
func NewBreaker(name string, threshold uint32, cooldown time.Duration) *Breaker {
	if threshold == 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker[*Page](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	})
}

// Page is one fetched and decoded response.
type Page struct {
	// URL is the final address after redirects.
	URL        *url.URL
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Document parses the page body as HTML.
func (p *Page) Document() (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(p.Body)))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamStructure, "response is not parseable HTML", err)
	}
	return doc, nil
}

// SessionConfig configures a Session.
type SessionConfig struct {
	Timeout time.Duration
	// Breaker is optional; nil disables circuit breaking.
	Breaker *Breaker
	// Transport is optional; nil uses a clone of http.DefaultTransport.
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// Session is an HTTP client bound to a single cookie store. Create one per
// run and discard it afterwards; it never shares cookies with another run.
type Session struct {
	client  *http.Client
	breaker *Breaker
	timeout time.Duration
	logger  *slog.Logger
}

// NewSession creates a Session with an empty cookie jar.
func NewSession(cfg SessionConfig) (*Session, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create cookie jar", err)
	}

	transport := cfg.Transport
	if transport == nil {
		base := http.DefaultTransport.(*http.Transport).Clone()
		// Encodings are negotiated and decoded by decodeBody.
		base.DisableCompression = true
		transport = base
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		client: &http.Client{
			Jar:       jar,
			Transport: transport,
			Timeout:   cfg.Timeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) > MaxRedirects {
					return errTooManyRedirects
				}
				return nil
			},
		},
		breaker: cfg.Breaker,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

// Cookies returns the cookies the session would send to u.
func (s *Session) Cookies(u *url.URL) []*http.Cookie {
	return s.client.Jar.Cookies(u)
}

// Get fetches target. Non-2xx statuses are returned as a Page, not an error;
// status inspection belongs to the caller.
func (s *Session) Get(ctx context.Context, target string, headers http.Header) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamTransport, "invalid request address", err)
	}
	return s.do(req, headers)
}

// PostForm submits fields as a URL-encoded body to target.
func (s *Session) PostForm(ctx context.Context, target string, fields FormFields, headers http.Header) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(fields.Encode()))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamTransport, "invalid request address", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req, headers)
}

func (s *Session) do(req *http.Request, headers http.Header) (*Page, error) {
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", browserAccept)
	req.Header.Set("Accept-Language", browserLanguage)
	req.Header.Set("Accept-Encoding", acceptEncoding)
	for k, vs := range headers {
		for i, v := range vs {
			if i == 0 {
				req.Header.Set(k, v)
			} else {
				req.Header.Add(k, v)
			}
		}
	}

	start := time.Now()
	page, err := s.execute(req)
	if err != nil {
		s.logger.WarnContext(req.Context(), "portal request failed",
			"run_id", types.GetRunID(req.Context()),
			"method", req.Method,
			"path", req.URL.Path,
			"duration", time.Since(start),
			"error", err,
		)
		return nil, err
	}

	s.logger.DebugContext(req.Context(), "portal request completed",
		"run_id", types.GetRunID(req.Context()),
		"method", req.Method,
		"path", req.URL.Path,
		"final_path", page.URL.Path,
		"status", page.StatusCode,
		"bytes", len(page.Body),
		"duration", time.Since(start),
	)
	return page, nil
}

func (s *Session) execute(req *http.Request) (*Page, error) {
	if s.breaker == nil {
		page, err := s.roundTrip(req)
		if errors.Is(err, errServerStatus) {
			return page, nil
		}
		return page, err
	}

	page, err := s.breaker.Execute(func() (*Page, error) {
		return s.roundTrip(req)
	})
	switch {
	case err == nil:
		return page, nil
	case errors.Is(err, errServerStatus):
		return page, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, types.NewAppError(types.ErrCodeUpstreamUnavailable,
			"portal unavailable: circuit breaker open after repeated failures", err)
	default:
		return nil, err
	}
}

// roundTrip performs the request, reads and decodes the body. Server errors
// come back with both the page and errServerStatus.
func (s *Session) roundTrip(req *http.Request) (*Page, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, s.mapTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, s.mapTransportError(err)
	}
	if len(raw) > maxBodyBytes {
		return nil, types.NewAppError(types.ErrCodeUpstreamTransport,
			fmt.Sprintf("response body exceeds %d bytes", maxBodyBytes), nil)
	}

	body, err := decodeBody(resp.Header.Get("Content-Encoding"), raw, maxBodyBytes)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamTransport, "failed to decode response body", err)
	}

	page := &Page{
		URL:        resp.Request.URL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}
	if resp.StatusCode >= 500 {
		return page, errServerStatus
	}
	return page, nil
}

func (s *Session) mapTransportError(err error) *types.AppError {
	if errors.Is(err, errTooManyRedirects) {
		return types.NewAppError(types.ErrCodeUpstreamTransport, errTooManyRedirects.Error(), err)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return types.NewAppError(types.ErrCodeUpstreamTransport,
			fmt.Sprintf("portal request timed out after %s", s.timeout), err)
	}
	return types.NewAppError(types.ErrCodeUpstreamTransport, "portal request failed: "+rootCause(err), err)
}

// rootCause strips url.Error's "Get \"...\":" prefix, which would otherwise
// leak query strings into user-visible messages.
func rootCause(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err.Error()
	}
	return err.Error()
}
