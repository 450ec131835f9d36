package portal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"planswitch/internal/types"
)

func newTestSession(t *testing.T, cfg SessionConfig) *Session {
	t.Helper()
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	s, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

func TestSession_SendsBrowserHeaders(t *testing.T) {
	var got http.Header
	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := newTestSession(t, SessionConfig{})
	headers := http.Header{}
	headers.Set("Referer", server.URL+"/from")
	if _, err := s.PostForm(context.Background(), server.URL+"/submit", FormFields{"a": "1"}, headers); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if got.Get("User-Agent") != browserUserAgent {
		t.Errorf("unexpected User-Agent %q", got.Get("User-Agent"))
	}
	if got.Get("Accept-Language") != browserLanguage {
		t.Errorf("unexpected Accept-Language %q", got.Get("Accept-Language"))
	}
	if got.Get("Accept-Encoding") != acceptEncoding {
		t.Errorf("unexpected Accept-Encoding %q", got.Get("Accept-Encoding"))
	}
	if got.Get("Content-Type") != "application/x-www-form-urlencoded" {
		t.Errorf("unexpected Content-Type %q", got.Get("Content-Type"))
	}
	if got.Get("Referer") != server.URL+"/from" {
		t.Errorf("unexpected Referer %q", got.Get("Referer"))
	}
	if body != "a=1" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestSession_CookiesSharedWithinSessionOnly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/set":
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc", Path: "/"})
		case "/check":
			c, err := r.Cookie("sid")
			if err != nil {
				w.Write([]byte("none"))
				return
			}
			w.Write([]byte(c.Value))
		}
	}))
	defer server.Close()

	ctx := context.Background()
	first := newTestSession(t, SessionConfig{})
	if _, err := first.Get(ctx, server.URL+"/set", nil); err != nil {
		t.Fatalf("set: %v", err)
	}
	page, err := first.Get(ctx, server.URL+"/check", nil)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if string(page.Body) != "abc" {
		t.Errorf("expected cookie to be replayed, got %q", page.Body)
	}

	second := newTestSession(t, SessionConfig{})
	page, err = second.Get(ctx, server.URL+"/check", nil)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if string(page.Body) != "none" {
		t.Errorf("expected a fresh session to carry no cookies, got %q", page.Body)
	}
}

func TestSession_FollowsRedirectsUpToLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, _ := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/hop/"))
		if n > 0 {
			http.Redirect(w, r, fmt.Sprintf("/hop/%d", n-1), http.StatusFound)
			return
		}
		w.Write([]byte("landed"))
	}))
	defer server.Close()

	s := newTestSession(t, SessionConfig{})
	page, err := s.Get(context.Background(), fmt.Sprintf("%s/hop/%d", server.URL, MaxRedirects), nil)
	if err != nil {
		t.Fatalf("expected %d redirects to be followed, got: %v", MaxRedirects, err)
	}
	if page.URL.Path != "/hop/0" || string(page.Body) != "landed" {
		t.Errorf("unexpected final page %s %q", page.URL, page.Body)
	}

	_, err = s.Get(context.Background(), fmt.Sprintf("%s/hop/%d", server.URL, MaxRedirects+1), nil)
	if !types.HasCode(err, types.ErrCodeUpstreamTransport) {
		t.Fatalf("expected transport error, got: %v", err)
	}
	if !strings.Contains(types.Message(err), "redirects") {
		t.Errorf("expected redirect message, got %q", types.Message(err))
	}
}

func TestSession_ClientErrorsAreNotRaised(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("account locked"))
	}))
	defer server.Close()

	s := newTestSession(t, SessionConfig{})
	page, err := s.Get(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("expected no error for 403, got: %v", err)
	}
	if page.StatusCode != http.StatusForbidden || string(page.Body) != "account locked" {
		t.Errorf("unexpected page: %d %q", page.StatusCode, page.Body)
	}
}

func TestSession_DecodesGzipResponses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(gzipBytes(t, []byte(samplePage)))
	}))
	defer server.Close()

	s := newTestSession(t, SessionConfig{})
	page, err := s.Get(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if string(page.Body) != samplePage {
		t.Errorf("body was not decoded: %q", page.Body)
	}
}

func TestSession_TimeoutIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	s := newTestSession(t, SessionConfig{Timeout: 50 * time.Millisecond})
	_, err := s.Get(context.Background(), server.URL, nil)
	if !types.HasCode(err, types.ErrCodeUpstreamTransport) {
		t.Fatalf("expected transport error, got: %v", err)
	}
	if !strings.Contains(types.Message(err), "timed out") {
		t.Errorf("expected timeout message, got %q", types.Message(err))
	}
}

func TestSession_BreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	breaker := NewBreaker("portal-test", 2, time.Minute)
	s := newTestSession(t, SessionConfig{Breaker: breaker})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		page, err := s.Get(ctx, server.URL, nil)
		if err != nil {
			t.Fatalf("request %d: 5xx should be returned as a page, got: %v", i, err)
		}
		if page.StatusCode != http.StatusServiceUnavailable {
			t.Fatalf("request %d: unexpected status %d", i, page.StatusCode)
		}
	}

	_, err := s.Get(ctx, server.URL, nil)
	if !types.HasCode(err, types.ErrCodeUpstreamUnavailable) {
		t.Fatalf("expected breaker-open error, got: %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("expected open breaker to short-circuit, server saw %d requests", hits.Load())
	}
}

func TestSession_CookiesAccessor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "csrf", Value: "t1", Path: "/"})
	}))
	defer server.Close()

	s := newTestSession(t, SessionConfig{})
	if _, err := s.Get(context.Background(), server.URL, nil); err != nil {
		t.Fatalf("get: %v", err)
	}
	u, _ := url.Parse(server.URL)
	cookies := s.Cookies(u)
	if len(cookies) != 1 || cookies[0].Value != "t1" {
		t.Errorf("unexpected cookies: %v", cookies)
	}
}
