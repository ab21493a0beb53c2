package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func noSleep(t *testing.T) {
	t.Helper()
	origSleep := fetchSleepFunc
	fetchSleepFunc = func(d time.Duration) {}
	t.Cleanup(func() { fetchSleepFunc = origSleep })
}

func testConfig() Config {
	return Config{Timeout: 5 * time.Second, UserAgent: "test-agent", MaxBytes: 1 << 20}
}

func TestFetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("Expected User-Agent test-agent, got %s", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprint(w, "<html><body>OK</body></html>")
	}))
	defer server.Close()

	page, err := New(testConfig(), nil).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if string(page.Body) != "<html><body>OK</body></html>" {
		t.Errorf("Unexpected body: %s", page.Body)
	}
	if page.ContentType != "text/html" {
		t.Errorf("Expected media type text/html, got %q", page.ContentType)
	}
	if page.IsPDF() {
		t.Error("HTML page reported as PDF")
	}
}

func TestFetch_TransientThenSuccess(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, "<html>OK</html>")
	}))
	defer server.Close()

	page, err := New(testConfig(), nil).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if string(page.Body) != "<html>OK</html>" {
		t.Errorf("Unexpected body: %s", page.Body)
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
}

func TestFetch_PermanentFailure(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := New(testConfig(), nil).Fetch(context.Background(), server.URL)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("Expected 404 StatusError, got %v", err)
	}
	if attempts.Load() != 1 {
		t.Errorf("404 must not be retried, got %d attempts", attempts.Load())
	}
}

func TestFetch_AllRetriesExhausted(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := New(testConfig(), nil).Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Expected error after all retries exhausted")
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
}

func TestFetch_429Retried(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = fmt.Fprint(w, "<html>OK</html>")
	}))
	defer server.Close()

	if _, err := New(testConfig(), nil).Fetch(context.Background(), server.URL); err != nil {
		t.Fatalf("Expected success after 429 retry, got %v", err)
	}
	if attempts.Load() != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts.Load())
	}
}

func TestFetch_TruncatesLargeBodies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, strings.Repeat("a", 100))
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.MaxBytes = 10
	page, err := New(cfg, nil).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(page.Body) != 10 || !page.Truncated {
		t.Errorf("Expected 10 truncated bytes, got %d (truncated=%v)", len(page.Body), page.Truncated)
	}
}

func TestFetch_RespectsRobots(t *testing.T) {
	var pageHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /intern\n")
			return
		}
		pageHits.Add(1)
		_, _ = fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.RespectRobots = true
	f := New(cfg, nil)

	_, err := f.Fetch(context.Background(), server.URL+"/intern/lms")
	if !errors.Is(err, ErrDisallowed) {
		t.Fatalf("Expected ErrDisallowed, got %v", err)
	}
	if _, err := f.Fetch(context.Background(), server.URL+"/lehre"); err != nil {
		t.Fatalf("Expected allowed fetch, got %v", err)
	}
	if pageHits.Load() != 1 {
		t.Errorf("Expected 1 page hit, got %d", pageHits.Load())
	}
}

func TestFetch_CrawlDelaySlowsHost(t *testing.T) {
	var pageHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = fmt.Fprint(w, "User-agent: *\nCrawl-delay: 3600\n")
			return
		}
		pageHits.Add(1)
		_, _ = fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.RespectRobots = true
	f := New(cfg, nil)

	if _, err := f.Fetch(context.Background(), server.URL+"/a"); err != nil {
		t.Fatalf("Expected first fetch to succeed, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := f.Fetch(ctx, server.URL+"/b"); err == nil {
		t.Fatal("Expected second fetch to wait out the crawl delay")
	}
	if pageHits.Load() != 1 {
		t.Errorf("Expected 1 page hit, got %d", pageHits.Load())
	}
}

func TestFetch_UnsupportedURL(t *testing.T) {
	f := New(testConfig(), nil)
	for _, raw := range []string{"mailto:info@uni-a.de", "/relative/path", "ftp://uni-a.de/x"} {
		if _, err := f.Fetch(context.Background(), raw); !errors.Is(err, ErrUnsupportedURL) {
			t.Errorf("Fetch(%q): expected ErrUnsupportedURL, got %v", raw, err)
		}
	}
}

func TestPage_IsPDF(t *testing.T) {
	tests := []struct {
		page Page
		want bool
	}{
		{Page{URL: "https://uni-a.de/policy.PDF"}, true},
		{Page{URL: "https://repo.uni-a.de/servlets/MCRFileNodeServlet/dumpFile/1"}, true},
		{Page{URL: "https://uni-a.de/doc", ContentType: "application/pdf"}, true},
		{Page{URL: "https://uni-a.de/a.pdf?download=1"}, true},
		{Page{URL: "https://uni-a.de/lehre", ContentType: "text/html"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.page.URL, func(t *testing.T) {
			if got := tt.page.IsPDF(); got != tt.want {
				t.Errorf("IsPDF() = %v, want %v", got, tt.want)
			}
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsRetryableFetchError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"503", &StatusError{StatusCode: 503}, true},
		{"500", &StatusError{StatusCode: 500}, true},
		{"429", &StatusError{StatusCode: 429}, true},
		{"404", &StatusError{StatusCode: 404}, false},
		{"403", &StatusError{StatusCode: 403}, false},
		{"net error", fmt.Errorf("fetch: %w", timeoutErr{}), true},
		{"connection refused", errors.New("fetch: connection refused"), true},
		{"robots", fmt.Errorf("x: %w", ErrDisallowed), false},
		{"canceled", fmt.Errorf("fetch: %w", context.Canceled), false},
		{"bad request", errors.New("create request: invalid URL"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableFetchError(tt.err); got != tt.retryable {
				t.Errorf("isRetryableFetchError(%v) = %v, want %v", tt.err, got, tt.retryable)
			}
		})
	}
}
