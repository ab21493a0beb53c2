// Package fetch retrieves candidate pages over HTTP.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/claimprobe/internal/model"
	"github.com/ppiankov/claimprobe/internal/util"
	"github.com/ppiankov/claimprobe/internal/worker"
)

const (
	defaultMaxAttempts = 3
	maxRedirects       = 5
)

// fetchSleepFunc is the sleep function used between retries (injectable for tests)
var fetchSleepFunc = time.Sleep

// ErrDisallowed is returned for URLs robots.txt excludes
var ErrDisallowed = errors.New("disallowed by robots.txt")

// ErrUnsupportedURL is returned for URLs that are not absolute http(s) URLs
var ErrUnsupportedURL = errors.New("unsupported URL")

// StatusError reports a non-2xx response
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.StatusCode, e.Status)
}

// Page is a fetched document
type Page struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string // media type without parameters
	Body        []byte
	Truncated   bool
}

// IsPDF reports whether the page is a PDF document
func (p *Page) IsPDF() bool {
	if p.ContentType == "application/pdf" {
		return true
	}
	return LooksLikePDF(p.FinalURL) || LooksLikePDF(p.URL)
}

// LooksLikePDF guesses from the URL alone. Repository download endpoints
// ("dumpFile") serve PDFs without a .pdf suffix.
func LooksLikePDF(rawURL string) bool {
	if strings.Contains(rawURL, "dumpFile") {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.HasSuffix(strings.ToLower(rawURL), ".pdf")
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}

// Config configures a Fetcher
type Config struct {
	Timeout       time.Duration
	UserAgent     string
	MaxBytes      int64
	MaxAttempts   int
	RespectRobots bool

	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string

	// Per-host politeness
	RequestsPerSecond float64
	Burst             int
}

// ConfigFromModel converts model config sections to fetch.Config
func ConfigFromModel(httpCfg model.HTTPConfig, rl model.RateLimitingConfig) Config {
	return Config{
		Timeout:           httpCfg.Timeout,
		UserAgent:         httpCfg.UserAgent,
		MaxBytes:          httpCfg.MaxBodyBytes,
		MaxAttempts:       defaultMaxAttempts,
		RespectRobots:     httpCfg.RespectRobots,
		HTTPProxy:         httpCfg.HTTPProxy,
		HTTPSProxy:        httpCfg.HTTPSProxy,
		NoProxy:           httpCfg.NoProxy,
		RequestsPerSecond: rl.RequestsPerSecond,
		Burst:             rl.BurstSize,
	}
}

// Fetcher fetches documents with retries, robots.txt compliance and
// per-host rate limiting
type Fetcher struct {
	httpClient  *http.Client
	userAgent   string
	maxBytes    int64
	maxAttempts int
	robots      *util.RobotsChecker
	limiter     *worker.Limiter
	logger      *zap.Logger
}

// New creates a Fetcher
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10_000_000
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}

	client := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	f := &Fetcher{
		httpClient:  client,
		userAgent:   cfg.UserAgent,
		maxBytes:    cfg.MaxBytes,
		maxAttempts: cfg.MaxAttempts,
		limiter:     worker.NewLimiter(cfg.RequestsPerSecond, cfg.Burst),
		logger:      logger,
	}
	if cfg.RespectRobots {
		f.robots = util.NewRobotsChecker(cfg.UserAgent, client)
	}
	return f
}

// Fetch retrieves rawURL, retrying transient failures with exponential
// backoff. URLs excluded by robots.txt return ErrDisallowed. A robots.txt
// Crawl-delay lowers the request rate for the host.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if u, err := url.Parse(rawURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedURL, rawURL)
	}

	if f.robots != nil {
		allowed, crawlDelay, err := f.robots.CanFetch(ctx, rawURL)
		if err != nil {
			f.logger.Debug("robots.txt unavailable, fetching anyway",
				zap.String("url", rawURL), zap.Error(err))
		}
		if !allowed {
			return nil, fmt.Errorf("%s: %w", rawURL, ErrDisallowed)
		}
		if err := f.limiter.SetCrawlDelay(rawURL, crawlDelay); err != nil {
			return nil, err
		}
	}

	var (
		page *Page
		err  error
	)
	for attempt := 0; attempt < f.maxAttempts; attempt++ {
		if werr := f.limiter.Wait(ctx, rawURL); werr != nil {
			return nil, werr
		}

		page, err = f.fetchOnce(ctx, rawURL)
		if err == nil || !isRetryableFetchError(err) || ctx.Err() != nil {
			return page, err
		}

		if attempt < f.maxAttempts-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			f.logger.Debug("retrying fetch",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
				zap.Error(err))
			fetchSleepFunc(backoff)
		}
	}
	return nil, err
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9,en;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	truncated := int64(len(body)) > f.maxBytes
	if truncated {
		body = body[:f.maxBytes]
		f.logger.Warn("response body truncated",
			zap.String("url", rawURL),
			zap.Int64("max_bytes", f.maxBytes))
	}

	contentType := resp.Header.Get("Content-Type")
	if mediaType, _, perr := mime.ParseMediaType(contentType); perr == nil {
		contentType = mediaType
	}

	return &Page{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: strings.ToLower(contentType),
		Body:        body,
		Truncated:   truncated,
	}, nil
}

// isRetryableFetchError reports transient failures: 5xx, 429 and network errors
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	s := strings.ToLower(err.Error())
	return strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset") ||
		strings.Contains(s, "timeout")
}
