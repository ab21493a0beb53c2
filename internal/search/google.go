package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/claimprobe/internal/model"
	"github.com/ppiankov/claimprobe/internal/util"
	"github.com/ppiankov/claimprobe/internal/worker"
)

const (
	googleDefaultBaseURL = "https://www.googleapis.com/customsearch/v1"
	// the Custom Search API caps num at 10
	googleMaxResults = 10
)

// GoogleSearcher queries the Google Custom Search JSON API
type GoogleSearcher struct {
	apiKey     string
	engineID   string
	baseURL    string
	results    int
	httpClient *http.Client
	limiter    *worker.Limiter
	logger     *zap.Logger
}

type googleResponse struct {
	Items []struct {
		Title string `json:"title"`
		Link  string `json:"link"`
	} `json:"items"`
}

type googleError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// NewGoogleSearcher creates a Google Custom Search client
func NewGoogleSearcher(cfg model.SearchConfig, httpCfg model.HTTPConfig, logger *zap.Logger) (*GoogleSearcher, error) {
	if cfg.APIKey == "" || cfg.EngineID == "" {
		return nil, fmt.Errorf("%w: google needs an API key and a search engine id", ErrNotConfigured)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = googleDefaultBaseURL
	}

	results := cfg.Results
	if results <= 0 || results > googleMaxResults {
		results = googleMaxResults
	}

	timeout := httpCfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s := &GoogleSearcher{
		apiKey:   cfg.APIKey,
		engineID: cfg.EngineID,
		baseURL:  baseURL,
		results:  results,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(httpCfg.HTTPProxy, httpCfg.HTTPSProxy, httpCfg.NoProxy),
			},
		},
		logger: logger,
	}
	if cfg.RequestsPerSecond > 0 {
		s.limiter = worker.NewLimiter(cfg.RequestsPerSecond, 1)
	}
	return s, nil
}

// Query runs one search and returns result links in rank order
func (s *GoogleSearcher) Query(ctx context.Context, text string) ([]string, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, s.baseURL); err != nil {
			return nil, err
		}
	}

	params := url.Values{}
	params.Set("key", s.apiKey)
	params.Set("cx", s.engineID)
	params.Set("q", text)
	params.Set("num", strconv.Itoa(s.results))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr googleError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("search API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("search API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed googleResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	links := make([]string, 0, len(parsed.Items))
	seen := make(map[string]bool, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.Link == "" || seen[item.Link] {
			continue
		}
		seen[item.Link] = true
		links = append(links, item.Link)
	}

	s.logger.Debug("search completed",
		zap.String("query", text),
		zap.Int("results", len(links)))

	if len(links) == 0 {
		s.logger.Warn("search returned no results", zap.String("query", text))
	}

	return links, nil
}
