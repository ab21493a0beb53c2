// Package extract turns a page into per-chunk judgments using a language
// model.
package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/claimprobe/internal/fetch"
	"github.com/ppiankov/claimprobe/internal/llm"
	"github.com/ppiankov/claimprobe/internal/model"
)

// Extractor produces the chunk outcomes for one URL. An empty result
// means no content could be extracted.
type Extractor interface {
	Extract(ctx context.Context, url, instruction string) ([]model.Outcome, error)
}

// Fetcher retrieves pages
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Page, error)
}

const systemPrompt = "Du analysierst Ausschnitte von Webseiten und Dokumenten. " +
	"Antworte ausschließlich mit einem JSON-Objekt mit den Feldern " +
	"\"reasoning\" (Zeichenkette) und \"result\" (true oder false)."

const chunkPromptFormat = `Hier ist ein Ausschnitt (Teil %d von %d) des Inhalts der URL <url>%s</url>:
<url_content>
%s
</url_content>

%s`

// Options configures an LLMExtractor
type Options struct {
	Chunker Chunker
	// Workers bounds concurrent model calls for one document
	Workers     int
	Model       string
	MaxTokens   int
	Temperature *float32
}

// OptionsFromConfig converts model.ExtractionConfig to Options
func OptionsFromConfig(cfg model.ExtractionConfig) Options {
	return Options{
		Chunker: Chunker{
			TokenThreshold: cfg.ChunkTokenThreshold,
			OverlapRate:    cfg.OverlapRate,
			MaxChunks:      cfg.MaxChunks,
		},
		Workers: cfg.ChunkWorkers,
	}
}

// LLMExtractor fetches a page, chunks its text and asks the model for a
// judgment per chunk
type LLMExtractor struct {
	fetcher  Fetcher
	provider llm.Provider
	opts     Options
	logger   *zap.Logger
}

// NewLLMExtractor creates an extractor
func NewLLMExtractor(fetcher Fetcher, provider llm.Provider, opts Options, logger *zap.Logger) *LLMExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &LLMExtractor{
		fetcher:  fetcher,
		provider: provider,
		opts:     opts,
		logger:   logger,
	}
}

// Extract returns outcomes in chunk order. Pages that are disallowed,
// answer with a client error or cannot be read yield no outcomes. Transport
// failures, server errors and rate limiting are returned as errors so the
// combination can be retried. A failed model call becomes an error outcome
// for its chunk; output that violates the judgment schema fails the whole
// extraction with a *SchemaError.
func (e *LLMExtractor) Extract(ctx context.Context, url, instruction string) ([]model.Outcome, error) {
	logger := e.logger.With(zap.String("url", url))

	page, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		switch {
		case errors.Is(err, fetch.ErrDisallowed):
			logger.Warn("skipping URL disallowed by robots.txt")
			return nil, nil
		case errors.Is(err, fetch.ErrUnsupportedURL):
			logger.Warn("skipping unsupported URL")
			return nil, nil
		case isMissingPage(err):
			logger.Warn("page could not be fetched", zap.Error(err))
			return nil, nil
		}
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}

	text, err := DocumentText(page)
	if err != nil {
		logger.Warn("no text could be read from page",
			zap.String("content_type", page.ContentType),
			zap.Error(err))
		return nil, nil
	}

	chunks := e.opts.Chunker.Split(text, logger)
	if len(chunks) == 0 {
		logger.Warn("page has no text content")
		return nil, nil
	}

	perChunk := make([][]model.Outcome, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			outcomes, err := e.judgeChunk(gctx, url, instruction, i, len(chunks), chunk)
			if err != nil {
				return err
			}
			perChunk[i] = outcomes
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var outcomes []model.Outcome
	for _, o := range perChunk {
		outcomes = append(outcomes, o...)
	}

	logger.Debug("extraction finished",
		zap.Int("chunks", len(chunks)),
		zap.Int("outcomes", len(outcomes)))

	return outcomes, nil
}

func (e *LLMExtractor) judgeChunk(ctx context.Context, url, instruction string, index, total int, chunk string) ([]model.Outcome, error) {
	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		System:      systemPrompt,
		Prompt:      fmt.Sprintf(chunkPromptFormat, index+1, total, url, chunk, instruction),
		Model:       e.opts.Model,
		MaxTokens:   e.opts.MaxTokens,
		Temperature: e.opts.Temperature,
		JSON:        true,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		e.logger.Warn("model call failed for chunk",
			zap.String("url", url),
			zap.Int("chunk", index),
			zap.Error(err))
		return []model.Outcome{model.ErrorOutcome(index, err.Error())}, nil
	}

	judgments, err := ParseJudgments(index, resp.Text)
	if err != nil {
		return nil, err
	}

	outcomes := make([]model.Outcome, len(judgments))
	for i, j := range judgments {
		outcomes[i] = model.JudgmentOutcome(j.Reasoning, j.Positive)
	}
	return outcomes, nil
}

// isMissingPage reports a client error other than 429
func isMissingPage(err error) bool {
	var statusErr *fetch.StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.StatusCode >= 400 && statusErr.StatusCode < 500 &&
		statusErr.StatusCode != http.StatusTooManyRequests
}
