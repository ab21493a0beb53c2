package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/claimprobe/internal/cache"
	"github.com/ppiankov/claimprobe/internal/extract"
	"github.com/ppiankov/claimprobe/internal/fetch"
	"github.com/ppiankov/claimprobe/internal/investigation"
	"github.com/ppiankov/claimprobe/internal/llm"
	"github.com/ppiankov/claimprobe/internal/model"
	"github.com/ppiankov/claimprobe/internal/pipeline"
	"github.com/ppiankov/claimprobe/internal/registry"
	"github.com/ppiankov/claimprobe/internal/search"
	"github.com/ppiankov/claimprobe/internal/store"
	"github.com/ppiankov/claimprobe/internal/worker"
)

var (
	runWorkers     int
	runMaxAttempts int
	runMaxURLs     int
	runLimit       int
	runStoreDir    string
)

var runCmd = &cobra.Command{
	Use:   "run <investigation>",
	Short: "Evaluate every pending combination of an investigation",
	Long: `Run loads the institutions, subtracts the combinations already in the
store and evaluates the rest concurrently. Each finished combination is
appended to the store immediately; failed combinations stay pending for the
next run. Ctrl-C stops dispatching and waits for running combinations.

Example:
  claimprobe run open-lms
  claimprobe run openaccess --workers 4 --limit 20`,
	Args: cobra.ExactArgs(1),
	RunE: runInvestigation,
}

func init() {
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "concurrent combinations (default from config)")
	runCmd.Flags().IntVar(&runMaxAttempts, "max-attempts", 0, "attempts per combination (default from config)")
	runCmd.Flags().IntVar(&runMaxURLs, "max-urls", 0, "search results visited per combination (default from config)")
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "evaluate at most this many pending combinations")
	runCmd.Flags().StringVar(&runStoreDir, "store-dir", "", "directory holding the result stores")
	rootCmd.AddCommand(runCmd)
}

const providerCheckTimeout = 30 * time.Second

func runInvestigation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)

	runLogger := logger.With(
		zap.String("run_id", uuid.NewString()),
		zap.String("investigation", args[0]))

	p, err := preparePlan(cfg, args[0])
	if err != nil {
		return err
	}
	runLogger.Info("plan ready",
		zap.String("store", p.storePath),
		zap.Int("total", p.summary.Total),
		zap.Int("done", p.summary.Done),
		zap.Int("remaining", p.summary.Remaining))

	pending := p.pending
	if runLimit > 0 && len(pending) > runLimit {
		pending = pending[:runLimit]
	}
	if len(pending) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Nothing to do: %d of %d combinations already in %s\n", p.summary.Done, p.summary.Total, p.storePath)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	evaluator, err := buildEvaluator(ctx, cfg, p.def, p.institutions, runLogger)
	if err != nil {
		return err
	}

	sink, err := store.OpenJSONL(p.storePath, cfg.Store.Sync)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil {
			runLogger.Error("failed to close store", zap.String("path", sink.Path()), zap.Error(cerr))
		}
	}()

	coordinator := worker.NewCoordinator(sink, worker.Options{
		Workers:     cfg.Concurrency.Workers,
		MaxAttempts: cfg.Concurrency.MaxAttempts,
	}, runLogger)

	start := time.Now()
	stats := coordinator.Run(ctx, pending, evaluator)

	runLogger.Info("run finished",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("succeeded", stats.Succeeded),
		zap.Int("failed", stats.Failed),
		zap.Int("not_started", stats.NotStarted))

	remaining := p.summary.Remaining - stats.Succeeded
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "total:     %d\n", p.summary.Total)
	fmt.Fprintf(out, "done:      %d\n", p.summary.Done+stats.Succeeded)
	fmt.Fprintf(out, "remaining: %d\n", remaining)
	fmt.Fprintf(out, "succeeded: %d\n", stats.Succeeded)
	fmt.Fprintf(out, "failed:    %d\n", stats.Failed)

	if ctx.Err() != nil {
		return fmt.Errorf("run interrupted, %d combinations not started", stats.NotStarted)
	}
	return nil
}

func applyRunFlags(cmd *cobra.Command, cfg *model.Config) {
	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Concurrency.Workers = runWorkers
	}
	if flags.Changed("max-attempts") {
		cfg.Concurrency.MaxAttempts = runMaxAttempts
	}
	if flags.Changed("max-urls") {
		cfg.Extraction.MaxURLs = runMaxURLs
	}
	if flags.Changed("store-dir") {
		cfg.Store.Dir = runStoreDir
	}
}

// buildEvaluator wires search, fetch, model and cache for one investigation.
// It fails before any work starts when the model provider does not answer.
func buildEvaluator(ctx context.Context, cfg *model.Config, def *investigation.Definition, insts []model.Institution, l *zap.Logger) (*pipeline.Evaluator, error) {
	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
	if err != nil {
		return nil, fmt.Errorf("initialize LLM provider: %w", err)
	}
	if provider == nil {
		return nil, fmt.Errorf("no LLM provider configured (set llm.provider or LLM_PROVIDER)")
	}

	checkCtx, cancel := context.WithTimeout(ctx, providerCheckTimeout)
	defer cancel()
	if !provider.IsAvailable(checkCtx) {
		return nil, fmt.Errorf("LLM provider %s is not available (check llm.base_url and the API key)", provider.Name())
	}

	google, err := search.NewGoogleSearcher(cfg.Search, cfg.HTTP, l)
	if err != nil {
		return nil, err
	}

	c := cache.New(cfg.Cache)
	fetcher := fetch.New(fetch.ConfigFromModel(cfg.HTTP, cfg.RateLimiting), l)

	var extractor extract.Extractor = extract.NewLLMExtractor(fetcher, provider, extract.OptionsFromConfig(cfg.Extraction), l)
	extractor = extract.NewCachedExtractor(extractor, c, noCache, l)
	searcher := search.NewCachedSearcher(google, c, noCache, l)

	l.Debug("evaluator ready",
		zap.String("llm", provider.Name()),
		zap.Bool("cache", cfg.Cache.Enabled),
		zap.Bool("skip_cache", noCache))

	return pipeline.NewEvaluator(def, registry.Index(insts), searcher, extractor, cfg.Extraction.MaxURLs, l), nil
}
