package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/claimprobe/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the search and extraction cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached search and extraction result",
	Long: `Remove the on-disk cache directory (cache.dir). Run this after changing
prompts or models so that earlier judgments are not reused.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if strings.TrimSpace(cfg.Cache.Dir) == "" {
			fmt.Fprintln(out, "No cache directory configured, nothing to clear")
			return nil
		}

		cacheCfg := cfg.Cache
		cacheCfg.Enabled = true
		if err := cache.New(cacheCfg).Clear(); err != nil {
			return fmt.Errorf("clear cache %s: %w", cacheCfg.Dir, err)
		}

		logger.Info("cache cleared", zap.String("dir", cacheCfg.Dir))
		fmt.Fprintf(out, "✓ Cleared cache: %s\n", cacheCfg.Dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
