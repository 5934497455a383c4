package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/codelens-dev/codelens/internal/config"
	"github.com/codelens-dev/codelens/internal/embed"
	"github.com/codelens-dev/codelens/internal/output"
	"github.com/codelens-dev/codelens/internal/retriever"
	"github.com/codelens-dev/codelens/internal/store"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the three-tier query cache",
	}

	cmd.AddCommand(newCacheAnalyzeCmd())
	cmd.AddCommand(newCacheClearCmd())
	cmd.AddCommand(newCachePruneCmd())
	cmd.AddCommand(newCacheWarmCmd())

	return cmd
}

func newCacheAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Report cache hit rate and top queries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCacheAnalyze(cmd.Context(), cmd)
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	var level int

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cache entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCacheClear(cmd, level)
		},
	}

	cmd.Flags().IntVar(&level, "level", 0, "Tier to clear: 0 (all), 1, 2, or 3")

	return cmd
}

func newCachePruneCmd() *cobra.Command {
	var olderThan time.Duration
	var level int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove cache entries older than a duration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCachePrune(cmd, olderThan, level)
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 24*time.Hour, "Remove entries older than this")
	cmd.Flags().IntVar(&level, "level", 0, "Tier to prune: 0 (all), 1, 2, or 3")

	return cmd
}

func newCacheWarmCmd() *cobra.Command {
	var topN int
	var offline bool

	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Replay the top-N most frequent past queries to repopulate the cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCacheWarm(cmd.Context(), cmd, topN, offline)
		},
	}

	cmd.Flags().IntVar(&topN, "top", 10, "Number of past queries to replay")
	cmd.Flags().BoolVar(&offline, "offline", false, "Use static embeddings (skip the embedding runtime)")

	return cmd
}

func runCacheAnalyze(ctx context.Context, cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())

	root, dataDir, cfg, st, err := openCacheWorkspace()
	if err != nil {
		return err
	}
	defer st.Close()

	c, err := openCache(dataDir, cfg, st)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer c.Close()

	stats, err := c.Analyze(ctx)
	if err != nil {
		return fmt.Errorf("analyze cache: %w", err)
	}

	out.Statusf("📊", "Cache stats for %s", root)
	out.Statusf("", "L1 hits: %d  L2 hits: %d  L3 hits: %d  misses: %d", stats.L1Hits, stats.L2Hits, stats.L3Hits, stats.Misses)
	out.Statusf("", "Hit rate: %.1f%%", stats.HitRate*100)
	out.Statusf("", "Queries logged: %d  avg latency: %.1fms", stats.QueryCount, stats.AvgLatencyMs)
	if len(stats.TopQueries) > 0 {
		out.Status("", "Top queries:")
		for _, q := range stats.TopQueries {
			out.Statusf("", "  - %s", q)
		}
	}
	return nil
}

func runCacheClear(cmd *cobra.Command, level int) error {
	out := output.New(cmd.OutOrStdout())

	_, dataDir, cfg, st, err := openCacheWorkspace()
	if err != nil {
		return err
	}
	defer st.Close()

	c, err := openCache(dataDir, cfg, st)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer c.Close()

	if err := c.Clear(level); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	out.Success("Cache cleared")
	return nil
}

func runCachePrune(cmd *cobra.Command, olderThan time.Duration, level int) error {
	out := output.New(cmd.OutOrStdout())

	_, dataDir, cfg, st, err := openCacheWorkspace()
	if err != nil {
		return err
	}
	defer st.Close()

	c, err := openCache(dataDir, cfg, st)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer c.Close()

	if err := c.Prune(olderThan, level); err != nil {
		return fmt.Errorf("prune cache: %w", err)
	}
	out.Successf("Pruned entries older than %s", olderThan)
	return nil
}

func runCacheWarm(ctx context.Context, cmd *cobra.Command, topN int, offline bool) error {
	out := output.New(cmd.OutOrStdout())

	_, dataDir, cfg, st, err := openCacheWorkspace()
	if err != nil {
		return err
	}
	defer st.Close()

	c, err := openCache(dataDir, cfg, st)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer c.Close()

	embedder, _ := newEmbedder(cfg, offline)
	defer embedder.Close()

	r := retriever.New(st, embedder, c)

	warmed := 0
	err = c.Warm(ctx, topN, func(ctx context.Context, query string) error {
		_, err := r.Retrieve(ctx, query, retriever.Options{})
		if err == nil {
			warmed++
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("warm cache: %w", err)
	}

	out.Successf("Replayed %d quer(ies) to warm the cache", warmed)
	return nil
}

// openCacheWorkspace loads the config and opens the store for the cache
// subcommands, all of which need the same two collaborators.
func openCacheWorkspace() (root, dataDir string, cfg *config.Config, st *store.Store, err error) {
	root, err = resolveRoot()
	if err != nil {
		return "", "", nil, nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	dataDir = config.DataDir(root)
	if !workspaceInitialized(dataDir) {
		return "", "", nil, nil, fmt.Errorf("no index found in %s\nRun 'codelens index' first", root)
	}

	cfg, err = config.Load(root)
	if err != nil {
		return "", "", nil, nil, fmt.Errorf("load config: %w", err)
	}

	dim := cfg.Embedding.Dimension
	if dim == 0 {
		dim = embed.StaticDimensions
	}
	st, err = openStore(dataDir, cfg, dim)
	if err != nil {
		return "", "", nil, nil, fmt.Errorf("open store: %w", err)
	}
	return root, dataDir, cfg, st, nil
}
