package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/codelens-dev/codelens/internal/config"
	"github.com/codelens-dev/codelens/internal/embed"
	"github.com/codelens-dev/codelens/internal/lang"
	"github.com/codelens-dev/codelens/internal/output"
	"github.com/codelens-dev/codelens/internal/parser"
	"github.com/codelens-dev/codelens/internal/watcher"
)

type watchOptions struct {
	offline bool
}

func newWatchCmd() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the workspace and update the index incrementally",
		Long: `Watch the workspace for filesystem changes and keep the index
up to date incrementally, debouncing and coalescing rapid edits before
reparsing, annotating, and embedding the affected files.

Runs until interrupted (Ctrl-C).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Use static embeddings (skip the embedding runtime)")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, opts watchOptions) error {
	out := output.New(cmd.OutOrStdout())

	root, err := resolveRoot()
	if err != nil {
		return fmt.Errorf("resolve workspace root: %w", err)
	}
	dataDir := config.DataDir(root)
	if err := ensureDataDir(dataDir); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	embedder, dim := newEmbedder(cfg, opts.offline)
	defer embedder.Close()

	st, err := openStore(dataDir, cfg, dim)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	registry := lang.Default()
	p := parser.New(registry)
	p.SetMaxFileSize(cfg.Parse.MaxFileSizeBytes)
	batcher := embed.NewBatcher(embedder, st, embedder.ModelName(), 8)

	w := watcher.New(watcher.Config{
		Root:            root,
		DebounceWindow:  time.Duration(cfg.Watch.DebounceMs) * time.Millisecond,
		IncludeGlobs:    cfg.Parse.IncludeGlobs,
		ExcludeGlobs:    cfg.Parse.ExcludeGlobs,
		EventBufferSize: watcher.DefaultEventBufferSize,
	}, registry, p, st, batcher)

	out.Statusf("👁", "Watching %s for changes (Ctrl-C to stop)", root)

	err = w.Start(ctx)
	if err != nil && ctx.Err() != nil {
		out.Success("Watcher stopped")
		return nil
	}
	return err
}
