package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codelens-dev/codelens/internal/config"
	"github.com/codelens-dev/codelens/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the workspace configuration",
		Long: `Inspect the effective configuration for the current workspace:
defaults, overlaid with config.json, a .codelens.yaml project overlay,
and CODELENS_* environment variables, in that precedence order.`,
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigInitCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the path to config.json",
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := resolveRoot()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), config.ConfigPath(root))
			return err
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration to config.json",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config.json")

	return cmd
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool) error {
	root, err := resolveRoot()
	if err != nil {
		return err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if jsonOutput {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}

	out := output.New(cmd.OutOrStdout())
	out.Statusf("📋", "Configuration for %s", root)
	out.Newline()
	out.Statusf("", "parse.include_globs: %v", cfg.Parse.IncludeGlobs)
	out.Statusf("", "parse.exclude_globs: %v", cfg.Parse.ExcludeGlobs)
	out.Statusf("", "parse.max_file_size_bytes: %d", cfg.Parse.MaxFileSizeBytes)
	out.Statusf("", "snippet.lines: %d", cfg.Snippet.Lines)
	out.Statusf("", "retrieval.top_k: %d", cfg.Retrieval.TopK)
	out.Statusf("", "embedding.model_id: %s", cfg.Embedding.ModelID)
	out.Statusf("", "embedding.dimension: %d", cfg.Embedding.Dimension)
	out.Statusf("", "hnsw: M=%d ef_construction=%d ef_search=%d metric=%s",
		cfg.HNSW.M, cfg.HNSW.EfConstruction, cfg.HNSW.EfSearch, cfg.HNSW.Metric)
	out.Statusf("", "cache.l1: max_entries=%d ttl_ms=%d", cfg.Cache.L1.MaxEntries, cfg.Cache.L1.TTLMs)
	out.Statusf("", "cache.l2: max_bytes=%d ttl_ms=%d", cfg.Cache.L2.MaxBytes, cfg.Cache.L2.TTLMs)
	out.Statusf("", "cache.l3: ttl_ms=%d", cfg.Cache.L3.TTLMs)
	out.Statusf("", "lock.timeout_ms: %d", cfg.Lock.TimeoutMs)
	out.Statusf("", "watch: debounce_ms=%d batch_size=%d", cfg.Watch.DebounceMs, cfg.Watch.BatchSize)
	return nil
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())

	root, err := resolveRoot()
	if err != nil {
		return err
	}
	path := config.ConfigPath(root)

	if !force && fileExists(path) {
		out.Warning("config.json already exists")
		out.Statusf("📁", "Location: %s", path)
		out.Status("", "Use --force to overwrite it")
		return nil
	}

	cfg := config.NewConfig()
	if err := cfg.WriteJSON(path); err != nil {
		return fmt.Errorf("write config.json: %w", err)
	}

	out.Success("Wrote default configuration")
	out.Statusf("📁", "Location: %s", path)
	return nil
}
