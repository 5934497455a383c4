package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codelens-dev/codelens/internal/config"
	"github.com/codelens-dev/codelens/internal/output"
	"github.com/codelens-dev/codelens/internal/retriever"
)

type queryOptions struct {
	k          int
	minScore   float32
	fileFilter string
	kindFilter string
	format     string
	offline    bool
}

func newQueryCmd() *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Retrieve fragments relevant to a natural-language or code query",
		Long: `Retrieve the fragments most relevant to a query, ranked by vector
similarity against the workspace's HNSW index.

Examples:
  codelens query "parse a file into fragments"
  codelens query "handleRequest" --kind function --limit 5
  codelens query "retry with backoff" --format markdown`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.k, "limit", "n", retriever.DefaultK, "Maximum number of results")
	cmd.Flags().Float32Var(&opts.minScore, "min-score", 0, "Minimum similarity score (0-1)")
	cmd.Flags().StringVar(&opts.fileFilter, "file", "", "Filter by file path glob")
	cmd.Flags().StringVar(&opts.kindFilter, "kind", "", "Filter by fragment kind (function, method, class, ...)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "plain", "Output format: plain, json, markdown")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Use static embeddings (skip the embedding runtime)")

	return cmd
}

func runQuery(ctx context.Context, cmd *cobra.Command, query string, opts queryOptions) error {
	out := output.New(cmd.OutOrStdout())

	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("query must not be empty")
	}

	root, err := resolveRoot()
	if err != nil {
		return fmt.Errorf("resolve workspace root: %w", err)
	}
	dataDir := config.DataDir(root)
	if !workspaceInitialized(dataDir) {
		return fmt.Errorf("no index found in %s\nRun 'codelens index' first", root)
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

	c, err := openCache(dataDir, cfg, st)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer c.Close()

	r := retriever.New(st, embedder, c)

	format := retriever.Format(opts.format)
	results, err := r.Retrieve(ctx, query, retriever.Options{
		K:            opts.k,
		MinScore:     opts.minScore,
		FileFilter:   opts.fileFilter,
		KindFilter:   opts.kindFilter,
		OutputFormat: format,
	})
	if err != nil {
		return fmt.Errorf("retrieve: %w", err)
	}

	if len(results) == 0 {
		out.Status("", fmt.Sprintf("No results for %q", query))
		return nil
	}

	rendered, err := retriever.FormatResults(query, results, format)
	if err != nil {
		return fmt.Errorf("format results: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}
