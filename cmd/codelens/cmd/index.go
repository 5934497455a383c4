package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codelens-dev/codelens/internal/annotate"
	"github.com/codelens-dev/codelens/internal/changedetect"
	"github.com/codelens-dev/codelens/internal/config"
	"github.com/codelens-dev/codelens/internal/embed"
	"github.com/codelens-dev/codelens/internal/lang"
	"github.com/codelens-dev/codelens/internal/output"
	"github.com/codelens-dev/codelens/internal/parser"
	"github.com/codelens-dev/codelens/internal/store"
	"github.com/codelens-dev/codelens/internal/vcs"
)

type indexOptions struct {
	all     bool
	since   string
	staged  bool
	offline bool
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build or update the code intelligence index",
		Long: `Build or update the fragment/annotation/embedding index for the
current workspace.

On the first run (no index yet), or with --all, considers every file
matched by parse_include_globs/parse_exclude_globs; otherwise, by
default, only the files git reports as changed since HEAD. Use --since
to index only what changed against a git ref, or --staged to index only
staged files. Files whose content hash matches the stored one are
skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.all, "all", false, "Consider every file, not only files changed since HEAD (unchanged content is still skipped)")
	cmd.Flags().StringVar(&opts.since, "since", "", "Index only files changed against this git ref")
	cmd.Flags().BoolVar(&opts.staged, "staged", false, "Index only staged files")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Use static embeddings (skip the embedding runtime)")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, opts indexOptions) error {
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

	selector, err := indexSelector(opts, dataDir)
	if err != nil {
		return err
	}

	embedder, dim := newEmbedder(cfg, opts.offline)
	defer embedder.Close()

	st, err := openStore(dataDir, cfg, dim)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	oracle, oracleErr := vcs.NewGitOracle(ctx, root)
	if oracleErr != nil {
		oracle = nil // degrade: ForceAll/Glob/Paths selectors don't need an oracle
	}

	registry := lang.Default()
	p := parser.New(registry)
	p.SetMaxFileSize(cfg.Parse.MaxFileSizeBytes)
	batcher := embed.NewBatcher(embedder, st, embedder.ModelName(), 8)

	ws := &changedetect.Workspace{
		Root:         root,
		IncludeGlobs: cfg.Parse.IncludeGlobs,
		ExcludeGlobs: cfg.Parse.ExcludeGlobs,
		Oracle:       oracle,
		Store:        st,
	}

	classifications, err := changedetect.Detect(ctx, selector, ws)
	if err != nil {
		return fmt.Errorf("detect changes: %w", err)
	}

	if len(classifications) == 0 {
		out.Success("Nothing to index")
		return nil
	}

	out.Statusf("🔍", "Indexing %d file(s) in %s", len(classifications), root)

	indexed := 0
	for i, c := range classifications {
		if err := indexFragment(ctx, root, registry, p, st, batcher, c); err != nil {
			out.Warningf("skipping %s: %v", c.Path, err)
			continue
		}
		indexed++
		out.Progress(i+1, len(classifications), c.Path)
	}

	out.Success(fmt.Sprintf("Indexed %d of %d file(s)", indexed, len(classifications)))
	return nil
}

func indexSelector(opts indexOptions, dataDir string) (changedetect.Selector, error) {
	switch {
	case opts.all:
		return changedetect.ForceAll(), nil
	case opts.staged:
		return changedetect.Staged(), nil
	case opts.since != "":
		return changedetect.ChangedSinceRef(opts.since), nil
	case !workspaceInitialized(dataDir):
		return changedetect.ForceAll(), nil
	default:
		return changedetect.ChangedSinceHead(), nil
	}
}

// indexFragment parses, annotates, and embeds one classified file,
// mirroring internal/watcher.Watcher.processFile's per-file pipeline for
// the one-shot indexing path.
func indexFragment(ctx context.Context, root string, registry *lang.Registry, p *parser.Parser, st *store.Store, batcher *embed.Batcher, c changedetect.Classification) error {
	if c.Status == changedetect.Removed {
		return st.DeleteFile(ctx, c.Path)
	}

	abs := filepath.Join(root, c.Path)
	data, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("read %s: %w", c.Path, err)
	}

	desc, ok := registry.ByExtension(filepath.Ext(c.Path))
	if !ok {
		return nil
	}

	tree, frags, err := p.ParseTree(ctx, c.Path, data, desc.Name)
	if err != nil {
		return fmt.Errorf("parse %s: %w", c.Path, err)
	}
	defer tree.Close()

	anns := make([]*store.Annotation, 0, len(frags))
	pairs := make([]embed.FragmentText, 0, len(frags))
	for _, frag := range frags {
		ann, err := annotate.Annotate(ctx, tree, frag)
		if err != nil {
			return fmt.Errorf("annotate %s: %w", frag.ID, err)
		}
		anns = append(anns, ann)
		pairs = append(pairs, embed.FragmentText{FragmentID: frag.ID, Text: embed.BuildText(ann.Summary, ann.Signature)})
	}

	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("stat %s: %w", c.Path, err)
	}

	if err := st.UpsertFileFragments(ctx, c.Path, changedetect.HashContent(data), info.ModTime(), frags, anns, nil); err != nil {
		return fmt.Errorf("upsert fragments for %s: %w", c.Path, err)
	}

	if len(pairs) == 0 {
		return nil
	}
	return batcher.Batch(ctx, pairs)
}
