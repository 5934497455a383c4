package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codelens-dev/codelens/internal/config"
	"github.com/codelens-dev/codelens/internal/embed"
	"github.com/codelens-dev/codelens/internal/lang"
	"github.com/codelens-dev/codelens/internal/output"
)

// statusInfo is the status command's JSON/plain-text render target.
type statusInfo struct {
	Root                string   `json:"root"`
	Initialized          bool     `json:"initialized"`
	IndexVersion         int64    `json:"index_version"`
	FileCount            int      `json:"file_count"`
	FragmentCount        int      `json:"fragment_count"`
	EmbeddingModelID     string   `json:"embedding_model_id"`
	UnavailableLanguages []string `json:"unavailable_languages,omitempty"`
	FragmentsDBSize      int64    `json:"fragments_db_bytes"`
	EmbeddingsDBSize     int64    `json:"embeddings_db_bytes"`
	HNSWSize             int64    `json:"hnsw_bin_bytes"`
	CacheSize            int64    `json:"cache_bytes"`
}

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and storage status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	root, err := resolveRoot()
	if err != nil {
		return fmt.Errorf("resolve workspace root: %w", err)
	}
	dataDir := config.DataDir(root)

	info := statusInfo{Root: root}
	info.Initialized = workspaceInitialized(dataDir)
	info.FragmentsDBSize = fileSize(filepath.Join(dataDir, "fragments.db"))
	info.EmbeddingsDBSize = fileSize(filepath.Join(dataDir, "embeddings.db"))
	info.HNSWSize = fileSize(filepath.Join(dataDir, "hnsw.bin"))
	info.CacheSize = dirSize(filepath.Join(dataDir, "cache"))

	registry := lang.Default()
	for name := range registry.Unavailable() {
		info.UnavailableLanguages = append(info.UnavailableLanguages, name)
	}

	cfg, err := config.Load(root)
	if err != nil {
		cfg = config.NewConfig()
	}
	info.EmbeddingModelID = cfg.Embedding.ModelID

	if info.Initialized {
		dim := cfg.Embedding.Dimension
		if dim == 0 {
			dim = embed.StaticDimensions
		}
		st, err := openStore(dataDir, cfg, dim)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		if v, err := st.CurrentIndexVersion(ctx); err == nil {
			info.IndexVersion = v
		}
		if records, err := st.AllFileRecords(ctx); err == nil {
			info.FileCount = len(records)
			for _, r := range records {
				info.FragmentCount += len(r.FragmentIDs)
			}
		}
	}

	if jsonOutput {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}

	return renderStatus(cmd, info)
}

func renderStatus(cmd *cobra.Command, info statusInfo) error {
	out := output.New(cmd.OutOrStdout())

	out.Statusf("📁", "Workspace: %s", info.Root)
	if !info.Initialized {
		out.Warning("No index found — run 'codelens index' to create one")
		return nil
	}

	out.Statusf("📊", "Index version: %d", info.IndexVersion)
	out.Statusf("📄", "Files indexed: %d", info.FileCount)
	out.Statusf("🧩", "Fragments: %d", info.FragmentCount)
	if info.EmbeddingModelID != "" {
		out.Statusf("🧠", "Embedding model: %s", info.EmbeddingModelID)
	} else {
		out.Status("🧠", "Embedding model: static (no embedding.model_id configured)")
	}
	out.Statusf("💾", "Storage: fragments=%s embeddings=%s hnsw=%s cache=%s",
		humanBytes(info.FragmentsDBSize), humanBytes(info.EmbeddingsDBSize),
		humanBytes(info.HNSWSize), humanBytes(info.CacheSize))

	if len(info.UnavailableLanguages) > 0 {
		out.Warningf("Unavailable grammars: %v", info.UnavailableLanguages)
	}

	return nil
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func dirSize(path string) int64 {
	var size int64
	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for q := n / unit; q >= unit; q /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
