// Package config loads and validates codelens configuration.
//
// Configuration is layered, in order of increasing precedence:
//  1. Hardcoded defaults (NewConfig)
//  2. The persisted config.json in the workspace data directory
//  3. A project-level .codelens.yaml overlay at the workspace root
//  4. CODELENS_* environment variables
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete codelens configuration, mirroring the recognized
// config.json options.
type Config struct {
	Parse     ParseConfig     `json:"parse" yaml:"parse"`
	Snippet   SnippetConfig   `json:"snippet" yaml:"snippet"`
	Retrieval RetrievalConfig `json:"retrieval" yaml:"retrieval"`
	Embedding EmbeddingConfig `json:"embedding" yaml:"embedding"`
	HNSW      HNSWConfig      `json:"hnsw" yaml:"hnsw"`
	Cache     CacheConfig     `json:"cache" yaml:"cache"`
	Lock      LockConfig      `json:"lock" yaml:"lock"`
	Watch     WatchConfig     `json:"watch" yaml:"watch"`
}

// ParseConfig controls which files the parser walks.
type ParseConfig struct {
	IncludeGlobs     []string `json:"parse_include_globs" yaml:"include_globs"`
	ExcludeGlobs     []string `json:"parse_exclude_globs" yaml:"exclude_globs"`
	MaxFileSizeBytes int64    `json:"max_file_size_bytes" yaml:"max_file_size_bytes"`
}

// SnippetConfig controls fragment snippet truncation.
type SnippetConfig struct {
	Lines int `json:"snippet_lines" yaml:"lines"`
}

// RetrievalConfig controls default retrieval behavior.
type RetrievalConfig struct {
	TopK int `json:"top_k" yaml:"top_k"`
}

// EmbeddingConfig identifies the embedding model in use.
type EmbeddingConfig struct {
	ModelID   string `json:"model_id" yaml:"model_id"`
	Dimension int    `json:"dimension" yaml:"dimension"`
}

// HNSWConfig tunes the approximate nearest-neighbor graph.
type HNSWConfig struct {
	M              int    `json:"m" yaml:"m"`
	EfConstruction int    `json:"ef_construction" yaml:"ef_construction"`
	EfSearch       int    `json:"ef_search" yaml:"ef_search"`
	Metric         string `json:"metric" yaml:"metric"`
}

// CacheConfig tunes the three cache tiers.
type CacheConfig struct {
	L1 CacheL1Config `json:"l1" yaml:"l1"`
	L2 CacheL2Config `json:"l2" yaml:"l2"`
	L3 CacheL3Config `json:"l3" yaml:"l3"`
}

// CacheL1Config tunes the in-memory tier.
type CacheL1Config struct {
	MaxEntries int   `json:"max_entries" yaml:"max_entries"`
	TTLMs      int64 `json:"ttl_ms" yaml:"ttl_ms"`
}

// CacheL2Config tunes the on-disk blob tier.
type CacheL2Config struct {
	MaxBytes int64 `json:"max_bytes" yaml:"max_bytes"`
	TTLMs    int64 `json:"ttl_ms" yaml:"ttl_ms"`
}

// CacheL3Config tunes the durable SQLite tier.
type CacheL3Config struct {
	TTLMs int64 `json:"ttl_ms" yaml:"ttl_ms"`
}

// LockConfig tunes the workspace advisory lock.
type LockConfig struct {
	TimeoutMs int64 `json:"timeout_ms" yaml:"timeout_ms"`
}

// WatchConfig tunes the filesystem watcher.
type WatchConfig struct {
	DebounceMs int `json:"debounce_ms" yaml:"debounce_ms"`
	BatchSize  int `json:"batch_size" yaml:"batch_size"`
}

var defaultExcludeGlobs = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/vendor/**",
	"**/.codelens/**",
	"**/dist/**",
	"**/build/**",
	"**/*.min.js",
}

// NewConfig returns a Config populated with the spec's documented defaults.
func NewConfig() *Config {
	return &Config{
		Parse: ParseConfig{
			IncludeGlobs:     []string{},
			ExcludeGlobs:     defaultExcludeGlobs,
			MaxFileSizeBytes: 5 * 1024 * 1024, // matches internal/parser.DefaultMaxFileSizeBytes
		},
		Snippet:   SnippetConfig{Lines: 10},
		Retrieval: RetrievalConfig{TopK: 5},
		Embedding: EmbeddingConfig{ModelID: "", Dimension: 0},
		HNSW: HNSWConfig{
			M:              16,
			EfConstruction: 200,
			EfSearch:       64,
			Metric:         "cosine",
		},
		Cache: CacheConfig{
			L1: CacheL1Config{MaxEntries: 100, TTLMs: 5 * 60 * 1000},
			L2: CacheL2Config{MaxBytes: 1 << 30, TTLMs: 60 * 60 * 1000},
			L3: CacheL3Config{TTLMs: 24 * 60 * 60 * 1000},
		},
		Lock:  LockConfig{TimeoutMs: 30_000},
		Watch: WatchConfig{DebounceMs: 200, BatchSize: 256},
	}
}

// Load builds the effective configuration for a workspace root: defaults,
// then the persisted config.json, then a .codelens.yaml project overlay,
// then CODELENS_* environment overrides.
func Load(workspaceRoot string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadJSON(ConfigPath(workspaceRoot)); err != nil {
		return nil, fmt.Errorf("failed to load config.json: %w", err)
	}

	if err := cfg.loadYAMLOverlay(workspaceRoot); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadJSON merges config.json into cfg, if the file exists.
func (c *Config) loadJSON(path string) error {
	if !fileExists(path) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var parsed Config
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// loadYAMLOverlay merges the first existing .codelens.yaml/.yml overlay into cfg.
func (c *Config) loadYAMLOverlay(workspaceRoot string) error {
	for _, name := range OverlayFileNames {
		path := filepath.Join(workspaceRoot, name)
		if !fileExists(path) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}

		c.mergeWith(&parsed)
		return nil
	}

	return nil
}

// mergeWith overlays non-zero fields from other onto c.
func (c *Config) mergeWith(other *Config) {
	if len(other.Parse.IncludeGlobs) > 0 {
		c.Parse.IncludeGlobs = other.Parse.IncludeGlobs
	}
	if len(other.Parse.ExcludeGlobs) > 0 {
		c.Parse.ExcludeGlobs = append(c.Parse.ExcludeGlobs, other.Parse.ExcludeGlobs...)
	}
	if other.Parse.MaxFileSizeBytes != 0 {
		c.Parse.MaxFileSizeBytes = other.Parse.MaxFileSizeBytes
	}
	if other.Snippet.Lines != 0 {
		c.Snippet.Lines = other.Snippet.Lines
	}
	if other.Retrieval.TopK != 0 {
		c.Retrieval.TopK = other.Retrieval.TopK
	}
	if other.Embedding.ModelID != "" {
		c.Embedding.ModelID = other.Embedding.ModelID
	}
	if other.Embedding.Dimension != 0 {
		c.Embedding.Dimension = other.Embedding.Dimension
	}
	if other.HNSW.M != 0 {
		c.HNSW.M = other.HNSW.M
	}
	if other.HNSW.EfConstruction != 0 {
		c.HNSW.EfConstruction = other.HNSW.EfConstruction
	}
	if other.HNSW.EfSearch != 0 {
		c.HNSW.EfSearch = other.HNSW.EfSearch
	}
	if other.HNSW.Metric != "" {
		c.HNSW.Metric = other.HNSW.Metric
	}
	if other.Cache.L1.MaxEntries != 0 {
		c.Cache.L1.MaxEntries = other.Cache.L1.MaxEntries
	}
	if other.Cache.L1.TTLMs != 0 {
		c.Cache.L1.TTLMs = other.Cache.L1.TTLMs
	}
	if other.Cache.L2.MaxBytes != 0 {
		c.Cache.L2.MaxBytes = other.Cache.L2.MaxBytes
	}
	if other.Cache.L2.TTLMs != 0 {
		c.Cache.L2.TTLMs = other.Cache.L2.TTLMs
	}
	if other.Cache.L3.TTLMs != 0 {
		c.Cache.L3.TTLMs = other.Cache.L3.TTLMs
	}
	if other.Lock.TimeoutMs != 0 {
		c.Lock.TimeoutMs = other.Lock.TimeoutMs
	}
	if other.Watch.DebounceMs != 0 {
		c.Watch.DebounceMs = other.Watch.DebounceMs
	}
	if other.Watch.BatchSize != 0 {
		c.Watch.BatchSize = other.Watch.BatchSize
	}
}

// applyEnvOverrides applies CODELENS_* environment variables, the highest
// precedence layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CODELENS_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Retrieval.TopK = n
		}
	}
	if v := os.Getenv("CODELENS_SNIPPET_LINES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Snippet.Lines = n
		}
	}
	if v := os.Getenv("CODELENS_EMBEDDING_MODEL_ID"); v != "" {
		c.Embedding.ModelID = v
	}
	if v := os.Getenv("CODELENS_HNSW_METRIC"); v != "" {
		c.HNSW.Metric = strings.ToLower(v)
	}
	if v := os.Getenv("CODELENS_LOCK_TIMEOUT_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.Lock.TimeoutMs = n
		}
	}
	if v := os.Getenv("CODELENS_WATCH_DEBOUNCE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Watch.DebounceMs = n
		}
	}
	if v := os.Getenv("CODELENS_MAX_FILE_SIZE_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.Parse.MaxFileSizeBytes = n
		}
	}
}

// Validate rejects an internally inconsistent configuration.
func (c *Config) Validate() error {
	if c.Parse.MaxFileSizeBytes < 0 {
		return fmt.Errorf("parse.max_file_size_bytes must be non-negative, got %d", c.Parse.MaxFileSizeBytes)
	}
	if c.Snippet.Lines < 0 {
		return fmt.Errorf("snippet.lines must be non-negative, got %d", c.Snippet.Lines)
	}
	if c.Retrieval.TopK < 0 {
		return fmt.Errorf("retrieval.top_k must be non-negative, got %d", c.Retrieval.TopK)
	}
	if c.HNSW.M <= 0 {
		return fmt.Errorf("hnsw.m must be positive, got %d", c.HNSW.M)
	}
	if c.HNSW.EfConstruction <= 0 {
		return fmt.Errorf("hnsw.ef_construction must be positive, got %d", c.HNSW.EfConstruction)
	}
	if c.HNSW.EfSearch <= 0 {
		return fmt.Errorf("hnsw.ef_search must be positive, got %d", c.HNSW.EfSearch)
	}
	validMetrics := map[string]bool{"cosine": true, "l2": true, "euclidean": true}
	if !validMetrics[strings.ToLower(c.HNSW.Metric)] {
		return fmt.Errorf("hnsw.metric must be 'cosine', 'l2', or 'euclidean', got %s", c.HNSW.Metric)
	}
	if c.Lock.TimeoutMs <= 0 {
		return fmt.Errorf("lock.timeout_ms must be positive, got %d", c.Lock.TimeoutMs)
	}
	if c.Watch.DebounceMs < 0 {
		return fmt.Errorf("watch.debounce_ms must be non-negative, got %d", c.Watch.DebounceMs)
	}
	return nil
}

// WriteJSON persists the configuration as config.json, creating the parent
// directory if needed.
func (c *Config) WriteJSON(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}
