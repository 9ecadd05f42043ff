package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the knowledge base.
type Config struct {
	KnowledgeBase KnowledgeBaseConfig `yaml:"knowledge_base"`
	Chunking      ChunkingConfig      `yaml:"chunking"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	Retrieve      RetrieveConfig      `yaml:"retrieve"`
	Ingest        IngestConfig        `yaml:"ingest"`
	Context       ContextConfig       `yaml:"context"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// KnowledgeBaseConfig holds the locations of the persisted knowledge base.
type KnowledgeBaseConfig struct {
	IndexPath    string `yaml:"index_path"`
	MetadataPath string `yaml:"metadata_path"`
	CatalogPath  string `yaml:"catalog_path"`
}

// ChunkingConfig holds chunking configuration. Budgets are in words.
type ChunkingConfig struct {
	MaxWords     int `yaml:"max_words"`
	OverlapWords int `yaml:"overlap_words"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"`    // "hash", "openai", "ollama", "jina", "deepseek"
	Model       string `yaml:"model"`       // e.g., "text-embedding-3-small"
	Dimension   int    `yaml:"dimension"`   // 0 = derive from model
	APIKeyEnv   string `yaml:"api_key_env"` // Environment variable for API key
	BaseURL     string `yaml:"base_url"`
	BatchSize   int    `yaml:"batch_size"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	DefaultK     int `yaml:"default_k"`
	CacheSize    int `yaml:"cache_size"` // 0 disables the query cache
	CacheTTLSecs int `yaml:"cache_ttl_secs"`
}

// IngestConfig controls which files the loader picks up.
type IngestConfig struct {
	Includes    []string `yaml:"includes"`
	Excludes    []string `yaml:"excludes"`
	DefaultTags []string `yaml:"default_tags"`
}

// ContextConfig holds context packing configuration.
type ContextConfig struct {
	WordBudget int `yaml:"word_budget"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		KnowledgeBase: KnowledgeBaseConfig{
			IndexPath:    "knowledge_base.index",
			MetadataPath: "kb_chunks.json",
			CatalogPath:  "kb_catalog.db",
		},
		Chunking: ChunkingConfig{
			MaxWords:     200,
			OverlapWords: 30,
		},
		Embedding: EmbeddingConfig{
			Provider:    "hash",
			Model:       "feature-hash",
			APIKeyEnv:   "OPENAI_API_KEY",
			BatchSize:   64,
			TimeoutSecs: 60,
		},
		Retrieve: RetrieveConfig{
			DefaultK:     4,
			CacheSize:    256,
			CacheTTLSecs: 300,
		},
		Ingest: IngestConfig{
			Includes: []string{"**/*.txt", "**/*.md", "**/*.json", "**/*.jsonl", "**/*.yaml", "**/*.yml"},
			Excludes: []string{"**/.git/**", "**/node_modules/**", "**/.mindkb/**"},
		},
		Context: ContextConfig{
			WordBudget: 600,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for mindkb.yaml).
func LoadFromDir(dir string) (*Config, error) {
	for _, path := range Candidates(dir) {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return DefaultConfig(), nil
}

// Candidates lists the config files LoadFromDir looks for in dir, in order.
func Candidates(dir string) []string {
	return []string{
		filepath.Join(dir, "mindkb.yaml"),
		filepath.Join(dir, ".mindkb", "config.yaml"),
	}
}

// ApplyEnv overrides fields from environment variables. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("EMBEDDING_MODEL", &c.Embedding.Model)
	str("KB_EMBEDDING_PROVIDER", &c.Embedding.Provider)
	str("KB_INDEX_PATH", &c.KnowledgeBase.IndexPath)
	str("KB_CHUNKS_PATH", &c.KnowledgeBase.MetadataPath)
	str("KB_METADATA_PATH", &c.KnowledgeBase.MetadataPath)
	str("KB_CATALOG_PATH", &c.KnowledgeBase.CatalogPath)
	str("KB_LOG_LEVEL", &c.Logging.Level)

	for key, dst := range map[string]*int{
		"KB_DEFAULT_K":           &c.Retrieve.DefaultK,
		"KB_MAX_WORDS":           &c.Chunking.MaxWords,
		"KB_OVERLAP_WORDS":       &c.Chunking.OverlapWords,
		"KB_EMBEDDING_DIMENSION": &c.Embedding.Dimension,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.KnowledgeBase.IndexPath == "" || c.KnowledgeBase.MetadataPath == "" {
		return fmt.Errorf("knowledge_base: index_path and metadata_path are required")
	}
	if c.KnowledgeBase.IndexPath == c.KnowledgeBase.MetadataPath {
		return fmt.Errorf("knowledge_base: index_path and metadata_path must differ")
	}
	if c.Chunking.MaxWords <= 0 {
		return fmt.Errorf("chunking.max_words must be positive, got %d", c.Chunking.MaxWords)
	}
	if c.Chunking.OverlapWords < 0 {
		return fmt.Errorf("chunking.overlap_words must not be negative, got %d", c.Chunking.OverlapWords)
	}
	if c.Chunking.OverlapWords >= c.Chunking.MaxWords {
		return fmt.Errorf("chunking.overlap_words (%d) must be less than max_words (%d)",
			c.Chunking.OverlapWords, c.Chunking.MaxWords)
	}
	if c.Retrieve.DefaultK <= 0 {
		return fmt.Errorf("retrieve.default_k must be positive, got %d", c.Retrieve.DefaultK)
	}
	if c.Embedding.Dimension < 0 {
		return fmt.Errorf("embedding.dimension must not be negative, got %d", c.Embedding.Dimension)
	}
	return nil
}

// Hash fingerprints the settings that change what a build produces. A
// knowledge base built under a different hash is stale.
func (c *Config) Hash() string {
	h := sha256.New()
	fmt.Fprintf(h, "max_words=%d;overlap_words=%d;", c.Chunking.MaxWords, c.Chunking.OverlapWords)
	fmt.Fprintf(h, "provider=%s;model=%s;dimension=%d", c.Embedding.Provider, c.Embedding.Model, c.Embedding.Dimension)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// StateDir returns the per-project state directory.
func StateDir(dir string) string {
	return filepath.Join(dir, ".mindkb")
}

// EnsureStateDir ensures the .mindkb directory exists.
func EnsureStateDir(dir string) error {
	return os.MkdirAll(StateDir(dir), 0755)
}
