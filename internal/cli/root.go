package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"mindkb/config"
	"mindkb/internal/adapter/cache"
	"mindkb/internal/adapter/catalog"
	"mindkb/internal/adapter/chunker"
	"mindkb/internal/adapter/embedding"
	"mindkb/internal/domain"
	"mindkb/internal/logger"
	"mindkb/internal/metrics"
	"mindkb/internal/usecase"
)

var (
	cfgFile     string
	envFile     string
	logLevel    string
	dumpMetrics bool
	cfg         *config.Config
	rootDir     string
	log         *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "mindkb",
	Short: "Knowledge base for a mental-health support chatbot",
	Long: `mindkb turns curated mental-health articles into a semantically indexed
knowledge base and serves the most relevant chunks for a user message.

Example usage:
  mindkb build ./articles               # Chunk, embed and persist the knowledge base
  mindkb query -q "I can't sleep"       # Show the top-k chunks
  mindkb context -q "exam stress"       # Pack retrieved chunks for a prompt
  mindkb info                           # Show the current build and staleness
  mindkb query -q "grief" --metrics     # Also dump Prometheus metrics to stderr`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if err := loadDotenv(); err != nil {
			return err
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
			return fmt.Errorf("invalid environment override: %w", err)
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		log, err = logger.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
		if err != nil {
			return fmt.Errorf("invalid logging config: %w", err)
		}
		slog.SetDefault(log)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if !dumpMetrics {
			return nil
		}
		return metrics.WriteText(cmd.ErrOrStderr())
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./mindkb.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default is ./.env when present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&dumpMetrics, "metrics", false, "write Prometheus metrics to stderr when the command finishes")
}

// loadDotenv loads --env-file, or .env in the root directory when it exists.
// Variables already set in the environment win.
func loadDotenv() error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
		return nil
	}
	err := godotenv.Load(filepath.Join(rootDir, ".env"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}

// resolve makes configured relative paths relative to the root directory.
func resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(rootDir, path)
}

// openCatalog opens the build catalog. The caller closes it.
func openCatalog() (*catalog.BoltCatalog, error) {
	path := resolve(cfg.KnowledgeBase.CatalogPath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}
	cat, err := catalog.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open build catalog: %w", err)
	}
	return cat, nil
}

func newChunker() *chunker.SentenceChunker {
	return chunker.NewSentenceChunker(cfg.Chunking.MaxWords, cfg.Chunking.OverlapWords)
}

// newManager wires a Manager from the loaded configuration. cat may be nil.
func newManager(cat *catalog.BoltCatalog) (*usecase.Manager, error) {
	emb, err := embedding.New(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	opts := usecase.ManagerOptions{
		IndexPath:    resolve(cfg.KnowledgeBase.IndexPath),
		MetadataPath: resolve(cfg.KnowledgeBase.MetadataPath),
		BatchSize:    cfg.Embedding.BatchSize,
		ConfigHash:   cfg.Hash(),
		Chunker:      newChunker(),
		Embedder:     emb,
		Logger:       log,
	}
	if cat != nil {
		opts.Catalog = cat
	}
	if cfg.Retrieve.CacheSize > 0 {
		opts.Cache = cache.NewQueryCache(cfg.Retrieve.CacheSize, time.Duration(cfg.Retrieve.CacheTTLSecs)*time.Second)
	}
	return usecase.NewManager(opts), nil
}

// loadManager returns a Manager serving the persisted knowledge base.
func loadManager(cmd *cobra.Command) (*usecase.Manager, func(), error) {
	cat, err := openCatalog()
	if err != nil {
		return nil, nil, err
	}
	m, err := newManager(cat)
	if err != nil {
		cat.Close()
		return nil, nil, err
	}
	if err := m.Load(cmd.Context()); err != nil {
		cat.Close()
		return nil, nil, describeLoadError(err)
	}
	return m, func() { cat.Close() }, nil
}

func describeLoadError(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("no knowledge base found. Run 'mindkb build' first")
	}
	if errors.Is(err, domain.ErrIndexCorruption) {
		return fmt.Errorf("knowledge base is corrupt, rebuild it with 'mindkb build': %w", err)
	}
	return fmt.Errorf("failed to load knowledge base: %w", err)
}
