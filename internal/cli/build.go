package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"mindkb/config"
	"mindkb/internal/adapter/loader"
	"mindkb/internal/domain"
	"mindkb/internal/usecase"
)

var (
	buildTags    []string
	buildNoBar   bool
	buildNoWrite bool
)

var buildCmd = &cobra.Command{
	Use:   "build [path]",
	Short: "Build the knowledge base from documents",
	Long: `Load documents from the specified directory, split them into chunks,
embed every chunk and persist the index and chunk metadata as one build.

Text and markdown files become one document each. JSON, JSONL and YAML
files are read as manifests of {source, text, tags} records.

A failed build leaves the previously persisted knowledge base untouched.

Examples:
  mindkb build .                    # Build from the current directory
  mindkb build ./articles --tag who # Add a tag to every document`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().StringSliceVar(&buildTags, "tag", nil, "extra tag for every loaded document (repeatable)")
	buildCmd.Flags().BoolVar(&buildNoBar, "no-progress", false, "disable the progress bar")
	buildCmd.Flags().BoolVar(&buildNoWrite, "dry-run", false, "load and chunk documents without embedding or writing")
}

func runBuild(cmd *cobra.Command, args []string) error {
	path := GetRootDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	cfg := GetConfig()

	if err := config.EnsureStateDir(GetRootDir()); err != nil {
		return fmt.Errorf("failed to create .mindkb directory: %w", err)
	}

	tags := append(append([]string{}, cfg.Ingest.DefaultTags...), buildTags...)
	src := loader.NewFileLoader(cfg.Ingest.Includes, cfg.Ingest.Excludes, tags)
	src.Skip(config.Candidates(GetRootDir())...)
	src.Skip(cfgFile,
		resolve(cfg.KnowledgeBase.IndexPath),
		resolve(cfg.KnowledgeBase.MetadataPath),
		resolve(cfg.KnowledgeBase.CatalogPath))

	fmt.Printf("Scanning %s...\n", path)
	docs, loadErrs, err := src.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load documents: %w", err)
	}
	for _, e := range loadErrs {
		log.Warn("document not loaded", "error", e.Error())
	}
	if len(docs) == 0 {
		return fmt.Errorf("no documents found in %s", path)
	}

	if buildNoWrite {
		return dryRun(docs)
	}

	cat, err := openCatalog()
	if err != nil {
		return err
	}
	defer cat.Close()

	m, err := newManager(cat)
	if err != nil {
		return err
	}

	var progress usecase.ProgressFunc
	if !buildNoBar {
		progress = newProgress()
	}

	report, err := m.Build(cmd.Context(), docs, progress)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	fmt.Printf("\nBuild complete:\n")
	fmt.Printf("  Build ID:        %s\n", report.BuildID)
	fmt.Printf("  Documents:       %d\n", report.Documents)
	fmt.Printf("  Skipped:         %d\n", len(report.Skipped)+len(loadErrs))
	fmt.Printf("  Chunks:          %d\n", report.Chunks)
	fmt.Printf("  Embedding model: %s (%d dimensions)\n", report.Model, report.Dimension)
	fmt.Printf("  Duration:        %s\n", formatDuration(report.Duration))

	if len(report.Skipped) > 0 || len(loadErrs) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range loadErrs {
			fmt.Printf("  - %s\n", e)
		}
		for _, e := range report.Skipped {
			fmt.Printf("  - %s\n", e)
		}
	}

	fmt.Printf("\nIndex stored at:    %s\n", resolve(cfg.KnowledgeBase.IndexPath))
	fmt.Printf("Metadata stored at: %s\n", resolve(cfg.KnowledgeBase.MetadataPath))
	return nil
}

func dryRun(docs []domain.Document) error {
	chk := newChunker()

	total := 0
	for _, doc := range docs {
		n := len(chk.ChunkDocument(doc))
		total += n
		fmt.Printf("  %-40s %d chunks\n", doc.Source, n)
	}
	fmt.Printf("\n%d documents, %d chunks (nothing written)\n", len(docs), total)
	return nil
}

// newProgress renders one progress bar per build stage.
func newProgress() usecase.ProgressFunc {
	var (
		mu        sync.Mutex
		bar       *progressbar.ProgressBar
		stage     string
		startTime time.Time
	)

	return func(s string, done, total int) {
		mu.Lock()
		defer mu.Unlock()

		if s != stage || bar == nil {
			stage = s
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription(stageLabel(s)),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}

		_ = bar.Set(done)

		if done > 0 && done < total {
			elapsed := time.Since(startTime)
			rate := float64(done) / elapsed.Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-done)/rate) * time.Second
				bar.Describe(fmt.Sprintf("%s ETA: %s", stageLabel(s), formatDuration(eta)))
			}
		}
	}
}

func stageLabel(stage string) string {
	switch stage {
	case usecase.StageChunk:
		return "[cyan]Chunking[reset]"
	case usecase.StageEmbed:
		return "[cyan]Embedding[reset]"
	default:
		return "[cyan]" + stage + "[reset]"
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
