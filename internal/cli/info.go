package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mindkb/internal/domain"
	"mindkb/internal/port"
)

var infoJSON bool

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the latest build and whether it is stale",
	Long: `Show the latest committed build recorded in the catalog, the files it
was written to and whether the current configuration would build something
different.`,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "output as JSON")
}

type infoOutput struct {
	Build       *port.BuildRecord `json:"build,omitempty"`
	Stale       bool              `json:"stale"`
	StaleReason string            `json:"stale_reason,omitempty"`
	IndexBytes  int64             `json:"index_bytes"`
	MetaBytes   int64             `json:"metadata_bytes"`
	ConfigHash  string            `json:"config_hash"`
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	cat, err := openCatalog()
	if err != nil {
		return err
	}
	defer cat.Close()

	latest, err := cat.Latest()
	if errors.Is(err, domain.ErrNotFound) {
		fmt.Println("No builds recorded. Run 'mindkb build' first.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}

	stale, reason, err := cat.CheckConfig(cfg.Hash())
	if err != nil {
		return err
	}

	out := infoOutput{
		Build:       latest,
		Stale:       stale,
		StaleReason: reason,
		IndexBytes:  fileSize(resolve(cfg.KnowledgeBase.IndexPath)),
		MetaBytes:   fileSize(resolve(cfg.KnowledgeBase.MetadataPath)),
		ConfigHash:  cfg.Hash(),
	}

	if infoJSON {
		output, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Latest build:\n")
	fmt.Printf("  Build ID:   %s\n", latest.ID)
	fmt.Printf("  Built at:   %s\n", latest.BuiltAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("  Documents:  %d (%d skipped)\n", latest.Documents, latest.Skipped)
	fmt.Printf("  Chunks:     %d\n", latest.Chunks)
	fmt.Printf("  Model:      %s (%d dimensions)\n", latest.Model, latest.Dimension)
	fmt.Printf("  Index:      %s (%d bytes)\n", latest.IndexPath, out.IndexBytes)
	fmt.Printf("  Metadata:   %s (%d bytes)\n", latest.MetadataPath, out.MetaBytes)
	if stale {
		fmt.Printf("\nRebuild recommended: %s\n", reason)
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
