package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"mindkb/internal/usecase"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the persisted knowledge base for corruption",
	Long: `Load the index and metadata files and check that they belong to the same
build, have the same number of rows, hold unit-length vectors and unique
chunk ids.`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	kb, err := usecase.Load(resolve(cfg.KnowledgeBase.IndexPath), resolve(cfg.KnowledgeBase.MetadataPath))
	if err != nil {
		return describeLoadError(err)
	}
	if err := kb.Verify(); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	fmt.Printf("Knowledge base OK\n")
	fmt.Printf("  Build ID:  %s\n", kb.BuildID)
	fmt.Printf("  Chunks:    %d\n", kb.Size())
	fmt.Printf("  Dimension: %d\n", kb.Dimension())
	return nil
}
