package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	queryText string
	queryTopK int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search the knowledge base",
	Long: `Embed the query and return the most similar chunks, best first.

Examples:
  mindkb query -q "I feel anxious before exams"
  mindkb query -q "trouble sleeping" --top-k 8 --json`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	m, closeFn, err := loadManager(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	topK := cfg.Retrieve.DefaultK
	if queryTopK > 0 {
		topK = queryTopK
	}

	results, err := m.Retrieve(cmd.Context(), queryText, topK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if queryJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d results for: %s\n\n", len(results), queryText)
	for i, r := range results {
		meta := r.Chunk.Metadata
		fmt.Printf("--- [%d] %s (score: %.3f) ---\n", i+1, meta.ChunkID, r.Score)
		if len(meta.Tags) > 0 {
			fmt.Printf("tags: %s\n", strings.Join(meta.Tags, ", "))
		}
		text := r.Chunk.Text
		if len(text) > 500 {
			text = text[:500] + "..."
		}
		fmt.Println(text)
		fmt.Println()
	}

	return nil
}
