package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	contextQuery  string
	contextBudget int
	contextOutput string
	contextTopK   int
	contextText   bool
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Pack retrieved knowledge for a prompt",
	Long: `Retrieve chunks for the query and pack them, in rank order, into a
context that fits within a word budget. Each snippet keeps its source.

An empty context means the chatbot should answer without grounding.

Examples:
  mindkb context -q "how do I calm down"
  mindkb context -q "grief" -b 300 -o context.json
  mindkb context -q "panic attack" --text`,
	RunE: runContext,
}

func init() {
	rootCmd.AddCommand(contextCmd)
	contextCmd.Flags().StringVarP(&contextQuery, "query", "q", "", "user message (required)")
	contextCmd.Flags().IntVarP(&contextBudget, "budget", "b", 0, "word budget (default from config)")
	contextCmd.Flags().StringVarP(&contextOutput, "output", "o", "", "output file (default: stdout)")
	contextCmd.Flags().IntVarP(&contextTopK, "top-k", "k", 0, "candidate pool size (default from config)")
	contextCmd.Flags().BoolVar(&contextText, "text", false, "print the rendered [source] block instead of JSON")
	contextCmd.MarkFlagRequired("query")
}

func runContext(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	m, closeFn, err := loadManager(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	topK := cfg.Retrieve.DefaultK
	if contextTopK > 0 {
		topK = contextTopK
	}
	budget := cfg.Context.WordBudget
	if contextBudget > 0 {
		budget = contextBudget
	}

	packed := m.Context(cmd.Context(), contextQuery, topK, budget)

	if contextText {
		fmt.Println(packed.Block())
		return nil
	}

	output, err := json.MarshalIndent(packed, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	if contextOutput != "" {
		if err := os.WriteFile(contextOutput, output, 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Printf("Context packed to: %s\n", contextOutput)
		fmt.Printf("  Snippets: %d\n", len(packed.Snippets))
		fmt.Printf("  Words:    %d / %d\n", packed.UsedWords, packed.BudgetWords)
	} else {
		fmt.Println(string(output))
	}

	return nil
}
