package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List committed builds, newest first",
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of builds to show (0 for all)")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "output as JSON")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cat, err := openCatalog()
	if err != nil {
		return err
	}
	defer cat.Close()

	recs, err := cat.History(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}

	if historyJSON {
		output, _ := json.MarshalIndent(recs, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(recs) == 0 {
		fmt.Println("No builds recorded.")
		return nil
	}
	for _, r := range recs {
		fmt.Printf("%s  %s  %5d chunks  %4d docs  %s\n",
			r.BuiltAt.Format("2006-01-02 15:04:05"), r.ID, r.Chunks, r.Documents, r.Model)
	}
	return nil
}
