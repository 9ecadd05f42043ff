package cli

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/spf13/cobra"

	"mindkb/internal/domain"
)

//go:embed templates/*.txt
var promptTemplates embed.FS

var (
	promptCtx   string
	promptQuery string
	promptTopK  int
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Render a grounded prompt for the response generator",
	Long: `Render the prompt the response generator receives: the assistant
instructions, the packed reference knowledge and the user message.

The context comes either from a file written by 'mindkb context -o' or from
a fresh retrieval for --query.

Examples:
  mindkb prompt -q "I keep overthinking at night"
  mindkb prompt --ctx context.json`,
	RunE: runPrompt,
}

func init() {
	rootCmd.AddCommand(promptCmd)
	promptCmd.Flags().StringVar(&promptCtx, "ctx", "", "path to packed context JSON file")
	promptCmd.Flags().StringVarP(&promptQuery, "query", "q", "", "user message (overrides the one stored in --ctx)")
	promptCmd.Flags().IntVarP(&promptTopK, "top-k", "k", 0, "candidate pool size (default from config)")
}

func runPrompt(cmd *cobra.Command, args []string) error {
	if promptCtx == "" && promptQuery == "" {
		return fmt.Errorf("must specify --ctx or --query")
	}

	var packed domain.PackedContext
	if promptCtx != "" {
		ctxData, err := os.ReadFile(promptCtx)
		if err != nil {
			return fmt.Errorf("failed to read context file: %w", err)
		}
		if err := json.Unmarshal(ctxData, &packed); err != nil {
			return fmt.Errorf("failed to parse context file: %w", err)
		}
	} else {
		cfg := GetConfig()
		m, closeFn, err := loadManager(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		topK := cfg.Retrieve.DefaultK
		if promptTopK > 0 {
			topK = promptTopK
		}
		packed = m.Context(cmd.Context(), promptQuery, topK, cfg.Context.WordBudget)
	}

	if promptQuery != "" {
		packed.Query = promptQuery
	}

	out, err := renderPrompt(packed)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func renderPrompt(packed domain.PackedContext) (string, error) {
	tmplContent, err := promptTemplates.ReadFile("templates/grounded_prompt.txt")
	if err != nil {
		return "", fmt.Errorf("template not found: %w", err)
	}

	tmpl, err := template.New("prompt").Funcs(templateFuncs()).Parse(string(tmplContent))
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, packed); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return buf.String(), nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"join": strings.Join,
		"formatSnippets": func(snippets []domain.Snippet) string {
			return domain.PackedContext{Snippets: snippets}.Block() + "\n"
		},
	}
}
