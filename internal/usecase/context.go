package usecase

import (
	"mindkb/internal/adapter/analyzer"
	"mindkb/internal/domain"
)

// PackContext turns ranked results into prompt context. Results are taken in
// rank order; one that would overflow budgetWords is skipped and later,
// shorter ones are still considered. budgetWords <= 0 means no limit. No
// results give an empty context, which callers treat as "answer without
// grounding".
func PackContext(query string, results []domain.Result, budgetWords int) domain.PackedContext {
	packed := domain.PackedContext{
		Query:       query,
		BudgetWords: budgetWords,
		Snippets:    []domain.Snippet{},
	}

	for _, r := range results {
		words := analyzer.CountWords(r.Chunk.Text)
		if budgetWords > 0 && packed.UsedWords+words > budgetWords {
			continue
		}
		packed.Snippets = append(packed.Snippets, domain.Snippet{
			Source:  r.Chunk.Metadata.Source,
			ChunkID: r.Chunk.Metadata.ChunkID,
			Score:   r.Score,
			Text:    r.Chunk.Text,
		})
		packed.UsedWords += words
	}
	return packed
}
