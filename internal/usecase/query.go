package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"mindkb/internal/domain"
	"mindkb/internal/metrics"
	"mindkb/internal/port"
)

// Query embeds text, searches kb and returns at most k results best first.
// Blank text, k <= 0 or an empty knowledge base yield an empty result and no
// error.
func Query(ctx context.Context, kb *KnowledgeBase, emb port.Embedder, text string, k int) ([]domain.Result, error) {
	return query(ctx, kb, emb, text, k, slog.Default())
}

func query(ctx context.Context, kb *KnowledgeBase, emb port.Embedder, text string, k int, log *slog.Logger) ([]domain.Result, error) {
	if kb == nil {
		return nil, domain.ErrNotReady
	}
	if strings.TrimSpace(text) == "" || k <= 0 || kb.Size() == 0 {
		return nil, nil
	}
	if emb.Dimension() != kb.Dimension() {
		return nil, fmt.Errorf("%w: embedder produces %d dimensions, knowledge base has %d",
			domain.ErrIndexCorruption, emb.Dimension(), kb.Dimension())
	}

	vec, err := emb.EmbedQuery(ctx, text)
	if err != nil {
		if !errors.Is(err, domain.ErrEmbeddingFailure) {
			err = fmt.Errorf("%w: %w", domain.ErrEmbeddingFailure, err)
		}
		return nil, err
	}

	hits, err := kb.index.Search(vec, k)
	if err != nil {
		return nil, err
	}

	results := make([]domain.Result, 0, len(hits))
	for _, hit := range hits {
		chunk, err := kb.meta.Get(hit.Row)
		if err != nil {
			// Index and metadata are out of step; the hit has no text to serve.
			metrics.DesyncRows.Inc()
			log.Error("index row without metadata",
				slog.String("build_id", kb.BuildID.String()),
				slog.Int("row", hit.Row),
				slog.Int("metadata_len", kb.meta.Len()),
				slog.String("error", err.Error()))
			continue
		}
		results = append(results, domain.Result{Chunk: chunk, Row: hit.Row, Score: hit.Score})
	}
	return results, nil
}
