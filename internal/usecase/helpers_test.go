package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"mindkb/internal/adapter/chunker"
	"mindkb/internal/adapter/embedding"
	"mindkb/internal/domain"
	"mindkb/internal/port"
)

const testDim = 64

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// testChunker packs one 14-word sentence per chunk.
func testChunker() *chunker.SentenceChunker {
	return chunker.NewSentenceChunker(20, 0)
}

// makeDoc builds a document whose sentences each become one chunk.
func makeDoc(source, topic string, sentences int) domain.Document {
	parts := make([]string, sentences)
	for i := range parts {
		parts[i] = fmt.Sprintf("Topic %s note n%d explains how anxious students can rest, breathe and recover well.", topic, i)
	}
	return domain.Document{
		Source: source,
		Text:   strings.Join(parts, " "),
		Tags:   []string{"test", topic},
	}
}

// tenChunkDocs returns 3 documents that chunk into 10 chunks.
func tenChunkDocs() []domain.Document {
	return []domain.Document{
		makeDoc("who_anxiety_0", "anxiety", 3),
		makeDoc("nimh_sleep_0", "sleep", 3),
		makeDoc("mind_stress_0", "stress", 4),
	}
}

type kbPaths struct {
	index string
	meta  string
}

func tempPaths(t *testing.T) kbPaths {
	t.Helper()
	dir := t.TempDir()
	return kbPaths{
		index: filepath.Join(dir, "knowledge_base.index"),
		meta:  filepath.Join(dir, "kb_chunks.json"),
	}
}

func buildDeps(emb port.Embedder) BuildDeps {
	return BuildDeps{Chunker: testChunker(), Embedder: emb, Logger: quietLogger}
}

// flakyEmbedder fails document embedding on demand; query embedding keeps
// working so queries can run during a failing rebuild.
type flakyEmbedder struct {
	*embedding.HashEmbedder
	fail atomic.Bool
}

func newFlakyEmbedder() *flakyEmbedder {
	return &flakyEmbedder{HashEmbedder: embedding.NewHashEmbedder(testDim)}
}

func (e *flakyEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e.fail.Load() {
		return nil, errors.New("model unavailable")
	}
	return e.HashEmbedder.Embed(ctx, texts)
}

// zeroEmbedder returns an all-zero vector for the chunk at position bad.
type zeroEmbedder struct {
	*embedding.HashEmbedder
	bad int
}

func (e *zeroEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out, err := e.HashEmbedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if e.bad < len(out) {
		out[e.bad] = make([]float32, e.Dimension())
	}
	return out, nil
}

// fixedEmbedder maps known texts to fixed vectors.
type fixedEmbedder struct {
	dim     int
	vectors map[string][]float32
}

func (e *fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := e.vectors[t]
		if !ok {
			return nil, fmt.Errorf("no vector for %q", t)
		}
		out[i] = v
	}
	return out, nil
}

func (e *fixedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	out, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (e *fixedEmbedder) Dimension() int    { return e.dim }
func (e *fixedEmbedder) ModelName() string { return "fixed" }
