package usecase

import (
	"testing"

	"mindkb/internal/domain"
)

func result(source, id, text string, score float32) domain.Result {
	return domain.Result{
		Chunk: domain.Chunk{
			Text:     text,
			Metadata: domain.ChunkMetadata{Source: source, ChunkID: id},
		},
		Score: score,
	}
}

func TestPackContext_Empty(t *testing.T) {
	packed := PackContext("query", nil, 100)

	if len(packed.Snippets) != 0 {
		t.Errorf("expected 0 snippets, got %d", len(packed.Snippets))
	}
	if packed.UsedWords != 0 {
		t.Errorf("expected 0 used words, got %d", packed.UsedWords)
	}
	if packed.Block() != "" {
		t.Errorf("expected empty block, got %q", packed.Block())
	}
}

func TestPackContext_KeepsRankOrder(t *testing.T) {
	results := []domain.Result{
		result("who", "who::0", "one two three", 0.9),
		result("nimh", "nimh::4", "four five", 0.5),
	}

	packed := PackContext("q", results, 0)
	if len(packed.Snippets) != 2 {
		t.Fatalf("expected 2 snippets, got %d", len(packed.Snippets))
	}
	if packed.Snippets[0].ChunkID != "who::0" {
		t.Errorf("first snippet = %s, want who::0", packed.Snippets[0].ChunkID)
	}
	if packed.UsedWords != 5 {
		t.Errorf("used words = %d, want 5", packed.UsedWords)
	}

	want := "[who] one two three\n\n[nimh] four five"
	if got := packed.Block(); got != want {
		t.Errorf("Block() = %q, want %q", got, want)
	}
}

func TestPackContext_RespectsBudget(t *testing.T) {
	results := []domain.Result{
		result("a", "a::0", "one two three four five six", 0.9),
		result("b", "b::0", "one two three four five six seven eight", 0.8),
		result("c", "c::0", "one two", 0.7),
	}

	packed := PackContext("q", results, 9)

	if packed.UsedWords > 9 {
		t.Errorf("used words %d exceed budget 9", packed.UsedWords)
	}
	if len(packed.Snippets) != 2 {
		t.Fatalf("expected the oversized middle result to be skipped, got %d snippets", len(packed.Snippets))
	}
	if packed.Snippets[1].ChunkID != "c::0" {
		t.Errorf("second snippet = %s, want c::0", packed.Snippets[1].ChunkID)
	}
}
