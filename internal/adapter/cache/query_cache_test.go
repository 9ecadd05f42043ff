package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"mindkb/internal/domain"
)

func results(ids ...string) []domain.Result {
	out := make([]domain.Result, len(ids))
	for i, id := range ids {
		out[i] = domain.Result{
			Chunk: domain.Chunk{Text: "text " + id, Metadata: domain.ChunkMetadata{ChunkID: id}},
			Row:   i,
			Score: 1 - float32(i)/10,
		}
	}
	return out
}

func TestQueryCache_GetPut(t *testing.T) {
	c := NewQueryCache(10, time.Minute)

	if _, ok := c.Get("b1", "anxiety", 4); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Put("b1", "anxiety", 4, results("a::0", "a::1"))
	got, ok := c.Get("b1", "anxiety", 4)
	if !ok {
		t.Fatal("expected hit")
	}
	if len(got) != 2 || got[0].Chunk.Metadata.ChunkID != "a::0" {
		t.Errorf("unexpected results: %+v", got)
	}

	if _, ok := c.Get("b1", "anxiety", 5); ok {
		t.Error("different k must miss")
	}
	if _, ok := c.Get("b2", "anxiety", 4); ok {
		t.Error("different build id must miss")
	}

	hits, misses := c.Stats()
	if hits != 1 || misses != 3 {
		t.Errorf("stats = %d hits, %d misses", hits, misses)
	}
}

func TestQueryCache_ReturnsCopies(t *testing.T) {
	c := NewQueryCache(10, time.Minute)
	in := results("a::0")
	c.Put("b1", "q", 1, in)
	in[0].Score = -5

	got, _ := c.Get("b1", "q", 1)
	got[0].Score = -7

	again, _ := c.Get("b1", "q", 1)
	if again[0].Score != 1 {
		t.Errorf("cached results were mutated: %+v", again)
	}
}

func TestQueryCache_CopiesTags(t *testing.T) {
	c := NewQueryCache(10, time.Minute)
	in := results("a::0")
	in[0].Chunk.Metadata.Tags = []string{"who", "anxiety"}
	c.Put("b1", "q", 1, in)
	in[0].Chunk.Metadata.Tags[0] = "changed-after-put"

	got, _ := c.Get("b1", "q", 1)
	got[0].Chunk.Metadata.Tags[1] = "changed-after-get"

	again, _ := c.Get("b1", "q", 1)
	if again[0].Chunk.Metadata.Tags[0] != "who" || again[0].Chunk.Metadata.Tags[1] != "anxiety" {
		t.Errorf("cached tags were mutated: %v", again[0].Chunk.Metadata.Tags)
	}
}

func TestQueryCache_LRUEviction(t *testing.T) {
	c := NewQueryCache(2, time.Minute)

	c.Put("b", "one", 1, results("1"))
	c.Put("b", "two", 1, results("2"))
	c.Get("b", "one", 1) // "two" is now least recently used
	c.Put("b", "three", 1, results("3"))

	if c.Size() != 2 {
		t.Fatalf("size = %d, want 2", c.Size())
	}
	if _, ok := c.Get("b", "two", 1); ok {
		t.Error("least recently used entry should be evicted")
	}
	if _, ok := c.Get("b", "one", 1); !ok {
		t.Error("recently used entry should survive")
	}
}

func TestQueryCache_TTL(t *testing.T) {
	c := NewQueryCache(10, time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Put("b", "q", 4, results("x"))
	now = now.Add(30 * time.Second)
	if _, ok := c.Get("b", "q", 4); !ok {
		t.Error("entry within TTL should hit")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("b", "q", 4); ok {
		t.Error("expired entry should miss")
	}
	if c.Size() != 0 {
		t.Errorf("expired entry should be removed, size = %d", c.Size())
	}
}

func TestQueryCache_Invalidate(t *testing.T) {
	c := NewQueryCache(10, time.Minute)
	c.Put("b", "q1", 4, results("x"))
	c.Put("b", "q2", 4, results("y"))

	c.Invalidate()

	if c.Size() != 0 {
		t.Errorf("size after invalidate = %d", c.Size())
	}
	if _, ok := c.Get("b", "q1", 4); ok {
		t.Error("invalidated entry should miss")
	}
}

func TestQueryCache_Concurrent(t *testing.T) {
	c := NewQueryCache(50, time.Minute)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				q := fmt.Sprintf("q%d", i%70)
				if _, ok := c.Get("b", q, 4); !ok {
					c.Put("b", q, 4, results(q))
				}
				if g == 0 && i%50 == 0 {
					c.Invalidate()
				}
			}
		}(g)
	}
	wg.Wait()

	if c.Size() > 50 {
		t.Errorf("cache exceeded max size: %d", c.Size())
	}
}
