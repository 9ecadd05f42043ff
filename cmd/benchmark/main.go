package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mindkb/config"
	"mindkb/internal/adapter/embedding"
	"mindkb/internal/usecase"
)

func main() {
	dir := flag.String("dir", ".", "directory holding the knowledge base and mindkb.yaml")
	query := flag.String("q", "", "query to test")
	topK := flag.Int("k", 5, "number of results")
	runs := flag.Int("runs", 20, "repetitions for the latency measurement")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -dir ./kb -q \"query\"")
		fmt.Println("\nReports:")
		fmt.Println("  1. Knowledge base shape (chunks, dimension, model)")
		fmt.Println("  2. Similarity of the top-k chunks to the query")
		fmt.Println("  3. Query latency over repeated runs")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		fmt.Fprintf(os.Stderr, "Error applying environment: %v\n", err)
		os.Exit(1)
	}

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedder init failed: %v\n", err)
		os.Exit(1)
	}

	kb, err := usecase.Load(inDir(*dir, cfg.KnowledgeBase.IndexPath), inDir(*dir, cfg.KnowledgeBase.MetadataPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading knowledge base: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Chunks indexed: %d\n", kb.Size())
	fmt.Printf("Model: %s (%s)\n", embedder.ModelName(), cfg.Embedding.Provider)
	fmt.Printf("Dimension: %d\n", kb.Dimension())
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	ctx := context.Background()
	results, err := usecase.Query(ctx, kb, embedder, *query, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	if len(results) == 0 {
		fmt.Println("No results.")
		return
	}

	fmt.Printf("Top %d matches:\n\n", len(results))

	totalScore := 0.0
	for i, r := range results {
		preview := r.Chunk.Text
		if len(preview) > 150 {
			preview = preview[:150] + "..."
		}

		similarity := float64(r.Score)
		totalScore += similarity

		rating := "LOW"
		if similarity > 0.7 {
			rating = "HIGH"
		} else if similarity > 0.5 {
			rating = "GOOD"
		} else if similarity > 0.3 {
			rating = "OK"
		}

		fmt.Printf("%d. [%s %.3f] %s\n", i+1, rating, similarity, r.Chunk.Metadata.ChunkID)
		fmt.Printf("   %s\n\n", preview)
	}

	var total time.Duration
	for i := 0; i < *runs; i++ {
		start := time.Now()
		if _, err := usecase.Query(ctx, kb, embedder, *query, *topK); err != nil {
			fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
			os.Exit(1)
		}
		total += time.Since(start)
	}

	avgScore := totalScore / float64(len(results))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average similarity: %.3f\n", avgScore)
	fmt.Printf("  Top-1 similarity:   %.3f\n", results[0].Score)
	if *runs > 0 {
		fmt.Printf("  Mean latency:       %s over %d runs\n", total/time.Duration(*runs), *runs)
	}

	if avgScore > 0.5 {
		fmt.Println("  Status: GOOD - retrieval is well grounded")
	} else if avgScore > 0.3 {
		fmt.Println("  Status: OK - results are somewhat related")
	} else {
		fmt.Println("  Status: POOR - may need a stronger embedding model or a rebuild")
	}
}

func inDir(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
