//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"syscall/js"

	"mindkb/internal/adapter/chunker"
	"mindkb/internal/adapter/embedding"
	"mindkb/internal/domain"
	"mindkb/internal/usecase"
)

// The browser build keeps the knowledge base in memory and rebuilds it in
// full whenever a document is added.
var (
	docs    []domain.Document
	manager *usecase.Manager
)

func newManager() *usecase.Manager {
	return usecase.NewManager(usecase.ManagerOptions{
		Chunker:  chunker.NewSentenceChunker(chunker.DefaultMaxWords, chunker.DefaultOverlapWords),
		Embedder: embedding.NewHashEmbedder(0),
		Logger:   slog.Default(),
	})
}

func init() {
	manager = newManager()
}

func main() {
	c := make(chan struct{})

	js.Global().Set("kbAdd", js.FuncOf(addDocument))
	js.Global().Set("kbQuery", js.FuncOf(queryContent))
	js.Global().Set("kbContext", js.FuncOf(packContent))
	js.Global().Set("kbClear", js.FuncOf(clearKB))
	js.Global().Set("kbStats", js.FuncOf(getStats))

	<-c
}

func addDocument(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return makeError("usage: kbAdd(source, text, [tags])")
	}

	doc := domain.Document{Source: args[0].String(), Text: args[1].String()}
	if len(args) > 2 && args[2].Type() == js.TypeObject {
		for i := 0; i < args[2].Length(); i++ {
			doc.Tags = append(doc.Tags, args[2].Index(i).String())
		}
	}
	if err := doc.Validate(); err != nil {
		return makeError(err.Error())
	}

	candidate := append(append([]domain.Document{}, docs...), doc)
	report, err := manager.Build(context.Background(), candidate, nil)
	if err != nil {
		return makeError("build failed: " + err.Error())
	}
	if len(report.Skipped) > 0 {
		return makeError(report.Skipped[0].Error())
	}
	docs = candidate

	return makeResult(map[string]interface{}{
		"success": true,
		"source":  doc.Source,
		"chunks":  report.Chunks,
	})
}

func queryContent(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: kbQuery(query, [topK])")
	}

	query := args[0].String()
	topK := 4
	if len(args) > 1 {
		topK = args[1].Int()
	}

	results := manager.Query(context.Background(), query, topK)
	if results == nil {
		results = []domain.Result{}
	}

	return makeResult(map[string]interface{}{
		"results": results,
		"query":   query,
	})
}

func packContent(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: kbContext(query, [topK], [budgetWords])")
	}

	topK, budget := 4, 600
	if len(args) > 1 {
		topK = args[1].Int()
	}
	if len(args) > 2 {
		budget = args[2].Int()
	}

	packed := manager.Context(context.Background(), args[0].String(), topK, budget)
	return makeResult(map[string]interface{}{
		"context": packed,
		"block":   packed.Block(),
	})
}

func clearKB(this js.Value, args []js.Value) interface{} {
	docs = nil
	manager = newManager()
	return makeResult(map[string]interface{}{
		"success": true,
	})
}

func getStats(this js.Value, args []js.Value) interface{} {
	sources := make([]string, len(docs))
	for i, doc := range docs {
		sources[i] = doc.Source
	}

	chunks, dim := 0, 0
	if kb := manager.Current(); kb != nil {
		chunks, dim = kb.Size(), kb.Dimension()
	}

	return makeResult(map[string]interface{}{
		"state":       manager.State().String(),
		"totalDocs":   len(docs),
		"totalChunks": chunks,
		"dimension":   dim,
		"sources":     sources,
	})
}

func makeError(msg string) interface{} {
	result, _ := json.Marshal(map[string]interface{}{
		"error": msg,
	})
	return string(result)
}

func makeResult(data map[string]interface{}) interface{} {
	result, _ := json.Marshal(data)
	return string(result)
}
