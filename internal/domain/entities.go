package domain

import (
	"fmt"
	"strings"
	"time"
)

// Document is a cleaned natural-language text supplied by an ingestion step.
// It is consumed once by the build pipeline and not retained after chunking.
type Document struct {
	Source string   `json:"source" yaml:"source"`
	Text   string   `json:"text" yaml:"text"`
	Tags   []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Validate checks the document at the ingestion boundary.
func (d Document) Validate() error {
	if strings.TrimSpace(d.Source) == "" {
		return fmt.Errorf("%w: document has no source", ErrIngestion)
	}
	if strings.TrimSpace(d.Text) == "" {
		return fmt.Errorf("%w: document %q has no text", ErrIngestion, d.Source)
	}
	return nil
}

// ChunkMetadata is the provenance of a chunk.
type ChunkMetadata struct {
	Source  string   `json:"source"`
	Tags    []string `json:"tags"`
	ChunkID string   `json:"chunk_id"`
}

// Chunk is a bounded span of a document's text, the unit of retrieval.
type Chunk struct {
	Text     string        `json:"chunk_text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// ChunkID formats the identifier of the ordinal-th chunk of source.
func ChunkID(source string, ordinal int) string {
	return fmt.Sprintf("%s::%d", source, ordinal)
}

// Result is a single retrieval hit.
type Result struct {
	Chunk Chunk   `json:"chunk"`
	Row   int     `json:"row"`
	Score float32 `json:"score"`
}

// BuildReport summarizes a knowledge base build.
type BuildReport struct {
	BuildID   string          `json:"build_id"`
	Documents int             `json:"documents"`
	Chunks    int             `json:"chunks"`
	Dimension int             `json:"dimension"`
	Model     string          `json:"model"`
	Skipped   []DocumentError `json:"-"`
	Duration  time.Duration   `json:"duration"`
}

// PackedContext is retrieved knowledge rendered for a prompt builder.
type PackedContext struct {
	Query       string    `json:"query"`
	BudgetWords int       `json:"budget_words"`
	UsedWords   int       `json:"used_words"`
	Snippets    []Snippet `json:"snippets"`
}

// Snippet is one packed chunk.
type Snippet struct {
	Source  string  `json:"source"`
	ChunkID string  `json:"chunk_id"`
	Score   float32 `json:"score"`
	Text    string  `json:"text"`
}

// Block renders the snippets as "[source] text" paragraphs.
// An empty context renders as the empty string.
func (p PackedContext) Block() string {
	parts := make([]string, 0, len(p.Snippets))
	for _, s := range p.Snippets {
		parts = append(parts, fmt.Sprintf("[%s] %s", s.Source, s.Text))
	}
	return strings.Join(parts, "\n\n")
}
