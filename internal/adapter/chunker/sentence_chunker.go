package chunker

import (
	"strings"

	"mindkb/internal/adapter/analyzer"
	"mindkb/internal/domain"
)

const (
	DefaultMaxWords     = 200
	DefaultOverlapWords = 30

	// MinChunkWords is the noise floor: chunks with this many words or
	// fewer are dropped.
	MinChunkWords = 8
)

// SentenceChunker packs whole sentences into chunks of at most maxWords
// words, seeding each chunk after the first with the trailing overlapWords
// words of its predecessor. A sentence is never split, so a single sentence
// longer than maxWords becomes a chunk of its own.
type SentenceChunker struct {
	maxWords     int
	overlapWords int
	minWords     int
}

func NewSentenceChunker(maxWords, overlapWords int) *SentenceChunker {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	if overlapWords < 0 {
		overlapWords = 0
	}
	if overlapWords >= maxWords {
		overlapWords = maxWords / 4
	}
	return &SentenceChunker{
		maxWords:     maxWords,
		overlapWords: overlapWords,
		minWords:     MinChunkWords,
	}
}

// Chunk splits text into overlapping, sentence-aligned passages.
func (c *SentenceChunker) Chunk(text string) []string {
	sentences := analyzer.SplitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var raw []string
	var buf []string
	bufWords := 0

	for _, sent := range sentences {
		n := analyzer.CountWords(sent)
		if len(buf) == 0 || bufWords+n <= c.maxWords {
			buf = append(buf, sent)
			bufWords += n
			continue
		}

		closed := strings.TrimSpace(strings.Join(buf, " "))
		raw = append(raw, closed)

		buf = buf[:0]
		bufWords = 0
		if seed := c.overlapSeed(closed); len(seed) > 0 {
			buf = append(buf, strings.Join(seed, " "))
			bufWords = len(seed)
		}
		buf = append(buf, sent)
		bufWords += n
	}
	if len(buf) > 0 {
		raw = append(raw, strings.TrimSpace(strings.Join(buf, " ")))
	}

	chunks := raw[:0]
	for _, ch := range raw {
		if analyzer.CountWords(ch) > c.minWords {
			chunks = append(chunks, ch)
		}
	}
	return chunks
}

// overlapSeed returns the trailing overlap words of a closed chunk, or the
// whole chunk when it is shorter than the overlap.
func (c *SentenceChunker) overlapSeed(closed string) []string {
	if c.overlapWords == 0 {
		return nil
	}
	words := analyzer.Words(closed)
	if len(words) > c.overlapWords {
		words = words[len(words)-c.overlapWords:]
	}
	return words
}

// ChunkDocument chunks a document and tags every chunk with its provenance.
func (c *SentenceChunker) ChunkDocument(doc domain.Document) []domain.Chunk {
	texts := c.Chunk(doc.Text)
	if len(texts) == 0 {
		return nil
	}

	chunks := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		tags := make([]string, len(doc.Tags))
		copy(tags, doc.Tags)
		chunks[i] = domain.Chunk{
			Text: text,
			Metadata: domain.ChunkMetadata{
				Source:  doc.Source,
				Tags:    tags,
				ChunkID: domain.ChunkID(doc.Source, i),
			},
		}
	}
	return chunks
}
