package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"mindkb/internal/adapter/embedding"
	"mindkb/internal/domain"
	"mindkb/internal/logger"
	"mindkb/internal/metrics"
	"mindkb/internal/port"
)

// Build stages reported to a progress callback.
const (
	StageChunk = "chunk"
	StageEmbed = "embed"
)

// ProgressFunc receives the stage and how many of total items are done.
type ProgressFunc func(stage string, done, total int)

// BuildDeps are the collaborators a build needs. Catalog and Logger are
// optional.
type BuildDeps struct {
	Chunker  port.Chunker
	Embedder port.Embedder
	Catalog  port.Catalog
	Logger   *slog.Logger
}

// BuildOptions controls where and how a build is written. With both paths
// empty the knowledge base is built in memory only.
type BuildOptions struct {
	IndexPath    string
	MetadataPath string
	BatchSize    int
	ConfigHash   string
	Progress     ProgressFunc
}

const defaultBuildBatch = 64

// BuildFromDocuments chunks, embeds and indexes docs, then persists the
// result atomically.
//
// Invalid documents are skipped and listed in the report. Any embedding
// failure aborts the build before anything is written. A build with no
// chunks produces a valid empty knowledge base.
func BuildFromDocuments(ctx context.Context, deps BuildDeps, docs []domain.Document, opts BuildOptions) (_ *KnowledgeBase, _ *domain.BuildReport, err error) {
	log := logger.OrDefault(deps.Logger)
	start := time.Now()

	ctx, span := metrics.StartSpan(ctx, "kb.build", attribute.Int("mindkb.documents", len(docs)))
	defer func() {
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeFailure
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.BuildsTotal.WithLabelValues(outcome).Inc()
		metrics.BuildDuration.Observe(time.Since(start).Seconds())
		span.End()
	}()

	if deps.Chunker == nil || deps.Embedder == nil {
		return nil, nil, errors.New("build requires a chunker and an embedder")
	}
	if (opts.IndexPath == "") != (opts.MetadataPath == "") {
		return nil, nil, errors.New("index and metadata paths must be set together")
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBuildBatch
	}
	progress := opts.Progress
	if progress == nil {
		progress = func(string, int, int) {}
	}

	report := &domain.BuildReport{
		BuildID:   uuid.New().String(),
		Dimension: deps.Embedder.Dimension(),
		Model:     deps.Embedder.ModelName(),
	}

	chunks := chunkDocuments(docs, deps.Chunker, report, log, progress)
	metrics.DocumentsSkipped.Add(float64(len(report.Skipped)))

	vectors, err := embedChunks(ctx, deps.Embedder, chunks, batchSize, progress, log)
	if err != nil {
		log.Error("build aborted", slog.String("build_id", report.BuildID), slog.String("error", err.Error()))
		return nil, report, err
	}

	id := uuid.MustParse(report.BuildID)
	kb, err := assemble(id, deps.Embedder.Dimension(), chunks, vectors)
	if err != nil {
		return nil, report, err
	}

	if opts.IndexPath != "" {
		if err := commit(kb, opts.IndexPath, opts.MetadataPath); err != nil {
			return nil, report, fmt.Errorf("persist knowledge base: %w", err)
		}
	}

	report.Chunks = kb.Size()
	report.Duration = time.Since(start)
	span.SetAttributes(attribute.Int("mindkb.chunks", report.Chunks), attribute.String("mindkb.build_id", report.BuildID))

	if deps.Catalog != nil {
		rec := port.BuildRecord{
			ID:           report.BuildID,
			BuiltAt:      time.Now().UTC(),
			Documents:    report.Documents,
			Skipped:      len(report.Skipped),
			Chunks:       report.Chunks,
			Dimension:    report.Dimension,
			Model:        report.Model,
			ConfigHash:   opts.ConfigHash,
			IndexPath:    opts.IndexPath,
			MetadataPath: opts.MetadataPath,
		}
		if err := deps.Catalog.RecordBuild(rec); err != nil {
			log.Warn("failed to record build in catalog", slog.String("build_id", report.BuildID), slog.String("error", err.Error()))
		}
	}

	log.Info("build_complete",
		slog.String("build_id", report.BuildID),
		slog.Int("documents", report.Documents),
		slog.Int("skipped", len(report.Skipped)),
		slog.Int("chunks", report.Chunks),
		slog.Int("dimension", report.Dimension),
		slog.Int64("duration_ms", report.Duration.Milliseconds()))

	return kb, report, nil
}

// chunkDocuments validates and chunks every document in order. Rejected
// documents are recorded in report.Skipped.
func chunkDocuments(docs []domain.Document, chunker port.Chunker, report *domain.BuildReport, log *slog.Logger, progress ProgressFunc) []domain.Chunk {
	var chunks []domain.Chunk
	sources := make(map[string]int, len(docs))

	for i, doc := range docs {
		progress(StageChunk, i+1, len(docs))

		err := doc.Validate()
		if err == nil {
			if first, dup := sources[doc.Source]; dup {
				err = fmt.Errorf("%w: source %q already used by document #%d", domain.ErrIngestion, doc.Source, first)
			}
		}
		if err != nil {
			docErr := domain.DocumentError{Index: i, Source: doc.Source, Err: err}
			report.Skipped = append(report.Skipped, docErr)
			log.Warn("document skipped", slog.Int("index", i), slog.String("source", doc.Source), slog.String("error", err.Error()))
			continue
		}
		sources[doc.Source] = i

		docChunks := chunker.ChunkDocument(doc)
		if len(docChunks) == 0 {
			log.Debug("document produced no chunks", slog.String("source", doc.Source))
		}
		chunks = append(chunks, docChunks...)
		report.Documents++
	}
	return chunks
}

// embedChunks embeds chunk texts in batches and validates every vector.
func embedChunks(ctx context.Context, emb port.Embedder, chunks []domain.Chunk, batchSize int, progress ProgressFunc, log *slog.Logger) ([][]float32, error) {
	dim := emb.Dimension()
	vectors := make([][]float32, 0, len(chunks))

	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		out, err := emb.Embed(ctx, texts)
		if err != nil {
			if !errors.Is(err, domain.ErrEmbeddingFailure) {
				err = fmt.Errorf("%w: %w", domain.ErrEmbeddingFailure, err)
			}
			return nil, &domain.ChunkError{ChunkID: batch[0].Metadata.ChunkID, Err: err}
		}
		if len(out) != len(batch) {
			return nil, fmt.Errorf("%w: embedder returned %d vectors for %d chunks",
				domain.ErrEmbeddingFailure, len(out), len(batch))
		}

		for i, v := range out {
			if err := embedding.Validate(v, dim); err != nil {
				return nil, &domain.ChunkError{
					ChunkID: batch[i].Metadata.ChunkID,
					Err:     fmt.Errorf("%w: %w", domain.ErrEmbeddingFailure, err),
				}
			}
		}
		vectors = append(vectors, out...)

		log.Debug("embedded batch", slog.Int("from", start), slog.Int("to", end), slog.Int("total", len(chunks)))
		progress(StageEmbed, end, len(chunks))
	}
	return vectors, nil
}
