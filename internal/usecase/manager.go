package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"mindkb/internal/adapter/cache"
	"mindkb/internal/domain"
	"mindkb/internal/logger"
	"mindkb/internal/metrics"
	"mindkb/internal/port"
)

// State is the lifecycle state of the knowledge base a Manager serves.
type State int32

const (
	StateAbsent State = iota
	StateBuilding
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateBuilding:
		return "building"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ManagerOptions configures a Manager. Cache, Catalog and Logger are optional.
type ManagerOptions struct {
	IndexPath    string
	MetadataPath string
	BatchSize    int
	ConfigHash   string

	Chunker  port.Chunker
	Embedder port.Embedder
	Cache    *cache.QueryCache
	Catalog  port.Catalog
	Logger   *slog.Logger
}

// Manager owns the knowledge base being served. Queries read the current
// knowledge base without locking; builds and loads are serialized and
// publish a new knowledge base with a single pointer swap, so an in-flight
// query always finishes against the knowledge base it started with.
type Manager struct {
	opts ManagerOptions
	log  *slog.Logger

	current atomic.Pointer[KnowledgeBase]
	state   atomic.Int32

	buildMu sync.Mutex
	errMu   sync.Mutex
	lastErr error
}

var _ port.Retriever = (*Manager)(nil)

func NewManager(opts ManagerOptions) *Manager {
	return &Manager{
		opts: opts,
		log:  logger.OrDefault(opts.Logger),
	}
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Current returns the knowledge base being served, or nil.
func (m *Manager) Current() *KnowledgeBase {
	return m.current.Load()
}

// LastError returns the error of the most recent failed build or load.
func (m *Manager) LastError() error {
	m.errMu.Lock()
	defer m.errMu.Unlock()
	return m.lastErr
}

// Build builds a new knowledge base from docs, persists it and starts
// serving it. On failure the previously served knowledge base, if any,
// stays current and the manager remains ready.
func (m *Manager) Build(ctx context.Context, docs []domain.Document, progress ProgressFunc) (*domain.BuildReport, error) {
	m.buildMu.Lock()
	defer m.buildMu.Unlock()

	m.state.Store(int32(StateBuilding))

	kb, report, err := BuildFromDocuments(ctx, BuildDeps{
		Chunker:  m.opts.Chunker,
		Embedder: m.opts.Embedder,
		Catalog:  m.opts.Catalog,
		Logger:   m.log,
	}, docs, BuildOptions{
		IndexPath:    m.opts.IndexPath,
		MetadataPath: m.opts.MetadataPath,
		BatchSize:    m.opts.BatchSize,
		ConfigHash:   m.opts.ConfigHash,
		Progress:     progress,
	})
	if err != nil {
		m.fail(err)
		return report, err
	}

	m.publish(kb)
	return report, nil
}

// Load starts serving the knowledge base persisted at the configured paths.
func (m *Manager) Load(ctx context.Context) error {
	m.buildMu.Lock()
	defer m.buildMu.Unlock()

	_, span := metrics.StartSpan(ctx, "kb.load")
	defer span.End()

	kb, err := Load(m.opts.IndexPath, m.opts.MetadataPath)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, domain.ErrNotFound) && m.Current() == nil {
			m.state.Store(int32(StateAbsent))
			m.setErr(err)
			return err
		}
		m.fail(err)
		return err
	}

	if m.opts.Catalog != nil && m.opts.ConfigHash != "" {
		stale, reason, err := m.opts.Catalog.CheckConfig(m.opts.ConfigHash)
		switch {
		case err != nil:
			m.log.Warn("failed to check knowledge base freshness", slog.String("error", err.Error()))
		case stale:
			m.log.Warn("knowledge base is stale, rebuild recommended", slog.String("reason", reason))
		}
	}

	m.publish(kb)
	m.log.Info("knowledge base loaded",
		slog.String("build_id", kb.BuildID.String()),
		slog.Int("chunks", kb.Size()),
		slog.Int("dimension", kb.Dimension()))
	return nil
}

func (m *Manager) publish(kb *KnowledgeBase) {
	m.current.Store(kb)
	if m.opts.Cache != nil {
		m.opts.Cache.Invalidate()
	}
	metrics.ChunksIndexed.Set(float64(kb.Size()))
	m.setErr(nil)
	m.state.Store(int32(StateReady))
}

func (m *Manager) fail(err error) {
	m.setErr(err)
	if m.Current() != nil {
		m.state.Store(int32(StateReady))
		return
	}
	m.state.Store(int32(StateFailed))
}

func (m *Manager) setErr(err error) {
	m.errMu.Lock()
	m.lastErr = err
	m.errMu.Unlock()
}

// Retrieve returns at most k results for text from the current knowledge
// base. It returns domain.ErrNotReady when nothing is being served.
func (m *Manager) Retrieve(ctx context.Context, text string, k int) (_ []domain.Result, err error) {
	kb := m.Current()
	if kb == nil {
		metrics.QueriesTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, domain.ErrNotReady
	}

	buildID := kb.BuildID.String()
	if m.opts.Cache != nil {
		if results, ok := m.opts.Cache.Get(buildID, text, k); ok {
			metrics.QueryCacheHits.Inc()
			metrics.QueriesTotal.WithLabelValues(metrics.OutcomeCached).Inc()
			return results, nil
		}
	}

	start := time.Now()
	ctx, span := metrics.StartSpan(ctx, "kb.query",
		attribute.Int("mindkb.k", k),
		attribute.String("mindkb.build_id", buildID))
	defer func() {
		metrics.QueryDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	results, err := query(ctx, kb, m.opts.Embedder, text, k, m.log)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, err
	}

	outcome := metrics.OutcomeSuccess
	if len(results) == 0 {
		outcome = metrics.OutcomeEmpty
	}
	metrics.QueriesTotal.WithLabelValues(outcome).Inc()
	span.SetAttributes(attribute.Int("mindkb.results", len(results)))

	if m.opts.Cache != nil {
		m.opts.Cache.Put(buildID, text, k, results)
	}
	return results, nil
}

// Query is Retrieve for callers that cannot act on errors: any failure is
// logged and reported as no results, so the caller answers without
// grounding.
func (m *Manager) Query(ctx context.Context, text string, k int) []domain.Result {
	results, err := m.Retrieve(ctx, text, k)
	if err != nil {
		m.log.Warn("query degraded to empty result", slog.String("error", err.Error()))
		return nil
	}
	return results
}

// Context retrieves for text and packs the results within budgetWords.
func (m *Manager) Context(ctx context.Context, text string, k, budgetWords int) domain.PackedContext {
	return PackContext(text, m.Query(ctx, text, k), budgetWords)
}
