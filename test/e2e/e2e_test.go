//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"mindkb/config"
	"mindkb/internal/adapter/analyzer"
	"mindkb/internal/adapter/cache"
	"mindkb/internal/adapter/catalog"
	"mindkb/internal/adapter/chunker"
	"mindkb/internal/adapter/embedding"
	"mindkb/internal/adapter/loader"
	"mindkb/internal/domain"
	"mindkb/internal/usecase"
)

var topics = []string{"anxiety", "sleep", "grief", "stress", "loneliness"}

// article writes paragraphs of distinct sentences about topic.
func article(topic string, paragraphs, sentences int) string {
	var paras []string
	for p := 0; p < paragraphs; p++ {
		var s []string
		for i := 0; i < sentences; i++ {
			s = append(s, fmt.Sprintf("When %s feels heavy, part p%d step s%d suggests slowing down and naming what you notice.", topic, p, i))
		}
		paras = append(paras, strings.Join(s, " "))
	}
	return strings.Join(paras, "\n\n")
}

var _ = Describe("knowledge base", Ordered, func() {
	var (
		ctx     context.Context
		dir     string
		cfg     *config.Config
		cat     *catalog.BoltCatalog
		manager *usecase.Manager
		logger  *slog.Logger
	)

	newManager := func() *usecase.Manager {
		emb, err := embedding.New(cfg.Embedding)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		return usecase.NewManager(usecase.ManagerOptions{
			IndexPath:    filepath.Join(dir, cfg.KnowledgeBase.IndexPath),
			MetadataPath: filepath.Join(dir, cfg.KnowledgeBase.MetadataPath),
			BatchSize:    cfg.Embedding.BatchSize,
			ConfigHash:   cfg.Hash(),
			Chunker:      chunker.NewSentenceChunker(cfg.Chunking.MaxWords, cfg.Chunking.OverlapWords),
			Embedder:     emb,
			Cache:        cache.NewQueryCache(cfg.Retrieve.CacheSize, time.Minute),
			Catalog:      cat,
			Logger:       logger,
		})
	}

	BeforeAll(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))

		By("writing the article corpus")
		articles := filepath.Join(dir, "articles")
		for _, topic := range topics {
			sub := filepath.Join(articles, "who")
			Expect(os.MkdirAll(sub, 0755)).To(Succeed())
			path := filepath.Join(sub, topic+".md")
			Expect(os.WriteFile(path, []byte(article(topic, 3, 6)), 0644)).To(Succeed())
		}
		manifest := `- source: helplines
  text: "If you are in danger right now, contact your local emergency number. Crisis lines are free, confidential and open every hour of the day."
  tags: [crisis]
`
		Expect(os.WriteFile(filepath.Join(articles, "helplines.yaml"), []byte(manifest), 0644)).To(Succeed())

		By("loading the configuration")
		var err error
		cfg, err = config.LoadFromDir(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.ApplyEnv(func(string) (string, bool) { return "", false })).To(Succeed())
		Expect(cfg.Validate()).To(Succeed())

		cat, err = catalog.Open(filepath.Join(dir, cfg.KnowledgeBase.CatalogPath))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if cat != nil {
			Expect(cat.Close()).To(Succeed())
		}
	})

	It("starts absent", func() {
		manager = newManager()
		Expect(manager.Load(ctx)).To(MatchError(domain.ErrNotFound))
		Expect(manager.State()).To(Equal(usecase.StateAbsent))
		Expect(manager.Query(ctx, "anything", 4)).To(BeEmpty())
	})

	It("builds from files and manifests", func() {
		src := loader.NewFileLoader(cfg.Ingest.Includes, cfg.Ingest.Excludes, cfg.Ingest.DefaultTags)
		docs, loadErrs, err := src.Load(filepath.Join(dir, "articles"))
		Expect(err).NotTo(HaveOccurred())
		Expect(loadErrs).To(BeEmpty())
		Expect(docs).To(HaveLen(len(topics) + 1))

		report, err := manager.Build(ctx, docs, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Skipped).To(BeEmpty())
		Expect(report.Chunks).To(BeNumerically(">", len(topics)))
		Expect(manager.State()).To(Equal(usecase.StateReady))

		kb := manager.Current()
		Expect(kb.Verify()).To(Succeed())
		for _, c := range kb.Chunks() {
			words := analyzer.CountWords(c.Text)
			Expect(words).To(BeNumerically(">", 8))
			Expect(words).To(BeNumerically("<=", cfg.Chunking.MaxWords))
		}
	})

	It("serves ranked results for a user message", func() {
		results, err := manager.Retrieve(ctx, "I feel so much grief", 4)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(4))
		for i := 1; i < len(results); i++ {
			Expect(results[i].Score).To(BeNumerically("<=", results[i-1].Score))
		}
		Expect(results[0].Chunk.Metadata.Source).To(Equal("who/grief"))
		Expect(results[0].Chunk.Metadata.Tags).To(ContainElement("who"))

		packed := manager.Context(ctx, "crisis lines emergency danger", 2, 60)
		Expect(packed.UsedWords).To(BeNumerically("<=", 60))
		Expect(packed.Block()).To(ContainSubstring("[helplines]"))
	})

	It("reloads the same build after a restart", func() {
		built := manager.Current().BuildID

		restarted := newManager()
		Expect(restarted.Load(ctx)).To(Succeed())
		Expect(restarted.Current().BuildID).To(Equal(built))

		latest, err := cat.Latest()
		Expect(err).NotTo(HaveOccurred())
		Expect(latest.ID).To(Equal(built.String()))

		stale, _, err := cat.CheckConfig(cfg.Hash())
		Expect(err).NotTo(HaveOccurred())
		Expect(stale).To(BeFalse())
	})

	It("refuses a truncated metadata file", func() {
		metaPath := filepath.Join(dir, cfg.KnowledgeBase.MetadataPath)
		data, err := os.ReadFile(metaPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(os.WriteFile(metaPath, data[:len(data)/2], 0644)).To(Succeed())

		broken := newManager()
		Expect(broken.Load(ctx)).To(MatchError(domain.ErrIndexCorruption))
		Expect(broken.State()).To(Equal(usecase.StateFailed))
		Expect(broken.Query(ctx, "grief", 4)).To(BeEmpty())
	})

	It("recovers with a full rebuild", func() {
		src := loader.NewFileLoader(cfg.Ingest.Includes, cfg.Ingest.Excludes, nil)
		docs, _, err := src.Load(filepath.Join(dir, "articles"))
		Expect(err).NotTo(HaveOccurred())

		_, err = manager.Build(ctx, docs, nil)
		Expect(err).NotTo(HaveOccurred())

		reloaded := newManager()
		Expect(reloaded.Load(ctx)).To(Succeed())
		Expect(reloaded.Current().Size()).To(Equal(manager.Current().Size()))

		history, err := cat.History(0)
		Expect(err).NotTo(HaveOccurred())
		Expect(history).To(HaveLen(2))
	})
})
