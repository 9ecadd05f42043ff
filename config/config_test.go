package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Chunking.MaxWords != 200 {
		t.Errorf("expected MaxWords=200, got %d", cfg.Chunking.MaxWords)
	}
	if cfg.Chunking.OverlapWords != 30 {
		t.Errorf("expected OverlapWords=30, got %d", cfg.Chunking.OverlapWords)
	}
	if cfg.Retrieve.DefaultK != 4 {
		t.Errorf("expected DefaultK=4, got %d", cfg.Retrieve.DefaultK)
	}
	if cfg.KnowledgeBase.IndexPath != "knowledge_base.index" {
		t.Errorf("unexpected IndexPath %q", cfg.KnowledgeBase.IndexPath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "mindkb.yaml")

	content := `
chunking:
  max_words: 120
  overlap_words: 20
embedding:
  provider: ollama
  model: nomic-embed-text
retrieve:
  default_k: 6
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Chunking.MaxWords != 120 {
		t.Errorf("expected MaxWords=120, got %d", cfg.Chunking.MaxWords)
	}
	if cfg.Embedding.Provider != "ollama" {
		t.Errorf("expected provider ollama, got %q", cfg.Embedding.Provider)
	}
	if cfg.Retrieve.DefaultK != 6 {
		t.Errorf("expected DefaultK=6, got %d", cfg.Retrieve.DefaultK)
	}
	// untouched sections keep their defaults
	if cfg.Context.WordBudget != 600 {
		t.Errorf("expected default WordBudget=600, got %d", cfg.Context.WordBudget)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "mindkb.yaml")
	if err := os.WriteFile(configPath, []byte("chunking: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(configPath); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	if err := EnsureStateDir(tmpDir); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(StateDir(tmpDir), "config.yaml")

	content := `
context:
  word_budget: 900
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Context.WordBudget != 900 {
		t.Errorf("expected WordBudget=900, got %d", cfg.Context.WordBudget)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"EMBEDDING_MODEL":  "all-minilm",
		"KB_INDEX_PATH":    "/data/kb.index",
		"KB_CHUNKS_PATH":   "/data/kb.json",
		"KB_DEFAULT_K":     "8",
		"KB_OVERLAP_WORDS": " 10 ",
		"KB_LOG_LEVEL":     "",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}

	if cfg.Embedding.Model != "all-minilm" {
		t.Errorf("model = %q", cfg.Embedding.Model)
	}
	if cfg.KnowledgeBase.IndexPath != "/data/kb.index" {
		t.Errorf("index path = %q", cfg.KnowledgeBase.IndexPath)
	}
	if cfg.KnowledgeBase.MetadataPath != "/data/kb.json" {
		t.Errorf("metadata path = %q", cfg.KnowledgeBase.MetadataPath)
	}
	if cfg.Retrieve.DefaultK != 8 {
		t.Errorf("default k = %d", cfg.Retrieve.DefaultK)
	}
	if cfg.Chunking.OverlapWords != 10 {
		t.Errorf("overlap = %d", cfg.Chunking.OverlapWords)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("blank env value should not override, got %q", cfg.Logging.Level)
	}
}

func TestApplyEnv_BadNumber(t *testing.T) {
	lookup := func(key string) (string, bool) {
		if key == "KB_MAX_WORDS" {
			return "lots", true
		}
		return "", false
	}
	if err := DefaultConfig().ApplyEnv(lookup); err == nil {
		t.Error("expected error for non-numeric KB_MAX_WORDS")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero max words", func(c *Config) { c.Chunking.MaxWords = 0 }, true},
		{"negative overlap", func(c *Config) { c.Chunking.OverlapWords = -1 }, true},
		{"overlap equals max", func(c *Config) { c.Chunking.OverlapWords = 200 }, true},
		{"zero k", func(c *Config) { c.Retrieve.DefaultK = 0 }, true},
		{"same paths", func(c *Config) { c.KnowledgeBase.MetadataPath = c.KnowledgeBase.IndexPath }, true},
		{"missing index path", func(c *Config) { c.KnowledgeBase.IndexPath = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHash(t *testing.T) {
	a := DefaultConfig()
	b := DefaultConfig()
	if a.Hash() != b.Hash() {
		t.Error("identical configs should hash equally")
	}

	b.Logging.Level = "debug"
	if a.Hash() != b.Hash() {
		t.Error("logging changes should not affect the build hash")
	}

	b.Chunking.MaxWords = 150
	if a.Hash() == b.Hash() {
		t.Error("chunking changes should change the build hash")
	}
}

func TestStateDir(t *testing.T) {
	path := StateDir("/home/user/project")
	expected := filepath.Join("/home/user/project", ".mindkb")
	if path != expected {
		t.Errorf("expected %s, got %s", expected, path)
	}
}

func TestCandidates(t *testing.T) {
	got := Candidates("/srv/kb")
	want := []string{
		filepath.Join("/srv/kb", "mindkb.yaml"),
		filepath.Join("/srv/kb", ".mindkb", "config.yaml"),
	}
	if len(got) != len(want) {
		t.Fatalf("Candidates = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Candidates[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
