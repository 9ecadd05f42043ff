package metastore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindkb/internal/domain"
)

func sampleChunk(source string, i int, text string) domain.Chunk {
	return domain.Chunk{
		Text: text,
		Metadata: domain.ChunkMetadata{
			Source:  source,
			Tags:    []string{"who", "anxiety"},
			ChunkID: domain.ChunkID(source, i),
		},
	}
}

func TestStoreAppendGet(t *testing.T) {
	s := New()
	assert.Equal(t, 0, s.Len())

	r0 := s.Append(sampleChunk("a", 0, "first"))
	r1 := s.Append(sampleChunk("a", 1, "second"))
	assert.Equal(t, 0, r0)
	assert.Equal(t, 1, r1)
	assert.Equal(t, 2, s.Len())

	got, err := s.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Text)

	_, err = s.Get(2)
	assert.ErrorIs(t, err, domain.ErrRowOutOfRange)
	_, err = s.Get(-1)
	assert.ErrorIs(t, err, domain.ErrRowOutOfRange)

	assert.Len(t, s.All(), 2)
}

func TestStoreSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb_chunks.json")
	s := New()
	s.Append(sampleChunk("who_anxiety_0", 0, `Anxiety & "panic" <attacks> are treatable.`))
	s.Append(sampleChunk("who_anxiety_0", 1, "Breathing slowly can help."))
	id := uuid.New()

	require.NoError(t, s.Save(path, id))

	loaded, gotID, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	assert.Equal(t, s.All(), loaded.All())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"chunk_text"`)
	assert.Contains(t, string(raw), `"chunk_id":"who_anxiety_0::1"`)
	assert.Contains(t, string(raw), "<attacks>")
}

func TestStoreSaveLoadEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, New().Save(path, uuid.New()))

	loaded, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Len())
}

func TestLoadMissing(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	s := New()
	s.Append(sampleChunk("src", 0, "Some text about sleep and rest."))
	s.Append(sampleChunk("src", 1, "More text about routines."))
	require.NoError(t, s.Save(good, uuid.New()))
	raw, err := os.ReadFile(good)
	require.NoError(t, err)
	text := string(raw)

	tests := []struct {
		name string
		data string
	}{
		{"truncated", text[:len(text)/2]},
		{"empty", ""},
		{"not json", "pickle\x80\x04"},
		{"wrong format", strings.Replace(text, formatName, "something-else", 1)},
		{"wrong version", strings.Replace(text, `"version":1`, `"version":7`, 1)},
		{"count mismatch", strings.Replace(text, `"count":2`, `"count":3`, 1)},
		{"bad build id", strings.Replace(text, `"build_id":"`, `"build_id":"zz`, 1)},
		{"duplicate id", strings.Replace(text, "src::1", "src::0", 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".json")
			require.NoError(t, os.WriteFile(path, []byte(tt.data), 0644))

			_, _, err := Load(path)
			assert.ErrorIs(t, err, domain.ErrIndexCorruption)
		})
	}
}
