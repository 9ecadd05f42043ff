// Package loader turns files on disk into documents for a build.
package loader

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"mindkb/internal/domain"
	"mindkb/internal/port"
)

// maxFileSize caps how much of a single file is read.
const maxFileSize = 32 << 20

// FileLoader reads plain-text files and document manifests.
//
// A .txt or .md file becomes one document whose source is its relative path
// without extension and whose tags are the default tags plus the top-level
// folder it sits in. A .json, .jsonl, .yaml or .yml file is a manifest of
// {source, text, tags} records; default tags are prepended to each record's
// own tags.
type FileLoader struct {
	walker      *Walker
	defaultTags []string
}

var _ port.DocumentSource = (*FileLoader)(nil)

func NewFileLoader(includes, excludes, defaultTags []string) *FileLoader {
	return &FileLoader{
		walker:      NewWalker(includes, excludes),
		defaultTags: defaultTags,
	}
}

// Skip keeps the given files out of every later Load. The build passes its
// own output and config files here so a knowledge base kept inside the
// corpus directory is never read back as a document.
func (l *FileLoader) Skip(paths ...string) {
	l.walker.Skip(paths...)
}

// Load reads every matching file under root. Files that cannot be read or
// parsed are reported in the returned slice and skipped; the error return
// is reserved for failures to walk root itself.
func (l *FileLoader) Load(root string) ([]domain.Document, []error, error) {
	files, err := l.walker.Walk(root)
	if err != nil {
		return nil, nil, fmt.Errorf("walk %s: %w", root, err)
	}

	var docs []domain.Document
	var problems []error
	for _, f := range files {
		if f.Size > maxFileSize {
			problems = append(problems, fmt.Errorf("%s: file is %d bytes, limit is %d", f.RelPath, f.Size, maxFileSize))
			continue
		}
		loaded, errs := l.loadFile(f)
		docs = append(docs, loaded...)
		problems = append(problems, errs...)
	}
	return docs, problems, nil
}

func (l *FileLoader) loadFile(f FileInfo) ([]domain.Document, []error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, []error{fmt.Errorf("%s: %w", f.RelPath, err)}
	}

	switch strings.ToLower(path.Ext(f.RelPath)) {
	case ".json":
		docs, err := parseJSON(data)
		if err != nil {
			return nil, []error{fmt.Errorf("%s: %w", f.RelPath, err)}
		}
		return l.withDefaults(docs), nil
	case ".jsonl":
		docs, errs := parseJSONL(data)
		for i := range errs {
			errs[i] = fmt.Errorf("%s: %w", f.RelPath, errs[i])
		}
		return l.withDefaults(docs), errs
	case ".yaml", ".yml":
		docs, err := parseYAML(data)
		if err != nil {
			return nil, []error{fmt.Errorf("%s: %w", f.RelPath, err)}
		}
		return l.withDefaults(docs), nil
	default:
		return []domain.Document{l.textDocument(f.RelPath, string(data))}, nil
	}
}

func (l *FileLoader) textDocument(relPath, text string) domain.Document {
	source := strings.TrimSuffix(relPath, path.Ext(relPath))

	tags := append([]string(nil), l.defaultTags...)
	if dir, _, nested := strings.Cut(relPath, "/"); nested {
		tags = appendUnique(tags, dir)
	}

	return domain.Document{
		Source: source,
		Text:   text,
		Tags:   tags,
	}
}

func (l *FileLoader) withDefaults(docs []domain.Document) []domain.Document {
	for i := range docs {
		tags := append([]string(nil), l.defaultTags...)
		for _, t := range docs[i].Tags {
			tags = appendUnique(tags, t)
		}
		docs[i].Tags = tags
	}
	return docs
}

func appendUnique(tags []string, tag string) []string {
	for _, t := range tags {
		if t == tag {
			return tags
		}
	}
	return append(tags, tag)
}

// parseJSON accepts a single document object or an array of them.
func parseJSON(data []byte) ([]domain.Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var docs []domain.Document
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			return nil, err
		}
		return docs, nil
	}
	var doc domain.Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, err
	}
	return []domain.Document{doc}, nil
}

func parseJSONL(data []byte) ([]domain.Document, []error) {
	var docs []domain.Document
	var errs []error

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), maxFileSize)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var doc domain.Document
		if err := json.Unmarshal(text, &doc); err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, err)
	}
	return docs, errs
}

// parseYAML accepts a list of documents, a single document, or a mapping
// with a "documents" list.
func parseYAML(data []byte) ([]domain.Document, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return nil, nil
	}
	root := node.Content[0]

	switch root.Kind {
	case yaml.SequenceNode:
		var docs []domain.Document
		if err := root.Decode(&docs); err != nil {
			return nil, err
		}
		return docs, nil
	case yaml.MappingNode:
		var wrapped struct {
			Documents []domain.Document `yaml:"documents"`
		}
		if err := root.Decode(&wrapped); err == nil && len(wrapped.Documents) > 0 {
			return wrapped.Documents, nil
		}
		var doc domain.Document
		if err := root.Decode(&doc); err != nil {
			return nil, err
		}
		return []domain.Document{doc}, nil
	default:
		return nil, fmt.Errorf("unexpected YAML document kind %d", root.Kind)
	}
}
