// Package loader provides document loading adapters.
package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

// UnsupportedFileTypeError is returned for extensions no loader handles.
type UnsupportedFileTypeError struct {
	Ext string
}

func (e *UnsupportedFileTypeError) Error() string {
	return "Unsupported file type: " + e.Ext
}

// TextLoader loads plain text documents (.txt, .md).
type TextLoader struct{}

// NewTextLoader creates a new text document loader.
func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

// Load reads a text document from the given path.
func (l *TextLoader) Load(ctx context.Context, path, name string) ([]entities.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []entities.Document{newDocument(path, name, string(content))}, nil
}

// SupportedExtensions returns file extensions this loader handles.
func (l *TextLoader) SupportedExtensions() []string {
	return []string{".txt", ".md", ".markdown"}
}

// MultiLoader dispatches to a loader by file extension.
type MultiLoader struct {
	loaders map[string]ports.DocumentLoader
}

// NewMultiLoader registers each loader under its supported extensions.
// Later loaders win on conflicts.
func NewMultiLoader(loaders ...ports.DocumentLoader) *MultiLoader {
	m := &MultiLoader{loaders: make(map[string]ports.DocumentLoader)}
	for _, l := range loaders {
		for _, ext := range l.SupportedExtensions() {
			m.loaders[strings.ToLower(ext)] = l
		}
	}
	return m
}

// NewDefaultLoader handles PDF (through parser), JSON and plain text.
func NewDefaultLoader(parser ports.DocumentParser) *MultiLoader {
	return NewMultiLoader(NewTextLoader(), NewJSONLoader(), NewPDFLoader(parser))
}

// Load dispatches on the extension of name, falling back to path when name is empty.
func (m *MultiLoader) Load(ctx context.Context, path, name string) ([]entities.Document, error) {
	ext := strings.ToLower(filepath.Ext(displayName(path, name)))
	loader, ok := m.loaders[ext]
	if !ok {
		return nil, &UnsupportedFileTypeError{Ext: ext}
	}
	return loader.Load(ctx, path, name)
}

// Supports reports whether path has a registered extension.
func (m *MultiLoader) Supports(path string) bool {
	_, ok := m.loaders[strings.ToLower(filepath.Ext(path))]
	return ok
}

// SupportedExtensions returns all supported extensions, sorted.
func (m *MultiLoader) SupportedExtensions() []string {
	exts := make([]string, 0, len(m.loaders))
	for ext := range m.loaders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// DocumentID derives the deterministic document ID for key. Loaders use the
// display name when one is given (uploads) and the path otherwise (watched
// folders), so re-ingesting the same file replaces its chunks.
func DocumentID(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:8])
}

func displayName(path, name string) string {
	if name != "" {
		return name
	}
	return filepath.Base(path)
}

func documentKey(path, name string) string {
	if name != "" {
		return name
	}
	return path
}

// newDocument builds a document with source metadata and file times.
func newDocument(path, name, content string) entities.Document {
	display := displayName(path, name)
	modTime := time.Now()
	if info, err := os.Stat(path); err == nil {
		modTime = info.ModTime()
	}
	return entities.Document{
		ID:        DocumentID(documentKey(path, name)),
		Name:      display,
		Path:      path,
		Content:   content,
		Metadata:  map[string]string{entities.MetaSource: display},
		CreatedAt: modTime,
		UpdatedAt: time.Now(),
	}
}
