package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

// SchemeCatalogFile is the file name that gets per-scheme documents.
const SchemeCatalogFile = "gov.scheme.json"

// JSONLoader loads JSON files. The scheme catalog is split into one document
// per scheme; any other JSON becomes a single compact document.
type JSONLoader struct{}

// NewJSONLoader creates a JSON loader.
func NewJSONLoader() *JSONLoader {
	return &JSONLoader{}
}

// Load reads a JSON file into one or more documents.
func (l *JSONLoader) Load(ctx context.Context, path, name string) ([]entities.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(displayName(path, name), SchemeCatalogFile) {
		return loadSchemes(path, name, data)
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", displayName(path, name), err)
	}
	return []entities.Document{newDocument(path, name, buf.String())}, nil
}

func (l *JSONLoader) SupportedExtensions() []string {
	return []string{".json"}
}

type schemeCatalog struct {
	Schemes []map[string]any `json:"government_schemes"`
}

func loadSchemes(path, name string, data []byte) ([]entities.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var catalog schemeCatalog
	if err := dec.Decode(&catalog); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", SchemeCatalogFile, err)
	}
	if catalog.Schemes == nil {
		return nil, fmt.Errorf("parsing %s: missing government_schemes array", SchemeCatalogFile)
	}

	docs := make([]entities.Document, 0, len(catalog.Schemes))
	for _, scheme := range catalog.Schemes {
		doc := newDocument(path, name, schemeContent(scheme))
		doc.Metadata[entities.MetaSchemeName] = schemeValue(scheme["name"])
		docs = append(docs, doc)
	}
	return docs, nil
}

// schemeContent renders one scheme as labelled lines. Optional fields are
// omitted when empty.
func schemeContent(s map[string]any) string {
	var b strings.Builder
	line := func(label, key string, optional bool) {
		v := s[key]
		if optional && !present(v) {
			return
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(schemeValue(v))
	}

	line("Scheme Name", "name", false)
	line("Full Name", "full_name", true)
	line("Category", "category", false)
	line("Launched Year", "launched_year", false)
	line("Description", "description", false)
	line("Annual Premium", "annual_premium", true)
	line("Budget Allocation", "budget_allocation", true)
	line("Implementing Ministry", "implementing_ministry", false)
	return b.String()
}

func present(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case bool:
		return val
	case json.Number:
		f, err := val.Float64()
		return err != nil || f != 0
	default:
		return true
	}
}

func schemeValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}
