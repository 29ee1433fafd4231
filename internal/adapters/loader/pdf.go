package loader

import (
	"context"
	"fmt"
	"os"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

// PDFLoader loads PDF documents through a DocumentParser.
type PDFLoader struct {
	parser ports.DocumentParser
}

// NewPDFLoader creates a PDF loader backed by parser.
func NewPDFLoader(parser ports.DocumentParser) *PDFLoader {
	return &PDFLoader{parser: parser}
}

// Load reads the PDF at path and extracts its text.
func (l *PDFLoader) Load(ctx context.Context, path, name string) ([]entities.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	text, err := l.parser.Parse(ctx, data, displayName(path, name))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", displayName(path, name), err)
	}

	return []entities.Document{newDocument(path, name, text)}, nil
}

// SupportedExtensions returns file extensions.
func (l *PDFLoader) SupportedExtensions() []string {
	return []string{".pdf"}
}
