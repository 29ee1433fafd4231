package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

// SourceFile is a file to ingest. Name is the user-facing file name; it may
// differ from the base of Path for uploaded temp files.
type SourceFile struct {
	Path string
	Name string
}

// FileIngester loads files through a DocumentLoader and ingests the result.
type FileIngester struct {
	loader ports.DocumentLoader
	ingest *IngestUseCase
	logger *slog.Logger
}

// NewFileIngester wires a loader to an ingest use case.
func NewFileIngester(loader ports.DocumentLoader, ingest *IngestUseCase, logger *slog.Logger) *FileIngester {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileIngester{loader: loader, ingest: ingest, logger: logger}
}

// IngestFile loads and ingests one file, returning the stored chunk count.
// Chunks left over from an earlier version of the same document are removed
// first, so a shorter new version leaves nothing stale behind.
func (f *FileIngester) IngestFile(ctx context.Context, file SourceFile) (int, error) {
	docs, err := f.loader.Load(ctx, file.Path, file.Name)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]bool, 1)
	for _, doc := range docs {
		if seen[doc.ID] {
			continue
		}
		seen[doc.ID] = true
		if err := f.ingest.Delete(ctx, doc.ID); err != nil {
			return 0, fmt.Errorf("removing previous version of %s: %w", displayName(file), err)
		}
	}

	n, err := f.ingest.Ingest(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("indexing %s: %w", displayName(file), err)
	}
	f.logger.Info("file indexed", "file", displayName(file), "documents", len(docs), "chunks", n)
	return n, nil
}

// IngestUploads processes all files concurrently and removes each temp file
// once it has been handled, whether or not it succeeded. The first failure
// is returned after every file has finished.
func (f *FileIngester) IngestUploads(ctx context.Context, files []SourceFile) error {
	var g errgroup.Group
	for _, file := range files {
		g.Go(func() error {
			defer func() {
				if err := os.Remove(file.Path); err != nil && !os.IsNotExist(err) {
					f.logger.Error("removing temp file", "path", file.Path, "error", err)
				}
			}()
			if _, err := f.IngestFile(ctx, file); err != nil {
				f.logger.Error("processing upload", "file", displayName(file), "error", err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// Remove drops a document's chunks from the index.
func (f *FileIngester) Remove(ctx context.Context, documentID string) error {
	return f.ingest.Delete(ctx, documentID)
}

// SupportedExtensions reports which extensions the loader accepts.
func (f *FileIngester) SupportedExtensions() []string {
	return f.loader.SupportedExtensions()
}

func displayName(file SourceFile) string {
	if file.Name != "" {
		return file.Name
	}
	return file.Path
}
