package usecases

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

// DocumentIDFunc maps a watched file path to the document ID its chunks are stored under.
type DocumentIDFunc func(path string) string

// FolderSync keeps the index in step with a directory: existing and new
// files are ingested, changed files re-ingested, removed files deleted.
type FolderSync struct {
	watcher ports.FileWatcher
	files   *FileIngester
	idFor   DocumentIDFunc
	logger  *slog.Logger
}

// NewFolderSync creates a FolderSync.
func NewFolderSync(watcher ports.FileWatcher, files *FileIngester, idFor DocumentIDFunc, logger *slog.Logger) *FolderSync {
	if logger == nil {
		logger = slog.Default()
	}
	return &FolderSync{watcher: watcher, files: files, idFor: idFor, logger: logger}
}

// Run ingests what is already in dir, then follows changes until ctx is done
// or the watcher closes. Per-file failures are logged and do not stop the loop.
func (s *FolderSync) Run(ctx context.Context, dir string) error {
	events, err := s.watcher.Watch(ctx, dir)
	if err != nil {
		return err
	}

	s.scan(ctx, dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			s.handle(ctx, ev)
		}
	}
}

func (s *FolderSync) scan(ctx context.Context, dir string) {
	exts := s.files.SupportedExtensions()
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if !slices.Contains(exts, strings.ToLower(filepath.Ext(path))) {
			return nil
		}
		if _, err := s.files.IngestFile(ctx, SourceFile{Path: path}); err != nil {
			s.logger.Warn("initial ingest failed", "path", path, "error", err)
		}
		return ctx.Err()
	})
	if err != nil && ctx.Err() == nil {
		s.logger.Warn("scanning watch directory", "dir", dir, "error", err)
	}
}

func (s *FolderSync) handle(ctx context.Context, ev ports.FileEvent) {
	logger := s.logger.With("path", ev.Path, "op", ev.Operation.String())
	id := s.idFor(ev.Path)

	switch ev.Operation {
	case ports.FileDeleted:
		if err := s.files.Remove(ctx, id); err != nil {
			logger.Warn("removing document", "error", err)
			return
		}
		logger.Info("document removed")
	case ports.FileCreated, ports.FileModified:
		if _, err := s.files.IngestFile(ctx, SourceFile{Path: ev.Path}); err != nil {
			logger.Warn("ingesting file", "error", err)
		}
	}
}
