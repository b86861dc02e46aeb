// Package ingestion turns files on disk into embeddable chunks: file
// discovery, page extraction, and segmentation. Embedding and index
// construction stay with the index package so both store backends share
// one pipeline.
package ingestion

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/fabfab/docchat/document"
	"github.com/fabfab/docchat/splitter"
)

// DefaultPattern selects PDF files anywhere below the data directory.
const DefaultPattern = "**/*.pdf"

type Service struct {
	extractor document.Extractor
	splitter  *splitter.Splitter
	logger    *log.Logger

	// Progress, when set, is called after each file is processed.
	Progress func(done, total int)
}

func NewService(extractor document.Extractor, split *splitter.Splitter, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}

	return &Service{
		extractor: extractor,
		splitter:  split,
		logger:    logger,
	}
}

// Discover returns the files under dir matching the doublestar pattern,
// in stable sorted order.
func (s *Service) Discover(dir, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}

	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("data directory: %w", err)
	}

	matches, err := doublestar.Glob(os.DirFS(dir), pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q under %s: %w", pattern, dir, err)
	}

	paths := make([]string, 0, len(matches))
	for _, match := range matches {
		paths = append(paths, filepath.Join(dir, filepath.FromSlash(match)))
	}
	sort.Strings(paths)
	return paths, nil
}

// Chunks extracts and segments every file. A file that fails to extract
// is logged and skipped; the batch continues. The returned chunk order
// follows the input path order.
func (s *Service) Chunks(ctx context.Context, paths []string) ([]document.Chunk, error) {
	if s.extractor == nil {
		return nil, fmt.Errorf("extractor is not configured")
	}
	if s.splitter == nil {
		return nil, fmt.Errorf("splitter is not configured")
	}

	all := make([]document.Chunk, 0)
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		docs, err := s.extractor.Extract(ctx, path)
		if err != nil {
			s.logger.Printf("extraction failed for %s: %v", path, err)
		} else {
			chunks := s.splitter.Split(docs)
			if len(chunks) == 0 {
				s.logger.Printf("skip empty document %s", path)
			} else {
				all = append(all, chunks...)
				s.logger.Printf("segmented %s (%d pages, %d chunks)", path, len(docs), len(chunks))
			}
		}

		if s.Progress != nil {
			s.Progress(i+1, len(paths))
		}
	}

	return all, nil
}
