package document

import (
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// Extractor produces page-level Documents from a file on disk.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]Document, error)
}

// PDFExtractor extracts plain text from PDF files, one Document per page.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

func (e *PDFExtractor) Extract(ctx context.Context, path string) ([]Document, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer file.Close()

	totalPages := reader.NumPage()
	docs := make([]Document, 0, totalPages)

	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract text from %s page %d: %w", path, pageNum, err)
		}

		docs = append(docs, Document{
			Text: text,
			Metadata: Metadata{
				Source: path,
				Page:   pageNum,
			},
		})
	}

	return docs, nil
}

var _ Extractor = (*PDFExtractor)(nil)
