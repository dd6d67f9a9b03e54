package rag

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"github.com/ledongthuc/pdf"
)

var pdfMagic = []byte("%PDF-")

// PDFLoader extracts one Segment per page from a PDF document.
type PDFLoader struct {
	logger *slog.Logger
}

// NewPDFLoader creates a PDF loader.
func NewPDFLoader(logger *slog.Logger) *PDFLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFLoader{logger: logger}
}

// LoadFile reads a PDF from the local filesystem.
func (l *PDFLoader) LoadFile(path string) ([]Segment, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &DocumentReadError{Source: path, Err: err}
	}
	return l.Load(Document{Source: path, Data: content})
}

// Load extracts page text from an in-memory PDF.
func (l *PDFLoader) Load(doc Document) (segments []Segment, err error) {
	if !bytes.HasPrefix(bytes.TrimLeft(doc.Data, " \t\r\n\x00"), pdfMagic) {
		return nil, &DocumentReadError{Source: doc.Source, Err: ErrUnsupportedFormat}
	}

	// The pdf package panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			segments = nil
			err = &DocumentReadError{Source: doc.Source, Err: fmt.Errorf("malformed pdf: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		return nil, &DocumentReadError{Source: doc.Source, Err: err}
	}

	pages := reader.NumPage()
	segments = make([]Segment, 0, pages)
	for i := 1; i <= pages; i++ {
		segment := Segment{Index: i - 1}

		page := reader.Page(i)
		if page.V.IsNull() {
			segments = append(segments, segment)
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			l.logger.Warn("page text extraction failed", "source", doc.Source, "page", i-1, "error", err)
		} else {
			segment.Text = text
		}
		segments = append(segments, segment)
	}

	l.logger.Debug("document loaded", "source", doc.Source, "pages", pages)
	return segments, nil
}
