package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"go.uber.org/zap"

	"github.com/A-Elshahawy/enterprise-rag/internal/domain"
)

// Page is one page's normalized text. Pages are 1-indexed; pages whose text
// is empty after normalization are omitted.
type Page struct {
	Number int
	Text   string
}

// Extractor turns raw PDF bytes into per-page plain text.
type Extractor struct {
	log *zap.Logger
}

// New creates an Extractor.
func New(log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{log: log}
}

// Extract parses the PDF and returns the ordered non-empty pages. Malformed
// input fails the whole document with a ParseError; there is no partial
// fallback.
func (e *Extractor) Extract(data []byte, filename string) ([]Page, error) {
	if len(data) == 0 {
		return nil, &domain.ParseError{Filename: filename}
	}
	// Structural validation up front turns corrupt files into a clean error
	// instead of a mid-extraction failure.
	if err := api.Validate(bytes.NewReader(data), nil); err != nil {
		return nil, &domain.ParseError{Filename: filename, Err: err}
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &domain.ParseError{Filename: filename, Err: err}
	}

	var pages []Page
	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		text, err := pageText(reader, i)
		if err != nil {
			return nil, &domain.ParseError{Filename: filename, Err: fmt.Errorf("page %d: %w", i, err)}
		}
		text = NormalizeText(text)
		if text == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}

	e.log.Info("extracted pdf text",
		zap.String("filename", filename),
		zap.Int("pages_total", total),
		zap.Int("pages_with_text", len(pages)))
	return pages, nil
}

// pageText reads one page's plain text. The pdf library panics on some
// damaged content streams, so the panic is converted into an error here.
func pageText(reader *pdf.Reader, number int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("text extraction failed: %v", r)
		}
	}()
	page := reader.Page(number)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

// NormalizeText collapses whitespace runs to single spaces, strips null
// bytes, and trims the ends.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	return strings.Join(strings.Fields(text), " ")
}
