package processor

import (
	"crypto/sha256"
	"encoding/hex"

	"go.uber.org/zap"

	"github.com/A-Elshahawy/enterprise-rag/internal/chunker"
	"github.com/A-Elshahawy/enterprise-rag/internal/domain"
	"github.com/A-Elshahawy/enterprise-rag/internal/extractor"
)

// idContentPrefix bounds the hashing cost for large files. Two uploads with
// the same filename and identical leading 1KB collide even if later bytes
// differ; that collision window is a documented tradeoff, kept because full
// content hashing would change re-ingestion semantics for large files.
const idContentPrefix = 1024

// Result is the outcome of processing one PDF.
type Result struct {
	DocumentID string
	Chunks     []domain.Chunk
	PageCount  int
	Pages      []extractor.Page
}

// Processor runs the extract-then-chunk half of the ingestion pipeline.
type Processor struct {
	extractor *extractor.Extractor
	chunker   *chunker.Chunker
	log       *zap.Logger
}

// New creates a Processor.
func New(ext *extractor.Extractor, ch *chunker.Chunker, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{extractor: ext, chunker: ch, log: log}
}

// ChunkSize returns the configured chunk window size.
func (p *Processor) ChunkSize() int { return p.chunker.ChunkSize() }

// ChunkOverlap returns the configured overlap between consecutive chunks.
func (p *Processor) ChunkOverlap() int { return p.chunker.ChunkOverlap() }

// ProcessPDF extracts text from the PDF and splits every page into chunks.
// Chunk indices are assigned sequentially across pages so chunk IDs stay
// unique within the document.
func (p *Processor) ProcessPDF(data []byte, filename string) (*Result, error) {
	documentID := DocumentID(data, filename)

	pages, err := p.extractor.Extract(data, filename)
	if err != nil {
		return nil, err
	}

	var chunks []domain.Chunk
	index := 0
	for _, page := range pages {
		pageChunks := p.chunker.Chunk(page.Text, page.Number, documentID, index)
		for i := range pageChunks {
			pageChunks[i].Metadata["filename"] = filename
		}
		chunks = append(chunks, pageChunks...)
		index += len(pageChunks)
	}

	p.log.Info("processed document",
		zap.String("filename", filename),
		zap.String("document_id", documentID),
		zap.Int("pages", len(pages)),
		zap.Int("chunks", len(chunks)))

	return &Result{
		DocumentID: documentID,
		Chunks:     chunks,
		PageCount:  len(pages),
		Pages:      pages,
	}, nil
}

// DocumentID derives the stable content-addressed document identifier from
// the filename and the first 1KB of content.
func DocumentID(content []byte, filename string) string {
	prefix := content
	if len(prefix) > idContentPrefix {
		prefix = prefix[:idContentPrefix]
	}
	h := sha256.New()
	h.Write([]byte(filename))
	h.Write(prefix)
	return hex.EncodeToString(h.Sum(nil))[:16]
}
