package service

import (
	"strings"

	"go.uber.org/zap"

	"github.com/A-Elshahawy/enterprise-rag/internal/domain"
	"github.com/A-Elshahawy/enterprise-rag/internal/embedding"
	"github.com/A-Elshahawy/enterprise-rag/internal/generator"
	"github.com/A-Elshahawy/enterprise-rag/internal/pages"
	"github.com/A-Elshahawy/enterprise-rag/internal/processor"
	"github.com/A-Elshahawy/enterprise-rag/internal/retriever"
	"github.com/A-Elshahawy/enterprise-rag/internal/vectorstore"
)

// IngestResult summarizes one successful ingestion.
type IngestResult struct {
	DocumentID string
	Filename   string
	Pages      int
	Chunks     int
}

// PageText is one reconstructed page.
type PageText struct {
	DocumentID string
	PageNumber int
	Text       string
	ChunkCount int
}

// Status reports pipeline configuration and collection health.
type Status struct {
	ChunkSize      int
	ChunkOverlap   int
	EmbeddingModel string
	Dimension      int
	Collection     vectorstore.CollectionInfo
}

// DocumentProcessor is the extract-and-chunk half of the pipeline.
// *processor.Processor is the production implementation.
type DocumentProcessor interface {
	ProcessPDF(data []byte, filename string) (*processor.Result, error)
	ChunkSize() int
	ChunkOverlap() int
}

// RAGService wires the ingestion and query pipelines: extract, chunk, embed,
// store on the way in; embed, search, generate on the way out. One instance
// serves all requests; each request is a single linear computation.
type RAGService struct {
	processor   DocumentProcessor
	embedder    embedding.Embedder
	store       vectorstore.Storage
	retriever   *retriever.Retriever
	generator   generator.Generator
	maxFileSize int
	log         *zap.Logger
}

// NewRAGService assembles the pipeline. gen may be nil when no generation
// backend is configured; Ask then fails with a ConfigurationError.
func NewRAGService(
	proc DocumentProcessor,
	embedder embedding.Embedder,
	store vectorstore.Storage,
	ret *retriever.Retriever,
	gen generator.Generator,
	maxFileSize int,
	log *zap.Logger,
) *RAGService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RAGService{
		processor:   proc,
		embedder:    embedder,
		store:       store,
		retriever:   ret,
		generator:   gen,
		maxFileSize: maxFileSize,
		log:         log,
	}
}

// Ingest runs the full ingestion pipeline on one PDF: extract text, chunk,
// embed, and upsert. Re-ingesting identical content under the same filename
// produces the same document ID and overwrites the stored points.
func (s *RAGService) Ingest(data []byte, filename string) (*IngestResult, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, domain.Validationf("filename is required")
	}
	if len(data) == 0 {
		return nil, domain.Validationf("empty file")
	}
	if s.maxFileSize > 0 && len(data) > s.maxFileSize {
		return nil, domain.Validationf("file too large: %d bytes (max %d)", len(data), s.maxFileSize)
	}

	result, err := s.processor.ProcessPDF(data, filename)
	if err != nil {
		return nil, err
	}
	if len(result.Chunks) == 0 {
		return nil, &domain.ParseError{Filename: filename}
	}

	if err := s.store.EnsureCollection(s.embedder.Dimension()); err != nil {
		return nil, err
	}

	texts := make([]string, len(result.Chunks))
	for i := range result.Chunks {
		texts[i] = result.Chunks[i].Text
	}
	vectors, err := s.embedder.EmbedBatch(texts)
	if err != nil {
		return nil, err
	}

	stored, err := s.store.Upsert(result.Chunks, vectors)
	if err != nil {
		return nil, err
	}

	s.log.Info("ingested document",
		zap.String("filename", filename),
		zap.String("document_id", result.DocumentID),
		zap.Int("pages", result.PageCount),
		zap.Int("chunks", stored))

	return &IngestResult{
		DocumentID: result.DocumentID,
		Filename:   filename,
		Pages:      result.PageCount,
		Chunks:     stored,
	}, nil
}

// Search returns the chunks most similar to the query, ranked by score.
func (s *RAGService) Search(query string, opts retriever.Options) ([]domain.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.Validationf("query is required")
	}
	return s.retriever.Search(query, opts)
}

// Ask retrieves context for the question and generates a grounded answer
// with source citations.
func (s *RAGService) Ask(question string, opts retriever.Options) (*domain.GeneratedAnswer, error) {
	if s.generator == nil {
		return nil, domain.Configf("no generation backend configured")
	}
	context, err := s.Search(question, opts)
	if err != nil {
		return nil, err
	}
	if len(context) == 0 {
		return &domain.GeneratedAnswer{
			Answer: "No relevant information found in the knowledge base.",
			Model:  "none",
		}, nil
	}
	return s.generator.Generate(question, context)
}

// DeleteDocument removes a document and all its chunks. Unknown documents
// succeed as a no-op.
func (s *RAGService) DeleteDocument(documentID string) error {
	return s.store.DeleteDocument(documentID)
}

// ListDocuments enumerates ingested documents, bounded by the scan budget.
func (s *RAGService) ListDocuments(maxScan int) ([]domain.DocumentInfo, error) {
	return s.store.ListDocuments(maxScan)
}

// GetPageText reconstructs the continuous text of one page from its stored
// overlapping chunks, for UI highlighting.
func (s *RAGService) GetPageText(documentID string, pageNumber int) (*PageText, error) {
	chunks, err := s.store.ChunksByPage(documentID, pageNumber)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, domain.Validationf("no content found for document %s page %d", documentID, pageNumber)
	}
	return &PageText{
		DocumentID: documentID,
		PageNumber: pageNumber,
		Text:       pages.Reconstruct(chunks),
		ChunkCount: len(chunks),
	}, nil
}

// ClearCollection drops every stored document. Destructive.
func (s *RAGService) ClearCollection() error {
	return s.store.Clear()
}

// GetStatus reports pipeline configuration and best-effort collection info.
func (s *RAGService) GetStatus() Status {
	return Status{
		ChunkSize:      s.processor.ChunkSize(),
		ChunkOverlap:   s.processor.ChunkOverlap(),
		EmbeddingModel: s.embedder.Name(),
		Dimension:      s.embedder.Dimension(),
		Collection:     s.store.Info(),
	}
}
