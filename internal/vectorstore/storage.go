package vectorstore

import "github.com/A-Elshahawy/enterprise-rag/internal/domain"

// SearchOptions narrows a similarity search. A zero ScoreThreshold means no
// score filtering. DocumentIDs restricts results to any of the given
// documents; empty means unrestricted.
type SearchOptions struct {
	TopK           int
	ScoreThreshold float64
	DocumentIDs    []string
}

// CollectionInfo reports collection statistics on a best-effort basis.
type CollectionInfo struct {
	Name         string
	PointsCount  int
	VectorsCount int
	Status       string
	Err          string
}

// Storage persists chunk vectors and supports filtered similarity search.
type Storage interface {
	// EnsureCollection creates the collection with the given dimension and
	// cosine distance if it is absent. Idempotent; safe before every write.
	EnsureCollection(dimension int) error
	// Upsert stores one point per chunk, keyed deterministically by chunk ID
	// so re-ingestion overwrites instead of duplicating. Returns the number
	// of points written.
	Upsert(chunks []domain.Chunk, vectors [][]float64) (int, error)
	// Search returns results ordered by descending similarity score.
	Search(vector []float64, opts SearchOptions) ([]domain.SearchResult, error)
	// DeleteDocument removes every point belonging to the document.
	// Deleting a document that was never ingested is a no-op.
	DeleteDocument(documentID string) error
	// ListDocuments enumerates distinct documents by scanning at most
	// maxScan points; a bounded best-effort listing, not guaranteed complete.
	ListDocuments(maxScan int) ([]domain.DocumentInfo, error)
	// ChunksByPage fetches all stored chunks of one (document, page).
	ChunksByPage(documentID string, pageNumber int) ([]domain.Chunk, error)
	// Clear destroys and recreates the collection with the same schema.
	Clear() error
	// Info returns collection statistics; failures are reported in the
	// result, not raised.
	Info() CollectionInfo
}
