package memory

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/A-Elshahawy/enterprise-rag/internal/domain"
	"github.com/A-Elshahawy/enterprise-rag/internal/vectorstore"
)

type record struct {
	chunk  domain.Chunk
	vector []float64
	seq    int
}

// Store is an in-memory vector store using brute-force cosine similarity.
// It implements the same contract as the Qdrant gateway and backs tests and
// the local mode. Points are keyed by chunk ID, so upserting the same chunk
// twice overwrites.
type Store struct {
	mu        sync.RWMutex
	dimension int
	points    map[string]*record
	nextSeq   int
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{points: make(map[string]*record)}
}

// EnsureCollection fixes the vector dimension. Idempotent; changing the
// dimension of a non-empty store is rejected.
func (s *Store) EnsureCollection(dimension int) error {
	if dimension <= 0 {
		return domain.Configf("vector dimension must be positive, got %d", dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension != 0 && s.dimension != dimension && len(s.points) > 0 {
		return domain.Configf("collection already has dimension %d", s.dimension)
	}
	s.dimension = dimension
	return nil
}

// Upsert stores one point per chunk. Vectors must match the collection
// dimension; a mismatch fails the whole call before anything is written.
func (s *Store) Upsert(chunks []domain.Chunk, vectors [][]float64) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, domain.Validationf("chunks (%d) and vectors (%d) must have the same length",
			len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, v := range vectors {
		if len(v) != s.dimension {
			return 0, domain.Validationf("vector %d has dimension %d, collection expects %d",
				i, len(v), s.dimension)
		}
	}
	for i := range chunks {
		existing, ok := s.points[chunks[i].ChunkID]
		seq := s.nextSeq
		if ok {
			seq = existing.seq
		} else {
			s.nextSeq++
		}
		s.points[chunks[i].ChunkID] = &record{chunk: chunks[i], vector: vectors[i], seq: seq}
	}
	return len(chunks), nil
}

// Search runs a brute-force cosine scan honoring the document filter and
// score threshold (a zero threshold disables score filtering).
func (s *Store) Search(vector []float64, opts vectorstore.SearchOptions) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}
	allowed := idSet(opts.DocumentIDs)

	results := make([]domain.SearchResult, 0, len(s.points))
	for _, rec := range s.points {
		if allowed != nil {
			if _, ok := allowed[rec.chunk.DocumentID]; !ok {
				continue
			}
		}
		score := cosine(rec.vector, vector)
		if opts.ScoreThreshold > 0 && score < opts.ScoreThreshold {
			continue
		}
		results = append(results, resultFromChunk(rec.chunk, score))
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// DeleteDocument removes every chunk of the document; unknown documents are
// a no-op.
func (s *Store) DeleteDocument(documentID string) error {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return domain.Validationf("document ID is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.points {
		if rec.chunk.DocumentID == documentID {
			delete(s.points, id)
		}
	}
	return nil
}

// ListDocuments enumerates distinct documents, scanning points in insertion
// order up to the maxScan budget, sorted by filename case-insensitively.
func (s *Store) ListDocuments(maxScan int) ([]domain.DocumentInfo, error) {
	if maxScan <= 0 {
		maxScan = 10000
	}
	s.mu.RLock()
	records := make([]*record, 0, len(s.points))
	for _, rec := range s.points {
		records = append(records, rec)
	}
	s.mu.RUnlock()
	sort.Slice(records, func(i, j int) bool { return records[i].seq < records[j].seq })
	if maxScan < len(records) {
		records = records[:maxScan]
	}

	type docAgg struct {
		filename string
		pages    map[int]struct{}
		chunks   int
	}
	docs := make(map[string]*docAgg)
	for _, rec := range records {
		agg := docs[rec.chunk.DocumentID]
		if agg == nil {
			agg = &docAgg{pages: make(map[int]struct{})}
			docs[rec.chunk.DocumentID] = agg
		}
		if name, ok := rec.chunk.Metadata["filename"].(string); ok && name != "" {
			agg.filename = name
		}
		agg.pages[rec.chunk.PageNumber] = struct{}{}
		agg.chunks++
	}

	out := make([]domain.DocumentInfo, 0, len(docs))
	for id, agg := range docs {
		out = append(out, domain.DocumentInfo{
			DocumentID: id,
			Filename:   agg.filename,
			Pages:      len(agg.pages),
			Chunks:     agg.chunks,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := sortKey(out[i]), sortKey(out[j])
		if a != b {
			return a < b
		}
		return out[i].DocumentID < out[j].DocumentID
	})
	return out, nil
}

func sortKey(d domain.DocumentInfo) string {
	if d.Filename != "" {
		return strings.ToLower(d.Filename)
	}
	return strings.ToLower(d.DocumentID)
}

// ChunksByPage returns all stored chunks of one page of a document.
func (s *Store) ChunksByPage(documentID string, pageNumber int) ([]domain.Chunk, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return nil, domain.Validationf("document ID is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var chunks []domain.Chunk
	for _, rec := range s.points {
		if rec.chunk.DocumentID == documentID && rec.chunk.PageNumber == pageNumber {
			chunks = append(chunks, rec.chunk)
		}
	}
	return chunks, nil
}

// Clear drops every stored point, keeping the configured dimension.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = make(map[string]*record)
	s.nextSeq = 0
	return nil
}

// Info reports point counts.
func (s *Store) Info() vectorstore.CollectionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return vectorstore.CollectionInfo{
		Name:         "memory",
		PointsCount:  len(s.points),
		VectorsCount: len(s.points),
		Status:       "green",
	}
}

func resultFromChunk(chunk domain.Chunk, score float64) domain.SearchResult {
	metadata := make(map[string]any, len(chunk.Metadata))
	for k, v := range chunk.Metadata {
		metadata[k] = v
	}
	return domain.SearchResult{
		ChunkID:    chunk.ChunkID,
		DocumentID: chunk.DocumentID,
		Text:       chunk.Text,
		PageNumber: chunk.PageNumber,
		Score:      score,
		CharStart:  chunk.CharStart,
		CharEnd:    chunk.CharEnd,
		Metadata:   metadata,
	}
}

func idSet(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
