package qdrant

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/A-Elshahawy/enterprise-rag/internal/domain"
	"github.com/A-Elshahawy/enterprise-rag/internal/vectorstore"
)

const (
	upsertBatchSize = 100
	scrollPageSize  = 256
)

// Store is a REST gateway to a Qdrant collection of chunk vectors. It owns
// the collection schema: cosine distance, payload indexes on document_id,
// filename and page_number, and deterministic point IDs derived from chunk
// IDs so re-ingestion overwrites instead of duplicating.
type Store struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
	log        *zap.Logger
}

// Config configures the Qdrant gateway.
type Config struct {
	URL        string
	APIKeyEnv  string
	Collection string
	Timeout    time.Duration
	Logger     *zap.Logger
}

// NewStore creates a Qdrant gateway. The collection itself is created
// lazily by EnsureCollection.
func NewStore(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, domain.Configf("qdrant url is required")
	}
	if cfg.Collection == "" {
		cfg.Collection = "documents"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     os.Getenv(cfg.APIKeyEnv),
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
		log:        log,
	}, nil
}

// EnsureCollection creates the collection with the given vector dimension and
// cosine distance if it does not exist yet, and provisions the payload
// indexes used for filtering. Idempotent; safe to call before every write.
func (s *Store) EnsureCollection(dimension int) error {
	if dimension <= 0 {
		return domain.Configf("vector dimension must be positive, got %d", dimension)
	}
	s.dimension = dimension

	exists, err := s.collectionExists()
	if err != nil {
		return &domain.StorageError{Op: "ensure collection", Err: err}
	}
	if exists {
		return nil
	}

	s.log.Info("creating collection", zap.String("collection", s.collection), zap.Int("dimension", dimension))
	if err := s.createCollection(dimension); err != nil {
		return &domain.StorageError{Op: "create collection", Err: err}
	}
	return nil
}

func (s *Store) collectionExists() (bool, error) {
	resp, err := s.do(http.MethodGet, s.collectionPath(""), nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 300:
		return false, fmt.Errorf("GET collection: %s", resp.Status)
	}
	return true, nil
}

func (s *Store) createCollection(dimension int) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	if err := s.call(http.MethodPut, s.collectionPath(""), body, nil); err != nil {
		return err
	}
	indexes := []struct {
		field  string
		schema string
	}{
		{"document_id", "keyword"},
		{"filename", "keyword"},
		{"page_number", "integer"},
	}
	for _, idx := range indexes {
		body := map[string]any{
			"field_name":   idx.field,
			"field_schema": idx.schema,
		}
		if err := s.call(http.MethodPut, s.collectionPath("/index?wait=true"), body, nil); err != nil {
			return fmt.Errorf("payload index %s: %w", idx.field, err)
		}
	}
	return nil
}

// Upsert writes chunks in batches of 100 to bound request size. A batch
// failure aborts the remaining batches and surfaces the error: earlier
// batches stay committed, and re-running the same ingestion is safe because
// point IDs are deterministic.
func (s *Store) Upsert(chunks []domain.Chunk, vectors [][]float64) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, domain.Validationf("chunks (%d) and vectors (%d) must have the same length",
			len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	for i, v := range vectors {
		if s.dimension > 0 && len(v) != s.dimension {
			return 0, domain.Validationf("vector %d has dimension %d, collection expects %d",
				i, len(v), s.dimension)
		}
	}

	points := make([]map[string]any, len(chunks))
	for i := range chunks {
		points[i] = map[string]any{
			"id":      PointID(chunks[i].ChunkID),
			"vector":  vectors[i],
			"payload": payloadFromChunk(chunks[i]),
		}
	}

	written := 0
	for start := 0; start < len(points); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(points) {
			end = len(points)
		}
		body := map[string]any{"points": points[start:end]}
		if err := s.call(http.MethodPut, s.collectionPath("/points?wait=true"), body, nil); err != nil {
			return written, &domain.StorageError{Op: "upsert", Err: err}
		}
		written += end - start
	}

	s.log.Info("upserted chunks", zap.String("collection", s.collection), zap.Int("points", written))
	return written, nil
}

// Search runs a filtered cosine-similarity search and returns hits ordered
// by descending score.
func (s *Store) Search(vector []float64, opts vectorstore.SearchOptions) ([]domain.SearchResult, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}
	body := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if f := documentFilter(opts.DocumentIDs); f != nil {
		body["filter"] = f
	}
	if opts.ScoreThreshold > 0 {
		body["score_threshold"] = opts.ScoreThreshold
	}

	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.call(http.MethodPost, s.collectionPath("/points/search"), body, &resp); err != nil {
		return nil, &domain.StorageError{Op: "search", Err: err}
	}

	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, hit := range resp.Result {
		results = append(results, resultFromPayload(hit.Payload, hit.Score))
	}
	return results, nil
}

// DeleteDocument removes every point whose payload document_id matches.
// Deleting a document that was never ingested succeeds as a no-op.
func (s *Store) DeleteDocument(documentID string) error {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return domain.Validationf("document ID is required")
	}
	body := map[string]any{
		"filter": documentFilter([]string{documentID}),
	}
	if err := s.call(http.MethodPost, s.collectionPath("/points/delete?wait=true"), body, nil); err != nil {
		return &domain.StorageError{Op: "delete document", Err: err}
	}
	s.log.Info("deleted document chunks", zap.String("document_id", documentID))
	return nil
}

// ListDocuments enumerates distinct documents with a paginated scroll over
// at most maxScan points. The scan budget makes this a best-effort listing
// for very large collections, sorted by filename case-insensitively.
func (s *Store) ListDocuments(maxScan int) ([]domain.DocumentInfo, error) {
	if maxScan <= 0 {
		maxScan = 10000
	}

	type docAgg struct {
		filename string
		pages    map[int]struct{}
		chunks   int
	}
	docs := make(map[string]*docAgg)

	var offset any
	scanned := 0
	for scanned < maxScan {
		limit := scrollPageSize
		if remaining := maxScan - scanned; remaining < limit {
			limit = remaining
		}
		points, next, err := s.scroll(limit, offset, nil)
		if err != nil {
			return nil, &domain.StorageError{Op: "list documents", Err: err}
		}
		for _, payload := range points {
			id, _ := payload["document_id"].(string)
			if id == "" {
				continue
			}
			agg := docs[id]
			if agg == nil {
				agg = &docAgg{pages: make(map[int]struct{})}
				docs[id] = agg
			}
			if name, ok := payload["filename"].(string); ok && name != "" {
				agg.filename = name
			}
			if page, ok := asInt(payload["page_number"]); ok {
				agg.pages[page] = struct{}{}
			}
			agg.chunks++
		}
		scanned += len(points)
		if next == nil || len(points) == 0 {
			break
		}
		offset = next
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

// ChunksByPage fetches all stored chunks of one page of a document.
func (s *Store) ChunksByPage(documentID string, pageNumber int) ([]domain.Chunk, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return nil, domain.Validationf("document ID is required")
	}
	filter := map[string]any{
		"must": []map[string]any{
			{"key": "document_id", "match": map[string]any{"value": documentID}},
			{"key": "page_number", "match": map[string]any{"value": pageNumber}},
		},
	}
	var chunks []domain.Chunk
	var offset any
	for {
		points, next, err := s.scroll(scrollPageSize, offset, filter)
		if err != nil {
			return nil, &domain.StorageError{Op: "chunks by page", Err: err}
		}
		for _, payload := range points {
			chunks = append(chunks, chunkFromPayload(payload))
		}
		if next == nil || len(points) == 0 {
			break
		}
		offset = next
	}
	return chunks, nil
}

// Clear recreates an empty collection with the same schema. Destructive.
// When this store has not created the collection itself, the dimension is
// read from the live collection before deleting it.
func (s *Store) Clear() error {
	dimension := s.dimension
	if dimension == 0 {
		dimension = s.collectionDimension()
	}
	resp, err := s.do(http.MethodDelete, s.collectionPath(""), nil)
	if err != nil {
		return &domain.StorageError{Op: "clear", Err: err}
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return &domain.StorageError{Op: "clear", Err: fmt.Errorf("DELETE collection: %s", resp.Status)}
	}
	if dimension > 0 {
		if err := s.createCollection(dimension); err != nil {
			return &domain.StorageError{Op: "clear", Err: err}
		}
		s.dimension = dimension
	}
	s.log.Info("cleared collection", zap.String("collection", s.collection))
	return nil
}

// collectionDimension reads the configured vector size from the live
// collection; 0 when the collection is absent or unreadable.
func (s *Store) collectionDimension() int {
	var resp struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	if err := s.call(http.MethodGet, s.collectionPath(""), nil, &resp); err != nil {
		return 0
	}
	return resp.Result.Config.Params.Vectors.Size
}

// Info returns collection statistics. Diagnostics path: failures degrade to
// a reported error string instead of a returned error.
func (s *Store) Info() vectorstore.CollectionInfo {
	var resp struct {
		Result struct {
			Status      string `json:"status"`
			PointsCount int    `json:"points_count"`
			VectorsCnt  int    `json:"vectors_count"`
		} `json:"result"`
	}
	info := vectorstore.CollectionInfo{Name: s.collection}
	if err := s.call(http.MethodGet, s.collectionPath(""), nil, &resp); err != nil {
		info.Err = err.Error()
		s.log.Warn("collection info unavailable", zap.String("collection", s.collection), zap.Error(err))
		return info
	}
	info.Status = resp.Result.Status
	info.PointsCount = resp.Result.PointsCount
	info.VectorsCount = resp.Result.VectorsCnt
	return info
}

// scroll fetches one page of points, returning their payloads and the next
// page offset token (nil when exhausted).
func (s *Store) scroll(limit int, offset any, filter map[string]any) ([]map[string]any, any, error) {
	body := map[string]any{
		"limit":        limit,
		"with_payload": true,
	}
	if offset != nil {
		body["offset"] = offset
	}
	if filter != nil {
		body["filter"] = filter
	}
	var resp struct {
		Result struct {
			Points []struct {
				Payload map[string]any `json:"payload"`
			} `json:"points"`
			NextPageOffset any `json:"next_page_offset"`
		} `json:"result"`
	}
	if err := s.call(http.MethodPost, s.collectionPath("/points/scroll"), body, &resp); err != nil {
		return nil, nil, err
	}
	payloads := make([]map[string]any, 0, len(resp.Result.Points))
	for _, p := range resp.Result.Points {
		payloads = append(payloads, p.Payload)
	}
	return payloads, resp.Result.NextPageOffset, nil
}

func (s *Store) collectionPath(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

func (s *Store) call(method, url string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (s *Store) do(method, url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	return s.client.Do(req)
}
