package qdrant

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/A-Elshahawy/enterprise-rag/internal/domain"
	"github.com/A-Elshahawy/enterprise-rag/internal/vectorstore"
)

// fakeQdrant is a minimal in-test Qdrant REST double. It records requests so
// tests can assert on the wire protocol the gateway speaks.
type fakeQdrant struct {
	t                *testing.T
	exists           bool
	configuredDim    int
	dropped          bool
	createBodies     []map[string]any
	indexFields      []string
	upsertBatches    [][]map[string]any
	searchBody       map[string]any
	searchResult     []map[string]any
	deleteBody       map[string]any
	scrollPages      [][]map[string]any
	scrollCalls      int
	scrollBodies     []map[string]any
	failUpsertAfterN int
	upsertCalls      int
}

func (f *fakeQdrant) handler() http.Handler {
	// Routes are registered as plain paths with an explicit method dispatch
	// because the toolchain predates method-qualified ServeMux patterns.
	mux := http.NewServeMux()
	mux.HandleFunc("/collections/docs", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			if !f.exists {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			respond(w, map[string]any{"result": map[string]any{
				"status": "green", "points_count": 42, "vectors_count": 42,
				"config": map[string]any{"params": map[string]any{
					"vectors": map[string]any{"size": f.configuredDim},
				}},
			}})
		case http.MethodDelete:
			f.exists = false
			f.dropped = true
			respond(w, map[string]any{"result": true})
		case http.MethodPut:
			f.createBodies = append(f.createBodies, decode(f.t, r))
			f.exists = true
			respond(w, map[string]any{"result": true})
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/collections/docs/index", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body := decode(f.t, r)
		field, _ := body["field_name"].(string)
		f.indexFields = append(f.indexFields, field)
		respond(w, map[string]any{"result": true})
	})
	mux.HandleFunc("/collections/docs/points", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		f.upsertCalls++
		if f.failUpsertAfterN > 0 && f.upsertCalls > f.failUpsertAfterN {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		body := decode(f.t, r)
		raw, _ := body["points"].([]any)
		batch := make([]map[string]any, 0, len(raw))
		for _, p := range raw {
			batch = append(batch, p.(map[string]any))
		}
		f.upsertBatches = append(f.upsertBatches, batch)
		respond(w, map[string]any{"result": true})
	})
	mux.HandleFunc("/collections/docs/points/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		f.searchBody = decode(f.t, r)
		respond(w, map[string]any{"result": f.searchResult})
	})
	mux.HandleFunc("/collections/docs/points/delete", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		f.deleteBody = decode(f.t, r)
		respond(w, map[string]any{"result": true})
	})
	mux.HandleFunc("/collections/docs/points/scroll", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		f.scrollBodies = append(f.scrollBodies, decode(f.t, r))
		var page []map[string]any
		var next any
		if f.scrollCalls < len(f.scrollPages) {
			page = f.scrollPages[f.scrollCalls]
			if f.scrollCalls < len(f.scrollPages)-1 {
				next = f.scrollCalls + 1
			}
		}
		f.scrollCalls++
		points := make([]map[string]any, 0, len(page))
		for _, payload := range page {
			points = append(points, map[string]any{"payload": payload})
		}
		respond(w, map[string]any{"result": map[string]any{
			"points": points, "next_page_offset": next,
		}})
	})
	return mux
}

func respond(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func decode(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func newTestStore(t *testing.T, fake *fakeQdrant) *Store {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	store, err := NewStore(Config{URL: srv.URL, Collection: "docs"})
	require.NoError(t, err)
	return store
}

func chunkFixture(docID string, index int) domain.Chunk {
	return domain.Chunk{
		ChunkID:    fmt.Sprintf("%s_%04d", docID, index),
		DocumentID: docID,
		Text:       "text",
		PageNumber: 1,
		ChunkIndex: index,
		CharStart:  0,
		CharEnd:    4,
		Metadata:   map[string]any{"filename": "a.pdf", "char_count": 4},
	}
}

func TestEnsureCollectionCreatesWhenAbsent(t *testing.T) {
	fake := &fakeQdrant{t: t}
	store := newTestStore(t, fake)

	require.NoError(t, store.EnsureCollection(384))

	require.Len(t, fake.createBodies, 1)
	vectors := fake.createBodies[0]["vectors"].(map[string]any)
	assert.Equal(t, float64(384), vectors["size"])
	assert.Equal(t, "Cosine", vectors["distance"])
	assert.ElementsMatch(t, []string{"document_id", "filename", "page_number"}, fake.indexFields)
}

func TestEnsureCollectionIdempotent(t *testing.T) {
	fake := &fakeQdrant{t: t, exists: true}
	store := newTestStore(t, fake)

	require.NoError(t, store.EnsureCollection(384))
	require.NoError(t, store.EnsureCollection(384))
	assert.Empty(t, fake.createBodies)
}

func TestEnsureCollectionRejectsBadDimension(t *testing.T) {
	fake := &fakeQdrant{t: t}
	store := newTestStore(t, fake)
	assert.Error(t, store.EnsureCollection(0))
}

func TestUpsertBatches(t *testing.T) {
	fake := &fakeQdrant{t: t, exists: true}
	store := newTestStore(t, fake)
	require.NoError(t, store.EnsureCollection(2))

	var chunks []domain.Chunk
	var vectors [][]float64
	for i := 0; i < 250; i++ {
		chunks = append(chunks, chunkFixture("docA", i))
		vectors = append(vectors, []float64{1, 0})
	}

	n, err := store.Upsert(chunks, vectors)
	require.NoError(t, err)
	assert.Equal(t, 250, n)
	require.Len(t, fake.upsertBatches, 3)
	assert.Len(t, fake.upsertBatches[0], 100)
	assert.Len(t, fake.upsertBatches[1], 100)
	assert.Len(t, fake.upsertBatches[2], 50)

	point := fake.upsertBatches[0][0]
	payload := point["payload"].(map[string]any)
	assert.Equal(t, "docA_0000", payload["chunk_id"])
	assert.Equal(t, "docA", payload["document_id"])
	assert.Equal(t, "a.pdf", payload["filename"])
	// point IDs must be valid UUIDs derived from the chunk ID
	assert.Equal(t, PointID("docA_0000"), point["id"])
}

func TestUpsertPartialFailureSurfaces(t *testing.T) {
	fake := &fakeQdrant{t: t, exists: true, failUpsertAfterN: 1}
	store := newTestStore(t, fake)
	require.NoError(t, store.EnsureCollection(2))

	var chunks []domain.Chunk
	var vectors [][]float64
	for i := 0; i < 150; i++ {
		chunks = append(chunks, chunkFixture("docA", i))
		vectors = append(vectors, []float64{1, 0})
	}

	n, err := store.Upsert(chunks, vectors)
	// first batch committed, second aborted: visible partial progress
	assert.Equal(t, 100, n)
	var storageErr *domain.StorageError
	assert.True(t, errors.As(err, &storageErr))
}

func TestUpsertValidation(t *testing.T) {
	fake := &fakeQdrant{t: t, exists: true}
	store := newTestStore(t, fake)
	require.NoError(t, store.EnsureCollection(2))

	_, err := store.Upsert([]domain.Chunk{chunkFixture("d", 0)}, nil)
	var vErr *domain.ValidationError
	assert.True(t, errors.As(err, &vErr))

	_, err = store.Upsert([]domain.Chunk{chunkFixture("d", 0)}, [][]float64{{1, 0, 0}})
	assert.Error(t, err, "dimension mismatch must fail before any write")

	n, err := store.Upsert(nil, nil)
	assert.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, fake.upsertBatches)
}

func TestSearchRequestShape(t *testing.T) {
	fake := &fakeQdrant{t: t, exists: true, searchResult: []map[string]any{
		{
			"score": 0.93,
			"payload": map[string]any{
				"chunk_id": "docA_0000", "document_id": "docA", "text": "hit",
				"page_number": 3, "char_start": 10, "char_end": 20,
				"chunk_index": 0, "filename": "a.pdf",
			},
		},
	}}
	store := newTestStore(t, fake)

	results, err := store.Search([]float64{1, 0}, vectorstore.SearchOptions{
		TopK:           7,
		ScoreThreshold: 0.5,
		DocumentIDs:    []string{"docA", "docB"},
	})
	require.NoError(t, err)

	assert.Equal(t, float64(7), fake.searchBody["limit"])
	assert.Equal(t, 0.5, fake.searchBody["score_threshold"])
	assert.Equal(t, true, fake.searchBody["with_payload"])

	filter := fake.searchBody["filter"].(map[string]any)
	must := filter["must"].([]any)
	cond := must[0].(map[string]any)
	assert.Equal(t, "document_id", cond["key"])
	match := cond["match"].(map[string]any)
	assert.Equal(t, []any{"docA", "docB"}, match["any"])

	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, "docA_0000", r.ChunkID)
	assert.Equal(t, 3, r.PageNumber)
	assert.Equal(t, 10, r.CharStart)
	assert.Equal(t, 0.93, r.Score)
	// unknown payload keys overflow into metadata; known ones do not
	assert.Equal(t, "a.pdf", r.Metadata["filename"])
	assert.NotContains(t, r.Metadata, "text")
}

func TestSearchSingleDocumentUsesExactMatch(t *testing.T) {
	fake := &fakeQdrant{t: t, exists: true}
	store := newTestStore(t, fake)

	_, err := store.Search([]float64{1, 0}, vectorstore.SearchOptions{TopK: 5, DocumentIDs: []string{"docA"}})
	require.NoError(t, err)

	filter := fake.searchBody["filter"].(map[string]any)
	cond := filter["must"].([]any)[0].(map[string]any)
	match := cond["match"].(map[string]any)
	assert.Equal(t, "docA", match["value"])
	assert.NotContains(t, match, "any")
}

func TestSearchUnfilteredOmitsFilterAndThreshold(t *testing.T) {
	fake := &fakeQdrant{t: t, exists: true}
	store := newTestStore(t, fake)

	_, err := store.Search([]float64{1, 0}, vectorstore.SearchOptions{TopK: 5, ScoreThreshold: 0})
	require.NoError(t, err)

	assert.NotContains(t, fake.searchBody, "filter")
	assert.NotContains(t, fake.searchBody, "score_threshold",
		"a zero threshold means no filtering, not requiring zero similarity")
}

func TestDeleteDocument(t *testing.T) {
	fake := &fakeQdrant{t: t, exists: true}
	store := newTestStore(t, fake)

	require.NoError(t, store.DeleteDocument("docA"))

	filter := fake.deleteBody["filter"].(map[string]any)
	cond := filter["must"].([]any)[0].(map[string]any)
	assert.Equal(t, "document_id", cond["key"])

	err := store.DeleteDocument("   ")
	var vErr *domain.ValidationError
	assert.True(t, errors.As(err, &vErr))
}

func TestListDocumentsScrollsAndSorts(t *testing.T) {
	fake := &fakeQdrant{t: t, exists: true, scrollPages: [][]map[string]any{
		{
			{"document_id": "doc2", "filename": "Zulu.pdf", "page_number": 1},
			{"document_id": "doc1", "filename": "alpha.pdf", "page_number": 1},
		},
		{
			{"document_id": "doc1", "filename": "alpha.pdf", "page_number": 2},
			{"document_id": "doc3", "page_number": 1},
		},
	}}
	store := newTestStore(t, fake)

	docs, err := store.ListDocuments(10000)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	// alpha.pdf before Zulu.pdf (case-insensitive), doc3 sorts by its ID
	assert.Equal(t, "doc1", docs[0].DocumentID)
	assert.Equal(t, 2, docs[0].Pages)
	assert.Equal(t, 2, docs[0].Chunks)
	assert.Equal(t, "doc3", docs[1].DocumentID)
	assert.Equal(t, "doc2", docs[2].DocumentID)

	assert.Equal(t, 2, fake.scrollCalls)
}

func TestListDocumentsHonorsScanBudget(t *testing.T) {
	fake := &fakeQdrant{t: t, exists: true, scrollPages: [][]map[string]any{
		{
			{"document_id": "doc1", "filename": "a.pdf", "page_number": 1},
			{"document_id": "doc2", "filename": "b.pdf", "page_number": 1},
		},
		{
			{"document_id": "doc3", "filename": "c.pdf", "page_number": 1},
		},
	}}
	store := newTestStore(t, fake)

	docs, err := store.ListDocuments(2)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.Equal(t, 1, fake.scrollCalls, "scan must stop once the budget is exhausted")
	assert.Equal(t, float64(2), fake.scrollBodies[0]["limit"])
}

func TestChunksByPage(t *testing.T) {
	fake := &fakeQdrant{t: t, exists: true, scrollPages: [][]map[string]any{
		{
			{"chunk_id": "docA_0000", "document_id": "docA", "text": "first",
				"page_number": 2, "chunk_index": 0, "char_start": 0, "char_end": 5},
			{"chunk_id": "docA_0001", "document_id": "docA", "text": "second",
				"page_number": 2, "chunk_index": 1, "char_start": 3, "char_end": 9},
		},
	}}
	store := newTestStore(t, fake)

	chunks, err := store.ChunksByPage("docA", 2)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "docA_0000", chunks[0].ChunkID)
	assert.Equal(t, 2, chunks[0].PageNumber)

	filter := fake.scrollBodies[0]["filter"].(map[string]any)
	must := filter["must"].([]any)
	assert.Len(t, must, 2)
}

func TestInfoDegradesOnError(t *testing.T) {
	fake := &fakeQdrant{t: t} // collection missing: GET returns 404
	store := newTestStore(t, fake)

	info := store.Info()
	assert.Equal(t, "docs", info.Name)
	assert.NotEmpty(t, info.Err)
}

func TestInfoReportsCounts(t *testing.T) {
	fake := &fakeQdrant{t: t, exists: true}
	store := newTestStore(t, fake)

	info := store.Info()
	assert.Empty(t, info.Err)
	assert.Equal(t, 42, info.PointsCount)
	assert.Equal(t, "green", info.Status)
}

func TestClearRecreatesSchemaFromLiveCollection(t *testing.T) {
	// No prior EnsureCollection: the gateway must read the dimension off the
	// live collection before dropping it, and recreate with the same schema.
	fake := &fakeQdrant{t: t, exists: true, configuredDim: 384}
	store := newTestStore(t, fake)

	require.NoError(t, store.Clear())

	assert.True(t, fake.dropped)
	require.Len(t, fake.createBodies, 1, "collection must be recreated after clear")
	vectors := fake.createBodies[0]["vectors"].(map[string]any)
	assert.Equal(t, float64(384), vectors["size"])
	assert.Equal(t, "Cosine", vectors["distance"])
	assert.ElementsMatch(t, []string{"document_id", "filename", "page_number"}, fake.indexFields)
	assert.True(t, fake.exists)
}

func TestClearKeepsEnsuredDimension(t *testing.T) {
	fake := &fakeQdrant{t: t, exists: true, configuredDim: 384}
	store := newTestStore(t, fake)
	require.NoError(t, store.EnsureCollection(128))

	require.NoError(t, store.Clear())

	require.Len(t, fake.createBodies, 1)
	vectors := fake.createBodies[0]["vectors"].(map[string]any)
	assert.Equal(t, float64(128), vectors["size"])
}

func TestClearMissingCollectionIsNoOp(t *testing.T) {
	fake := &fakeQdrant{t: t}
	store := newTestStore(t, fake)

	require.NoError(t, store.Clear())
	assert.Empty(t, fake.createBodies, "nothing to recreate when the collection never existed")
}

func TestPointIDDeterministicUUID(t *testing.T) {
	a := PointID("doc_0001")
	b := PointID("doc_0001")
	c := PointID("doc_0002")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}
