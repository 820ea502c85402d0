package retriever

import (
	"strings"

	"go.uber.org/zap"

	"github.com/A-Elshahawy/enterprise-rag/internal/domain"
	"github.com/A-Elshahawy/enterprise-rag/internal/embedding"
	"github.com/A-Elshahawy/enterprise-rag/internal/vectorstore"
)

// Options narrows a search. A zero ScoreThreshold means "no filtering", not
// "require zero similarity". DocumentIDs restricts results to any of the
// given documents.
type Options struct {
	TopK           int
	ScoreThreshold float64
	DocumentIDs    []string
}

// Retriever embeds queries and runs filtered similarity search against the
// vector store.
type Retriever struct {
	embedder embedding.Embedder
	store    vectorstore.Storage
	log      *zap.Logger
}

// New creates a Retriever.
func New(embedder embedding.Embedder, store vectorstore.Storage, log *zap.Logger) *Retriever {
	if log == nil {
		log = zap.NewNop()
	}
	return &Retriever{embedder: embedder, store: store, log: log}
}

// Search embeds the query and returns the most similar chunks ordered by
// descending score. Index failures surface as a RetrievalError; the caller
// decides whether to retry.
func (r *Retriever) Search(query string, opts Options) ([]domain.SearchResult, error) {
	vector, err := r.embedder.Embed(query)
	if err != nil {
		return nil, &domain.RetrievalError{Query: query, Err: err}
	}

	results, err := r.store.Search(vector, vectorstore.SearchOptions{
		TopK:           opts.TopK,
		ScoreThreshold: opts.ScoreThreshold,
		DocumentIDs:    cleanIDs(opts.DocumentIDs),
	})
	if err != nil {
		return nil, &domain.RetrievalError{Query: query, Err: err}
	}

	r.log.Debug("search finished",
		zap.String("query", truncate(query, 50)),
		zap.Int("results", len(results)))
	return results, nil
}

// cleanIDs drops empty entries and surrounding whitespace from the document
// filter list.
func cleanIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
