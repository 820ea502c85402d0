package generator

import (
	"fmt"
	"strings"

	"github.com/A-Elshahawy/enterprise-rag/internal/domain"
)

// Generator produces a grounded answer from retrieved context.
type Generator interface {
	Generate(query string, context []domain.SearchResult) (*domain.GeneratedAnswer, error)
}

const systemPrompt = `You are a helpful assistant that answers questions based on provided context.

Rules:
1. Only use information from the provided context
2. Cite sources using [Source N] format when using information
3. If the context doesn't contain enough information, say so
4. Be concise and accurate
5. Never make up information not in the context`

// BuildPrompt renders the retrieved chunks into the grounding prompt, each
// tagged with a source marker the model cites back.
func BuildPrompt(query string, context []domain.SearchResult) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	for i, chunk := range context {
		fmt.Fprintf(&b, "[Source %d] (Document: %s, Page: %d)\n%s\n\n",
			i+1, chunk.DocumentID, chunk.PageNumber, chunk.Text)
	}
	fmt.Fprintf(&b, "Question: %s\n\n", query)
	b.WriteString("Answer the question based on the context above. Cite sources using [Source N] format.")
	return b.String()
}

// Citations builds the parallel source list for a generated answer.
func Citations(context []domain.SearchResult) []domain.SourceCitation {
	sources := make([]domain.SourceCitation, 0, len(context))
	for i, chunk := range context {
		sources = append(sources, domain.SourceCitation{
			SourceID:   i + 1,
			DocumentID: chunk.DocumentID,
			PageNumber: chunk.PageNumber,
			Score:      chunk.Score,
			CharStart:  chunk.CharStart,
			CharEnd:    chunk.CharEnd,
			Preview:    preview(chunk.Text, 200),
		})
	}
	return sources
}

func preview(text string, n int) string {
	if len(text) <= n {
		return text
	}
	return text[:n] + "..."
}
