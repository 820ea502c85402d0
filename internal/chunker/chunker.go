package chunker

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/A-Elshahawy/enterprise-rag/internal/domain"
)

// sentence boundary markers, searched in priority order
var boundaryMarkers = []string{". ", "! ", "? ", "\n"}

// Chunker splits page text into overlapping windows, snapping window ends to
// sentence boundaries and tracking exact character offsets into the source
// page text so stored chunks can be merged back for highlighting.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// New creates a Chunker. An overlap that is not smaller than the chunk size
// would never advance the cursor and is rejected here, not at request time.
func New(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, domain.Configf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 {
		return nil, domain.Configf("chunk overlap must not be negative, got %d", chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return nil, domain.Configf("chunk overlap (%d) must be smaller than chunk size (%d)",
			chunkOverlap, chunkSize)
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// ChunkSize returns the configured window size.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// ChunkOverlap returns the configured overlap between consecutive windows.
func (c *Chunker) ChunkOverlap() int { return c.chunkOverlap }

// Chunk splits one page's text into overlapping chunks. startIndex continues
// the chunk numbering across pages so chunk IDs stay unique document-wide.
// Offsets are byte offsets into the page text as given.
func (c *Chunker) Chunk(text string, pageNumber int, documentID string, startIndex int) []domain.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []domain.Chunk
	start := 0
	index := startIndex

	for start < len(text) {
		end := start + c.chunkSize
		if end > len(text) {
			end = len(text)
		}
		window := text[start:end]

		// Snap to the last sentence boundary in the window, but only when it
		// falls past half the window; a boundary earlier than that would
		// leave the next chunk to re-cover most of this one.
		if end < len(text) {
			for _, sep := range boundaryMarkers {
				if pos := strings.LastIndex(window, sep); pos > c.chunkSize/2 {
					window = window[:pos+1]
					end = start + len(window)
					break
				}
			}
		}

		trimmed := strings.TrimSpace(window)
		if trimmed != "" {
			lead := len(window) - len(strings.TrimLeftFunc(window, unicode.IsSpace))
			charStart := start + lead
			chunks = append(chunks, domain.Chunk{
				ChunkID:    ChunkID(documentID, index),
				DocumentID: documentID,
				Text:       trimmed,
				PageNumber: pageNumber,
				ChunkIndex: index,
				CharStart:  charStart,
				CharEnd:    charStart + len(trimmed),
				Metadata: map[string]any{
					"page":        pageNumber,
					"chunk_index": index,
					"char_count":  len(trimmed),
				},
			})
			index++
		}

		if end >= len(text) {
			break
		}
		// The cursor must strictly advance. When the overlap is large and a
		// snapped boundary shortened the window, end-overlap can fall back
		// to (or before) the current start; skip the overlap for that step.
		next := end - c.chunkOverlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// ChunkID builds the deterministic per-document chunk identifier.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_%04d", documentID, index)
}
