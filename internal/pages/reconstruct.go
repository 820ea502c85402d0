package pages

import (
	"sort"

	"github.com/A-Elshahawy/enterprise-rag/internal/domain"
)

// Reconstruct merges the stored chunks of one (document, page) back into
// continuous page text. Chunks overlap by construction; walking them in
// char_start order, only the suffix beyond the already-covered range is
// appended, and a single space is inserted where a gap separates the covered
// range from the next chunk. Reconstructing from the chunks of a page
// recovers the normalized source text.
func Reconstruct(chunks []domain.Chunk) string {
	if len(chunks) == 0 {
		return ""
	}
	ordered := make([]domain.Chunk, len(chunks))
	copy(ordered, chunks)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].CharStart != ordered[j].CharStart {
			return ordered[i].CharStart < ordered[j].CharStart
		}
		return ordered[i].ChunkIndex < ordered[j].ChunkIndex
	})

	var out []byte
	covered := 0
	for _, chunk := range ordered {
		switch {
		case chunk.CharStart >= covered:
			if chunk.CharStart > covered && len(out) > 0 {
				out = append(out, ' ')
			}
			out = append(out, chunk.Text...)
			covered = chunk.CharEnd
		case chunk.CharEnd > covered:
			overlap := covered - chunk.CharStart
			if overlap < len(chunk.Text) {
				out = append(out, chunk.Text[overlap:]...)
				covered = chunk.CharEnd
			}
		}
	}
	return string(out)
}
