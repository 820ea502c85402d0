package pages

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/A-Elshahawy/enterprise-rag/internal/chunker"
	"github.com/A-Elshahawy/enterprise-rag/internal/domain"
)

func TestReconstructEmpty(t *testing.T) {
	assert.Equal(t, "", Reconstruct(nil))
}

func TestReconstructSingleChunk(t *testing.T) {
	chunks := []domain.Chunk{
		{Text: "Only chunk on the page.", CharStart: 0, CharEnd: 23, ChunkIndex: 0},
	}
	assert.Equal(t, "Only chunk on the page.", Reconstruct(chunks))
}

func TestReconstructOverlap(t *testing.T) {
	// "hello brave new world": two chunks overlapping on "brave new"
	chunks := []domain.Chunk{
		{Text: "hello brave new", CharStart: 0, CharEnd: 15, ChunkIndex: 0},
		{Text: "brave new world", CharStart: 6, CharEnd: 21, ChunkIndex: 1},
	}
	assert.Equal(t, "hello brave new world", Reconstruct(chunks))
}

func TestReconstructGapInsertsSpace(t *testing.T) {
	// A gap between covered ranges is rejoined with a single space.
	chunks := []domain.Chunk{
		{Text: "first part", CharStart: 0, CharEnd: 10, ChunkIndex: 0},
		{Text: "second part", CharStart: 12, CharEnd: 23, ChunkIndex: 1},
	}
	assert.Equal(t, "first part second part", Reconstruct(chunks))
}

func TestReconstructUnsortedInput(t *testing.T) {
	chunks := []domain.Chunk{
		{Text: "brave new world", CharStart: 6, CharEnd: 21, ChunkIndex: 1},
		{Text: "hello brave new", CharStart: 0, CharEnd: 15, ChunkIndex: 0},
	}
	assert.Equal(t, "hello brave new world", Reconstruct(chunks))
}

func TestReconstructContainedChunkIgnored(t *testing.T) {
	chunks := []domain.Chunk{
		{Text: "the whole line of text", CharStart: 0, CharEnd: 22, ChunkIndex: 0},
		{Text: "whole line", CharStart: 4, CharEnd: 14, ChunkIndex: 1},
	}
	assert.Equal(t, "the whole line of text", Reconstruct(chunks))
}

func TestRoundTripWithChunker(t *testing.T) {
	c, err := chunker.New(120, 30)
	require.NoError(t, err)

	texts := []string{
		"The quick brown fox jumps over the lazy dog. " +
			strings.Repeat("Sentences accumulate until the page is long enough to split. ", 8) +
			"A final remark closes the page.",
		strings.Repeat("No boundaries here just words flowing on and on ", 10),
		"Tiny page.",
	}
	for _, text := range texts {
		text = strings.TrimSpace(text)
		chunks := c.Chunk(text, 1, "doc1", 0)
		require.NotEmpty(t, chunks)
		assert.Equal(t, text, Reconstruct(chunks), "reconstruction must recover the normalized page text")
	}
}

func TestRoundTripDefaults(t *testing.T) {
	c, err := chunker.New(1000, 200)
	require.NoError(t, err)

	text := strings.TrimSpace(strings.Repeat(
		"Retrieval systems split documents into overlapping chunks. "+
			"Overlap preserves context across boundaries! Does reconstruction undo it? ", 40))
	chunks := c.Chunk(text, 1, "doc1", 0)
	require.Greater(t, len(chunks), 2)
	assert.Equal(t, text, Reconstruct(chunks))
}
