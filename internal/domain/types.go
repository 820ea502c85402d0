package domain

// Document describes one ingested PDF. The ID is content-addressed: a hash
// over the filename and the leading bytes of the file, so re-uploading
// identical content yields the same document.
type Document struct {
	ID        string
	Filename  string
	PageCount int
}

// Chunk is the atomic retrieval unit: a bounded span of one page's text,
// with exact character offsets into the normalized page text so the UI can
// highlight matches.
type Chunk struct {
	ChunkID    string
	DocumentID string
	Text       string
	PageNumber int
	ChunkIndex int
	CharStart  int
	CharEnd    int
	Metadata   map[string]any
}

// SearchResult is a retrieved chunk plus its cosine similarity score.
// Payload fields beyond the known chunk fields land in Metadata.
type SearchResult struct {
	ChunkID    string
	DocumentID string
	Text       string
	PageNumber int
	Score      float64
	CharStart  int
	CharEnd    int
	Metadata   map[string]any
}

// DocumentInfo is a listing entry produced by scanning the index.
type DocumentInfo struct {
	DocumentID string
	Filename   string
	Pages      int
	Chunks     int
}

// GeneratedAnswer is the grounded answer produced from retrieved context.
type GeneratedAnswer struct {
	Answer  string
	Sources []SourceCitation
	Model   string
}

// SourceCitation points back at the chunk a statement was grounded on.
type SourceCitation struct {
	SourceID   int
	DocumentID string
	PageNumber int
	Score      float64
	CharStart  int
	CharEnd    int
	Preview    string
}
