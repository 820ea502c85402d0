package embedding

// Embedder converts free text into a fixed-length numeric vector.
// Implementations must be deterministic for identical text.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(text string) ([]float64, error)
	EmbedBatch(texts []string) ([][]float64, error)
}
