package embedding

// Vectorizer projects free text into a fixed term space learned from a corpus.
// Fit is called exactly once; after that the vectorizer is read-only and
// Transform is safe for concurrent use.
type Vectorizer interface {
	Name() string
	Fit(corpus []string) error
	Dimension() int
	Transform(text string) ([]float64, error)
}
