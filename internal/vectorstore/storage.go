package vectorstore

import "firassist/internal/domain"

// Storage is a read-only document-term matrix supporting similarity search.
// Row i always corresponds to corpus entry i.
type Storage interface {
	Len() int
	Dimension() int
	Search(vector []float64, topK int) (domain.QueryResult, error)
}
