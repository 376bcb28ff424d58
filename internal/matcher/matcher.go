// Package matcher ranks statute sections against a case description by
// TF-IDF cosine similarity.
package matcher

import (
	"errors"
	"fmt"

	"firassist/internal/domain"
	"firassist/internal/embedding"
	"firassist/internal/embedding/tfidf"
	"firassist/internal/vectorstore"
	"firassist/internal/vectorstore/memory"
)

var (
	// ErrInvalidK is returned for k < 1.
	ErrInvalidK = errors.New("k must be at least 1")
	// ErrKTooLarge is returned when k exceeds the corpus size.
	ErrKTooLarge = errors.New("k exceeds corpus size")
)

// Matcher owns the fitted vector space for one corpus. It is built once and
// is safe for concurrent use; nothing refits it.
type Matcher struct {
	entries    []domain.CorpusEntry
	vectorizer embedding.Vectorizer
	store      vectorstore.Storage
}

var _ domain.Matcher = (*Matcher)(nil)

// New fits vectorizer on the entry descriptions and builds the document-term
// matrix. A nil vectorizer means tfidf.New().
func New(entries []domain.CorpusEntry, vectorizer embedding.Vectorizer) (*Matcher, error) {
	if len(entries) == 0 {
		return nil, errors.New("matcher: empty corpus")
	}
	if vectorizer == nil {
		vectorizer = tfidf.New()
	}
	docs := make([]string, len(entries))
	for i, e := range entries {
		docs[i] = e.Description
	}
	if err := vectorizer.Fit(docs); err != nil {
		return nil, fmt.Errorf("matcher: fit: %w", err)
	}
	vectors := make([][]float64, len(docs))
	for i, d := range docs {
		v, err := vectorizer.Transform(d)
		if err != nil {
			return nil, fmt.Errorf("matcher: transform row %d: %w", i, err)
		}
		vectors[i] = v
	}
	store, err := memory.NewStorage(vectorizer.Dimension(), entries, vectors)
	if err != nil {
		return nil, fmt.Errorf("matcher: %w", err)
	}
	owned := make([]domain.CorpusEntry, len(entries))
	copy(owned, entries)
	return &Matcher{entries: owned, vectorizer: vectorizer, store: store}, nil
}

// Len returns the corpus size.
func (m *Matcher) Len() int { return len(m.entries) }

// Entries returns a copy of the corpus in row order.
func (m *Matcher) Entries() []domain.CorpusEntry {
	out := make([]domain.CorpusEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Rank returns exactly k sections ordered by descending similarity to query.
// Equal scores are ordered by corpus row; a query with no known terms
// therefore returns the first k rows, each scored 0.
func (m *Matcher) Rank(query string, k int) (domain.QueryResult, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if k > len(m.entries) {
		return nil, fmt.Errorf("%w: k=%d, corpus has %d sections", ErrKTooLarge, k, len(m.entries))
	}
	vec, err := m.vectorizer.Transform(query)
	if err != nil {
		return nil, err
	}
	return m.store.Search(vec, k)
}
