package memory

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"firassist/internal/domain"
)

// row is a sparse copy of one matrix row.
type row struct {
	idx  []int
	val  []float64
	norm float64
}

// Storage is an immutable in-memory document-term matrix ranked by brute-force
// cosine similarity. It holds no locks; nothing mutates it after NewStorage.
type Storage struct {
	dimension int
	rows      []row
	entries   []domain.CorpusEntry
}

// NewStorage copies entries and their vectors into a new matrix.
// vectors[i] must be the row for entries[i].
func NewStorage(dimension int, entries []domain.CorpusEntry, vectors [][]float64) (*Storage, error) {
	if dimension <= 0 {
		return nil, errors.New("invalid dimension")
	}
	if len(entries) != len(vectors) {
		return nil, errors.New("entries and vectors length mismatch")
	}
	s := &Storage{
		dimension: dimension,
		rows:      make([]row, len(vectors)),
		entries:   make([]domain.CorpusEntry, len(entries)),
	}
	copy(s.entries, entries)
	for i, v := range vectors {
		if len(v) != dimension {
			return nil, fmt.Errorf("vector dimension mismatch at row %d: got %d, want %d", i, len(v), dimension)
		}
		var r row
		sum := 0.0
		for j, x := range v {
			if x == 0 {
				continue
			}
			r.idx = append(r.idx, j)
			r.val = append(r.val, x)
			sum += x * x
		}
		r.norm = math.Sqrt(sum)
		s.rows[i] = r
	}
	return s, nil
}

// Len returns the number of rows.
func (s *Storage) Len() int { return len(s.rows) }

// Dimension returns the number of columns.
func (s *Storage) Dimension() int { return s.dimension }

// Scores returns the cosine similarity of vector against every row, in row order.
// A zero vector or zero row scores 0.
func (s *Storage) Scores(vector []float64) []float64 {
	qnorm := 0.0
	for _, x := range vector {
		qnorm += x * x
	}
	qnorm = math.Sqrt(qnorm)
	scores := make([]float64, len(s.rows))
	if qnorm == 0 {
		return scores
	}
	for i, r := range s.rows {
		if r.norm == 0 {
			continue
		}
		scores[i] = dot(r, vector) / (r.norm * qnorm)
	}
	return scores
}

// Search returns the topK rows by descending score; equal scores keep row order.
// topK is clamped to the number of rows.
func (s *Storage) Search(vector []float64, topK int) (domain.QueryResult, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: got %d, want %d", len(vector), s.dimension)
	}
	if topK <= 0 {
		topK = 5
	}
	scores := s.Scores(vector)
	idxs := argsortDesc(scores)
	if topK > len(idxs) {
		topK = len(idxs)
	}
	results := make(domain.QueryResult, 0, topK)
	for i := 0; i < topK; i++ {
		j := idxs[i]
		e := s.entries[j]
		results = append(results, domain.Match{
			Label:       e.Label,
			Number:      e.Number,
			Description: e.Description,
			Score:       scores[j],
			Index:       j,
		})
	}
	return results, nil
}

func dot(r row, v []float64) float64 {
	sum := 0.0
	for k, j := range r.idx {
		sum += r.val[k] * v[j]
	}
	return sum
}

func argsortDesc(vals []float64) []int {
	idxs := make([]int, len(vals))
	for i := range vals {
		idxs[i] = i
	}
	// Stable: ties stay in row order
	sort.SliceStable(idxs, func(a, b int) bool { return vals[idxs[a]] > vals[idxs[b]] })
	return idxs
}
