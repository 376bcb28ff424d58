package tfidf

import (
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"
)

var (
	// ErrNotFitted is returned by Transform before Fit has succeeded.
	ErrNotFitted = errors.New("tfidf vectorizer not fitted")
	// ErrAlreadyFitted is returned when Fit is called a second time.
	ErrAlreadyFitted = errors.New("tfidf vectorizer already fitted")
	// ErrEmptyVocabulary is returned when the corpus yields no terms.
	ErrEmptyVocabulary = errors.New("empty vocabulary; corpus contains no terms")
)

// Vectorizer implements a TF-IDF vector space over a fixed corpus.
// Terms are runs of two or more letters, digits or underscores, lowercased.
// Term weights are raw counts times the smoothed IDF, rows are L2-normalised.
type Vectorizer struct {
	vocabulary   map[string]int
	idf          []float64
	dimension    int
	fitted       bool
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// Option configures a Vectorizer.
type Option func(*Vectorizer)

// WithStopWords drops the given words from both corpus and queries.
func WithStopWords(words []string) Option {
	return func(v *Vectorizer) {
		v.stopwords = make(map[string]struct{}, len(words))
		for _, w := range words {
			v.stopwords[strings.ToLower(w)] = struct{}{}
		}
	}
}

// New creates an unfitted vectorizer. No stop words are removed by default.
func New(opts ...Option) *Vectorizer {
	v := &Vectorizer{
		vocabulary:   make(map[string]int),
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}_]{2,}`),
		stopwords:    map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Name returns the identifier of this vectorizer implementation.
func (v *Vectorizer) Name() string { return "tfidf" }

// Fit builds the vocabulary and IDF values from the provided corpus.
func (v *Vectorizer) Fit(corpus []string) error {
	if v.fitted {
		return ErrAlreadyFitted
	}
	if len(corpus) == 0 {
		return errors.New("empty corpus for TF-IDF fit")
	}
	// Build vocabulary and document frequencies
	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range v.tokenize(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	// Vocabulary indices follow lexical term order
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	if len(terms) == 0 {
		return ErrEmptyVocabulary
	}
	v.vocabulary = make(map[string]int, len(terms))
	v.idf = make([]float64, len(terms))
	n := float64(len(corpus))
	for i, term := range terms {
		v.vocabulary[term] = i
		// Smoothed IDF
		v.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}
	v.dimension = len(terms)
	v.fitted = true
	return nil
}

// FitTransform fits the corpus and returns one row per corpus document,
// in corpus order.
func (v *Vectorizer) FitTransform(corpus []string) ([][]float64, error) {
	if err := v.Fit(corpus); err != nil {
		return nil, err
	}
	rows := make([][]float64, len(corpus))
	for i, text := range corpus {
		row, err := v.Transform(text)
		if err != nil {
			return nil, err
		}
		rows[i] = row
	}
	return rows, nil
}

// Dimension returns the vocabulary size.
func (v *Vectorizer) Dimension() int { return v.dimension }

// Vocabulary returns the term to dimension mapping. The map is a copy.
func (v *Vectorizer) Vocabulary() map[string]int {
	out := make(map[string]int, len(v.vocabulary))
	for term, idx := range v.vocabulary {
		out[term] = idx
	}
	return out
}

// Transform projects text into the fitted space. Terms unseen during Fit are
// dropped; text with no known terms yields the zero vector.
func (v *Vectorizer) Transform(text string) ([]float64, error) {
	if !v.fitted {
		return nil, ErrNotFitted
	}
	vec := make([]float64, v.dimension)
	tf := make(map[int]int)
	for _, tok := range v.tokenize(text) {
		if idx, ok := v.vocabulary[tok]; ok {
			tf[idx]++
		}
	}
	if len(tf) == 0 {
		return vec, nil
	}
	for idx, count := range tf {
		vec[idx] = float64(count) * v.idf[idx]
	}
	// L2 normalize
	norm := 0.0
	for _, x := range vec {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

func (v *Vectorizer) tokenize(text string) []string {
	raw := v.tokenPattern.FindAllString(strings.ToLower(text), -1)
	if len(raw) == 0 {
		return nil
	}
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := v.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

// EnglishStopWords returns a fresh copy of the default stop-word list of the
// rag text-search indexer (module "rag", internal/embedding), taken verbatim.
// It is applied only when matcher.stop_words is "english".
func EnglishStopWords() []string {
	return []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
}
