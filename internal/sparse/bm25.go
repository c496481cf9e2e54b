// Package sparse implements the BM25 lexical encoder used for the sparse
// half of hybrid search.
package sparse

import (
	"math"
	"sort"
	"time"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
)

// BM25 parameters.
const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

// Encoder fits BM25 corpus statistics. It holds no fitted state itself;
// Fit returns a new immutable Model.
type Encoder struct {
	K1        float64
	B         float64
	Tokenizer *Tokenizer
}

// NewEncoder creates an encoder with the default parameters.
func NewEncoder() *Encoder {
	return &Encoder{K1: DefaultK1, B: DefaultB, Tokenizer: NewTokenizer()}
}

// Model is a fitted BM25 snapshot for one namespace. It is never mutated
// after construction, so it is safe for concurrent use.
type Model struct {
	tokenizer *Tokenizer
	stats     domain.SparseStats
}

// Fit computes document frequencies and average length over corpus.
func (e *Encoder) Fit(namespace string, corpus []string) *Model {
	df := make(map[uint32]int)
	var totalLen int
	for _, doc := range corpus {
		tf := e.termFrequencies(doc)
		for id, n := range tf {
			df[id]++
			totalLen += n
		}
	}

	var avg float64
	if len(corpus) > 0 {
		avg = float64(totalLen) / float64(len(corpus))
	}

	return &Model{
		tokenizer: e.Tokenizer,
		stats: domain.SparseStats{
			Namespace: namespace,
			DocCount:  len(corpus),
			AvgDocLen: avg,
			DocFreq:   df,
			K1:        e.K1,
			B:         e.B,
			FittedAt:  time.Now().UTC(),
		},
	}
}

// FromStats rebuilds a model from persisted stats.
func (e *Encoder) FromStats(stats *domain.SparseStats) *Model {
	cp := *stats
	cp.DocFreq = make(map[uint32]int, len(stats.DocFreq))
	for k, v := range stats.DocFreq {
		cp.DocFreq[k] = v
	}
	return &Model{tokenizer: e.Tokenizer, stats: cp}
}

func (e *Encoder) termFrequencies(text string) map[uint32]int {
	tf := make(map[uint32]int)
	for _, term := range e.Tokenizer.Tokenize(text) {
		tf[TermID(term)]++
	}
	return tf
}

// Namespace returns the namespace the model was fitted for.
func (m *Model) Namespace() string {
	m.mustBeFitted()
	return m.stats.Namespace
}

// Version returns the version of the fitted statistics.
func (m *Model) Version() int64 {
	m.mustBeFitted()
	return m.stats.Version()
}

// Stats returns a copy of the fitted statistics for persistence.
func (m *Model) Stats() *domain.SparseStats {
	m.mustBeFitted()
	cp := m.stats
	cp.DocFreq = make(map[uint32]int, len(m.stats.DocFreq))
	for k, v := range m.stats.DocFreq {
		cp.DocFreq[k] = v
	}
	return &cp
}

// EncodeDocuments returns one BM25 term-frequency vector per document.
func (m *Model) EncodeDocuments(corpus []string) []domain.SparseVector {
	m.mustBeFitted()
	out := make([]domain.SparseVector, len(corpus))
	for i, doc := range corpus {
		out[i] = m.encodeDocument(doc)
	}
	return out
}

// EncodeQueries returns one normalized IDF vector per query.
func (m *Model) EncodeQueries(queries []string) []domain.SparseVector {
	m.mustBeFitted()
	out := make([]domain.SparseVector, len(queries))
	for i, q := range queries {
		out[i] = m.encodeQuery(q)
	}
	return out
}

// EncodeQuery encodes a single query.
func (m *Model) EncodeQuery(query string) domain.SparseVector {
	m.mustBeFitted()
	return m.encodeQuery(query)
}

func (m *Model) encodeDocument(doc string) domain.SparseVector {
	tf := make(map[uint32]int)
	var docLen int
	for _, term := range m.tokenizer.Tokenize(doc) {
		tf[TermID(term)]++
		docLen++
	}
	if docLen == 0 {
		return domain.SparseVector{}
	}

	k1, b := m.stats.K1, m.stats.B
	avg := m.stats.AvgDocLen
	if avg == 0 {
		avg = float64(docLen)
	}
	norm := k1 * (1 - b + b*float64(docLen)/avg)

	weights := make(map[uint32]float32, len(tf))
	for id, n := range tf {
		f := float64(n)
		weights[id] = float32(f * (k1 + 1) / (f + norm))
	}
	return toVector(weights)
}

func (m *Model) encodeQuery(query string) domain.SparseVector {
	seen := make(map[uint32]struct{})
	for _, term := range m.tokenizer.Tokenize(query) {
		seen[TermID(term)] = struct{}{}
	}
	if len(seen) == 0 {
		return domain.SparseVector{}
	}

	n := float64(m.stats.DocCount)
	idf := make(map[uint32]float64, len(seen))
	var sum float64
	for id := range seen {
		df, ok := m.stats.DocFreq[id]
		if !ok {
			df = 1
		}
		w := math.Log((n + 1) / (float64(df) + 0.5))
		idf[id] = w
		sum += w
	}

	weights := make(map[uint32]float32, len(idf))
	for id, w := range idf {
		if sum != 0 {
			w /= sum
		}
		weights[id] = float32(w)
	}
	return toVector(weights)
}

func (m *Model) mustBeFitted() {
	if m == nil {
		panic("sparse: encoder used before Fit")
	}
}

func toVector(weights map[uint32]float32) domain.SparseVector {
	v := domain.SparseVector{
		Indices: make([]uint32, 0, len(weights)),
		Values:  make([]float32, 0, len(weights)),
	}
	for id := range weights {
		v.Indices = append(v.Indices, id)
	}
	sort.Slice(v.Indices, func(i, j int) bool { return v.Indices[i] < v.Indices[j] })
	for _, id := range v.Indices {
		v.Values = append(v.Values, weights[id])
	}
	return v
}
