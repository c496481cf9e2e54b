package domain

import (
	"fmt"
	"time"
)

// Passage is one indexed chunk of a video's transcript.
// ID is "{video_id}-{position}" so re-ingesting a video overwrites
// instead of duplicating.
type Passage struct {
	ID           string       `json:"id"`
	VideoID      string       `json:"video_id"`
	Position     int          `json:"position"`
	Text         string       `json:"text"`
	DenseVector  []float32    `json:"dense_vector,omitempty"`
	SparseVector SparseVector `json:"sparse_vector"`
}

// PassageID derives the deterministic passage id.
func PassageID(videoID string, position int) string {
	return fmt.Sprintf("%s-%d", videoID, position)
}

// SparseVector is a term-id -> weight vector in parallel-slice form.
// Indices are ascending and unique.
type SparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

// IsEmpty reports whether the vector has no non-zero terms.
func (v SparseVector) IsEmpty() bool {
	return len(v.Indices) == 0
}

// Dot computes the inner product of two sparse vectors.
// Both vectors must have ascending indices.
func (v SparseVector) Dot(other SparseVector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(v.Indices) && j < len(other.Indices) {
		switch {
		case v.Indices[i] == other.Indices[j]:
			sum += float64(v.Values[i]) * float64(other.Values[j])
			i++
			j++
		case v.Indices[i] < other.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// DenseDot computes the inner product of two dense vectors of equal length.
func DenseDot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Metric is the similarity metric of a vector index.
type Metric string

const (
	// MetricDotProduct is the only metric that lets dense and sparse
	// scores be summed into one ranking.
	MetricDotProduct Metric = "dotproduct"
)

// HybridQuery is a single combined dense + sparse search inside one namespace.
type HybridQuery struct {
	Namespace       string
	Dense           []float32
	Sparse          SparseVector
	TopK            int
	IncludeMetadata bool
}

// Match is one hybrid search hit. Text is empty unless metadata was requested.
type Match struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	Text  string  `json:"text,omitempty"`
}

// IndexStats describes the contents of one namespace.
type IndexStats struct {
	Namespace    string `json:"namespace"`
	PassageCount int    `json:"passage_count"`
	Dimension    int    `json:"dimension"`
}

// SparseStats is the fitted state of the lexical encoder for one namespace.
// It is immutable once built; a re-fit produces a new value.
type SparseStats struct {
	Namespace string         `json:"namespace"`
	DocCount  int            `json:"doc_count"`
	AvgDocLen float64        `json:"avg_doc_len"`
	DocFreq   map[uint32]int `json:"doc_freq"`
	K1        float64        `json:"k1"`
	B         float64        `json:"b"`
	FittedAt  time.Time      `json:"fitted_at"`
}

// Version identifies one fit of the namespace. A re-fit gets a new version.
func (s *SparseStats) Version() int64 {
	if s.FittedAt.IsZero() {
		return 0
	}
	return s.FittedAt.UnixNano()
}

// FuseScores weights the dense inner product by alpha and the sparse one
// by 1-alpha.
func FuseScores(alpha, dense, sparse float64) float64 {
	return alpha*dense + (1-alpha)*sparse
}
