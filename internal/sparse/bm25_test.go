package sparse

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
)

var corpus = []string{
	"the rocket engine burns liquid fuel",
	"the capsule returns to earth with a heat shield",
	"liquid oxygen feeds the rocket engine",
}

func weightOf(v domain.SparseVector, term string) (float32, bool) {
	id := TermID(term)
	for i, idx := range v.Indices {
		if idx == id {
			return v.Values[i], true
		}
	}
	return 0, false
}

func TestEncoder_Fit(t *testing.T) {
	m := NewEncoder().Fit("vid", corpus)

	stats := m.Stats()
	assert.Equal(t, "vid", stats.Namespace)
	assert.Equal(t, 3, stats.DocCount)
	assert.Equal(t, 2, stats.DocFreq[TermID("rocket")])
	assert.Equal(t, 1, stats.DocFreq[TermID("capsule")])
	// 5 + 5 + 5 terms after stopword removal
	assert.InDelta(t, 5.0, stats.AvgDocLen, 1e-9)
	assert.Equal(t, DefaultK1, stats.K1)
	assert.Equal(t, DefaultB, stats.B)
}

func TestModel_EncodeDocuments(t *testing.T) {
	m := NewEncoder().Fit("vid", corpus)
	vecs := m.EncodeDocuments(corpus)
	require.Len(t, vecs, 3)

	// Each term appears once in a doc of average length:
	// tf*(k1+1)/(tf+k1) = 2.2/2.2 = 1
	w, ok := weightOf(vecs[0], "rocket")
	require.True(t, ok)
	assert.InDelta(t, 1.0, w, 1e-6)

	for _, v := range vecs {
		for i := 1; i < len(v.Indices); i++ {
			assert.Less(t, v.Indices[i-1], v.Indices[i], "indices must ascend")
		}
	}
}

func TestModel_EncodeDocuments_RepeatedTerm(t *testing.T) {
	m := NewEncoder().Fit("vid", []string{"fuel fuel engine", "engine"})
	v := m.EncodeDocuments([]string{"fuel fuel engine"})[0]

	// avgdl = (3+1)/2 = 2, len = 3
	norm := 1.2 * (1 - 0.75 + 0.75*3.0/2.0)
	want := 2 * 2.2 / (2 + norm)
	w, ok := weightOf(v, "fuel")
	require.True(t, ok)
	assert.InDelta(t, want, w, 1e-6)
}

func TestModel_EncodeQuery(t *testing.T) {
	m := NewEncoder().Fit("vid", corpus)
	q := m.EncodeQuery("Which rocket engine uses a heat shield?")

	var sum float64
	for _, v := range q.Values {
		sum += float64(v)
	}
	assert.InDelta(t, 1.0, sum, 1e-6, "query weights normalize to 1")

	rocket, _ := weightOf(q, "rocket")
	shield, _ := weightOf(q, "shield")
	assert.Greater(t, shield, rocket, "rarer term weighs more")

	// idf(shield) = log(4/1.5), idf(rocket) = log(4/2.5)
	ratio := math.Log(4/1.5) / math.Log(4/2.5)
	assert.InDelta(t, ratio, float64(shield/rocket), 1e-4)
}

func TestModel_EncodeQuery_UnknownTerm(t *testing.T) {
	m := NewEncoder().Fit("vid", corpus)
	q := m.EncodeQuery("telescope")
	require.Len(t, q.Values, 1)
	assert.InDelta(t, 1.0, q.Values[0], 1e-6)
}

func TestModel_EncodeQuery_Empty(t *testing.T) {
	m := NewEncoder().Fit("vid", corpus)
	assert.True(t, m.EncodeQuery("the of and").IsEmpty())
	assert.Len(t, m.EncodeQueries([]string{"rocket", ""}), 2)
}

func TestModel_QueryMatchesRelevantDocument(t *testing.T) {
	m := NewEncoder().Fit("vid", corpus)
	docs := m.EncodeDocuments(corpus)
	q := m.EncodeQuery("heat shield")

	assert.Greater(t, q.Dot(docs[1]), q.Dot(docs[0]))
	assert.Zero(t, q.Dot(docs[2]))
}

func TestModel_PanicsBeforeFit(t *testing.T) {
	var m *Model
	assert.Panics(t, func() { m.EncodeDocuments([]string{"x"}) })
	assert.Panics(t, func() { m.EncodeQuery("x") })
}

func TestEncoder_FitIsolatesSnapshots(t *testing.T) {
	enc := NewEncoder()
	first := enc.Fit("a", corpus)
	second := enc.Fit("b", []string{"telescope mirror"})

	assert.Equal(t, 3, first.Stats().DocCount)
	assert.Equal(t, 1, second.Stats().DocCount)
	assert.Equal(t, "a", first.Namespace())
}

func TestEncoder_FromStats(t *testing.T) {
	enc := NewEncoder()
	m := enc.Fit("vid", corpus)
	restored := enc.FromStats(m.Stats())

	assert.Equal(t, m.EncodeQuery("rocket fuel"), restored.EncodeQuery("rocket fuel"))
	assert.Equal(t, m.EncodeDocuments(corpus), restored.EncodeDocuments(corpus))
}

func TestModel_ConcurrentEncode(t *testing.T) {
	m := NewEncoder().Fit("vid", corpus)
	want := m.EncodeQuery("rocket engine")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, want, m.EncodeQuery("rocket engine"))
		}()
	}
	wg.Wait()
}
