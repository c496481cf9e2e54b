package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
)

func passage(ns string, pos int, text string, dense []float32, sparse domain.SparseVector) *domain.Passage {
	return &domain.Passage{
		ID:           domain.PassageID(ns, pos),
		VideoID:      ns,
		Position:     pos,
		Text:         text,
		DenseVector:  dense,
		SparseVector: sparse,
	}
}

func TestVectorIndex_HybridRanking(t *testing.T) {
	ctx := context.Background()
	idx := NewVectorIndex(0)
	require.NoError(t, idx.EnsureIndex(ctx, "test", 2, domain.MetricDotProduct))

	require.NoError(t, idx.Upsert(ctx, "vid1", []*domain.Passage{
		passage("vid1", 0, "dense winner", []float32{1, 0}, domain.SparseVector{}),
		passage("vid1", 1, "sparse winner", []float32{0, 1},
			domain.SparseVector{Indices: []uint32{5}, Values: []float32{3}}),
		passage("vid1", 2, "neither", []float32{0, 0}, domain.SparseVector{}),
	}))

	matches, err := idx.Query(ctx, domain.HybridQuery{
		Namespace:       "vid1",
		Dense:           []float32{1, 0},
		Sparse:          domain.SparseVector{Indices: []uint32{5}, Values: []float32{1}},
		TopK:            2,
		IncludeMetadata: true,
	})
	require.NoError(t, err)
	require.Len(t, matches, 2)

	// 0.5*0 + 0.5*3 = 1.5 beats 0.5*1 + 0 = 0.5
	assert.Equal(t, "sparse winner", matches[0].Text)
	assert.InDelta(t, 1.5, matches[0].Score, 1e-9)
	assert.Equal(t, "dense winner", matches[1].Text)
	assert.InDelta(t, 0.5, matches[1].Score, 1e-9)
}

func TestVectorIndex_NamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	idx := NewVectorIndex(0.5)
	require.NoError(t, idx.Upsert(ctx, "a", []*domain.Passage{passage("a", 0, "in a", []float32{1}, domain.SparseVector{})}))
	require.NoError(t, idx.Upsert(ctx, "b", []*domain.Passage{passage("b", 0, "in b", []float32{1}, domain.SparseVector{})}))

	matches, err := idx.Query(ctx, domain.HybridQuery{Namespace: "a", Dense: []float32{1}, TopK: 10})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a-0", matches[0].ID)
	assert.Empty(t, matches[0].Text)

	empty, err := idx.Query(ctx, domain.HybridQuery{Namespace: "missing", Dense: []float32{1}})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestVectorIndex_UpsertOverwritesAndDelete(t *testing.T) {
	ctx := context.Background()
	idx := NewVectorIndex(0.5)
	require.NoError(t, idx.Upsert(ctx, "v", []*domain.Passage{passage("v", 0, "old", []float32{1}, domain.SparseVector{})}))
	require.NoError(t, idx.Upsert(ctx, "v", []*domain.Passage{passage("v", 0, "new", []float32{1}, domain.SparseVector{})}))

	stats, err := idx.Stats(ctx, "v")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PassageCount)

	matches, _ := idx.Query(ctx, domain.HybridQuery{Namespace: "v", Dense: []float32{1}, IncludeMetadata: true})
	assert.Equal(t, "new", matches[0].Text)

	require.NoError(t, idx.DeleteNamespace(ctx, "v"))
	stats, _ = idx.Stats(ctx, "v")
	assert.Equal(t, 0, stats.PassageCount)
}

func TestVectorIndex_DimensionChecks(t *testing.T) {
	ctx := context.Background()
	idx := NewVectorIndex(0.5)
	require.NoError(t, idx.EnsureIndex(ctx, "i", 3, domain.MetricDotProduct))
	require.NoError(t, idx.EnsureIndex(ctx, "i", 3, domain.MetricDotProduct))

	err := idx.EnsureIndex(ctx, "i", 4, domain.MetricDotProduct)
	assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))

	err = idx.Upsert(ctx, "v", []*domain.Passage{passage("v", 0, "x", []float32{1, 2}, domain.SparseVector{})})
	assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))

	err = idx.EnsureIndex(ctx, "i", 3, domain.Metric("cosine"))
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestIngestionStore(t *testing.T) {
	ctx := context.Background()
	s := NewIngestionStore()

	_, err := s.Get(ctx, "v")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	rec := domain.NewIngestionRecord("v", "run-1")
	require.NoError(t, s.Save(ctx, rec))
	rec.Complete(4)

	got, err := s.Get(ctx, "v")
	require.NoError(t, err)
	assert.Equal(t, domain.IngestionStateFetching, got.State, "store must hold a copy")

	require.NoError(t, s.Delete(ctx, "v"))
	_, err = s.Get(ctx, "v")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSparseModelStore(t *testing.T) {
	ctx := context.Background()
	s := NewSparseModelStore()

	got, err := s.Load(ctx, "v")
	require.NoError(t, err)
	assert.Nil(t, got)

	stats := &domain.SparseStats{Namespace: "v", DocCount: 2, DocFreq: map[uint32]int{1: 2}}
	require.NoError(t, s.Save(ctx, stats))
	got, err = s.Load(ctx, "v")
	require.NoError(t, err)
	assert.Equal(t, stats, got)

	require.NoError(t, s.Delete(ctx, "v"))
	got, _ = s.Load(ctx, "v")
	assert.Nil(t, got)
}

func TestLock(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLock()
	l.clock = func() time.Time { return now }

	token, ok, err := l.Acquire(ctx, "ingest:v", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, token)

	_, ok, _ = l.Acquire(ctx, "ingest:v", time.Minute)
	assert.False(t, ok, "held lock must not be acquired twice")

	_, ok, _ = l.Acquire(ctx, "ingest:other", time.Minute)
	assert.True(t, ok)

	require.NoError(t, l.Extend(ctx, "ingest:v", token, 2*time.Minute))
	assert.Error(t, l.Extend(ctx, "ingest:v", "other", time.Minute))
	now = now.Add(90 * time.Second)
	_, ok, _ = l.Acquire(ctx, "ingest:v", time.Minute)
	assert.False(t, ok, "extended lock still held")

	now = now.Add(time.Minute)
	successor, ok, _ := l.Acquire(ctx, "ingest:v", time.Minute)
	assert.True(t, ok, "expired lock can be taken")

	require.NoError(t, l.Release(ctx, "ingest:v", token))
	_, ok, _ = l.Acquire(ctx, "ingest:v", time.Minute)
	assert.False(t, ok, "an expired holder must not free its successor")

	require.NoError(t, l.Release(ctx, "ingest:v", successor))
	assert.Error(t, l.Extend(ctx, "ingest:v", successor, time.Minute))
	_, ok, _ = l.Acquire(ctx, "ingest:v", time.Minute)
	assert.True(t, ok)
	assert.NoError(t, l.Ping(ctx))
}

func TestVectorIndex_Replace(t *testing.T) {
	ctx := context.Background()
	idx := NewVectorIndex(0.5)
	require.NoError(t, idx.EnsureIndex(ctx, "i", 1, domain.MetricDotProduct))
	require.NoError(t, idx.Replace(ctx, "v", []*domain.Passage{
		passage("v", 0, "a", []float32{1}, domain.SparseVector{}),
		passage("v", 1, "b", []float32{1}, domain.SparseVector{}),
		passage("v", 2, "c", []float32{1}, domain.SparseVector{}),
	}))

	err := idx.Replace(ctx, "v", []*domain.Passage{passage("v", 0, "bad", []float32{1, 2}, domain.SparseVector{})})
	assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))
	stats, _ := idx.Stats(ctx, "v")
	assert.Equal(t, 3, stats.PassageCount)

	require.NoError(t, idx.Replace(ctx, "v", []*domain.Passage{passage("v", 0, "new", []float32{1}, domain.SparseVector{})}))
	matches, err := idx.Query(ctx, domain.HybridQuery{Namespace: "v", Dense: []float32{1}, IncludeMetadata: true})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "new", matches[0].Text)
}
