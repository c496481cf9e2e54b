package runtime

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/sercha-tube/internal/sparse"
)

func TestSparseModels_GetMissing(t *testing.T) {
	models, err := NewSparseModels(SparseModelsConfig{})
	require.NoError(t, err)

	m, err := models.Get(context.Background(), "vid")
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.False(t, models.Persistent())
}

func TestSparseModels_InstallAndGet(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMockSparseModelStore()
	models, err := NewSparseModels(SparseModelsConfig{Store: store})
	require.NoError(t, err)

	model := models.Encoder().Fit("vid", []string{"rocket fuel", "heat shield"})
	require.NoError(t, models.Install(ctx, model))
	assert.Equal(t, 1, store.SaveCalls)

	got, err := models.Get(ctx, "vid")
	require.NoError(t, err)
	assert.Same(t, model, got)
	assert.Equal(t, 0, store.LoadCalls, "a current cache hit must not reload the stats")
	assert.Equal(t, 1, store.VersionCalls)
}

func TestSparseModels_InstallReplacesSnapshot(t *testing.T) {
	ctx := context.Background()
	models, err := NewSparseModels(SparseModelsConfig{})
	require.NoError(t, err)

	first := models.Encoder().Fit("vid", []string{"rocket"})
	second := models.Encoder().Fit("vid", []string{"rocket", "capsule"})
	require.NoError(t, models.Install(ctx, first))

	held, _ := models.Get(ctx, "vid")
	require.NoError(t, models.Install(ctx, second))

	now, _ := models.Get(ctx, "vid")
	assert.Same(t, second, now)
	// A reader holding the old snapshot still sees consistent stats
	assert.Equal(t, 1, held.Stats().DocCount)
}

func TestSparseModels_InstallFailureKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMockSparseModelStore()
	models, err := NewSparseModels(SparseModelsConfig{Store: store})
	require.NoError(t, err)

	first := models.Encoder().Fit("vid", []string{"rocket"})
	require.NoError(t, models.Install(ctx, first))

	store.SaveErr = errors.New("redis down")
	err = models.Install(ctx, models.Encoder().Fit("vid", []string{"capsule"}))
	require.Error(t, err)

	got, _ := models.Get(ctx, "vid")
	assert.Same(t, first, got)
}

func TestSparseModels_LoadsFromStore(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMockSparseModelStore()
	enc := sparse.NewEncoder()
	require.NoError(t, store.Save(ctx, enc.Fit("vid", []string{"rocket fuel"}).Stats()))

	models, err := NewSparseModels(SparseModelsConfig{Encoder: enc, Store: store})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := models.Get(ctx, "vid")
			assert.NoError(t, err)
			assert.NotNil(t, m)
		}()
	}
	wg.Wait()

	got, err := models.Get(ctx, "vid")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stats().DocCount)
	assert.LessOrEqual(t, store.LoadCalls, 10)
}

func TestSparseModels_Remove(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMockSparseModelStore()
	models, err := NewSparseModels(SparseModelsConfig{Store: store})
	require.NoError(t, err)

	require.NoError(t, models.Install(ctx, models.Encoder().Fit("vid", []string{"rocket"})))
	require.NoError(t, models.Remove(ctx, "vid"))

	got, err := models.Get(ctx, "vid")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSparseModels_SeesFitFromAnotherRegistry(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMockSparseModelStore()
	worker, err := NewSparseModels(SparseModelsConfig{Store: store})
	require.NoError(t, err)
	api, err := NewSparseModels(SparseModelsConfig{Store: store})
	require.NoError(t, err)

	require.NoError(t, worker.Install(ctx, worker.Encoder().Fit("vid", []string{"rocket", "capsule"})))
	got, err := api.Get(ctx, "vid")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stats().DocCount)

	refit := worker.Encoder().Fit("vid", []string{"rocket", "capsule", "booster", "fairing"})
	require.NoError(t, worker.Install(ctx, refit))

	got, err = api.Get(ctx, "vid")
	require.NoError(t, err)
	assert.Equal(t, 4, got.Stats().DocCount)
	assert.Equal(t, refit.Version(), got.Version())
}

func TestSparseModels_SeesRemoveFromAnotherRegistry(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMockSparseModelStore()
	worker, err := NewSparseModels(SparseModelsConfig{Store: store})
	require.NoError(t, err)
	api, err := NewSparseModels(SparseModelsConfig{Store: store})
	require.NoError(t, err)

	require.NoError(t, worker.Install(ctx, worker.Encoder().Fit("vid", []string{"rocket"})))
	got, _ := api.Get(ctx, "vid")
	require.NotNil(t, got)

	require.NoError(t, worker.Remove(ctx, "vid"))
	got, err = api.Get(ctx, "vid")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSparseModels_VersionErrorKeepsCachedSnapshot(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMockSparseModelStore()
	models, err := NewSparseModels(SparseModelsConfig{Store: store})
	require.NoError(t, err)

	model := models.Encoder().Fit("vid", []string{"rocket"})
	require.NoError(t, models.Install(ctx, model))

	store.VersionErr = errors.New("redis down")
	got, err := models.Get(ctx, "vid")
	require.NoError(t, err)
	assert.Same(t, model, got)
}
