package runtime

import (
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-tube/internal/sparse"
)

// DefaultSparseCacheSize is how many namespace snapshots stay in memory.
const DefaultSparseCacheSize = 1024

// SparseModels holds the committed BM25 snapshot of each namespace.
// A snapshot is replaced as a whole by Install; readers get whichever
// snapshot was committed when they asked and never see a partial fit.
type SparseModels struct {
	encoder *sparse.Encoder
	cache   *lru.Cache[string, *sparse.Model]
	store   driven.SparseModelStore
	group   singleflight.Group
	logger  *slog.Logger
}

// SparseModelsConfig configures the registry
type SparseModelsConfig struct {
	Encoder   *sparse.Encoder
	Store     driven.SparseModelStore // optional; snapshots are memory-only without it
	CacheSize int
	Logger    *slog.Logger
}

// NewSparseModels creates a snapshot registry
func NewSparseModels(cfg SparseModelsConfig) (*SparseModels, error) {
	if cfg.Encoder == nil {
		cfg.Encoder = sparse.NewEncoder()
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultSparseCacheSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	cache, err := lru.New[string, *sparse.Model](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create sparse cache: %w", err)
	}

	return &SparseModels{
		encoder: cfg.Encoder,
		cache:   cache,
		store:   cfg.Store,
		logger:  cfg.Logger,
	}, nil
}

// Encoder returns the encoder used to fit new snapshots
func (m *SparseModels) Encoder() *sparse.Encoder {
	return m.encoder
}

// Get returns the committed snapshot for namespace, or nil if there is none.
// With a store, a cached snapshot is only used while its version matches the
// stored one, so a fit committed or deleted by another process is picked up
// on the next call. Cache misses are loaded from the store once, however
// many callers wait.
func (m *SparseModels) Get(ctx context.Context, namespace string) (*sparse.Model, error) {
	if model, ok := m.cache.Get(namespace); ok {
		if m.store == nil || m.current(ctx, model) {
			return model, nil
		}
		m.cache.Remove(namespace)
		m.logger.Debug("sparse snapshot superseded", "namespace", namespace)
	}
	if m.store == nil {
		return nil, nil
	}

	v, err, _ := m.group.Do(namespace, func() (interface{}, error) {
		stats, err := m.store.Load(ctx, namespace)
		if err != nil {
			return nil, err
		}
		if stats == nil {
			return (*sparse.Model)(nil), nil
		}
		model := m.encoder.FromStats(stats)
		// Install may have committed a newer snapshot while we loaded
		if cached, ok := m.cache.Peek(namespace); ok && cached.Version() >= model.Version() {
			return cached, nil
		}
		m.cache.Add(namespace, model)
		return model, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load sparse snapshot: %w", err)
	}
	return v.(*sparse.Model), nil
}

// current reports whether model is still the stored version. A failed
// check keeps the cached snapshot.
func (m *SparseModels) current(ctx context.Context, model *sparse.Model) bool {
	version, ok, err := m.store.Version(ctx, model.Namespace())
	if err != nil {
		m.logger.Warn("sparse snapshot version check failed, using cached snapshot",
			"namespace", model.Namespace(), "error", err)
		return true
	}
	return ok && version == model.Version()
}

// Install commits model as the namespace's snapshot, persisting it first
// when a store is configured.
func (m *SparseModels) Install(ctx context.Context, model *sparse.Model) error {
	namespace := model.Namespace()
	if m.store != nil {
		if err := m.store.Save(ctx, model.Stats()); err != nil {
			return fmt.Errorf("save sparse snapshot: %w", err)
		}
	}
	m.cache.Add(namespace, model)
	m.logger.Debug("sparse snapshot installed", "namespace", namespace)
	return nil
}

// Remove drops the namespace's snapshot from memory and the store.
func (m *SparseModels) Remove(ctx context.Context, namespace string) error {
	m.cache.Remove(namespace)
	if m.store != nil {
		if err := m.store.Delete(ctx, namespace); err != nil {
			return fmt.Errorf("delete sparse snapshot: %w", err)
		}
	}
	return nil
}

// Persistent reports whether snapshots survive a restart
func (m *SparseModels) Persistent() bool {
	return m.store != nil
}
