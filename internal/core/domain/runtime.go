package domain

import "sync"

// RuntimeConfig tracks which backends were wired at startup and which
// optional capabilities are currently reachable.
// Thread-safe for concurrent access.
type RuntimeConfig struct {
	mu sync.RWMutex

	// Static (set at startup, read-only)
	VectorBackend string // "pgvector", "vespa" or "memory"
	LockBackend   string // "redis", "postgres" or "memory"

	// Dynamic capability flags
	rerankerAvailable    bool
	snapshotsPersisted   bool
	asyncIngestAvailable bool
}

// NewRuntimeConfig creates a new RuntimeConfig with initial values
func NewRuntimeConfig(vectorBackend, lockBackend string) *RuntimeConfig {
	return &RuntimeConfig{
		VectorBackend: vectorBackend,
		LockBackend:   lockBackend,
	}
}

// RerankerAvailable returns whether a cross-encoder reranker is wired
func (c *RuntimeConfig) RerankerAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rerankerAvailable
}

// SnapshotsPersisted returns whether sparse snapshots survive a restart
func (c *RuntimeConfig) SnapshotsPersisted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotsPersisted
}

// AsyncIngestAvailable returns whether a task queue accepts ingestion jobs
func (c *RuntimeConfig) AsyncIngestAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.asyncIngestAvailable
}

// SetRerankerAvailable updates the reranker flag
func (c *RuntimeConfig) SetRerankerAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rerankerAvailable = available
}

// SetSnapshotsPersisted updates the snapshot persistence flag
func (c *RuntimeConfig) SetSnapshotsPersisted(persisted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshotsPersisted = persisted
}

// SetAsyncIngestAvailable updates the task queue flag
func (c *RuntimeConfig) SetAsyncIngestAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.asyncIngestAvailable = available
}

// Capabilities is the JSON view of RuntimeConfig for the health endpoint.
type Capabilities struct {
	VectorBackend      string `json:"vector_backend"`
	LockBackend        string `json:"lock_backend"`
	Reranker           bool   `json:"reranker"`
	SnapshotsPersisted bool   `json:"snapshots_persisted"`
	AsyncIngest        bool   `json:"async_ingest"`
}

// Snapshot returns the current capabilities.
func (c *RuntimeConfig) Snapshot() Capabilities {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Capabilities{
		VectorBackend:      c.VectorBackend,
		LockBackend:        c.LockBackend,
		Reranker:           c.rerankerAvailable,
		SnapshotsPersisted: c.snapshotsPersisted,
		AsyncIngest:        c.asyncIngestAvailable,
	}
}
