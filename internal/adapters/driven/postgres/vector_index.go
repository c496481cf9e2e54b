package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-tube/internal/sparse"
)

// Verify interface compliance
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex implements driven.VectorIndex on pgvector. Each index is one
// table with a dense vector(dim) column and a sparsevec column; a
// namespace is a filter on the namespace column.
//
// Namespaces are small (one video), so queries scan the namespace exactly
// through the btree on namespace instead of an approximate vector index.
type VectorIndex struct {
	db     *DB
	alpha  float64
	logger *slog.Logger

	mu        sync.RWMutex
	table     string
	dimension int
}

// VectorIndexConfig configures the pgvector index
type VectorIndexConfig struct {
	// Alpha weights dense against sparse scores (0..1)
	Alpha  float64
	Logger *slog.Logger
}

// NewVectorIndex creates a pgvector-backed index
func NewVectorIndex(db *DB, cfg VectorIndexConfig) *VectorIndex {
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		cfg.Alpha = domain.DefaultHybridAlpha
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &VectorIndex{db: db, alpha: cfg.Alpha, logger: cfg.Logger}
}

// EnsureIndex creates the passage table on first use and checks an
// existing one was created for the same dimension and metric.
func (v *VectorIndex) EnsureIndex(ctx context.Context, name string, dimension int, metric domain.Metric) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", domain.ErrInvalidInput)
	}
	if metric != domain.MetricDotProduct {
		return fmt.Errorf("%w: unsupported metric %q", domain.ErrInvalidInput, metric)
	}
	table := tableName(name)

	err := v.db.Transaction(ctx, func(tx *sql.Tx) error {
		var existingDim int
		var existingMetric string
		err := tx.QueryRowContext(ctx,
			`SELECT dimension, metric FROM vector_indexes WHERE name = $1`, name,
		).Scan(&existingDim, &existingMetric)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			v.logger.Info("creating vector index", "name", name, "table", table, "dimension", dimension)
		case err != nil:
			return fmt.Errorf("read index metadata: %w", err)
		case existingDim != dimension || existingMetric != string(metric):
			return fmt.Errorf("%w: index %s is %d/%s, want %d/%s",
				domain.ErrDimensionMismatch, name, existingDim, existingMetric, dimension, metric)
		default:
			return nil
		}

		ident := pq.QuoteIdentifier(table)
		stmts := []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				id         TEXT PRIMARY KEY,
				namespace  TEXT NOT NULL,
				position   INTEGER NOT NULL,
				text       TEXT NOT NULL,
				dense      vector(%d) NOT NULL,
				sparse     sparsevec(%d) NOT NULL
			)`, ident, dimension, sparse.Dimension),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s(namespace)`,
				pq.QuoteIdentifier("idx_"+table+"_namespace"), ident),
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("create passage table: %w", err)
			}
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO vector_indexes (name, table_name, dimension, metric) VALUES ($1, $2, $3, $4)`,
			name, table, dimension, string(metric))
		return err
	})
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.table = table
	v.dimension = dimension
	v.mu.Unlock()
	return nil
}

func (v *VectorIndex) current() (string, int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.table == "" {
		return "", 0, errors.New("vector index not initialized: call EnsureIndex first")
	}
	return v.table, v.dimension, nil
}

// Upsert writes passages in one transaction
func (v *VectorIndex) Upsert(ctx context.Context, namespace string, passages []*domain.Passage) error {
	table, dimension, err := v.current()
	if err != nil {
		return err
	}
	if len(passages) == 0 {
		return nil
	}
	return v.db.Transaction(ctx, func(tx *sql.Tx) error {
		return upsertPassages(ctx, tx, table, dimension, namespace, passages)
	})
}

// Replace upserts passages and deletes the namespace's other rows in the
// same transaction. Readers keep seeing the old rows until it commits.
func (v *VectorIndex) Replace(ctx context.Context, namespace string, passages []*domain.Passage) error {
	table, dimension, err := v.current()
	if err != nil {
		return err
	}

	ids := make([]string, len(passages))
	for i, p := range passages {
		ids[i] = p.ID
	}
	prune := fmt.Sprintf(`DELETE FROM %s WHERE namespace = $1 AND NOT (id = ANY($2))`, pq.QuoteIdentifier(table))

	return v.db.Transaction(ctx, func(tx *sql.Tx) error {
		if err := upsertPassages(ctx, tx, table, dimension, namespace, passages); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, prune, namespace, pq.Array(ids))
		if err != nil {
			return fmt.Errorf("prune namespace: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			v.logger.Debug("stale passages removed", "namespace", namespace, "passages", n)
		}
		return nil
	})
}

func upsertPassages(ctx context.Context, tx *sql.Tx, table string, dimension int, namespace string, passages []*domain.Passage) error {
	if len(passages) == 0 {
		return nil
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, namespace, position, text, dense, sparse)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			namespace = EXCLUDED.namespace,
			position = EXCLUDED.position,
			text = EXCLUDED.text,
			dense = EXCLUDED.dense,
			sparse = EXCLUDED.sparse
	`, pq.QuoteIdentifier(table))

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range passages {
		if len(p.DenseVector) != dimension {
			return fmt.Errorf("%w: passage %s has %d, index has %d",
				domain.ErrDimensionMismatch, p.ID, len(p.DenseVector), dimension)
		}
		if _, err := stmt.ExecContext(ctx,
			p.ID, namespace, p.Position, p.Text,
			pgvector.NewVector(p.DenseVector),
			sparseValue(p.SparseVector),
		); err != nil {
			return fmt.Errorf("upsert passage %s: %w", p.ID, err)
		}
	}
	return nil
}

// Query ranks the namespace by alpha*dense + (1-alpha)*sparse inner
// product. <#> is pgvector's negative inner product.
func (v *VectorIndex) Query(ctx context.Context, q domain.HybridQuery) ([]domain.Match, error) {
	table, dimension, err := v.current()
	if err != nil {
		return nil, err
	}
	if len(q.Dense) != dimension {
		return nil, fmt.Errorf("%w: query has %d, index has %d", domain.ErrDimensionMismatch, len(q.Dense), dimension)
	}
	topK := q.TopK
	if topK <= 0 {
		topK = domain.DefaultTopK
	}

	query := fmt.Sprintf(`
		SELECT id, text,
			$2::float8 * -(dense <#> $3) + (1 - $2::float8) * -(sparse <#> $4) AS score
		FROM %s
		WHERE namespace = $1
		ORDER BY score DESC, id
		LIMIT $5
	`, pq.QuoteIdentifier(table))

	rows, err := v.db.QueryContext(ctx, query,
		q.Namespace, v.alpha, pgvector.NewVector(q.Dense), sparseValue(q.Sparse), topK)
	if err != nil {
		return nil, fmt.Errorf("hybrid query: %w", err)
	}
	defer rows.Close()

	matches := make([]domain.Match, 0, topK)
	for rows.Next() {
		var m domain.Match
		var text string
		if err := rows.Scan(&m.ID, &text, &m.Score); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		if q.IncludeMetadata {
			m.Text = text
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// DeleteNamespace removes every passage of the namespace
func (v *VectorIndex) DeleteNamespace(ctx context.Context, namespace string) error {
	table, _, err := v.current()
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE namespace = $1`, pq.QuoteIdentifier(table))
	res, err := v.db.ExecContext(ctx, query, namespace)
	if err != nil {
		return fmt.Errorf("delete namespace: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		v.logger.Debug("namespace cleared", "namespace", namespace, "passages", n)
	}
	return nil
}

// Stats counts the namespace's passages
func (v *VectorIndex) Stats(ctx context.Context, namespace string) (*domain.IndexStats, error) {
	table, dimension, err := v.current()
	if err != nil {
		return nil, err
	}
	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE namespace = $1`, pq.QuoteIdentifier(table))
	if err := v.db.QueryRowContext(ctx, query, namespace).Scan(&count); err != nil {
		return nil, fmt.Errorf("count passages: %w", err)
	}
	return &domain.IndexStats{
		Namespace:    namespace,
		PassageCount: count,
		Dimension:    dimension,
	}, nil
}

// HealthCheck verifies the database is reachable
func (v *VectorIndex) HealthCheck(ctx context.Context) error {
	return v.db.PingContext(ctx)
}

// tableName maps an index name to a safe table name: lowercase
// alphanumerics and underscores, prefixed with passages_.
func tableName(index string) string {
	var b strings.Builder
	b.WriteString("passages_")
	for _, r := range strings.ToLower(index) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// sparseValue converts a domain sparse vector to a pgvector sparsevec
func sparseValue(v domain.SparseVector) pgvector.SparseVector {
	elements := make(map[int32]float32, len(v.Indices))
	for i, idx := range v.Indices {
		elements[int32(idx)] = v.Values[i]
	}
	return pgvector.NewSparseVectorFromMap(elements, sparse.Dimension)
}
