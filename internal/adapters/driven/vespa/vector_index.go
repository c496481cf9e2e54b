package vespa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorIndex = (*VectorIndex)(nil)

const (
	documentType   = "passage"
	contentCluster = "sercha_tube"

	// feedConcurrency bounds parallel document puts
	feedConcurrency = 8
)

// VectorIndex implements driven.VectorIndex using Vespa. A namespace is
// both the document id namespace and the video_id filter field.
type VectorIndex struct {
	baseURL    string
	alpha      float64
	deployer   driven.VespaDeployer
	httpClient *http.Client
	logger     *slog.Logger
}

// Config holds Vespa connection configuration
type Config struct {
	// BaseURL is the query/feed endpoint (e.g., http://localhost:8080)
	BaseURL string

	// Alpha weights dense against sparse scores; sent with every query
	Alpha float64

	// Timeout for HTTP requests
	Timeout time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		Alpha:   domain.DefaultHybridAlpha,
		Timeout: 30 * time.Second,
	}
}

// NewVectorIndex creates a Vespa-backed index. deployer may be nil when
// the schema is managed outside this process.
func NewVectorIndex(cfg Config, deployer driven.VespaDeployer) *VectorIndex {
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		cfg.Alpha = domain.DefaultHybridAlpha
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &VectorIndex{
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		alpha:    cfg.Alpha,
		deployer: deployer,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: cfg.Logger,
	}
}

// EnsureIndex deploys the passage schema when it is missing and fails
// with ErrDimensionMismatch when it was deployed for another dimension.
func (s *VectorIndex) EnsureIndex(ctx context.Context, name string, dimension int, metric domain.Metric) error {
	if metric != domain.MetricDotProduct {
		return fmt.Errorf("%w: unsupported metric %q", domain.ErrInvalidInput, metric)
	}
	if s.deployer == nil {
		return nil
	}

	info, err := s.deployer.GetSchemaInfo(ctx)
	if err != nil {
		return fmt.Errorf("read vespa schema: %w", err)
	}
	if info.Deployed {
		if info.EmbeddingDim != dimension {
			return fmt.Errorf("%w: vespa schema has %d, want %d", domain.ErrDimensionMismatch, info.EmbeddingDim, dimension)
		}
		return nil
	}

	result, err := s.deployer.Deploy(ctx, dimension)
	if err != nil {
		return fmt.Errorf("deploy vespa schema: %w", err)
	}
	s.logger.Info("vespa schema deployed", "index", name, "version", result.SchemaVersion)
	return nil
}

// vespaDocument represents a passage in Vespa feed format
type vespaDocument struct {
	Fields vespaFields `json:"fields"`
}

type vespaFields struct {
	ID       string             `json:"id"`
	VideoID  string             `json:"video_id"`
	Position int                `json:"position"`
	Text     string             `json:"text"`
	Dense    *denseTensor       `json:"dense,omitempty"`
	Sparse   map[string]float32 `json:"sparse,omitempty"`
}

type denseTensor struct {
	Values []float32 `json:"values"`
}

// Upsert feeds passages with a bounded number of concurrent puts
func (s *VectorIndex) Upsert(ctx context.Context, namespace string, passages []*domain.Passage) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(feedConcurrency)
	for _, p := range passages {
		p := p
		g.Go(func() error {
			if err := s.put(ctx, namespace, p); err != nil {
				return fmt.Errorf("failed to index passage %s: %w", p.ID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *VectorIndex) put(ctx context.Context, namespace string, p *domain.Passage) error {
	doc := vespaDocument{
		Fields: vespaFields{
			ID:       p.ID,
			VideoID:  namespace,
			Position: p.Position,
			Text:     p.Text,
			Dense:    &denseTensor{Values: p.DenseVector},
			Sparse:   mappedCells(p.SparseVector),
		},
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	// Vespa document API: POST /document/v1/{namespace}/{doctype}/docid/{docid}
	docURL := fmt.Sprintf("%s/document/v1/%s/%s/docid/%s",
		s.baseURL, url.PathEscape(namespace), documentType, url.PathEscape(p.ID))
	return s.do(ctx, http.MethodPost, docURL, body, nil)
}

// Query ranks every passage of the namespace with the hybrid profile
func (s *VectorIndex) Query(ctx context.Context, q domain.HybridQuery) ([]domain.Match, error) {
	topK := q.TopK
	if topK <= 0 {
		topK = domain.DefaultTopK
	}

	searchReq := map[string]interface{}{
		"yql":                 fmt.Sprintf(`select id, text from %s where video_id contains "%s"`, documentType, escapeYQL(q.Namespace)),
		"hits":                topK,
		"ranking.profile":     "hybrid",
		"input.query(dense)":  q.Dense,
		"input.query(sparse)": sparseLiteral(q.Sparse),
		"input.query(alpha)":  s.alpha,
	}

	body, err := json.Marshal(searchReq)
	if err != nil {
		return nil, err
	}

	var searchResp vespaSearchResponse
	if err := s.do(ctx, http.MethodPost, s.baseURL+"/search/", body, &searchResp); err != nil {
		return nil, fmt.Errorf("vespa search failed: %w", err)
	}

	matches := make([]domain.Match, 0, len(searchResp.Root.Children))
	for _, hit := range searchResp.Root.Children {
		m := domain.Match{ID: hit.Fields.ID, Score: hit.Relevance}
		if q.IncludeMetadata {
			m.Text = hit.Fields.Text
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// vespaSearchResponse represents Vespa's search response format
type vespaSearchResponse struct {
	Root struct {
		Fields struct {
			TotalCount int64 `json:"totalCount"`
		} `json:"fields"`
		Children []struct {
			Relevance float64 `json:"relevance"`
			Fields    struct {
				ID   string `json:"id"`
				Text string `json:"text"`
			} `json:"fields"`
		} `json:"children"`
	} `json:"root"`
}

// Replace feeds the new passages over the old ids, then removes documents
// positioned past them. Vespa has no multi-document transaction, so a
// failed feed can leave some ids overwritten, but the namespace is never
// emptied.
func (s *VectorIndex) Replace(ctx context.Context, namespace string, passages []*domain.Passage) error {
	if err := s.Upsert(ctx, namespace, passages); err != nil {
		return err
	}
	selection := fmt.Sprintf(`%s.video_id=="%s" and %s.position>=%d`,
		documentType, escapeYQL(namespace), documentType, len(passages))
	if err := s.deleteWhere(ctx, namespace, selection); err != nil {
		return fmt.Errorf("vespa prune failed: %w", err)
	}
	return nil
}

// DeleteNamespace removes the namespace's documents by selection
func (s *VectorIndex) DeleteNamespace(ctx context.Context, namespace string) error {
	selection := fmt.Sprintf(`%s.video_id=="%s"`, documentType, escapeYQL(namespace))
	if err := s.deleteWhere(ctx, namespace, selection); err != nil {
		return fmt.Errorf("vespa delete by selection failed: %w", err)
	}
	return nil
}

func (s *VectorIndex) deleteWhere(ctx context.Context, namespace, selection string) error {
	deleteURL := fmt.Sprintf("%s/document/v1/%s/%s/docid/?selection=%s&cluster=%s",
		s.baseURL, url.PathEscape(namespace), documentType, url.QueryEscape(selection), contentCluster)
	return s.do(ctx, http.MethodDelete, deleteURL, nil, nil)
}

// Stats counts the namespace's passages with a zero-hit query
func (s *VectorIndex) Stats(ctx context.Context, namespace string) (*domain.IndexStats, error) {
	searchReq := map[string]interface{}{
		"yql":  fmt.Sprintf(`select * from %s where video_id contains "%s"`, documentType, escapeYQL(namespace)),
		"hits": 0,
	}
	body, err := json.Marshal(searchReq)
	if err != nil {
		return nil, err
	}

	var searchResp vespaSearchResponse
	if err := s.do(ctx, http.MethodPost, s.baseURL+"/search/", body, &searchResp); err != nil {
		return nil, fmt.Errorf("vespa count query failed: %w", err)
	}

	stats := &domain.IndexStats{
		Namespace:    namespace,
		PassageCount: int(searchResp.Root.Fields.TotalCount),
	}
	if s.deployer != nil {
		if info, err := s.deployer.GetSchemaInfo(ctx); err == nil {
			stats.Dimension = info.EmbeddingDim
		}
	}
	return stats, nil
}

// HealthCheck verifies the container is available
func (s *VectorIndex) HealthCheck(ctx context.Context) error {
	if err := healthCheck(ctx, s.httpClient, s.baseURL); err != nil {
		return fmt.Errorf("vespa %w", err)
	}
	return nil
}

// do sends a JSON request and decodes the response into out when non-nil
func (s *VectorIndex) do(ctx context.Context, method, target string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s - %s", resp.Status, string(respBody))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// mappedCells renders a sparse vector in the short form of a mapped tensor
func mappedCells(v domain.SparseVector) map[string]float32 {
	if v.IsEmpty() {
		return nil
	}
	cells := make(map[string]float32, len(v.Indices))
	for i, idx := range v.Indices {
		cells[strconv.FormatUint(uint64(idx), 10)] = v.Values[i]
	}
	return cells
}

// sparseLiteral renders a sparse vector as a tensor literal: {{t:3}:0.5,{t:9}:1}
func sparseLiteral(v domain.SparseVector) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, idx := range v.Indices {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "{t:%d}:%s", idx, strconv.FormatFloat(float64(v.Values[i]), 'g', -1, 32))
	}
	b.WriteByte('}')
	return b.String()
}

func escapeYQL(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `"`, `\"`)
}
