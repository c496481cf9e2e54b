package vespa

import (
	"archive/zip"
	"bytes"
	"context"
	"embed"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven"
)

//go:embed schemas/services.xml schemas/passage.sd.tmpl
var schemaFS embed.FS

// Verify interface compliance
var _ driven.VespaDeployer = (*Deployer)(nil)

// Deployer implements driven.VespaDeployer against the config server
type Deployer struct {
	endpoint   string
	alpha      float64
	httpClient *http.Client
}

// NewDeployer creates a deployer for the config server at endpoint
// (e.g. http://localhost:19071). alpha is baked into the rank profile as
// the default dense weight.
func NewDeployer(endpoint string, alpha float64) (*Deployer, error) {
	endpoint, err := validateEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	if alpha <= 0 || alpha > 1 {
		alpha = domain.DefaultHybridAlpha
	}
	return &Deployer{
		endpoint: endpoint,
		alpha:    alpha,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

// validateEndpoint accepts http(s) URLs only and strips a trailing slash
func validateEndpoint(endpoint string) (string, error) {
	if endpoint == "" {
		return "", fmt.Errorf("%w: vespa endpoint is required", domain.ErrInvalidInput)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: invalid vespa endpoint: %v", domain.ErrInvalidInput, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: vespa endpoint must be http or https", domain.ErrInvalidInput)
	}
	return strings.TrimSuffix(endpoint, "/"), nil
}

// Deploy renders the passage schema for embeddingDim and activates the
// application package.
func (d *Deployer) Deploy(ctx context.Context, embeddingDim int) (*domain.VespaDeployResult, error) {
	if embeddingDim <= 0 {
		return nil, fmt.Errorf("%w: embedding dimension must be positive", domain.ErrInvalidInput)
	}

	schemaContent, err := d.generateSchema(embeddingDim)
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema: %w", err)
	}
	servicesContent, err := schemaFS.ReadFile("schemas/services.xml")
	if err != nil {
		return nil, fmt.Errorf("failed to read services.xml: %w", err)
	}
	zipData, err := createAppPackage(servicesContent, schemaContent)
	if err != nil {
		return nil, fmt.Errorf("failed to create app package: %w", err)
	}

	deployURL := fmt.Sprintf("%s/application/v2/tenant/default/prepareandactivate", d.endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, deployURL, bytes.NewReader(zipData))
	if err != nil {
		return nil, fmt.Errorf("failed to create deploy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/zip")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deployment request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("deployment failed with status %s: %s", resp.Status, string(body))
	}

	return &domain.VespaDeployResult{
		Success:       true,
		EmbeddingDim:  embeddingDim,
		SchemaVersion: schemaVersion(embeddingDim),
		Message:       "Deployed passage schema",
	}, nil
}

// GetSchemaInfo reads the deployed passage schema, if any, and extracts
// its dense tensor dimension.
func (d *Deployer) GetSchemaInfo(ctx context.Context) (*driven.SchemaInfo, error) {
	contentURL := fmt.Sprintf("%s/application/v2/tenant/default/application/default/environment/default/region/default/instance/default/content/schemas/passage.sd", d.endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, contentURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &driven.SchemaInfo{Deployed: false}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("failed to get schema info: %s - %s", resp.Status, string(body))
	}

	dim := parseDenseDimension(string(body))
	return &driven.SchemaInfo{
		Deployed:     true,
		EmbeddingDim: dim,
		Version:      schemaVersion(dim),
	}, nil
}

// HealthCheck verifies the config server is healthy
func (d *Deployer) HealthCheck(ctx context.Context) error {
	return healthCheck(ctx, d.httpClient, d.endpoint)
}

func healthCheck(ctx context.Context, client *http.Client, endpoint string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/state/v1/health", nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unhealthy: %s - %s", resp.Status, string(body))
	}
	return nil
}

func (d *Deployer) generateSchema(embeddingDim int) ([]byte, error) {
	tmplContent, err := schemaFS.ReadFile("schemas/passage.sd.tmpl")
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New("schema").Parse(string(tmplContent))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	data := struct {
		EmbeddingDim int
		Alpha        string
	}{
		EmbeddingDim: embeddingDim,
		Alpha:        strconv.FormatFloat(d.alpha, 'f', -1, 64),
	}
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// createAppPackage zips services.xml and the passage schema
func createAppPackage(services, schema []byte) ([]byte, error) {
	var buf bytes.Buffer
	zipWriter := zip.NewWriter(&buf)

	files := []struct {
		name    string
		content []byte
	}{
		{"services.xml", services},
		{"schemas/passage.sd", schema},
	}
	for _, f := range files {
		w, err := zipWriter.Create(f.name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(f.content); err != nil {
			return nil, err
		}
	}

	if err := zipWriter.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

var denseFieldPattern = regexp.MustCompile(`field\s+dense\s+type\s+tensor<float>\(x\[(\d+)\]\)`)

// parseDenseDimension returns the x dimension of the dense field, or 0
func parseDenseDimension(schema string) int {
	m := denseFieldPattern.FindStringSubmatch(schema)
	if m == nil {
		return 0
	}
	dim, _ := strconv.Atoi(m[1])
	return dim
}

func schemaVersion(dim int) string {
	return fmt.Sprintf("v1-passage-dim%d", dim)
}
