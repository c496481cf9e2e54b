package driven

import (
	"context"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
)

// VespaDeployer handles Vespa schema deployment
type VespaDeployer interface {
	// Deploy deploys the application package with the passage schema
	// rendered for the given embedding dimension.
	Deploy(ctx context.Context, embeddingDim int) (*domain.VespaDeployResult, error)

	// GetSchemaInfo retrieves information about the currently deployed schema
	GetSchemaInfo(ctx context.Context) (*SchemaInfo, error)

	// HealthCheck verifies the Vespa config server is healthy
	HealthCheck(ctx context.Context) error
}

// SchemaInfo contains information about the deployed Vespa schema
type SchemaInfo struct {
	// Deployed indicates if the passage schema is deployed
	Deployed bool

	// EmbeddingDim is the dense tensor dimension
	EmbeddingDim int

	// Version is the schema version string
	Version string
}
