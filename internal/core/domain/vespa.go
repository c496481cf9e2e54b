package domain

// VespaDeployResult represents the result of a schema deployment
type VespaDeployResult struct {
	Success       bool   `json:"success"`
	EmbeddingDim  int    `json:"embedding_dim"`
	SchemaVersion string `json:"schema_version"`
	Message       string `json:"message,omitempty"`
}
