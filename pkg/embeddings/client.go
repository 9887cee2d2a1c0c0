// Package embeddings provides embedding generation via the sidecar HTTP
// service. Every stored vector must match the configured dimension.
package embeddings

import (
	"context"
)

// Client provides embedding generation functionality
type Client interface {
	// EmbedQuery generates an embedding vector for the given query text
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// EmbedDocuments generates embedding vectors for the given documents,
	// one vector per input in the same order
	EmbedDocuments(ctx context.Context, documents []string) ([][]float32, error)

	// Dimension returns the vector width this client produces
	Dimension() int
}

// NoopClient is used when the sidecar is not configured; retrieval then
// runs lexical-only and indexing skips the embed step.
type NoopClient struct{}

// NewNoopClient creates a new NoopClient
func NewNoopClient() *NoopClient {
	return &NoopClient{}
}

// EmbedQuery returns nil, nil (no embedding available)
func (c *NoopClient) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return nil, nil
}

// EmbedDocuments returns nil, nil (no embeddings available)
func (c *NoopClient) EmbedDocuments(ctx context.Context, documents []string) ([][]float32, error) {
	return nil, nil
}

// Dimension returns 0, noop clients produce no vectors
func (c *NoopClient) Dimension() int {
	return 0
}
