package llm

import (
	"context"
)

// Client defines the interface for an inference server
type Client interface {
	// GenerateStream starts a generation and returns its event stream.
	// The channel is closed when the stream ends; cancelling ctx abandons
	// the stream and releases the underlying connection.
	GenerateStream(ctx context.Context, request GenerationRequest) (<-chan StreamEvent, error)

	// Ping performs a minimal request to verify the server is reachable
	Ping(ctx context.Context) error

	// Version returns the server version string
	Version(ctx context.Context) (string, error)

	// ListModels returns available models
	ListModels(ctx context.Context) ([]Model, error)

	// Close cleans up any resources
	Close() error
}
