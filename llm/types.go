package llm

import (
	"time"
)

// GenerationRequest is a single prompt sent to a generation endpoint.
// Image is optional and carries raw bytes; transport encoding is left to the client.
type GenerationRequest struct {
	Model   string
	Prompt  string
	Image   []byte
	Options map[string]interface{}
}

// HasImage reports whether the request is a vision request
func (r GenerationRequest) HasImage() bool {
	return len(r.Image) > 0
}

// StreamChunk is one incremental unit of a streamed generation response.
// The timing fields are only populated on the final chunk.
type StreamChunk struct {
	Text string
	Done bool

	// EvalCount is nil when the server did not report a token count
	EvalCount          *int
	EvalDuration       time.Duration
	PromptEvalCount    int
	PromptEvalDuration time.Duration
	LoadDuration       time.Duration
	TotalDuration      time.Duration
	DoneReason         string
}

// StreamEvent is what a Client emits while streaming: either a chunk or a terminal error.
type StreamEvent struct {
	Chunk *StreamChunk
	Err   error
}

// Model represents a model available on a server
type Model struct {
	ID             string    `json:"id"`
	Size           int64     `json:"size"`
	ModifiedAt     time.Time `json:"modified_at"`
	Family         string    `json:"family,omitempty"`
	Parameters     string    `json:"parameters,omitempty"`
	Quantization   string    `json:"quantization,omitempty"`
	Description    string    `json:"description,omitempty"`
	SupportsVision bool      `json:"supports_vision"`
}

// ClientOptions contains options for creating an LLM client
type ClientOptions struct {
	BaseURL        string
	ConnectTimeout time.Duration
	UserAgent      string
}

// ClientOption is a functional option for configuring clients
type ClientOption func(*ClientOptions)

// WithBaseURL sets the base URL
func WithBaseURL(url string) ClientOption {
	return func(o *ClientOptions) {
		o.BaseURL = url
	}
}

// WithConnectTimeout bounds the TCP dial. It does not limit the stream itself.
func WithConnectTimeout(timeout time.Duration) ClientOption {
	return func(o *ClientOptions) {
		o.ConnectTimeout = timeout
	}
}

// WithUserAgent overrides the User-Agent header
func WithUserAgent(ua string) ClientOption {
	return func(o *ClientOptions) {
		o.UserAgent = ua
	}
}

// IntPtr is a helper function to get a pointer to an int
func IntPtr(i int) *int {
	return &i
}
