package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/nachoal/ollama-client-go/llm"
)

const (
	defaultBaseURL        = "http://localhost:11434"
	defaultConnectTimeout = 10 * time.Second
	defaultUserAgent      = "ollama-client-go/1.0"
)

// Client implements llm.Client on top of the official Ollama API package
type Client struct {
	options   llm.ClientOptions
	base      *url.URL
	transport *http.Transport
}

// NewClient creates a new Ollama client. It performs no network I/O;
// use Ping to check that the server is up.
func NewClient(opts ...llm.ClientOption) (*Client, error) {
	options := llm.ClientOptions{
		BaseURL:        defaultBaseURL,
		ConnectTimeout: defaultConnectTimeout,
		UserAgent:      defaultUserAgent,
	}

	for _, opt := range opts {
		opt(&options)
	}

	base, err := url.Parse(strings.TrimRight(options.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", options.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host are required", options.BaseURL)
	}

	// No client-wide timeout: the stream can legitimately run for minutes,
	// deadlines come from the caller's context.
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   options.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &Client{
		options:   options,
		base:      base,
		transport: transport,
	}, nil
}

// BaseURL returns the server address this client talks to
func (c *Client) BaseURL() string {
	return c.base.String()
}

// GenerateStream starts a streaming /api/generate call
func (c *Client) GenerateStream(ctx context.Context, request llm.GenerationRequest) (<-chan llm.StreamEvent, error) {
	if request.Model == "" {
		return nil, &llm.ConfigurationError{Key: "model", Reason: "no model specified"}
	}

	req := &api.GenerateRequest{
		Model:   request.Model,
		Prompt:  request.Prompt,
		Options: request.Options,
	}
	if request.HasImage() {
		// ImageData is marshalled as base64 by the API package
		req.Images = []api.ImageData{request.Image}
	}

	apiClient, x := c.newExchange()
	events := make(chan llm.StreamEvent)

	go func() {
		defer close(events)

		err := apiClient.Generate(ctx, req, func(resp api.GenerateResponse) error {
			select {
			case events <- llm.StreamEvent{Chunk: toChunk(resp)}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})

		// Abandoned by the caller; nobody is listening anymore.
		if ctx.Err() != nil {
			return
		}

		if failure := c.failure(err, x); failure != nil {
			select {
			case events <- llm.StreamEvent{Err: failure}:
			case <-ctx.Done():
			}
		}
	}()

	return events, nil
}

// Ping issues a HEAD / heartbeat
func (c *Client) Ping(ctx context.Context) error {
	apiClient, x := c.newExchange()
	err := apiClient.Heartbeat(ctx)
	return c.failure(err, x)
}

// Version returns the server version
func (c *Client) Version(ctx context.Context) (string, error) {
	apiClient, x := c.newExchange()
	version, err := apiClient.Version(ctx)
	if failure := c.failure(err, x); failure != nil {
		return "", failure
	}
	return version, nil
}

// ListModels returns the models installed on the server
func (c *Client) ListModels(ctx context.Context) ([]llm.Model, error) {
	apiClient, x := c.newExchange()
	response, err := apiClient.List(ctx)
	if failure := c.failure(err, x); failure != nil {
		return nil, failure
	}

	models := make([]llm.Model, len(response.Models))
	for i, m := range response.Models {
		supportsVision := llm.IsVisionModel(m.Name)
		desc := FormatBytes(m.Size)
		if label := strings.TrimSpace(m.Details.Family + " " + m.Details.ParameterSize); label != "" {
			desc = label + " · " + desc
		}
		if supportsVision {
			desc = desc + " · Vision"
		}
		models[i] = llm.Model{
			ID:             m.Name,
			Size:           m.Size,
			ModifiedAt:     m.ModifiedAt,
			Family:         m.Details.Family,
			Parameters:     m.Details.ParameterSize,
			Quantization:   m.Details.QuantizationLevel,
			Description:    desc,
			SupportsVision: supportsVision,
		}
	}

	return models, nil
}

// Close releases idle connections
func (c *Client) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}

// newExchange builds an API client whose transport records the response
// status of the single call made through it.
func (c *Client) newExchange() (*api.Client, *exchange) {
	x := &exchange{next: c.transport, userAgent: c.options.UserAgent}
	return api.NewClient(c.base, &http.Client{Transport: x}), x
}

// failure maps an API error onto the llm error taxonomy using what the
// exchange saw on the wire. A nil result means the call succeeded.
func (c *Client) failure(err error, x *exchange) error {
	endpoint := c.base.String()

	if x.statusCode >= http.StatusBadRequest {
		return &llm.ServerError{
			Endpoint:   endpoint,
			StatusCode: x.statusCode,
			Message:    serverMessage(err, x.status),
		}
	}
	if err == nil {
		return nil
	}
	if x.statusCode == 0 {
		return &llm.ConnectionError{Endpoint: endpoint, Err: err}
	}
	// Connected with a success status; the body broke afterwards.
	return fmt.Errorf("stream interrupted: %w", err)
}

func serverMessage(err error, status string) string {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) && statusErr.ErrorMessage != "" {
		return statusErr.ErrorMessage
	}
	if err != nil {
		return err.Error()
	}
	return status
}

func toChunk(resp api.GenerateResponse) *llm.StreamChunk {
	chunk := &llm.StreamChunk{
		Text: resp.Response,
		Done: resp.Done,
	}
	if resp.Done {
		if resp.EvalCount > 0 {
			chunk.EvalCount = llm.IntPtr(resp.EvalCount)
		}
		chunk.EvalDuration = resp.EvalDuration
		chunk.PromptEvalCount = resp.PromptEvalCount
		chunk.PromptEvalDuration = resp.PromptEvalDuration
		chunk.LoadDuration = resp.LoadDuration
		chunk.TotalDuration = resp.TotalDuration
		chunk.DoneReason = resp.DoneReason
	}
	return chunk
}

// exchange is a single-use RoundTripper that remembers the response status.
type exchange struct {
	next       http.RoundTripper
	userAgent  string
	statusCode int
	status     string
}

func (x *exchange) RoundTrip(req *http.Request) (*http.Response, error) {
	if x.userAgent != "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", x.userAgent)
	}

	resp, err := x.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	x.statusCode = resp.StatusCode
	x.status = resp.Status
	return resp, nil
}

// FormatBytes formats bytes to human readable string
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
