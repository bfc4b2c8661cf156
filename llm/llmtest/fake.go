// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nachoal/ollama-client-go/llm"
)

// Client replays a fixed script of stream events
type Client struct {
	// Events are sent in order by GenerateStream
	Events []llm.StreamEvent
	// StartErr is returned by GenerateStream instead of a stream
	StartErr error
	// Hang keeps the stream open after the scripted events until ctx is done
	Hang bool
	// Delay is waited before each event
	Delay time.Duration

	PingErr    error
	VersionStr string
	Models     []llm.Model
	ListErr    error

	mu       sync.Mutex
	requests []llm.GenerationRequest
	pings    int
	closed   int
	aborted  bool
}

// Chunks builds a successful script from text fragments. The last event is
// the final chunk carrying evalCount, or no count when evalCount is negative.
func Chunks(evalCount int, fragments ...string) []llm.StreamEvent {
	events := make([]llm.StreamEvent, 0, len(fragments)+1)
	for _, f := range fragments {
		events = append(events, llm.StreamEvent{Chunk: &llm.StreamChunk{Text: f}})
	}
	final := &llm.StreamChunk{Done: true, EvalDuration: time.Second, DoneReason: "stop"}
	if evalCount >= 0 {
		final.EvalCount = llm.IntPtr(evalCount)
	}
	return append(events, llm.StreamEvent{Chunk: final})
}

func (c *Client) GenerateStream(ctx context.Context, request llm.GenerationRequest) (<-chan llm.StreamEvent, error) {
	c.mu.Lock()
	c.requests = append(c.requests, request)
	c.mu.Unlock()

	if c.StartErr != nil {
		return nil, c.StartErr
	}

	events := make(chan llm.StreamEvent)
	go func() {
		defer close(events)
		for _, ev := range c.Events {
			if c.Delay > 0 {
				select {
				case <-time.After(c.Delay):
				case <-ctx.Done():
					c.abort()
					return
				}
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				c.abort()
				return
			}
		}
		if c.Hang {
			<-ctx.Done()
			c.abort()
		}
	}()
	return events, nil
}

func (c *Client) Ping(ctx context.Context) error {
	c.mu.Lock()
	c.pings++
	c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.PingErr
}

func (c *Client) Version(ctx context.Context) (string, error) {
	if c.PingErr != nil {
		return "", c.PingErr
	}
	return c.VersionStr, nil
}

func (c *Client) ListModels(ctx context.Context) ([]llm.Model, error) {
	if c.ListErr != nil {
		return nil, c.ListErr
	}
	return c.Models, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	c.closed++
	c.mu.Unlock()
	return nil
}

// Requests returns every request passed to GenerateStream
func (c *Client) Requests() []llm.GenerationRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.GenerationRequest(nil), c.requests...)
}

// Pings returns how many times Ping was called
func (c *Client) Pings() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pings
}

// Closed returns how many times Close was called
func (c *Client) Closed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Aborted reports whether a stream was torn down by context cancellation
func (c *Client) Aborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

func (c *Client) abort() {
	c.mu.Lock()
	c.aborted = true
	c.mu.Unlock()
}

// ErrUnknownEndpoint is returned by Factory for base URLs it has no client for
var ErrUnknownEndpoint = errors.New("no fake client for endpoint")

// Factory hands out fake clients by base URL and records every lookup
type Factory struct {
	Clients map[string]*Client

	mu    sync.Mutex
	calls []string
}

// NewFactory creates an empty factory
func NewFactory() *Factory {
	return &Factory{Clients: make(map[string]*Client)}
}

// Client returns the fake registered for baseURL
func (f *Factory) Client(baseURL string) (llm.Client, error) {
	f.mu.Lock()
	f.calls = append(f.calls, baseURL)
	f.mu.Unlock()

	c, ok := f.Clients[baseURL]
	if !ok {
		return nil, ErrUnknownEndpoint
	}
	return c, nil
}

// Calls returns the base URLs looked up so far, in order
func (f *Factory) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
