package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nachoal/ollama-client-go/config"
	"github.com/nachoal/ollama-client-go/endpoint"
	"github.com/nachoal/ollama-client-go/llm"
	"github.com/nachoal/ollama-client-go/metrics"
)

// errNoFinalChunk is wrapped in a StreamError when the stream closes early
var errNoFinalChunk = errors.New("stream ended without a final chunk")

// Result is a completed generation
type Result struct {
	Text     string
	Model    string
	Metrics  metrics.Snapshot
	Endpoint endpoint.Endpoint
}

// ClientSource hands out clients for endpoints. *endpoint.Resolver satisfies it.
type ClientSource interface {
	Client(ep endpoint.Endpoint) (llm.Client, error)
}

// Generator streams one generation from one endpoint
type Generator struct {
	clients           ClientSource
	out               io.Writer
	logger            zerolog.Logger
	idleTimeout       time.Duration
	generationTimeout time.Duration
	now               func() time.Time
}

// GeneratorOption configures a Generator
type GeneratorOption func(*Generator)

// WithOutput sets where fragments are written as they arrive
func WithOutput(w io.Writer) GeneratorOption {
	return func(g *Generator) {
		g.out = w
	}
}

// WithGeneratorLogger sets the logger
func WithGeneratorLogger(logger zerolog.Logger) GeneratorOption {
	return func(g *Generator) {
		g.logger = logger
	}
}

// WithIdleTimeout bounds the wait between two chunks
func WithIdleTimeout(d time.Duration) GeneratorOption {
	return func(g *Generator) {
		g.idleTimeout = d
	}
}

// WithGenerationTimeout bounds the whole stream
func WithGenerationTimeout(d time.Duration) GeneratorOption {
	return func(g *Generator) {
		g.generationTimeout = d
	}
}

// WithClock replaces time.Now for the metrics
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) {
		g.now = now
	}
}

// NewGenerator creates a generator that obtains clients from clients
func NewGenerator(clients ClientSource, opts ...GeneratorOption) *Generator {
	g := &Generator{
		clients:           clients,
		out:               io.Discard,
		logger:            zerolog.Nop(),
		idleTimeout:       config.DefaultIdleTimeout,
		generationTimeout: config.DefaultGenerationTimeout,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate sends req to ep and consumes the stream until the final chunk.
// Each fragment is written to the output as soon as it arrives.
func (g *Generator) Generate(ctx context.Context, ep endpoint.Endpoint, req llm.GenerationRequest) (*Result, error) {
	client, err := g.clients.Client(ep)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	// Cancelling on every return path tears down the HTTP body
	streamCtx, cancel := g.streamContext(ctx)
	defer cancel()

	acc := metrics.New(metrics.WithClock(g.now))
	acc.Start()

	log := g.logger.With().Str("endpoint", ep.BaseURL).Str("model", req.Model).Logger()
	log.Debug().Bool("image", req.HasImage()).Msg("starting generation")

	events, err := client.GenerateStream(streamCtx, req)
	if err != nil {
		return nil, err
	}

	var (
		text     strings.Builder
		received bool
		idle     <-chan time.Time
		timer    *time.Timer
	)
	if g.idleTimeout > 0 {
		timer = time.NewTimer(g.idleTimeout)
		defer timer.Stop()
		idle = timer.C
	}

	fail := func(cause error) error {
		return &llm.StreamError{Endpoint: ep.BaseURL, Partial: text.String(), Err: cause}
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				if err := streamCtx.Err(); err != nil {
					return nil, g.interrupted(ctx, ep, received, fail, err)
				}
				return nil, fail(errNoFinalChunk)
			}

			if ev.Err != nil {
				// Connection and status failures happen before any body is read
				if !received && (llm.IsConnectivity(ev.Err) || llm.IsConfiguration(ev.Err)) {
					return nil, ev.Err
				}
				return nil, fail(ev.Err)
			}
			if ev.Chunk == nil {
				continue
			}

			received = true
			chunk := *ev.Chunk
			if chunk.Text != "" {
				text.WriteString(chunk.Text)
				if _, err := io.WriteString(g.out, chunk.Text); err != nil {
					log.Debug().Err(err).Msg("output write failed")
				}
			}
			acc.Record(chunk)

			if chunk.Done {
				snap := acc.Finish()
				log.Debug().
					Int("tokens", snap.TotalTokens).
					Str("token_source", string(snap.TokenSource)).
					Dur("elapsed", snap.Elapsed()).
					Str("done_reason", chunk.DoneReason).
					Msg("generation finished")
				return &Result{
					Text:     text.String(),
					Model:    req.Model,
					Metrics:  snap,
					Endpoint: ep,
				}, nil
			}

			if timer != nil {
				timer.Reset(g.idleTimeout)
			}

		case <-idle:
			cause := fmt.Errorf("no data for %s", g.idleTimeout)
			log.Warn().Bool("received", received).Msg("stream idle timeout")
			if !received {
				return nil, &llm.ConnectionError{Endpoint: ep.BaseURL, Err: cause}
			}
			return nil, fail(cause)

		case <-streamCtx.Done():
			return nil, g.interrupted(ctx, ep, received, fail, streamCtx.Err())
		}
	}
}

// interrupted classifies a stream ended by its context: the caller's own
// cancellation or the overall generation deadline.
func (g *Generator) interrupted(parent context.Context, ep endpoint.Endpoint, received bool, fail func(error) error, cause error) error {
	if parent.Err() != nil {
		if received {
			return fail(parent.Err())
		}
		return parent.Err()
	}

	cause = fmt.Errorf("generation exceeded %s: %w", g.generationTimeout, cause)
	if !received {
		return &llm.ConnectionError{Endpoint: ep.BaseURL, Err: cause}
	}
	return fail(cause)
}

func (g *Generator) streamContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.generationTimeout > 0 {
		return context.WithTimeout(ctx, g.generationTimeout)
	}
	return context.WithCancel(ctx)
}
