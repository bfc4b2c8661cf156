package generation

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/nachoal/ollama-client-go/endpoint"
	"github.com/nachoal/ollama-client-go/llm"
)

var errNotAlive = errors.New("liveness check failed")

// RequestBuilder builds the request for a resolved endpoint. It is called
// again for the fallback endpoint, which may use a different model.
type RequestBuilder func(ep endpoint.Endpoint) (llm.GenerationRequest, error)

// Runner runs a generation against the preferred target and falls back to
// the local endpoint once when the remote one cannot be reached.
type Runner struct {
	resolver   *endpoint.Resolver
	generator  *Generator
	logger     zerolog.Logger
	onFallback func(from endpoint.Target, err error)
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithRunnerLogger sets the logger
func WithRunnerLogger(logger zerolog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// OnFallback registers a hook called right before the local retry
func OnFallback(fn func(from endpoint.Target, err error)) RunnerOption {
	return func(r *Runner) {
		r.onFallback = fn
	}
}

// NewRunner creates a runner
func NewRunner(resolver *endpoint.Resolver, generator *Generator, opts ...RunnerOption) *Runner {
	r := &Runner{
		resolver:  resolver,
		generator: generator,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run generates against preferred. A remote target that is unset,
// unreachable or failing at the HTTP level is retried once on local.
// Stream, image and builder errors are returned as is.
func (r *Runner) Run(ctx context.Context, build RequestBuilder, preferred endpoint.Target) (*Result, error) {
	if preferred == endpoint.Local {
		return r.attempt(ctx, build, endpoint.Local)
	}

	ep, err := r.resolver.Resolve(preferred)
	if err != nil {
		return r.fallback(ctx, build, preferred, err)
	}

	req, err := build(ep)
	if err != nil {
		return nil, err
	}

	if !r.resolver.CheckLiveness(ctx, ep) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return r.fallback(ctx, build, preferred, &llm.ConnectionError{Endpoint: ep.BaseURL, Err: errNotAlive})
	}

	result, err := r.generator.Generate(ctx, ep, req)
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil || !llm.IsConnectivity(err) {
		return nil, err
	}
	return r.fallback(ctx, build, preferred, err)
}

func (r *Runner) fallback(ctx context.Context, build RequestBuilder, from endpoint.Target, cause error) (*Result, error) {
	r.logger.Warn().Err(cause).Str("from", from.String()).Msg("falling back to local endpoint")
	if r.onFallback != nil {
		r.onFallback(from, cause)
	}
	return r.attempt(ctx, build, endpoint.Local)
}

// attempt runs a single try against target with no fallback
func (r *Runner) attempt(ctx context.Context, build RequestBuilder, target endpoint.Target) (*Result, error) {
	ep, err := r.resolver.Resolve(target)
	if err != nil {
		return nil, err
	}
	req, err := build(ep)
	if err != nil {
		return nil, err
	}
	return r.generator.Generate(ctx, ep, req)
}
