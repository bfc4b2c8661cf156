package endpoint

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nachoal/ollama-client-go/config"
	"github.com/nachoal/ollama-client-go/llm"
	"github.com/nachoal/ollama-client-go/llm/ollama"
)

// Target names which configured server a request should go to
type Target int

const (
	Remote Target = iota
	Local
)

func (t Target) String() string {
	switch t {
	case Remote:
		return "remote"
	case Local:
		return "local"
	default:
		return fmt.Sprintf("target(%d)", int(t))
	}
}

// Endpoint is one resolved server address. A new one is created per attempt.
type Endpoint struct {
	Target  Target
	BaseURL string
}

// IsRemote reports whether the endpoint is the remote server
func (e Endpoint) IsRemote() bool {
	return e.Target == Remote
}

func (e Endpoint) String() string {
	return e.Target.String() + " (" + e.BaseURL + ")"
}

// ClientFactory creates a client bound to an endpoint
type ClientFactory func(ep Endpoint) (llm.Client, error)

// OllamaClientFactory returns a factory producing Ollama API clients
func OllamaClientFactory(opts ...llm.ClientOption) ClientFactory {
	return func(ep Endpoint) (llm.Client, error) {
		all := append([]llm.ClientOption{llm.WithBaseURL(ep.BaseURL)}, opts...)
		client, err := ollama.NewClient(all...)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// Resolver turns targets into endpoints and clients
type Resolver struct {
	cfg             *config.EndpointConfig
	newClient       ClientFactory
	logger          zerolog.Logger
	livenessTimeout time.Duration
}

// Option configures a Resolver
type Option func(*Resolver)

// WithClientFactory replaces the Ollama client factory
func WithClientFactory(factory ClientFactory) Option {
	return func(r *Resolver) {
		r.newClient = factory
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithLivenessTimeout overrides the configured liveness timeout
func WithLivenessTimeout(timeout time.Duration) Option {
	return func(r *Resolver) {
		r.livenessTimeout = timeout
	}
}

// NewResolver creates a resolver over cfg
func NewResolver(cfg *config.EndpointConfig, opts ...Option) *Resolver {
	r := &Resolver{
		cfg:             cfg,
		newClient:       OllamaClientFactory(),
		logger:          zerolog.Nop(),
		livenessTimeout: cfg.LivenessTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.livenessTimeout <= 0 {
		r.livenessTimeout = config.DefaultLivenessTimeout
	}
	return r
}

// Config returns the configuration the resolver works from
func (r *Resolver) Config() *config.EndpointConfig {
	return r.cfg
}

// Resolve builds the endpoint for target. It does no I/O.
func (r *Resolver) Resolve(target Target) (Endpoint, error) {
	switch target {
	case Local:
		return Endpoint{Target: Local, BaseURL: "http://" + r.cfg.LocalAddress()}, nil
	case Remote:
		if !r.cfg.RemoteConfigured() {
			return Endpoint{}, &llm.ConfigurationError{
				Key: config.KeyServerIP,
				Err: llm.ErrRemoteNotConfigured,
			}
		}
		if r.cfg.RemoteIsLocal() {
			return Endpoint{}, &llm.ConfigurationError{
				Key:    config.KeyServerIP,
				Reason: "remote address " + r.cfg.RemoteAddress() + " is the local endpoint",
				Err:    llm.ErrRemoteNotConfigured,
			}
		}
		return Endpoint{Target: Remote, BaseURL: "http://" + r.cfg.RemoteAddress()}, nil
	default:
		return Endpoint{}, &llm.ConfigurationError{Key: "target", Reason: "unknown target " + target.String()}
	}
}

// CheckLiveness sends a heartbeat to ep. Any failure, including the timeout, means not alive.
func (r *Resolver) CheckLiveness(ctx context.Context, ep Endpoint) bool {
	ctx, cancel := context.WithTimeout(ctx, r.livenessTimeout)
	defer cancel()

	client, err := r.newClient(ep)
	if err != nil {
		r.logger.Debug().Err(err).Str("endpoint", ep.BaseURL).Msg("liveness: client creation failed")
		return false
	}
	defer client.Close()

	start := time.Now()
	if err := client.Ping(ctx); err != nil {
		r.logger.Debug().Err(err).Str("endpoint", ep.BaseURL).Msg("liveness check failed")
		return false
	}
	r.logger.Debug().Str("endpoint", ep.BaseURL).Dur("took", time.Since(start)).Msg("endpoint alive")
	return true
}

// Client returns a client bound to ep. The caller closes it.
func (r *Resolver) Client(ep Endpoint) (llm.Client, error) {
	client, err := r.newClient(ep)
	if err != nil {
		return nil, &llm.ConfigurationError{Key: "endpoint", Reason: "cannot create client for " + ep.BaseURL, Err: err}
	}
	return client, nil
}
