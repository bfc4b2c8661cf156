// Package app implements the user-facing actions on top of the generation pipeline.
package app

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nachoal/ollama-client-go/config"
	"github.com/nachoal/ollama-client-go/endpoint"
	"github.com/nachoal/ollama-client-go/generation"
	"github.com/nachoal/ollama-client-go/history"
	"github.com/nachoal/ollama-client-go/images"
	"github.com/nachoal/ollama-client-go/llm"
)

// ErrEmptyPrompt is returned for a blank text prompt
var ErrEmptyPrompt = errors.New("prompt is empty")

// App holds the wired components for one process
type App struct {
	cfg      *config.EndpointConfig
	resolver *endpoint.Resolver
	runner   *generation.Runner
	history  *history.Manager
	factory  endpoint.ClientFactory
	logger   zerolog.Logger
	out      io.Writer
	notify   func(from endpoint.Target, err error)
	fellBack bool
}

// Option configures an App
type Option func(*App)

// WithOutput sets where streamed text goes
func WithOutput(w io.Writer) Option {
	return func(a *App) {
		a.out = w
	}
}

// WithLogger sets the logger shared by all components
func WithLogger(logger zerolog.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// WithHistory enables the run log
func WithHistory(m *history.Manager) Option {
	return func(a *App) {
		a.history = m
	}
}

// WithClientFactory replaces the Ollama client factory
func WithClientFactory(factory endpoint.ClientFactory) Option {
	return func(a *App) {
		a.factory = factory
	}
}

// WithFallbackNotice is called when a remote request is retried locally
func WithFallbackNotice(fn func(from endpoint.Target, err error)) Option {
	return func(a *App) {
		a.notify = fn
	}
}

// New wires resolver, generator and runner from cfg
func New(cfg *config.EndpointConfig, opts ...Option) *App {
	a := &App{
		cfg:    cfg,
		logger: zerolog.Nop(),
		out:    io.Discard,
	}
	for _, opt := range opts {
		opt(a)
	}

	resolverOpts := []endpoint.Option{endpoint.WithLogger(a.logger)}
	if a.factory != nil {
		resolverOpts = append(resolverOpts, endpoint.WithClientFactory(a.factory))
	}
	a.resolver = endpoint.NewResolver(cfg, resolverOpts...)

	generator := generation.NewGenerator(a.resolver,
		generation.WithOutput(a.out),
		generation.WithGeneratorLogger(a.logger),
		generation.WithIdleTimeout(cfg.IdleTimeout),
		generation.WithGenerationTimeout(cfg.GenerationTimeout),
	)
	a.runner = generation.NewRunner(a.resolver, generator,
		generation.WithRunnerLogger(a.logger),
		generation.OnFallback(a.onFallback),
	)
	return a
}

// Config returns the loaded configuration
func (a *App) Config() *config.EndpointConfig {
	return a.cfg
}

// Resolver returns the endpoint resolver
func (a *App) Resolver() *endpoint.Resolver {
	return a.resolver
}

// Generate streams a text generation. Remote falls back to local when unreachable.
func (a *App) Generate(ctx context.Context, prompt string, target endpoint.Target) (*generation.Result, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	build := func(ep endpoint.Endpoint) (llm.GenerationRequest, error) {
		return llm.GenerationRequest{
			Model:  a.cfg.ModelFor(ep.IsRemote(), false),
			Prompt: prompt,
		}, nil
	}

	a.fellBack = false
	result, err := a.runner.Run(ctx, build, target)
	a.record(history.Record{Kind: "text", Target: target.String(), Prompt: prompt}, result, err)
	return result, err
}

// ListImages returns the images available for analysis
func (a *App) ListImages() ([]string, error) {
	return images.List(a.cfg.ImagesDir)
}

// AnalyzeImage describes an image. A bare name is looked up in the images
// directory, anything else is treated as a path. A blank prompt uses the
// default image prompt.
func (a *App) AnalyzeImage(ctx context.Context, image, prompt string, target endpoint.Target) (*generation.Result, error) {
	dir, name := a.cfg.ImagesDir, image
	if filepath.Base(image) != image {
		dir, name = filepath.Dir(image), filepath.Base(image)
	}
	rec := history.Record{Kind: "vision", Target: target.String(), Prompt: prompt, Image: name}
	if strings.TrimSpace(rec.Prompt) == "" {
		rec.Prompt = llm.DefaultImagePrompt
	}

	data, err := images.Read(dir, name)
	if err != nil {
		a.record(rec, nil, err)
		return nil, err
	}
	a.logger.Debug().Str("image", name).Int("bytes", len(data)).Int("base64_len", images.EncodedLen(len(data))).Msg("image loaded")

	build := func(ep endpoint.Endpoint) (llm.GenerationRequest, error) {
		return llm.NewVisionRequest(prompt, data, a.cfg.ModelFor(ep.IsRemote(), true))
	}

	a.fellBack = false
	result, err := a.runner.Run(ctx, build, target)
	a.record(rec, result, err)
	return result, err
}

// History returns the most recent runs, newest first
func (a *App) History(n int) ([]history.Record, error) {
	if a.history == nil {
		return []history.Record{}, nil
	}
	return a.history.Recent(n)
}

func (a *App) onFallback(from endpoint.Target, err error) {
	a.fellBack = true
	if a.notify != nil {
		a.notify(from, err)
	}
}

func (a *App) record(rec history.Record, result *generation.Result, err error) {
	if a.history == nil {
		return
	}

	rec.Fallback = a.fellBack
	switch {
	case err == nil:
		rec.Status = history.StatusOK
	case isPartial(err):
		rec.Status = history.StatusIncomplete
		rec.Error = err.Error()
	default:
		rec.Status = history.StatusFailed
		rec.Error = err.Error()
	}

	if result != nil {
		snap := result.Metrics
		rec.Endpoint = result.Endpoint.BaseURL
		rec.Model = result.Model
		rec.Tokens = snap.TotalTokens
		rec.TokenSource = string(snap.TokenSource)
		rec.Chars = snap.TotalChars
		rec.ElapsedMS = snap.Elapsed().Milliseconds()
		if rate, ok := snap.TokensPerSecond(); ok {
			rec.TokensPerSecond = rate
		}
	}

	if _, err := a.history.Append(rec); err != nil {
		a.logger.Warn().Err(err).Msg("failed to write history")
	}
}

func isPartial(err error) bool {
	_, ok := llm.PartialText(err)
	return ok
}
