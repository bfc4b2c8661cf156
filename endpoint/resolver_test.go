package endpoint_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nachoal/ollama-client-go/config"
	"github.com/nachoal/ollama-client-go/endpoint"
	"github.com/nachoal/ollama-client-go/llm"
	"github.com/nachoal/ollama-client-go/llm/llmtest"
)

func testConfig(remoteHost string) *config.EndpointConfig {
	return &config.EndpointConfig{
		RemoteHost:      remoteHost,
		RemotePort:      11434,
		LocalHost:       "localhost",
		LocalPort:       11434,
		TextModel:       "llama3.2",
		VisionModel:     "llava",
		LivenessTimeout: time.Second,
	}
}

func newResolver(cfg *config.EndpointConfig, factory *llmtest.Factory) *endpoint.Resolver {
	return endpoint.NewResolver(cfg, endpoint.WithClientFactory(func(ep endpoint.Endpoint) (llm.Client, error) {
		return factory.Client(ep.BaseURL)
	}))
}

func TestResolve_Local(t *testing.T) {
	r := newResolver(testConfig(""), llmtest.NewFactory())

	ep, err := r.Resolve(endpoint.Local)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.BaseURL != "http://localhost:11434" || ep.IsRemote() {
		t.Fatalf("unexpected endpoint %+v", ep)
	}
}

func TestResolve_Remote(t *testing.T) {
	r := newResolver(testConfig("10.0.0.5"), llmtest.NewFactory())

	ep, err := r.Resolve(endpoint.Remote)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.BaseURL != "http://10.0.0.5:11434" || !ep.IsRemote() {
		t.Fatalf("unexpected endpoint %+v", ep)
	}
}

func TestResolve_RemoteIPv6(t *testing.T) {
	r := newResolver(testConfig("fd00::7"), llmtest.NewFactory())

	ep, err := r.Resolve(endpoint.Remote)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.BaseURL != "http://[fd00::7]:11434" {
		t.Fatalf("unexpected base URL %q", ep.BaseURL)
	}
}

func TestResolve_RemoteNotConfigured(t *testing.T) {
	r := newResolver(testConfig(""), llmtest.NewFactory())

	_, err := r.Resolve(endpoint.Remote)
	var cfgErr *llm.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if !errors.Is(err, llm.ErrRemoteNotConfigured) {
		t.Fatalf("expected ErrRemoteNotConfigured in chain, got %v", err)
	}
}

func TestResolve_RemoteSameAsLocal(t *testing.T) {
	r := newResolver(testConfig("127.0.0.1"), llmtest.NewFactory())

	if _, err := r.Resolve(endpoint.Remote); !llm.IsConfiguration(err) {
		t.Fatalf("expected ConfigurationError for remote pointing at local, got %v", err)
	}
}

func TestCheckLiveness(t *testing.T) {
	factory := llmtest.NewFactory()
	factory.Clients["http://10.0.0.5:11434"] = &llmtest.Client{}
	factory.Clients["http://localhost:11434"] = &llmtest.Client{
		PingErr: &llm.ConnectionError{Endpoint: "http://localhost:11434", Err: errors.New("refused")},
	}
	r := newResolver(testConfig("10.0.0.5"), factory)

	remote, _ := r.Resolve(endpoint.Remote)
	local, _ := r.Resolve(endpoint.Local)

	if !r.CheckLiveness(context.Background(), remote) {
		t.Fatalf("expected remote to be alive")
	}
	if r.CheckLiveness(context.Background(), local) {
		t.Fatalf("expected local to be down")
	}
	if factory.Clients["http://10.0.0.5:11434"].Closed() != 1 {
		t.Fatalf("liveness client must be closed")
	}
}

func TestCheckLiveness_UnknownEndpointIsDown(t *testing.T) {
	r := newResolver(testConfig(""), llmtest.NewFactory())
	local, _ := r.Resolve(endpoint.Local)

	if r.CheckLiveness(context.Background(), local) {
		t.Fatalf("client creation failure must count as not alive")
	}
}

func TestCheckLiveness_CancelledContext(t *testing.T) {
	factory := llmtest.NewFactory()
	factory.Clients["http://localhost:11434"] = &llmtest.Client{}
	r := newResolver(testConfig(""), factory)
	local, _ := r.Resolve(endpoint.Local)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if r.CheckLiveness(ctx, local) {
		t.Fatalf("cancelled liveness check must report not alive")
	}
}

func TestClient_WrapsFactoryError(t *testing.T) {
	r := newResolver(testConfig(""), llmtest.NewFactory())
	local, _ := r.Resolve(endpoint.Local)

	_, err := r.Client(local)
	if !llm.IsConfiguration(err) || !errors.Is(err, llmtest.ErrUnknownEndpoint) {
		t.Fatalf("expected wrapped ConfigurationError, got %v", err)
	}
}

func TestTargetString(t *testing.T) {
	if endpoint.Remote.String() != "remote" || endpoint.Local.String() != "local" {
		t.Fatalf("unexpected target names")
	}
}
