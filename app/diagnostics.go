package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nachoal/ollama-client-go/config"
	"github.com/nachoal/ollama-client-go/endpoint"
	"github.com/nachoal/ollama-client-go/llm"
)

var errNoHeartbeat = errors.New("no heartbeat response")

// ConnectionReport is the outcome of testing one endpoint
type ConnectionReport struct {
	Target     endpoint.Target
	Endpoint   endpoint.Endpoint
	Configured bool
	Alive      bool
	Latency    time.Duration
	Version    string
	Err        error

	// VisionModel is the vision model configured for this endpoint.
	// VisionAvailable is only meaningful when ModelsChecked is true.
	VisionModel     string
	VisionAvailable bool
	ModelsChecked   bool
}

// TestConnections checks the remote and local endpoints in turn
func (a *App) TestConnections(ctx context.Context) []ConnectionReport {
	return []ConnectionReport{
		a.testEndpoint(ctx, endpoint.Remote),
		a.testEndpoint(ctx, endpoint.Local),
	}
}

// AnyAlive reports whether at least one endpoint answered
func AnyAlive(reports []ConnectionReport) bool {
	for _, r := range reports {
		if r.Alive {
			return true
		}
	}
	return false
}

func (a *App) testEndpoint(ctx context.Context, target endpoint.Target) ConnectionReport {
	report := ConnectionReport{
		Target:      target,
		VisionModel: a.cfg.ModelFor(target == endpoint.Remote, true),
	}

	ep, err := a.resolver.Resolve(target)
	if err != nil {
		report.Err = err
		return report
	}
	report.Endpoint = ep
	report.Configured = true

	start := time.Now()
	if !a.resolver.CheckLiveness(ctx, ep) {
		report.Err = &llm.ConnectionError{Endpoint: ep.BaseURL, Err: errNoHeartbeat}
		return report
	}
	report.Alive = true
	report.Latency = time.Since(start)

	client, err := a.resolver.Client(ep)
	if err != nil {
		report.Err = err
		return report
	}
	defer client.Close()

	timeout := a.cfg.LivenessTimeout
	if timeout <= 0 {
		timeout = config.DefaultLivenessTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if version, err := client.Version(ctx); err == nil {
		report.Version = version
	} else {
		a.logger.Debug().Err(err).Str("endpoint", ep.BaseURL).Msg("version lookup failed")
	}

	models, err := client.ListModels(ctx)
	if err != nil {
		a.logger.Debug().Err(err).Str("endpoint", ep.BaseURL).Msg("model listing failed")
		return report
	}
	report.ModelsChecked = true
	report.VisionAvailable = hasModel(models, report.VisionModel)
	return report
}

// ListModels returns the models installed on the local endpoint
func (a *App) ListModels(ctx context.Context) ([]llm.Model, error) {
	ep, err := a.resolver.Resolve(endpoint.Local)
	if err != nil {
		return nil, err
	}
	client, err := a.resolver.Client(ep)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	return client.ListModels(ctx)
}

// hasModel matches names the way the server does: a missing tag means latest.
func hasModel(models []llm.Model, name string) bool {
	want := withTag(name)
	for _, m := range models {
		if withTag(m.ID) == want {
			return true
		}
	}
	return false
}

func withTag(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if !strings.Contains(name, ":") {
		name += ":latest"
	}
	return name
}
