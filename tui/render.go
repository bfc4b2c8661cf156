package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nachoal/ollama-client-go/app"
	"github.com/nachoal/ollama-client-go/config"
	"github.com/nachoal/ollama-client-go/endpoint"
	"github.com/nachoal/ollama-client-go/generation"
	"github.com/nachoal/ollama-client-go/history"
	"github.com/nachoal/ollama-client-go/llm"
	"github.com/nachoal/ollama-client-go/llm/ollama"
	"github.com/nachoal/ollama-client-go/metrics"
	"github.com/nachoal/ollama-client-go/tui/styles"
)

// IncompleteMarker follows partial output of a broken stream
const IncompleteMarker = "[incomplete]"

// Renderer formats results for the terminal
type Renderer struct {
	s *styles.Styles
}

// NewRenderer creates a renderer with the given styles
func NewRenderer(s *styles.Styles) *Renderer {
	return &Renderer{s: s}
}

// Styles returns the renderer's styles
func (r *Renderer) Styles() *styles.Styles {
	return r.s
}

// Generating announces a request before its stream starts
func (r *Renderer) Generating(what, target string) string {
	return r.s.Title.Render(what) + " " + r.s.Label.Render("("+target+")") + "\n"
}

// FallbackNotice tells the user the remote endpoint is being skipped
func (r *Renderer) FallbackNotice(from endpoint.Target, err error) string {
	reason := "unavailable"
	if errors.Is(err, llm.ErrRemoteNotConfigured) {
		reason = "not configured"
	}
	return r.s.Warning.Render(fmt.Sprintf("! %s server %s, using local server", from, reason)) + "\n"
}

// Result renders the metrics block printed after a completed stream
func (r *Renderer) Result(res *generation.Result) string {
	snap := res.Metrics
	rows := [][2]string{
		{"Endpoint", res.Endpoint.String()},
		{"Model", res.Model},
		{"Time", formatDuration(snap.Elapsed())},
		{"Tokens", fmt.Sprintf("%d (%s)", snap.TotalTokens, snap.TokenSource)},
		{"Characters", fmt.Sprintf("%d", snap.TotalChars)},
		{"Tokens/sec", metrics.FormatRate(snap.TokensPerSecond())},
	}
	if snap.EvalDuration > 0 {
		rows = append(rows, [2]string{"Server eval time", formatDuration(snap.EvalDuration)})
		if rate, ok := snap.ServerTokensPerSecond(); ok {
			rows = append(rows, [2]string{"Server tokens/sec", metrics.FormatRate(rate, ok)})
		}
	}
	if snap.LoadDuration > 0 {
		rows = append(rows, [2]string{"Model load time", formatDuration(snap.LoadDuration)})
	}
	if snap.TotalDuration > 0 {
		rows = append(rows, [2]string{"Server total", formatDuration(snap.TotalDuration)})
	}

	return "\n\n" + r.s.Box.Render(r.table(rows)) + "\n"
}

// Failure renders an error. Partial output of a broken stream is already on
// screen, so only the marker and the cause are added.
func (r *Renderer) Failure(err error) string {
	var streamErr *llm.StreamError
	if errors.As(err, &streamErr) {
		marker := r.s.Warning.Render(IncompleteMarker)
		if streamErr.Partial == "" {
			marker = r.s.Warning.Render("(no output) " + IncompleteMarker)
		}
		return "\n" + marker + "\n" + r.s.Error.Render("✗ "+streamErr.Err.Error()) + "\n"
	}

	var imgErr *llm.InvalidImageError
	var cfgErr *llm.ConfigurationError
	switch {
	case errors.As(err, &imgErr):
		return r.s.Error.Render("✗ "+err.Error()) + "\n"
	case errors.As(err, &cfgErr):
		return r.s.Error.Render("✗ "+err.Error()) + "\n" + r.s.Help.Render("Check your .env or config file.") + "\n"
	case llm.IsConnectivity(err):
		return r.s.Error.Render("✗ "+err.Error()) + "\n" + r.s.Help.Render("Is the Ollama server running? Try `ollama serve`.") + "\n"
	default:
		return r.s.Error.Render("✗ "+err.Error()) + "\n"
	}
}

// Config renders the configuration view
func (r *Renderer) Config(cfg *config.EndpointConfig) string {
	remote := r.s.Dim.Render("not configured")
	switch {
	case cfg.RemoteIsLocal():
		remote = cfg.RemoteAddress() + " " + r.s.Dim.Render("(same as local, ignored)")
	case cfg.RemoteConfigured():
		remote = cfg.RemoteAddress()
	}

	configFile := cfg.ConfigFile
	if configFile == "" {
		configFile = r.s.Dim.Render("none")
	}

	rows := [][2]string{
		{"Remote server", remote},
		{"Local server", cfg.LocalAddress()},
		{"Model", cfg.TextModel},
		{"Vision model", cfg.VisionModel},
		{"Local model", cfg.LocalTextModel},
		{"Local vision model", cfg.LocalVisionModel},
		{"Images directory", cfg.ImagesDir},
		{"Liveness timeout", cfg.LivenessTimeout.String()},
		{"Idle timeout", cfg.IdleTimeout.String()},
		{"Generation timeout", cfg.GenerationTimeout.String()},
		{"History file", cfg.HistoryPath},
		{"Theme", cfg.Theme},
		{"Config file", configFile},
	}
	return r.s.Title.Render("Configuration") + "\n" + r.s.Box.Render(r.table(rows)) + "\n"
}

// Connections renders the connection test results
func (r *Renderer) Connections(reports []app.ConnectionReport) string {
	var b strings.Builder
	b.WriteString(r.s.Title.Render("Connection test"))
	b.WriteString("\n")

	for _, rep := range reports {
		name := strings.ToUpper(rep.Target.String()[:1]) + rep.Target.String()[1:]
		switch {
		case !rep.Configured:
			fmt.Fprintf(&b, "%s %s %s\n", r.s.RenderStatus(""), name, r.s.Dim.Render("not configured"))
			continue
		case !rep.Alive:
			fmt.Fprintf(&b, "%s %s %s %s\n", r.s.RenderStatus("error"), name, rep.Endpoint.BaseURL, r.s.Error.Render("unreachable"))
			continue
		}

		version := rep.Version
		if version == "" {
			version = "unknown"
		}
		fmt.Fprintf(&b, "%s %s %s %s\n", r.s.RenderStatus("ok"), name, rep.Endpoint.BaseURL,
			r.s.Label.Render(fmt.Sprintf("(v%s, %s)", strings.TrimPrefix(version, "v"), formatDuration(rep.Latency))))

		switch {
		case !rep.ModelsChecked:
			fmt.Fprintf(&b, "    %s vision model %s %s\n", r.s.RenderStatus(""), rep.VisionModel, r.s.Dim.Render("not checked"))
		case rep.VisionAvailable:
			fmt.Fprintf(&b, "    %s vision model %s available\n", r.s.RenderStatus("ok"), rep.VisionModel)
		default:
			fmt.Fprintf(&b, "    %s vision model %s missing %s\n", r.s.RenderStatus("warn"), rep.VisionModel,
				r.s.Help.Render("(ollama pull "+rep.VisionModel+")"))
		}
	}
	return b.String()
}

// Models renders the local model listing
func (r *Renderer) Models(models []llm.Model) string {
	if len(models) == 0 {
		return r.s.Dim.Render("No models installed. Pull one with `ollama pull <model>`.") + "\n"
	}

	var b strings.Builder
	b.WriteString(r.s.Title.Render(fmt.Sprintf("Local models (%d)", len(models))))
	b.WriteString("\n")

	width := 0
	for _, m := range models {
		width = max(width, lipgloss.Width(m.ID))
	}
	for _, m := range models {
		line := fmt.Sprintf("%-*s  %8s", width, m.ID, ollama.FormatBytes(m.Size))
		if m.Parameters != "" {
			line += "  " + r.s.Label.Render(m.Parameters)
		}
		if m.SupportsVision {
			line += "  " + r.s.Info.Render("vision")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// NoImages renders the hint shown when no images are available
func (r *Renderer) NoImages(dir string) string {
	return r.s.Warning.Render("No images found in "+dir) + "\n" +
		r.s.Help.Render("Add .jpg, .png, .gif, .bmp or .webp files there and try again.") + "\n"
}

// History renders the run log
func (r *Renderer) History(records []history.Record) string {
	if len(records) == 0 {
		return r.s.Dim.Render("No runs recorded yet.") + "\n"
	}

	var b strings.Builder
	for _, rec := range records {
		status := "ok"
		switch rec.Status {
		case history.StatusIncomplete:
			status = "warn"
		case history.StatusFailed:
			status = "error"
		}

		detail := rec.Target
		if rec.Model != "" {
			detail += " " + rec.Model
		}
		if rec.Fallback {
			detail += " (fallback)"
		}
		if rec.Tokens > 0 {
			detail += fmt.Sprintf(" %d tok", rec.Tokens)
			if rec.TokensPerSecond > 0 {
				detail += fmt.Sprintf(" %.2f tok/s", rec.TokensPerSecond)
			}
		}

		title := rec.Title()
		if rec.Image != "" {
			title = "[" + rec.Image + "] " + title
		}
		fmt.Fprintf(&b, "%s %s %s\n    %s\n",
			r.s.RenderStatus(status),
			r.s.Label.Render(rec.CreatedAt.Local().Format("Jan 02 15:04")),
			title,
			r.s.Dim.Render(detail))
		if rec.Error != "" {
			fmt.Fprintf(&b, "    %s\n", r.s.Error.Render(rec.Error))
		}
	}
	return b.String()
}

func (r *Renderer) table(rows [][2]string) string {
	width := 0
	for _, row := range rows {
		width = max(width, lipgloss.Width(row[0]))
	}

	lines := make([]string, len(rows))
	for i, row := range rows {
		label := row[0] + strings.Repeat(" ", width-lipgloss.Width(row[0]))
		lines[i] = r.s.Label.Render(label) + "  " + r.s.Value.Render(row[1])
	}
	return strings.Join(lines, "\n")
}

func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d < time.Millisecond:
		return d.String()
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}
