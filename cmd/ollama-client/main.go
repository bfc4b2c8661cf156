package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nachoal/ollama-client-go/app"
	"github.com/nachoal/ollama-client-go/config"
	"github.com/nachoal/ollama-client-go/endpoint"
	"github.com/nachoal/ollama-client-go/history"
	"github.com/nachoal/ollama-client-go/internal/logging"
	"github.com/nachoal/ollama-client-go/llm"
	"github.com/nachoal/ollama-client-go/tui"
	"github.com/nachoal/ollama-client-go/tui/styles"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const longDescription = `Ollama Client streams completions from a remote Ollama server and falls
back to the local one when the remote is missing or unreachable.
Without a mode flag it runs an interactive menu.`

// errReported means the failure was already printed
var errReported = errors.New("reported")

var (
	// Flags
	prompt      string
	image       string
	local       bool
	testConns   bool
	verbose     bool
	model       string
	visionModel string
	historySize int

	// Root command
	rootCmd = &cobra.Command{
		Use:           "ollama-client",
		Version:       version,
		Short:         "Streaming client for local and remote Ollama servers",
		Long:          longDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRoot,
	}

	// History command
	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Show recent generations",
		RunE:  runHistory,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "Remote text model")
	rootCmd.PersistentFlags().StringVar(&visionModel, "vision-model", "", "Remote vision model")

	// Single-shot modes
	rootCmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Generate a completion for the prompt and exit")
	rootCmd.Flags().StringVarP(&image, "image", "i", "", "Describe an image (name in the images dir or a path) and exit")
	rootCmd.Flags().BoolVarP(&local, "local", "l", false, "Skip the remote server")
	rootCmd.Flags().BoolVarP(&testConns, "test", "t", false, "Test server connections and exit")

	historyCmd.Flags().IntVarP(&historySize, "limit", "n", 20, "Number of entries to show")

	// Add subcommands
	rootCmd.AddCommand(historyCmd)
}

func main() {
	// A broken .env is reported but does not stop the client
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// setup loads configuration and wires the application for cmd
func setup(cmd *cobra.Command) (*app.App, *tui.Renderer, zerolog.Logger, error) {
	logger := logging.New(verbose, os.Stderr)

	v := config.NewViper()
	// Flags win over env and config file when set
	flags := cmd.Flags()
	if err := v.BindPFlag(config.KeyModel, flags.Lookup("model")); err != nil {
		return nil, nil, logger, err
	}
	if err := v.BindPFlag(config.KeyVisionModel, flags.Lookup("vision-model")); err != nil {
		return nil, nil, logger, err
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, logger, err
	}
	if cfg.ConfigFile != "" {
		logger.Debug().Str("file", cfg.ConfigFile).Msg("Loaded config file")
	}

	if !slices.Contains(styles.Themes, cfg.Theme) {
		logger.Warn().Str("theme", cfg.Theme).Strs("available", styles.Themes).Msg("Unknown theme, using default")
	}

	r := tui.NewRenderer(styles.NewStyles(styles.GetTheme(cfg.Theme)))
	opts := []app.Option{
		app.WithOutput(os.Stdout),
		app.WithLogger(logger),
		app.WithClientFactory(endpoint.OllamaClientFactory(
			llm.WithUserAgent("ollama-client-go/"+version),
			llm.WithConnectTimeout(cfg.LivenessTimeout),
		)),
		app.WithFallbackNotice(func(from endpoint.Target, err error) {
			fmt.Fprint(os.Stdout, r.FallbackNotice(from, err))
		}),
	}

	hist, err := history.NewManager(cfg.HistoryPath)
	if err != nil {
		logger.Warn().Err(err).Msg("History disabled")
	} else {
		logger.Debug().Str("file", hist.Path()).Msg("Recording history")
		opts = append(opts, app.WithHistory(hist))
	}

	return app.New(cfg, opts...), r, logger, nil
}

func runRoot(cmd *cobra.Command, args []string) error {
	a, r, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	target := endpoint.Remote
	if local {
		target = endpoint.Local
	}

	switch {
	case testConns:
		return runTest(cmd.Context(), a, r)
	case image != "":
		return runSingle(cmd.Context(), r, func(ctx context.Context) error {
			fmt.Fprint(os.Stdout, r.Generating("Analyzing "+image, target.String()))
			result, err := a.AnalyzeImage(ctx, image, prompt, target)
			if err != nil {
				return err
			}
			fmt.Fprint(os.Stdout, r.Result(result))
			return nil
		})
	case prompt != "":
		return runSingle(cmd.Context(), r, func(ctx context.Context) error {
			fmt.Fprint(os.Stdout, r.Generating("Generating", target.String()))
			result, err := a.Generate(ctx, prompt, target)
			if err != nil {
				return err
			}
			fmt.Fprint(os.Stdout, r.Result(result))
			return nil
		})
	case local:
		return errors.New("--local needs --prompt or --image")
	}

	logger.Debug().Msg("Starting interactive session")
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
	defer stop()
	return tui.NewSession(a, r, os.Stdout).Run(ctx)
}

// runSingle runs one generation with Ctrl+C bound to cancellation
func runSingle(parent context.Context, r *tui.Renderer, fn func(ctx context.Context) error) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := fn(ctx); err != nil {
		fmt.Fprint(os.Stdout, r.Failure(err))
		return errReported
	}
	return nil
}

func runTest(parent context.Context, a *app.App, r *tui.Renderer) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reports := a.TestConnections(ctx)
	fmt.Fprint(os.Stdout, r.Connections(reports))
	if !app.AnyAlive(reports) {
		return errReported
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, r, _, err := setup(cmd)
	if err != nil {
		return err
	}

	records, err := a.History(historySize)
	if err != nil {
		return err
	}
	fmt.Fprint(os.Stdout, r.History(records))
	return nil
}
