package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nachoal/ollama-client-go/app"
	"github.com/nachoal/ollama-client-go/endpoint"
	"github.com/nachoal/ollama-client-go/llm"
)

// Session is the interactive menu loop. Generation output is streamed
// straight to the terminal between bubbletea programs.
type Session struct {
	app *app.App
	r   *Renderer
	out io.Writer

	// Overridable for tests
	chooseAction func() (Action, error)
	readLine     func(title, placeholder string, allowEmpty bool) (string, bool, error)
	pickOne      func(title string, items []string) (string, bool, error)
	actionCtx    func(ctx context.Context) (context.Context, context.CancelFunc)
}

// NewSession creates an interactive session writing to out
func NewSession(a *app.App, r *Renderer, out io.Writer) *Session {
	s := &Session{app: a, r: r, out: out}
	s.chooseAction = s.runMenu
	s.readLine = s.runPrompt
	s.pickOne = s.runPicker
	s.actionCtx = func(ctx context.Context) (context.Context, context.CancelFunc) {
		// Ctrl+C during an action cancels it and returns to the menu
		return signal.NotifyContext(ctx, os.Interrupt)
	}
	return s
}

// Run shows the menu until the user exits or ctx is cancelled
func (s *Session) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		action, err := s.chooseAction()
		if err != nil {
			return fmt.Errorf("menu failed: %w", err)
		}
		if action == ActionExit || action == 0 {
			fmt.Fprintln(s.out, s.r.Styles().Dim.Render("Goodbye!"))
			return nil
		}

		if err := s.Handle(ctx, action); err != nil {
			fmt.Fprint(s.out, s.r.Failure(err))
		}
		fmt.Fprintln(s.out)
	}
}

// Handle runs a single menu action
func (s *Session) Handle(ctx context.Context, action Action) error {
	ctx, stop := s.actionCtx(ctx)
	defer stop()

	switch action {
	case ActionGenerate:
		return s.generate(ctx, endpoint.Remote)
	case ActionGenerateLocal:
		return s.generate(ctx, endpoint.Local)
	case ActionAnalyzeImage:
		return s.analyzeImage(ctx)
	case ActionTestConnections:
		fmt.Fprint(s.out, s.r.Connections(s.app.TestConnections(ctx)))
		return nil
	case ActionListModels:
		models, err := s.app.ListModels(ctx)
		if err != nil {
			return err
		}
		fmt.Fprint(s.out, s.r.Models(models))
		return nil
	case ActionViewConfig:
		fmt.Fprint(s.out, s.r.Config(s.app.Config()))
		return nil
	default:
		return fmt.Errorf("unknown action %d", int(action))
	}
}

func (s *Session) generate(ctx context.Context, target endpoint.Target) error {
	title := "Prompt"
	if target == endpoint.Local {
		title = "Prompt (local)"
	}
	prompt, ok, err := s.readLine(title, "Ask anything...", false)
	if err != nil || !ok {
		return err
	}

	fmt.Fprint(s.out, s.r.Generating("Generating", target.String()))
	result, err := s.app.Generate(ctx, prompt, target)
	if err != nil {
		return err
	}
	fmt.Fprint(s.out, s.r.Result(result))
	return nil
}

func (s *Session) analyzeImage(ctx context.Context) error {
	names, err := s.app.ListImages()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprint(s.out, s.r.NoImages(s.app.Config().ImagesDir))
		return nil
	}

	name, ok, err := s.pickOne("Select an image", names)
	if err != nil || !ok {
		return err
	}
	prompt, ok, err := s.readLine("Prompt for "+name, llm.DefaultImagePrompt, true)
	if err != nil || !ok {
		return err
	}

	fmt.Fprint(s.out, s.r.Generating("Analyzing "+name, endpoint.Remote.String()))
	result, err := s.app.AnalyzeImage(ctx, name, prompt, endpoint.Remote)
	if err != nil {
		return err
	}
	fmt.Fprint(s.out, s.r.Result(result))
	return nil
}

func (s *Session) runMenu() (Action, error) {
	subtitle := "local " + s.app.Config().LocalAddress()
	if cfg := s.app.Config(); cfg.RemoteEnabled() {
		subtitle = "remote " + cfg.RemoteAddress() + " • " + subtitle
	}

	final, err := tea.NewProgram(NewMenu(s.r.Styles(), subtitle), tea.WithOutput(s.out)).Run()
	if err != nil {
		return 0, err
	}
	return final.(Menu).Choice(), nil
}

func (s *Session) runPrompt(title, placeholder string, allowEmpty bool) (string, bool, error) {
	final, err := tea.NewProgram(NewPromptInput(s.r.Styles(), title, placeholder, allowEmpty), tea.WithOutput(s.out)).Run()
	if err != nil {
		return "", false, err
	}
	value, ok := final.(PromptInput).Value()
	return value, ok, nil
}

func (s *Session) runPicker(title string, items []string) (string, bool, error) {
	final, err := tea.NewProgram(NewPicker(s.r.Styles(), title, items), tea.WithOutput(s.out)).Run()
	if err != nil {
		return "", false, err
	}
	name, ok := final.(Picker).Selected()
	return name, ok, nil
}
