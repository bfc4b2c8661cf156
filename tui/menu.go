package tui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nachoal/ollama-client-go/tui/styles"
)

// Action is a main menu entry
type Action int

const (
	ActionGenerate Action = iota + 1
	ActionGenerateLocal
	ActionAnalyzeImage
	ActionTestConnections
	ActionListModels
	ActionViewConfig
	ActionExit
)

var actionInfo = map[Action][2]string{
	ActionGenerate:        {"Generate text", "Remote server, falls back to local"},
	ActionGenerateLocal:   {"Generate text (local)", "Local server only"},
	ActionAnalyzeImage:    {"Analyze image", "Describe an image from the images directory"},
	ActionTestConnections: {"Test connections", "Heartbeat, version and vision model check"},
	ActionListModels:      {"List local models", "Models installed on the local server"},
	ActionViewConfig:      {"View configuration", "Current endpoints, models and timeouts"},
	ActionExit:            {"Exit", ""},
}

// Actions lists the menu entries in display order
var Actions = []Action{
	ActionGenerate,
	ActionGenerateLocal,
	ActionAnalyzeImage,
	ActionTestConnections,
	ActionListModels,
	ActionViewConfig,
	ActionExit,
}

func (a Action) String() string {
	if info, ok := actionInfo[a]; ok {
		return info[0]
	}
	return fmt.Sprintf("action(%d)", int(a))
}

type actionItem struct {
	action Action
}

func (i actionItem) Title() string {
	return fmt.Sprintf("%d. %s", int(i.action), i.action)
}
func (i actionItem) Description() string { return actionInfo[i.action][1] }
func (i actionItem) FilterValue() string { return i.action.String() }

// Menu is the main menu. It quits as soon as an action is chosen.
type Menu struct {
	list   list.Model
	choice Action
}

// NewMenu creates the main menu
func NewMenu(s *styles.Styles, subtitle string) Menu {
	items := make([]list.Item, len(Actions))
	for i, a := range Actions {
		items[i] = actionItem{action: a}
	}

	l := list.New(items, newDelegate(s), 60, 24)
	l.Title = "Ollama Client"
	l.Styles.Title = s.Header
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(true)
	if subtitle != "" {
		l.NewStatusMessage(s.Label.Render(subtitle))
	}

	return Menu{list: l}
}

// Choice returns the chosen action, or zero when none was made
func (m Menu) Choice() Action {
	return m.choice
}

func (m Menu) Init() tea.Cmd {
	return nil
}

func (m Menu) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch key := msg.String(); key {
		case "q", "esc", "ctrl+c":
			m.choice = ActionExit
			return m, tea.Quit
		case "enter":
			if item, ok := m.list.SelectedItem().(actionItem); ok {
				m.choice = item.action
				return m, tea.Quit
			}
		default:
			// Number keys pick an entry directly
			if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= len(Actions) {
				m.choice = Actions[n-1]
				return m, tea.Quit
			}
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Menu) View() string {
	return m.list.View()
}

func newDelegate(s *styles.Styles) list.DefaultDelegate {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(s.Theme.Primary).
		BorderLeftForeground(s.Theme.Primary)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(s.Theme.Secondary).
		BorderLeftForeground(s.Theme.Primary)
	return delegate
}
