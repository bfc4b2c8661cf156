package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nachoal/ollama-client-go/tui/styles"
)

// PromptInput reads a single line of text
type PromptInput struct {
	styles     *styles.Styles
	title      string
	input      textinput.Model
	allowEmpty bool
	value      string
	submitted  bool
	hint       string
}

// NewPromptInput creates a prompt. With allowEmpty an empty line is a valid answer.
func NewPromptInput(s *styles.Styles, title, placeholder string, allowEmpty bool) PromptInput {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = "> "
	ti.PromptStyle = s.Prompt
	ti.CharLimit = 0
	ti.Width = 72
	ti.Focus()

	return PromptInput{
		styles:     s,
		title:      title,
		input:      ti,
		allowEmpty: allowEmpty,
	}
}

// Value returns the submitted text and whether the user submitted at all
func (m PromptInput) Value() (string, bool) {
	return m.value, m.submitted
}

func (m PromptInput) Init() tea.Cmd {
	return textinput.Blink
}

func (m PromptInput) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if msg.Width > 8 {
			m.input.Width = msg.Width - 4
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEsc, tea.KeyCtrlC:
			m.submitted = false
			return m, tea.Quit
		case tea.KeyEnter:
			value := strings.TrimSpace(m.input.Value())
			if value == "" && !m.allowEmpty {
				m.hint = "Please enter a prompt (esc to cancel)"
				return m, nil
			}
			m.value = value
			m.submitted = true
			return m, tea.Quit
		}
	}

	m.hint = ""
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m PromptInput) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render(m.title))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.hint != "" {
		b.WriteString(m.styles.Warning.Render(m.hint))
	} else {
		b.WriteString(m.styles.Help.Render("enter to submit • esc to cancel"))
	}
	b.WriteString("\n")
	return b.String()
}

type pickItem string

func (i pickItem) Title() string       { return string(i) }
func (i pickItem) Description() string { return "" }
func (i pickItem) FilterValue() string { return string(i) }

// Picker chooses one entry from a list of names
type Picker struct {
	list      list.Model
	selected  string
	submitted bool
}

// NewPicker creates a filterable picker over items
func NewPicker(s *styles.Styles, title string, items []string) Picker {
	listItems := make([]list.Item, len(items))
	for i, item := range items {
		listItems[i] = pickItem(item)
	}

	delegate := newDelegate(s)
	delegate.ShowDescription = false
	delegate.SetSpacing(0)

	l := list.New(listItems, delegate, 60, 20)
	l.Title = title
	l.Styles.Title = s.Header
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(true)

	return Picker{list: l}
}

// Selected returns the chosen name and whether a choice was made
func (m Picker) Selected() (string, bool) {
	return m.selected, m.submitted
}

func (m Picker) Init() tea.Cmd {
	return nil
}

func (m Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		// Keys go to the filter input while the user is typing a filter
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "enter":
			if item, ok := m.list.SelectedItem().(pickItem); ok {
				m.selected = string(item)
				m.submitted = true
				return m, tea.Quit
			}
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Picker) View() string {
	return m.list.View()
}
