// Package tui holds the bubbletea interview that collects a system request
// before a run.
//
// Each question is answered in a textarea. enter submits the answer and
// moves on, alt+enter inserts a newline, shift+tab returns to the previous
// question, esc or ctrl+c abandons the interview.
package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrAborted is returned by Run when the user leaves before the last
// question.
var ErrAborted = errors.New("tui: interview aborted")

var (
	groupStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	questionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	progressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	boxStyle      = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

// Interview is the bubbletea model.
type Interview struct {
	groups  []QuestionGroup
	answers [][]string
	group   int
	index   int
	input   textarea.Model
	width   int
	done    bool
	aborted bool
}

// NewInterview builds the model. Nil groups means DefaultQuestions.
func NewInterview(groups []QuestionGroup) *Interview {
	if len(groups) == 0 {
		groups = DefaultQuestions()
	}
	answers := make([][]string, len(groups))
	for i, g := range groups {
		answers[i] = make([]string, len(g.Questions))
	}
	input := textarea.New()
	input.Placeholder = "Type your answer"
	input.ShowLineNumbers = false
	input.CharLimit = 0
	input.SetHeight(4)
	input.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	input.Focus()
	m := &Interview{groups: groups, answers: answers, input: input, width: 80}
	m.skipEmptyGroups()
	return m
}

// Init implements tea.Model.
func (m *Interview) Init() tea.Cmd {
	return textarea.Blink
}

// Update implements tea.Model.
func (m *Interview) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.SetWidth(max(20, msg.Width-4))
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.aborted = true
			return m, tea.Quit
		case "enter":
			m.answers[m.group][m.index] = strings.TrimSpace(m.input.Value())
			if !m.advance() {
				m.done = true
				return m, tea.Quit
			}
			m.input.SetValue(m.answers[m.group][m.index])
			return m, nil
		case "shift+tab":
			m.answers[m.group][m.index] = strings.TrimSpace(m.input.Value())
			m.retreat()
			m.input.SetValue(m.answers[m.group][m.index])
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m *Interview) View() string {
	if m.done || m.aborted {
		return ""
	}
	group := m.groups[m.group]
	var b strings.Builder
	b.WriteString(groupStyle.Render(group.Title))
	b.WriteString("  ")
	b.WriteString(progressStyle.Render(fmt.Sprintf("%d/%d", m.position()+1, questionCount(m.groups))))
	b.WriteString("\n\n")
	b.WriteString(lipgloss.NewStyle().Width(max(20, m.width-2)).Render(questionStyle.Render(group.Questions[m.index])))
	b.WriteString("\n\n")
	b.WriteString(boxStyle.Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(hintStyle.Render("enter next • alt+enter newline • shift+tab back • esc quit"))
	return b.String()
}

// Done reports whether every question was visited.
func (m *Interview) Done() bool { return m.done }

// Aborted reports whether the user quit early.
func (m *Interview) Aborted() bool { return m.aborted }

// Request returns the composed system request.
func (m *Interview) Request() string {
	return Compose(m.groups, m.answers)
}

func (m *Interview) advance() bool {
	if m.index+1 < len(m.groups[m.group].Questions) {
		m.index++
		return true
	}
	for g := m.group + 1; g < len(m.groups); g++ {
		if len(m.groups[g].Questions) > 0 {
			m.group, m.index = g, 0
			return true
		}
	}
	return false
}

func (m *Interview) retreat() {
	if m.index > 0 {
		m.index--
		return
	}
	for g := m.group - 1; g >= 0; g-- {
		if n := len(m.groups[g].Questions); n > 0 {
			m.group, m.index = g, n-1
			return
		}
	}
}

func (m *Interview) skipEmptyGroups() {
	for m.group < len(m.groups)-1 && len(m.groups[m.group].Questions) == 0 {
		m.group++
	}
	if len(m.groups[m.group].Questions) == 0 {
		m.done = true
	}
}

func (m *Interview) position() int {
	pos := m.index
	for g := 0; g < m.group; g++ {
		pos += len(m.groups[g].Questions)
	}
	return pos
}

// Run shows the interview full screen and returns the composed request.
func Run(groups []QuestionGroup, opts ...tea.ProgramOption) (string, error) {
	model := NewInterview(groups)
	if model.Done() {
		return model.Request(), nil
	}
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	final, err := tea.NewProgram(model, opts...).Run()
	if err != nil {
		return "", fmt.Errorf("tui: run interview: %w", err)
	}
	result, ok := final.(*Interview)
	if !ok || result.Aborted() || !result.Done() {
		return "", ErrAborted
	}
	return result.Request(), nil
}
