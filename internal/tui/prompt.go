package tui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/firefly-engineering/onyx/internal/delta"
)

var (
	questionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// promptModel asks one question and records the typed answer.
type promptModel struct {
	question  string
	input     textinput.Model
	answer    string
	done      bool
	cancelled bool
}

func newPromptModel(question string) promptModel {
	ti := textinput.New()
	ti.Placeholder = "y/N"
	ti.CharLimit = 16
	ti.Width = 10
	ti.Focus()

	return promptModel{question: question, input: ti}
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.Type {
		case tea.KeyEnter:
			m.answer = m.input.Value()
			m.done = true
			return m, tea.Quit
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	if m.done {
		return ""
	}
	return questionStyle.Render(m.question) + "\n" +
		m.input.View() + "\n" +
		hintStyle.Render("[enter] Answer  [esc] Cancel") + "\n"
}

// RunPrompt asks question on the terminal. A cancelled prompt answers "".
func RunPrompt(question string) (string, error) {
	p := tea.NewProgram(newPromptModel(question))
	final, err := p.Run()
	if err != nil {
		return "", err
	}
	m := final.(promptModel)
	if m.cancelled {
		return "", nil
	}
	return m.answer, nil
}

// LinePrompt reads one answer per question from r, for piped input.
func LinePrompt(r io.Reader, w io.Writer) delta.PromptFunc {
	reader := bufio.NewReader(r)
	return func(question string) (string, error) {
		fmt.Fprintf(w, "%s [y/N]: ", question)
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
}

// Prompter picks the bubbletea prompt when in is a terminal and the
// plain line prompt otherwise.
func Prompter(in *os.File, out io.Writer) delta.PromptFunc {
	if term.IsTerminal(int(in.Fd())) {
		return RunPrompt
	}
	return LinePrompt(in, out)
}
