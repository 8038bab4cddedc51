package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/firefly-engineering/onyx/internal/store"
)

// Action represents the action to take after picker selection
type Action int

const (
	ActionNone Action = iota
	ActionOpen
	// ActionOpenDirect opens the image without a delta; changes are
	// written into the image.
	ActionOpenDirect
	ActionQuit
)

// PendingFunc reports whether the caller has an unapplied delta for an image.
type PendingFunc func(name string) bool

// PickerResult holds the result of the picker
type PickerResult struct {
	Action Action
	Image  *store.Image
}

// imageItem implements list.Item for image display
type imageItem struct {
	image   store.Image
	pending bool
}

func (i imageItem) Title() string {
	return i.image.Name
}

func (i imageItem) Description() string {
	desc := fmt.Sprintf("%s | modified %s",
		humanize.Bytes(uint64(i.image.Size)),
		humanize.Time(i.image.ModTime),
	)
	if i.pending {
		desc += " | " + pendingStyle.Render("unapplied changes")
	}
	return desc
}

func (i imageItem) FilterValue() string {
	return i.image.Name
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			MarginBottom(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))
)

// Model is the bubbletea model for the image picker
type Model struct {
	list     list.Model
	result   PickerResult
	quitting bool
	width    int
	height   int
}

// NewPicker creates a new image picker. pending may be nil.
func NewPicker(images []store.Image, pending PendingFunc) Model {
	items := make([]list.Item, len(images))
	for i, img := range images {
		items[i] = imageItem{image: img, pending: pending != nil && pending(img.Name)}
	}

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = selectedStyle
	delegate.Styles.SelectedDesc = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	l := list.New(items, delegate, 80, 20)
	l.Title = "onyx - Select Image"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle

	return Model{list: l}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width, msg.Height-4)
		return m, nil

	case tea.KeyMsg:
		// Don't handle keys if filtering
		if m.list.FilterState() == list.Filtering {
			break
		}

		switch msg.String() {
		case "enter":
			if m.choose(ActionOpen) {
				return m, tea.Quit
			}

		case "t":
			if m.choose(ActionOpenDirect) {
				return m, tea.Quit
			}

		case "q", "esc", "ctrl+c":
			m.result = PickerResult{Action: ActionQuit}
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// choose records action for the selected image.
func (m *Model) choose(action Action) bool {
	item, ok := m.list.SelectedItem().(imageItem)
	if !ok {
		return false
	}
	img := item.image
	m.result = PickerResult{Action: action, Image: &img}
	m.quitting = true
	return true
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	help := helpStyle.Render("[enter] Open  [t] Open on image (no delta)  [/] Filter  [q] Quit")

	return m.list.View() + "\n" + help
}

// Result returns the picker result
func (m Model) Result() PickerResult {
	return m.result
}

// RunPicker runs the interactive image picker
func RunPicker(images []store.Image, pending PendingFunc) (PickerResult, error) {
	if len(images) == 0 {
		return PickerResult{Action: ActionNone}, nil
	}

	m := NewPicker(images, pending)
	p := tea.NewProgram(m, tea.WithAltScreen())

	finalModel, err := p.Run()
	if err != nil {
		return PickerResult{}, err
	}

	return finalModel.(Model).Result(), nil
}

// SimplePicker is a non-interactive listing of images
func SimplePicker(images []store.Image) string {
	var sb strings.Builder

	sb.WriteString("onyx - Images\n")
	sb.WriteString(strings.Repeat("─", 60) + "\n\n")

	if len(images) == 0 {
		sb.WriteString("No images found.\n")
		sb.WriteString("Create one with: onyx create <name> <rootfs>\n")
		return sb.String()
	}

	for i, img := range images {
		sb.WriteString(fmt.Sprintf("%d. %s (%s)\n", i+1, img.Name, humanize.Bytes(uint64(img.Size))))
	}
	sb.WriteString("\nOpen one with: onyx open <name>\n")

	return sb.String()
}
