// Package tui provides terminal user interface components for onyx.
//
// This package uses the Bubble Tea framework for the few interactive
// screens the CLI has.
//
// # Image Picker
//
// `onyx open` without a name shows the stored images and opens the chosen one:
//
//	result, err := tui.RunPicker(images, pending)
//	switch result.Action {
//	case tui.ActionOpen, tui.ActionOpenDirect:
//	    // Open result.Image, writing into the image for ActionOpenDirect
//	case tui.ActionQuit, tui.ActionNone:
//	    // Exit
//	}
//
// Images for which pending reports an unapplied delta are flagged in the list.
//
// SimplePicker renders the same list as plain text when stdin is not a terminal.
//
// # Prompts
//
// Prompter returns a delta.PromptFunc: a textinput prompt on a terminal,
// or LinePrompt, which reads one line per question, for piped input.
//
// # Profile Table
//
// ProfileTable renders ranked resource profiles with memory, CPU and nice
// columns coloured by severity.
//
// # Dependencies
//
// Uses the Charm libraries:
//   - github.com/charmbracelet/bubbletea - TUI framework
//   - github.com/charmbracelet/bubbles - UI components
//   - github.com/charmbracelet/lipgloss - Styling
package tui
