package main

import (
	"github.com/charmbracelet/lipgloss"
)

// CompletionDialog is the verb completion pop-up opened with Tab
type CompletionDialog struct {
	Options           []string
	Selected          int
	Visible           bool
	Height            int
	Offset            int
	Style             lipgloss.Style
	SelectedItemStyle lipgloss.Style
}

// NewCompletionDialog creates a new completion dialog
func NewCompletionDialog(theme *Theme) CompletionDialog {
	return CompletionDialog{
		Height: 6,
		Style: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Blue).
			Foreground(theme.White),
		SelectedItemStyle: lipgloss.NewStyle().
			Background(theme.Blue).
			Foreground(theme.White),
	}
}

// SetOptions updates the completion options and resets the selection
func (c *CompletionDialog) SetOptions(options []string) {
	c.Options = options
	c.Selected = 0
	c.Offset = 0
}

// Show makes the dialog visible
func (c *CompletionDialog) Show() {
	c.Visible = true
}

// Hide makes the dialog invisible
func (c *CompletionDialog) Hide() {
	c.Visible = false
}

// SelectNext moves selection to the next item, scrolling the window
func (c *CompletionDialog) SelectNext() {
	if c.Selected+1 >= len(c.Options) {
		return
	}
	c.Selected++
	if c.Selected >= c.Offset+c.Height {
		c.Offset = c.Selected - c.Height + 1
	}
}

// SelectPrev moves selection to the previous item
func (c *CompletionDialog) SelectPrev() {
	if c.Selected == 0 {
		return
	}
	c.Selected--
	if c.Selected < c.Offset {
		c.Offset = c.Selected
	}
}

// GetSelected returns the currently selected option
func (c CompletionDialog) GetSelected() string {
	if c.Selected >= 0 && c.Selected < len(c.Options) {
		return c.Options[c.Selected]
	}
	return ""
}

// View renders the completion dialog
func (c CompletionDialog) View() string {
	if !c.Visible || len(c.Options) == 0 {
		return ""
	}
	end := c.Offset + c.Height
	if end > len(c.Options) {
		end = len(c.Options)
	}
	lines := make([]string, 0, end-c.Offset)
	for i := c.Offset; i < end; i++ {
		if i == c.Selected {
			lines = append(lines, c.SelectedItemStyle.Render(c.Options[i]))
		} else {
			lines = append(lines, c.Options[i])
		}
	}
	return c.Style.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
