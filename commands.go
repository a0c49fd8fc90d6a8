package main

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Command is a verb understood in command mode
type Command struct {
	Name        string
	Usage       string
	Description string
	Handler     func(*TUIModel, []string) tea.Cmd
}

// CommandRegistry holds all available commands
type CommandRegistry struct {
	Commands map[string]Command
	order    []string
}

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() CommandRegistry {
	registry := CommandRegistry{
		Commands: make(map[string]Command),
	}

	registry.RegisterCommand("help", "", "Show this help", handleHelpCommand)
	registry.RegisterCommand("assess", "", "Start dynamic assessment", handleAssessCommand)
	registry.RegisterCommand("roadmap", "[cert]", "Generate roadmap (e.g. 'roadmap oscp')", handleRoadmapCommand)
	registry.RegisterCommand("chat", "", "Talk to KaliGuru Mentor", handleChatCommand)
	registry.RegisterCommand("setup", "", "Configure API keys", handleSetupCommand)
	registry.RegisterCommand("mode", "[beginner|oscp]", "Show or set the learning mode", handleModeCommand)
	registry.RegisterCommand("ls", "", "List files", handleLsCommand)
	registry.RegisterCommand("cat", "<file>", "Print a file", handleCatCommand)
	registry.RegisterCommand("whoami", "", "Print the current user", handleWhoamiCommand)
	registry.RegisterCommand("history", "[clear]", "Show or clear command history", handleHistoryCommand)
	registry.RegisterCommand("export", "", "Save the mentor transcript as HTML", handleExportCommand)
	registry.RegisterCommand("clear", "", "Clear screen", handleClearCommand)
	registry.RegisterCommand("logout", "", "End the session", handleLogoutCommand)
	registry.RegisterCommand("exit", "", "Leave the terminal", handleExitCommand)
	registry.RegisterCommand("flappy", "", "Take a break", handleFlappyCommand)

	return registry
}

// RegisterCommand registers a new command
func (cr *CommandRegistry) RegisterCommand(name, usage, description string, handler func(*TUIModel, []string) tea.Cmd) {
	if _, exists := cr.Commands[name]; !exists {
		cr.order = append(cr.order, name)
	}
	cr.Commands[name] = Command{
		Name:        name,
		Usage:       usage,
		Description: description,
		Handler:     handler,
	}
}

// GetCommand gets a command by name
func (cr CommandRegistry) GetCommand(name string) (Command, bool) {
	cmd, exists := cr.Commands[name]
	return cmd, exists
}

// GetAllCommands returns all registered commands in registration order
func (cr CommandRegistry) GetAllCommands() []Command {
	commands := make([]Command, 0, len(cr.order))
	for _, name := range cr.order {
		if cmd, ok := cr.Commands[name]; ok {
			commands = append(commands, cmd)
		}
	}
	return commands
}

// Complete returns the verbs starting with prefix, sorted.
func (cr CommandRegistry) Complete(prefix string) []string {
	prefix = strings.ToLower(prefix)
	var matches []string
	for name := range cr.Commands {
		if strings.HasPrefix(name, prefix) {
			matches = append(matches, name)
		}
	}
	sort.Strings(matches)
	return matches
}

// CommandLine is a parsed command-mode line
type CommandLine struct {
	Verb string
	Args []string
}

// ParseCommandLine splits on single spaces. The verb is case-folded, the
// arguments are kept as typed.
func ParseCommandLine(line string) CommandLine {
	parts := strings.Split(line, " ")
	return CommandLine{
		Verb: strings.ToLower(parts[0]),
		Args: parts[1:],
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// processCommand runs one command-mode line.
func (m *TUIModel) processCommand(line string) tea.Cmd {
	parsed := ParseCommandLine(line)
	cmd, ok := m.commandRegistry.GetCommand(parsed.Verb)
	if !ok {
		m.output.Print(fmt.Sprintf("Command not found: %s. Type 'help' for options.", parsed.Verb), StyleError)
		return nil
	}
	slog.Debug("command", "verb", parsed.Verb, "args", len(parsed.Args))
	return cmd.Handler(m, parsed.Args)
}

// Command handlers

func handleHelpCommand(m *TUIModel, args []string) tea.Cmd {
	m.output.Print("COMMANDS:", StyleHeading)
	for _, cmd := range m.commandRegistry.GetAllCommands() {
		name := cmd.Name
		if cmd.Usage != "" {
			name += " " + cmd.Usage
		}
		m.output.Print(fmt.Sprintf("  %-24s - %s", name, cmd.Description), StyleEmphasis)
	}
	return nil
}

func handleAssessCommand(m *TUIModel, args []string) tea.Cmd {
	return m.startAssessment(purposeAssess, "")
}

func handleRoadmapCommand(m *TUIModel, args []string) tea.Cmd {
	return m.startRoadmap(firstArg(args))
}

func handleChatCommand(m *TUIModel, args []string) tea.Cmd {
	m.output.Print("Chat Mode enabled. Type 'exit' to quit.", StyleDim)
	m.setMode(ModeChat)
	return nil
}

func handleSetupCommand(m *TUIModel, args []string) tea.Cmd {
	m.beginSetup()
	return nil
}

func handleModeCommand(m *TUIModel, args []string) tea.Cmd {
	mode := strings.ToLower(firstArg(args))
	if mode == "" {
		m.output.Print("Learning mode: "+m.app.LearningMode, StylePlain)
		return nil
	}
	if mode != "beginner" && mode != "oscp" {
		m.output.Print(fmt.Sprintf("mode: unknown learning mode %q (use beginner or oscp)", mode), StyleError)
		return nil
	}
	m.app.LearningMode = mode
	m.config.Mentor.LearningMode = mode
	if err := SaveConfig(m.config); err != nil {
		slog.Warn("failed to save learning mode", "error", err)
		m.toastManager.AddToast("Could not save learning mode", ToastWarning, 3*time.Second)
	}
	m.output.Print("Learning mode set to "+mode+".", StyleSuccess)
	return nil
}

func handleLsCommand(m *TUIModel, args []string) tea.Cmd {
	m.output.Print(m.files.Listing(), StylePlain)
	return nil
}

func handleCatCommand(m *TUIModel, args []string) tea.Cmd {
	content, err := m.files.Read(firstArg(args))
	if err != nil {
		m.output.Print(err.Error(), StyleError)
		return nil
	}
	m.output.Print(content, StylePlain)
	return nil
}

func handleWhoamiCommand(m *TUIModel, args []string) tea.Cmd {
	m.output.Print(m.app.Username(), StylePlain)
	return nil
}

func handleHistoryCommand(m *TUIModel, args []string) tea.Cmd {
	if strings.EqualFold(firstArg(args), "clear") {
		m.term.History.Reset()
		if m.historyStore != nil {
			if err := m.historyStore.Clear(); err != nil {
				slog.Warn("failed to clear history", "error", err)
				m.output.Print("history: "+err.Error(), StyleError)
				return nil
			}
		}
		m.output.Print("History cleared.", StyleDim)
		return nil
	}

	entries := m.term.History.Entries()
	if len(entries) == 0 {
		m.output.Print("No history yet.", StyleDim)
		return nil
	}
	for i, line := range entries {
		m.output.Print(fmt.Sprintf("%5d  %s", i+1, line), StylePlain)
	}
	return nil
}

func handleExportCommand(m *TUIModel, args []string) tea.Cmd {
	if len(m.app.MentorChat) == 0 {
		m.output.Print("Nothing to export yet. Try 'chat' first.", StyleDim)
		return nil
	}
	path, err := exportTranscript(m.app, m.exportDir)
	if err != nil {
		slog.Error("failed to export transcript", "error", err)
		m.output.Print("export: "+err.Error(), StyleError)
		return nil
	}
	m.output.Print("Transcript saved to "+path, StyleSuccess)
	m.toastManager.AddToast("Transcript exported", ToastSuccess, 3*time.Second)
	return nil
}

func handleClearCommand(m *TUIModel, args []string) tea.Cmd {
	m.output.Clear()
	return nil
}

type logoutDoneMsg struct{ err error }

func handleLogoutCommand(m *TUIModel, args []string) tea.Cmd {
	sessionID := m.app.SessionID
	m.forgetSession()
	m.clearProgress()
	m.output.Print("Logged out.", StyleDim)
	m.beginLogin()
	if sessionID == "" {
		return nil
	}
	client := m.client
	return func() tea.Msg {
		return logoutDoneMsg{err: client.Logout(context.Background(), sessionID)}
	}
}

func handleExitCommand(m *TUIModel, args []string) tea.Cmd {
	m.cancelReplies()
	m.saveState()
	return tea.Quit
}

func handleFlappyCommand(m *TUIModel, args []string) tea.Cmd {
	m.output.Print("flappy: the arcade lives in the desktop edition. Back to work, Commander.", StyleDim)
	return nil
}
