package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// LineHistory is the in-memory list of committed lines with a recall cursor.
// The cursor always stays within [0, Len()]; Len() means "past the end".
type LineHistory struct {
	entries []string
	cursor  int
}

// NewLineHistory seeds the history, typically from the persisted store.
func NewLineHistory(entries []string) *LineHistory {
	h := &LineHistory{entries: append([]string(nil), entries...)}
	h.cursor = len(h.entries)
	return h
}

// Commit appends a non-empty line and parks the cursor past the end.
func (h *LineHistory) Commit(line string) bool {
	if line == "" {
		return false
	}
	h.entries = append(h.entries, line)
	h.cursor = len(h.entries)
	return true
}

// RecallPrevious steps back one line. ok is false at the oldest entry (or
// when empty) and the caller should leave the input untouched.
func (h *LineHistory) RecallPrevious() (line string, ok bool) {
	if h.cursor <= 0 {
		return "", false
	}
	h.cursor--
	return h.entries[h.cursor], true
}

// RecallNext steps forward one line; stepping past the newest entry returns
// "" so the input is cleared.
func (h *LineHistory) RecallNext() string {
	if h.cursor < len(h.entries)-1 {
		h.cursor++
		return h.entries[h.cursor]
	}
	h.cursor = len(h.entries)
	return ""
}

// Reset drops every line.
func (h *LineHistory) Reset() {
	h.entries = nil
	h.cursor = 0
}

func (h *LineHistory) Len() int    { return len(h.entries) }
func (h *LineHistory) Cursor() int { return h.cursor }

// Entries returns a copy of the committed lines, oldest first.
func (h *LineHistory) Entries() []string {
	return append([]string(nil), h.entries...)
}

// HistoryEntry is one persisted command line
type HistoryEntry struct {
	Line      string    `json:"line"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryStore manages persistent storage of command history
type HistoryStore struct {
	filePath string
	maxSize  int
}

// NewHistoryStore creates a history store under the data directory
func NewHistoryStore(maxSize int) (*HistoryStore, error) {
	dir, err := dataDir()
	if err != nil {
		return nil, err
	}
	if maxSize <= 0 {
		maxSize = defaultConfig().History.MaxSize
	}
	return &HistoryStore{
		filePath: filepath.Join(dir, "history.json"),
		maxSize:  maxSize,
	}, nil
}

// Load reads the history from disk
func (h *HistoryStore) Load() ([]HistoryEntry, error) {
	data, err := os.ReadFile(h.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []HistoryEntry{}, nil
		}
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	var entries []HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Warn("failed to parse history file, starting fresh", "error", err)
		return []HistoryEntry{}, nil
	}

	return entries, nil
}

// Lines returns the persisted lines, oldest first.
func (h *HistoryStore) Lines() ([]string, error) {
	entries, err := h.Load()
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.Line)
	}
	return lines, nil
}

// Save writes the history to disk
func (h *HistoryStore) Save(entries []HistoryEntry) error {
	if len(entries) > h.maxSize {
		entries = entries[len(entries)-h.maxSize:]
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	tmpPath := h.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}

	if err := os.Rename(tmpPath, h.filePath); err != nil {
		return fmt.Errorf("failed to rename history file: %w", err)
	}

	return nil
}

// Append adds a line to the history and saves it. Consecutive duplicates
// are stored once.
func (h *HistoryStore) Append(line string) error {
	entries, err := h.Load()
	if err != nil {
		return err
	}

	if len(entries) > 0 && entries[len(entries)-1].Line == line {
		return nil
	}

	entries = append(entries, HistoryEntry{
		Line:      line,
		Timestamp: time.Now(),
	})

	return h.Save(entries)
}

// Clear removes all history
func (h *HistoryStore) Clear() error {
	if err := os.Remove(h.filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}
