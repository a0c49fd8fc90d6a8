package main

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const transcriptStyle = `body{background:#0d0d0d;color:#e0e0e0;font-family:monospace;max-width:860px;margin:2em auto}
.msg{padding:.6em 1em;margin:.6em 0;border-radius:6px}
.user{background:#1a2b1a;border-left:3px solid #00ff41}
.mentor{background:#111a2b;border-left:3px solid #367bf0}
.role{font-weight:bold;margin-bottom:.3em}
code{background:#222;padding:0 .2em}
a{color:#367bf0}`

// exportTranscript writes the mentor transcript as a standalone HTML page
// and returns its path. An empty dir means the system temp directory.
func exportTranscript(app *AppState, dir string) (string, error) {
	if app == nil || len(app.MentorChat) == 0 {
		return "", fmt.Errorf("no mentor messages to export")
	}
	if dir == "" {
		dir = os.TempDir()
	}

	timestamp := time.Now().Format("20060102-150405")
	path := filepath.Join(dir, fmt.Sprintf("kaliguru-transcript-%s.html", timestamp))

	if err := os.WriteFile(path, []byte(renderTranscript(app, time.Now())), 0o644); err != nil {
		return "", fmt.Errorf("failed to write transcript: %w", err)
	}
	return path, nil
}

func renderTranscript(app *AppState, now time.Time) string {
	var b strings.Builder

	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\">\n")
	b.WriteString("<title>KaliGuru Mentor Transcript</title>\n")
	b.WriteString("<style>" + transcriptStyle + "</style>\n</head><body>\n")
	b.WriteString("<h1>KaliGuru Mentor Transcript</h1>\n")

	fmt.Fprintf(&b, "<p>User: %s | Mode: %s | Cert: %s | Exported: %s</p>\n",
		html.EscapeString(app.Username()),
		html.EscapeString(app.LearningMode),
		html.EscapeString(app.SelectedCert),
		now.Format("2006-01-02 15:04:05"))

	if app.Assessment != nil {
		fmt.Fprintf(&b, "<p>Assessed level: %s (%.0f%%)</p>\n",
			html.EscapeString(app.Assessment.Level), app.Assessment.Score)
	}
	b.WriteString("<hr>\n")

	for _, msg := range app.MentorChat {
		label := "You"
		if msg.Role == RoleMentor {
			label = "Mentor"
		}
		fmt.Fprintf(&b, "<div class=\"msg %s\"><div class=\"role\">%s</div>%s</div>\n",
			msg.Role, label, FormatMarkdown(msg.Text))
	}

	b.WriteString("</body></html>\n")
	return b.String()
}
