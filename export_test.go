package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportTranscript(t *testing.T) {
	dir := t.TempDir()
	app := &AppState{
		User:         &User{Username: "neo"},
		LearningMode: "oscp",
		SelectedCert: "OSCP",
		Assessment:   &Evaluation{Level: "Advanced", Score: 88},
		MentorChat: []ChatMessage{
			{Role: RoleUser, Text: "is <script>alert(1)</script> XSS?"},
			{Role: RoleMentor, Text: "Yes, see [PortSwigger](https://portswigger.net) and **always** encode output."},
		},
	}

	path, err := exportTranscript(app, dir)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "kaliguru-transcript-"))
	assert.Equal(t, ".html", filepath.Ext(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	page := string(data)

	assert.Contains(t, page, "User: neo | Mode: oscp | Cert: OSCP")
	assert.Contains(t, page, "Assessed level: Advanced (88%)")
	assert.Contains(t, page, "&lt;script&gt;alert(1)&lt;/script&gt;")
	assert.NotContains(t, page, "<script>")
	assert.Contains(t, page, `<a href="https://portswigger.net" target="_blank" class="res-link-inline">PortSwigger</a>`)
	assert.Contains(t, page, "<strong>always</strong>")
	assert.Equal(t, 2, strings.Count(page, `<div class="msg `))
}

func TestExportTranscript_Empty(t *testing.T) {
	_, err := exportTranscript(&AppState{}, t.TempDir())
	assert.Error(t, err)

	_, err = exportTranscript(nil, t.TempDir())
	assert.Error(t, err)
}

func TestRenderTranscript_EscapesHeader(t *testing.T) {
	app := &AppState{
		User:       &User{Username: "<b>eve</b>"},
		MentorChat: []ChatMessage{{Role: RoleUser, Text: "hi"}},
	}
	page := renderTranscript(app, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	assert.Contains(t, page, "User: &lt;b&gt;eve&lt;/b&gt;")
	assert.Contains(t, page, "Exported: 2026-01-02 03:04:05")
	assert.NotContains(t, page, "Assessed level")
}
