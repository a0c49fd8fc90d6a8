package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

type assessmentPurpose int

const (
	purposeAssess assessmentPurpose = iota
	// purposeRoadmap chains a roadmap request after the evaluation.
	purposeRoadmap
)

// assessmentRun is an assessment in progress.
type assessmentRun struct {
	purpose   assessmentPurpose
	cert      string
	mode      string
	questions []Question
	current   int
	answers   map[int]string
	loading   bool
}

type questionsLoadedMsg struct {
	questions []Question
	err       error
}

type evaluationMsg struct {
	eval *Evaluation
	err  error
}

type roadmapMsg struct {
	roadmap *Roadmap
	err     error
}

// startAssessment enters assessment mode and fetches the questions.
func (m *TUIModel) startAssessment(purpose assessmentPurpose, cert string) tea.Cmd {
	run := &assessmentRun{
		purpose: purpose,
		cert:    cert,
		mode:    m.app.LearningMode,
		answers: map[int]string{},
		loading: true,
	}
	m.assessment = run
	m.setMode(ModeAssessment)
	m.output.Print(fmt.Sprintf("Generating %s assessment...", run.mode), StyleDim)

	client, sessionID := m.client, m.app.SessionID
	return tea.Batch(
		m.status.StartWaiting("generating questions"),
		func() tea.Msg {
			questions, err := client.GenerateQuestions(context.Background(), sessionID, run.mode)
			return questionsLoadedMsg{questions: questions, err: err}
		},
	)
}

// startRoadmap generates a roadmap, running an assessment first when there
// is no evaluation to build it from.
func (m *TUIModel) startRoadmap(cert string) tea.Cmd {
	if cert == "" {
		cert = m.app.SelectedCert
	}
	cert = strings.ToUpper(cert)
	if cert != m.app.SelectedCert {
		m.app.SelectedCert = cert
		m.config.Mentor.Cert = cert
		if err := SaveConfig(m.config); err != nil {
			slog.Warn("failed to save selected cert", "error", err)
		}
	}

	if m.app.Assessment == nil {
		m.output.Print("No assessment on record. Let's find your level first.", StyleDim)
		return m.startAssessment(purposeRoadmap, cert)
	}

	m.assessment = &assessmentRun{purpose: purposeRoadmap, cert: cert, loading: true}
	m.setMode(ModeAssessment)
	return m.requestRoadmap(cert)
}

func (m *TUIModel) requestRoadmap(cert string) tea.Cmd {
	m.output.Print("Generating roadmap for "+cert+"...", StyleDim)
	client, sessionID := m.client, m.app.SessionID
	level, weaknesses := m.app.LearningMode, []string{}
	if m.app.Assessment != nil {
		level = m.app.Assessment.Level
		weaknesses = append(weaknesses, m.app.Assessment.Weaknesses...)
	}
	return tea.Batch(
		m.status.StartWaiting("building roadmap"),
		func() tea.Msg {
			roadmap, err := client.GenerateRoadmap(context.Background(), sessionID, level, weaknesses, cert)
			return roadmapMsg{roadmap: roadmap, err: err}
		},
	)
}

// endAssessment returns to command mode.
func (m *TUIModel) endAssessment() {
	m.assessment = nil
	m.setMode(ModeCommand)
}

func (m *TUIModel) handleQuestionsLoaded(msg questionsLoadedMsg) tea.Cmd {
	m.status.StopWaiting()
	run := m.assessment
	if run == nil {
		return nil
	}
	if msg.err != nil || len(msg.questions) == 0 {
		slog.Error("failed to generate questions", "error", msg.err, "count", len(msg.questions))
		m.output.Print("Failed to generate assessment. Check your connection or run 'setup'.", StyleError)
		m.endAssessment()
		return nil
	}

	run.questions = msg.questions
	run.loading = false
	m.output.Print(fmt.Sprintf("%d questions. Answer with the option number or text, 'hint', 'skip' or 'abort'.", len(run.questions)), StyleDim)
	m.askQuestion()
	return nil
}

func (m *TUIModel) askQuestion() {
	run := m.assessment
	q := run.questions[run.current]

	header := fmt.Sprintf("Question %d/%d", run.current+1, len(run.questions))
	if q.Topic != "" {
		header += " [" + q.Topic + "]"
	}
	m.output.Print(header, StyleHeading)
	m.output.Print(q.Question, StyleEmphasis)
	for i, option := range q.Options {
		m.output.Print(fmt.Sprintf("  %d) %s", i+1, option), StylePlain)
	}
}

// handleAssessmentInput records one answer, or runs skip/hint/abort.
func (m *TUIModel) handleAssessmentInput(input string) tea.Cmd {
	run := m.assessment
	if run == nil {
		m.setMode(ModeCommand)
		return nil
	}
	if run.loading {
		m.output.Print("Please wait...", StyleDim)
		return nil
	}

	q := run.questions[run.current]
	switch strings.ToLower(input) {
	case "abort", "exit":
		m.output.Print("Assessment aborted.", StyleWarning)
		m.endAssessment()
		return nil
	case "hint":
		if q.Hint == "" {
			m.output.Print("No hint for this one.", StyleDim)
		} else {
			m.output.Print("Hint: "+q.Hint, StyleWarning)
		}
		return nil
	case "skip":
		m.output.Print("Skipped.", StyleDim)
	default:
		answer, ok := resolveAnswer(q, input)
		if !ok {
			m.output.Print(fmt.Sprintf("Pick an option between 1 and %d.", len(q.Options)), StyleError)
			return nil
		}
		run.answers[run.current] = answer
	}

	run.current++
	if run.current < len(run.questions) {
		m.askQuestion()
		return nil
	}

	run.loading = true
	m.output.Print("Evaluating your answers...", StyleDim)
	client, sessionID := m.client, m.app.SessionID
	questions, answers, mode := run.questions, run.answers, run.mode
	return tea.Batch(
		m.status.StartWaiting("evaluating"),
		func() tea.Msg {
			eval, err := client.EvaluateAssessment(context.Background(), sessionID, mode, questions, answers)
			return evaluationMsg{eval: eval, err: err}
		},
	)
}

// resolveAnswer maps "2" to the second option. Free text is accepted for
// questions without options, and for ones with options when it is not a number.
func resolveAnswer(q Question, input string) (string, bool) {
	if n, err := strconv.Atoi(input); err == nil && len(q.Options) > 0 {
		if n < 1 || n > len(q.Options) {
			return "", false
		}
		return q.Options[n-1], true
	}
	return input, true
}

func (m *TUIModel) handleEvaluation(msg evaluationMsg) tea.Cmd {
	m.status.StopWaiting()
	run := m.assessment
	if run == nil {
		return nil
	}
	if msg.err != nil {
		slog.Error("failed to evaluate assessment", "error", msg.err)
		m.output.Print("Failed to evaluate assessment. Please try again.", StyleError)
		m.endAssessment()
		return nil
	}

	m.app.Assessment = msg.eval
	m.saveState()
	m.printEvaluation(msg.eval)

	if run.purpose == purposeRoadmap {
		return m.requestRoadmap(run.cert)
	}
	m.output.Print("Type 'roadmap' for a study plan or 'chat' to talk it through.", StyleDim)
	m.endAssessment()
	return nil
}

func (m *TUIModel) printEvaluation(eval *Evaluation) {
	m.output.Print("ASSESSMENT RESULTS", StyleHeading)
	m.output.Print(fmt.Sprintf("Level: %s   Score: %.0f%%", eval.Level, eval.Score), StyleEmphasis)
	if len(eval.Strengths) > 0 {
		m.output.Print("Strengths: "+strings.Join(eval.Strengths, ", "), StyleSuccess)
	}
	if len(eval.Weaknesses) > 0 {
		m.output.Print("Weaknesses: "+strings.Join(eval.Weaknesses, ", "), StyleWarning)
	}
	if eval.FocusSuggestion != "" {
		m.output.Print("Focus: "+eval.FocusSuggestion, StylePlain)
	}
}

func (m *TUIModel) handleRoadmap(msg roadmapMsg) tea.Cmd {
	m.status.StopWaiting()
	defer m.endAssessment()

	if msg.err != nil {
		slog.Error("failed to generate roadmap", "error", msg.err)
		m.output.Print("Failed to generate roadmap. Please try again.", StyleError)
		return nil
	}
	m.app.Roadmap = msg.roadmap
	m.saveState()
	m.output.PrintMarkdown(msg.roadmap.Markdown())
	return nil
}

// Roadmap is a generated study plan. Servers answer either with the
// structured form or with a markdown document (kept in Text).
type Roadmap struct {
	TargetCertification   string         `json:"targetCertification,omitempty"`
	ExecutiveSummary      string         `json:"executive_summary,omitempty"`
	CurrentLevel          string         `json:"currentLevel,omitempty"`
	TotalDuration         string         `json:"totalDuration,omitempty"`
	DifficultyProgression string         `json:"difficulty_progression,omitempty"`
	Phases                []RoadmapPhase `json:"phases,omitempty"`
	Text                  string         `json:"text,omitempty"`
}

// RoadmapPhase is one block of weeks in a roadmap
type RoadmapPhase struct {
	PhaseName        string        `json:"phase_name,omitempty"`
	Name             string        `json:"name,omitempty"`
	Outcome          string        `json:"outcome,omitempty"`
	LearningOutcomes []string      `json:"learning_outcomes,omitempty"`
	WeeklyBreakdown  []RoadmapWeek `json:"weekly_breakdown,omitempty"`
	Weeks            []RoadmapWeek `json:"weeks,omitempty"`
	RecommendedLabs  []RoadmapLab  `json:"recommended_labs,omitempty"`
}

// RoadmapWeek is a row of a phase's weekly breakdown
type RoadmapWeek struct {
	Week       flexString `json:"week"`
	Topics     []string   `json:"topics,omitempty"`
	Labs       []string   `json:"labs,omitempty"`
	Checkpoint string     `json:"checkpoint,omitempty"`
	Hours      flexString `json:"hours,omitempty"`
}

// RoadmapLab is a hands-on lab suggestion
type RoadmapLab struct {
	Name       string `json:"name"`
	Platform   string `json:"platform,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	URL        string `json:"url,omitempty"`
}

// flexString accepts JSON strings and numbers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}

// parseRoadmap decodes the roadmap field of a generate-roadmap response.
func parseRoadmap(raw json.RawMessage) (*Roadmap, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, errors.New("response carried no roadmap")
	}

	if strings.HasPrefix(trimmed, `"`) {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, fmt.Errorf("failed to decode roadmap text: %w", err)
		}
		if r, err := decodeRoadmapObject([]byte(text)); err == nil {
			return r, nil
		}
		return &Roadmap{Text: text}, nil
	}

	r, err := decodeRoadmapObject(raw)
	if err != nil {
		slog.Warn("roadmap did not match the expected shape, showing it raw", "error", err)
		var pretty strings.Builder
		pretty.WriteString("```json\n")
		var indented json.RawMessage
		if json.Unmarshal(raw, &indented) == nil {
			if data, err := json.MarshalIndent(indented, "", "  "); err == nil {
				pretty.Write(data)
			}
		}
		pretty.WriteString("\n```")
		return &Roadmap{Text: pretty.String()}, nil
	}
	return r, nil
}

func decodeRoadmapObject(data []byte) (*Roadmap, error) {
	trimmed := strings.TrimSpace(string(data))
	if !strings.HasPrefix(trimmed, "{") {
		return nil, errors.New("not a JSON object")
	}
	var wire struct {
		Roadmap
		// Some generations nest the phases under "roadmap".
		Nested []RoadmapPhase `json:"roadmap"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}
	r := wire.Roadmap
	if len(r.Phases) == 0 {
		r.Phases = wire.Nested
	}
	return &r, nil
}

// Markdown renders the roadmap as a markdown document.
func (r *Roadmap) Markdown() string {
	if r.Text != "" {
		return r.Text
	}

	var b strings.Builder
	title := r.TargetCertification
	if title == "" {
		title = "Certification Roadmap"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if r.ExecutiveSummary != "" {
		fmt.Fprintf(&b, "%s\n\n", r.ExecutiveSummary)
	}
	if r.CurrentLevel != "" {
		fmt.Fprintf(&b, "- **Current level:** %s\n", r.CurrentLevel)
	}
	if r.TotalDuration != "" {
		fmt.Fprintf(&b, "- **Duration:** %s\n", r.TotalDuration)
	}
	if r.DifficultyProgression != "" {
		fmt.Fprintf(&b, "- **Progression:** %s\n", r.DifficultyProgression)
	}

	for i, phase := range r.Phases {
		name := phase.PhaseName
		if name == "" {
			name = phase.Name
		}
		if name == "" {
			name = fmt.Sprintf("Phase %d", i+1)
		}
		fmt.Fprintf(&b, "\n## Phase %d: %s\n\n", i+1, name)
		if phase.Outcome != "" {
			fmt.Fprintf(&b, "**Goal:** %s\n\n", phase.Outcome)
		}
		for _, outcome := range phase.LearningOutcomes {
			fmt.Fprintf(&b, "- %s\n", outcome)
		}

		weeks := phase.WeeklyBreakdown
		if len(weeks) == 0 {
			weeks = phase.Weeks
		}
		if len(weeks) > 0 {
			b.WriteString("\n| Week | Topics | Labs | Hours |\n|---|---|---|---|\n")
			for _, w := range weeks {
				hours := string(w.Hours)
				if hours == "" {
					hours = "-"
				}
				fmt.Fprintf(&b, "| W%s | %s | %s | %s |\n", w.Week, strings.Join(w.Topics, ", "), strings.Join(w.Labs, ", "), hours)
			}
		}

		if len(phase.RecommendedLabs) > 0 {
			b.WriteString("\n**Labs:**\n\n")
			for _, lab := range phase.RecommendedLabs {
				line := lab.Name
				if lab.Platform != "" {
					line += " (" + lab.Platform + ")"
				}
				if lab.Difficulty != "" {
					line += " - " + lab.Difficulty
				}
				if lab.URL != "" {
					line = "[" + line + "](" + lab.URL + ")"
				}
				fmt.Fprintf(&b, "- %s\n", line)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
