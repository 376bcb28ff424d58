package tui

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"firassist/internal/domain"
	"firassist/internal/generation"
)

// DraftPort is the TUI-facing subset of the FIR service.
type DraftPort interface {
	Draft(ctx context.Context, description string, incident domain.IncidentDetails) (*domain.Draft, error)
}

type screen int

const (
	formScreen screen = iota
	resultScreen
)

type resultTab int

const (
	firTab resultTab = iota
	sectionsTab
	analysisTab
)

var tabNames = []string{"FIR", "Sections", "Analysis"}

// incidentFields are the form inputs below the description, in form order.
var incidentFields = []struct {
	label       string
	placeholder string
}{
	{"Date of Incident", "YYYY-MM-DD"},
	{"Time of Incident", "HH:MM"},
	{"Place of Occurrence", ""},
	{"Nature of Offense", ""},
	{"Complainant Name", ""},
	{"Complainant Contact", ""},
	{"Accused Name", "Unknown"},
	{"Accused Description", ""},
}

type draftMsg struct {
	seq   int
	draft *domain.Draft
	err   error
}

// Model is the Bubble Tea model for the FIR drafting form and result viewer.
type Model struct {
	service     DraftPort
	description textarea.Model
	inputs      []textinput.Model
	focus       int // 0 is the description, 1.. the incident inputs
	viewport    viewport.Model
	screen      screen
	tab         resultTab
	draft       *domain.Draft
	status      string
	busy        bool
	cancel      context.CancelFunc
	seq         int
	ready       bool
	width       int
}

// New creates a new TUI model instance.
func New(service DraftPort, sections int) Model {
	ta := textarea.New()
	ta.Placeholder = "Describe the incident..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(5)
	ta.Focus()

	inputs := make([]textinput.Model, len(incidentFields))
	for i, f := range incidentFields {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = f.placeholder
		ti.CharLimit = 256
		inputs[i] = ti
	}
	return Model{
		service:     service,
		description: ta,
		inputs:      inputs,
		viewport:    viewport.New(0, 0),
		status:      fmt.Sprintf("%d sections loaded. tab: next field  ctrl+s: draft FIR  ctrl+c: quit", sections),
	}
}

// Init initializes the model (cursor blink).
func (m Model) Init() tea.Cmd { return textarea.Blink }

// Incident collects the incident inputs.
func (m Model) Incident() domain.IncidentDetails {
	v := func(i int) string { return strings.TrimSpace(m.inputs[i].Value()) }
	return domain.IncidentDetails{
		DateOfIncident:     v(0),
		TimeOfIncident:     v(1),
		PlaceOfOccurrence:  v(2),
		NatureOfOffense:    v(3),
		ComplainantName:    v(4),
		ComplainantContact: v(5),
		AccusedName:        v(6),
		AccusedDescription: v(7),
	}
}

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		w := max(20, msg.Width-resultBoxStyle.GetHorizontalFrameSize())
		m.description.SetWidth(w)
		for i := range m.inputs {
			m.inputs[i].Width = max(10, w-labelWidth)
		}
		_, rh := resultBoxStyle.GetFrameSize()
		reserved := 4 // header, tabs, status, spacer
		m.viewport.Width = w
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.renderTab())
		return m, nil

	case draftMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.busy = false
		m.cancel = nil
		if msg.err != nil {
			m.status = describeError(msg.err)
			return m, nil
		}
		m.draft = msg.draft
		m.screen = resultScreen
		m.tab = firTab
		m.status = fmt.Sprintf("Draft %s ready. left/right: switch tab  esc: back to form", shortID(msg.draft.ID))
		m.viewport.SetContent(m.renderTab())
		m.viewport.GotoTop()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEsc {
			return m.escape(), nil
		}
		if m.screen == resultScreen {
			return m.updateResult(msg)
		}
		switch msg.String() {
		case "ctrl+s":
			return m.submit()
		case "tab":
			return m.setFocus(m.focus + 1), nil
		case "shift+tab":
			return m.setFocus(m.focus - 1), nil
		}
	}
	if m.screen == resultScreen {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m.updateFocused(msg)
}

func (m Model) escape() Model {
	switch {
	case m.busy:
		m.cancel()
		m.cancel = nil
		m.busy = false
		m.seq++
		m.status = "Cancelled."
	case m.screen == resultScreen:
		m.screen = formScreen
		m.status = "Edit the form and press ctrl+s to draft again."
	}
	return m
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	description := m.description.Value()
	if strings.TrimSpace(description) == "" {
		m.status = "Please enter a case description."
		return m, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.busy = true
	m.seq++
	m.status = "Drafting FIR... esc: cancel"
	seq, incident, svc := m.seq, m.Incident(), m.service
	return m, func() tea.Msg {
		defer cancel()
		d, err := svc.Draft(ctx, description, incident)
		return draftMsg{seq: seq, draft: d, err: err}
	}
}

func (m Model) updateResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "right", "l", "tab":
		m.tab = (m.tab + 1) % resultTab(len(tabNames))
	case "left", "h", "shift+tab":
		m.tab = (m.tab - 1 + resultTab(len(tabNames))) % resultTab(len(tabNames))
	case "1", "2", "3":
		m.tab = resultTab(msg.String()[0] - '1')
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	m.viewport.SetContent(m.renderTab())
	m.viewport.GotoTop()
	return m, nil
}

func (m Model) setFocus(i int) Model {
	n := len(m.inputs) + 1
	m.focus = (i%n + n) % n
	m.description.Blur()
	for j := range m.inputs {
		m.inputs[j].Blur()
	}
	if m.focus == 0 {
		m.description.Focus()
	} else {
		m.inputs[m.focus-1].Focus()
	}
	return m
}

func (m Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.focus == 0 {
		m.description, cmd = m.description.Update(msg)
	} else {
		m.inputs[m.focus-1], cmd = m.inputs[m.focus-1].Update(msg)
	}
	return m, cmd
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("FIR Drafting Assistant")
	status := statusStyle.Render(m.status)
	if m.busy {
		status = busyStyle.Render(m.status)
	}
	if m.screen == resultScreen {
		return header + "\n" + m.renderTabs() + "\n" + resultBoxStyle.Render(m.viewport.View()) + "\n" + status
	}
	return header + "\n" + m.renderForm() + "\n" + status
}

func (m Model) renderForm() string {
	var b strings.Builder
	b.WriteString(labelStyle.Render("Case Description"))
	b.WriteString("\n")
	b.WriteString(boxFor(m.focus == 0).Render(m.description.View()))
	b.WriteString("\n")
	for i, f := range incidentFields {
		label := labelStyle.Width(labelWidth).Render(f.label)
		if m.focus == i+1 {
			label = focusedLabelStyle.Width(labelWidth).Render(f.label)
		}
		b.WriteString(label + m.inputs[i].View() + "\n")
	}
	return b.String()
}

func (m Model) renderTabs() string {
	parts := make([]string, len(tabNames))
	for i, name := range tabNames {
		if resultTab(i) == m.tab {
			parts[i] = activeTabStyle.Render(name)
		} else {
			parts[i] = tabStyle.Render(name)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) renderTab() string {
	if m.draft == nil {
		return "No draft yet."
	}
	switch m.tab {
	case sectionsTab:
		return renderSections(m.draft.Sections, m.draft.Description)
	case analysisTab:
		return m.draft.Analysis
	default:
		return m.draft.FIR
	}
}

func renderSections(matches domain.QueryResult, query string) string {
	if len(matches) == 0 {
		return "No sections matched."
	}
	terms := toTokenSet(query)
	var b strings.Builder
	for i, s := range matches {
		fmt.Fprintf(&b, "%d. %s  score=%.3f\n   %s\n\n", i+1, s.Label, s.Score, highlightTerms(s.Description, terms))
	}
	return strings.TrimRight(b.String(), "\n")
}

func describeError(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyDescription):
		return "Please enter a case description."
	case errors.Is(err, generation.ErrCanceled):
		return "Cancelled."
	case errors.Is(err, generation.ErrAuth):
		return "Error: the completion service rejected the API key. Check your environment."
	}
	if _, ok := generation.AsError(err); ok {
		return "Error: " + err.Error() + " (ctrl+s to retry)"
	}
	return "Error: " + err.Error()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

const labelWidth = 22

var (
	titleStyle        = lipgloss.NewStyle().Bold(true)
	labelStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	focusedLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	statusStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	busyStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	resultBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).BorderForeground(lipgloss.Color("8"))
	focusedBoxStyle   = inputBoxStyle.Copy().BorderForeground(lipgloss.Color("12"))
	tabStyle          = lipgloss.NewStyle().Padding(0, 2).Foreground(lipgloss.Color("8"))
	activeTabStyle    = lipgloss.NewStyle().Padding(0, 2).Bold(true).Underline(true)
	highlightStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe     = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
)

func boxFor(focused bool) lipgloss.Style {
	if focused {
		return focusedBoxStyle
	}
	return inputBoxStyle
}

// highlightTerms renders words of text that occur in terms.
func highlightTerms(text string, terms map[string]struct{}) string {
	if len(terms) == 0 {
		return text
	}
	return unicodeWordRe.ReplaceAllStringFunc(text, func(w string) string {
		if _, ok := terms[strings.ToLower(w)]; ok {
			return highlightStyle.Render(w)
		}
		return w
	})
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}
