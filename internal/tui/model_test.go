package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firassist/internal/domain"
	"firassist/internal/generation"
)

type fakePort struct {
	gotDesc     string
	gotIncident domain.IncidentDetails
	err         error
}

func (f *fakePort) Draft(_ context.Context, description string, incident domain.IncidentDetails) (*domain.Draft, error) {
	f.gotDesc, f.gotIncident = description, incident
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Draft{
		ID:          "0b5c6a7e-1111-2222-3333-444455556666",
		Description: description,
		Incident:    incident,
		Sections:    domain.QueryResult{{Label: "Section 379", Number: "379", Description: "Punishment for theft", Score: 0.5}},
		Analysis:    "ANALYSIS",
		FIR:         "FIR BODY",
	}, nil
}

func sized(t *testing.T, port DraftPort) Model {
	t.Helper()
	m := New(port, 3)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model)
}

func key(t tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: t} }

func TestSubmit_EmptyDescription(t *testing.T) {
	m := sized(t, &fakePort{})
	next, cmd := m.Update(key(tea.KeyCtrlS))
	assert.Nil(t, cmd)
	assert.Contains(t, next.(Model).status, "case description")
	assert.False(t, next.(Model).busy)
}

func TestSubmit_DraftFlow(t *testing.T) {
	port := &fakePort{}
	m := sized(t, port)
	m.description.SetValue("My car was stolen from the theft-prone lot")
	m.inputs[2].SetValue("Central Mall")
	m.inputs[6].SetValue(" Unknown ")

	next, cmd := m.Update(key(tea.KeyCtrlS))
	require.NotNil(t, cmd)
	m = next.(Model)
	assert.True(t, m.busy)

	next, _ = m.Update(cmd())
	m = next.(Model)
	assert.False(t, m.busy)
	assert.Equal(t, resultScreen, m.screen)
	assert.Equal(t, "Central Mall", port.gotIncident.PlaceOfOccurrence)
	assert.Equal(t, "Unknown", port.gotIncident.AccusedName)
	assert.Contains(t, m.status, "0b5c6a7e")
	assert.Contains(t, m.View(), "FIR BODY")

	next, _ = m.Update(key(tea.KeyRight))
	m = next.(Model)
	assert.Equal(t, sectionsTab, m.tab)
	assert.Contains(t, m.renderTab(), "Section 379")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("3")})
	m = next.(Model)
	assert.Equal(t, analysisTab, m.tab)
	assert.Equal(t, "ANALYSIS", m.renderTab())

	next, _ = m.Update(key(tea.KeyEsc))
	assert.Equal(t, formScreen, next.(Model).screen)
}

func TestSubmit_Error(t *testing.T) {
	port := &fakePort{err: &generation.Error{Kind: generation.KindServer, Provider: "openai", StatusCode: 503}}
	m := sized(t, port)
	m.description.SetValue("theft")
	next, cmd := m.Update(key(tea.KeyCtrlS))
	next, _ = next.(Model).Update(cmd())
	m = next.(Model)
	assert.Equal(t, formScreen, m.screen)
	assert.True(t, strings.HasPrefix(m.status, "Error:"))
	assert.Contains(t, m.status, "retry")
}

func TestEscape_CancelsAndDropsStaleResult(t *testing.T) {
	m := sized(t, &fakePort{})
	m.description.SetValue("theft")
	next, cmd := m.Update(key(tea.KeyCtrlS))
	m = next.(Model)

	next, _ = m.Update(key(tea.KeyEsc))
	m = next.(Model)
	assert.False(t, m.busy)
	assert.Equal(t, "Cancelled.", m.status)

	next, _ = m.Update(cmd())
	m = next.(Model)
	assert.Equal(t, formScreen, m.screen)
	assert.Nil(t, m.draft)
}

func TestTabCyclesFocus(t *testing.T) {
	m := sized(t, &fakePort{})
	assert.Equal(t, 0, m.focus)
	next, _ := m.Update(key(tea.KeyTab))
	m = next.(Model)
	assert.Equal(t, 1, m.focus)
	assert.True(t, m.inputs[0].Focused())

	next, _ = m.Update(key(tea.KeyShiftTab))
	next, _ = next.(Model).Update(key(tea.KeyShiftTab))
	m = next.(Model)
	assert.Equal(t, len(incidentFields), m.focus)
	assert.True(t, m.inputs[len(incidentFields)-1].Focused())
}

func TestHighlightTerms(t *testing.T) {
	terms := toTokenSet("Theft of CAR")
	out := highlightTerms("Punishment for theft of a car", terms)
	assert.Contains(t, out, "Punishment for ")
	assert.Equal(t, "plain text", highlightTerms("plain text", nil))
}
