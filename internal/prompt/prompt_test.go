package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firassist/internal/domain"
)

var matches = domain.QueryResult{
	{Label: "Section 379", Number: "379", Description: "Punishment for theft", Score: 0.61},
	{Label: "Section 380", Number: "380", Description: "Theft in dwelling house", Score: 0.32},
}

const carTheft = "Mr. Rahul Sharma reported that his white Toyota Corolla was stolen from the parking lot of Central Mall."

func TestNewBuilder_Defaults(t *testing.T) {
	s := NewBuilder(DefaultSettings()).Settings()
	assert.Equal(t, DefaultSystemInstruction, s.SystemInstruction)
	assert.Equal(t, DefaultTemperature, s.Temperature)
	assert.Equal(t, DefaultMaxOutputTokens, s.MaxOutputTokens)

	s = NewBuilder(Settings{}).Settings()
	assert.Equal(t, DefaultSystemInstruction, s.SystemInstruction)
	assert.Equal(t, DefaultMaxOutputTokens, s.MaxOutputTokens)

	s = NewBuilder(Settings{SystemInstruction: "custom", Temperature: 0.2, MaxOutputTokens: 512}).Settings()
	assert.Equal(t, Settings{SystemInstruction: "custom", Temperature: 0.2, MaxOutputTokens: 512}, s)
}

func TestAnalysis(t *testing.T) {
	req, err := NewBuilder(DefaultSettings()).Analysis(carTheft, matches)
	require.NoError(t, err)

	assert.Equal(t, DefaultSystemInstruction, req.SystemInstruction)
	assert.Equal(t, 0.5, req.Temperature)
	assert.Equal(t, 2000, req.MaxOutputTokens)

	p := req.UserPrompt
	assert.Contains(t, p, "Case Description: "+carTheft)
	assert.Contains(t, p, "- Section 379: Punishment for theft\n- Section 380: Theft in dwelling house\n")
	assert.Contains(t, p, "2. Any aggravating factors")
	assert.Contains(t, p, "3. Potential secondary offenses")
	assert.Contains(t, p, "4. Relevant procedural sections")
	assert.Contains(t, p, "Act: [Act Name]")
	assert.Contains(t, p, "suggest next steps for the investigation")
	assert.Less(t, strings.Index(p, "Section 379"), strings.Index(p, "Section 380"))
}

func TestNewBuilder_KeepsZeroTemperature(t *testing.T) {
	b := NewBuilder(Settings{Temperature: 0, MaxOutputTokens: 800})
	assert.Equal(t, 0.0, b.Settings().Temperature)

	req, err := b.FIR(carTheft, matches, domain.IncidentDetails{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, req.Temperature)
	assert.Equal(t, 800, req.MaxOutputTokens)
}

func TestAnalysis_Deterministic(t *testing.T) {
	b := NewBuilder(Settings{})
	a, err := b.Analysis(carTheft, matches)
	require.NoError(t, err)
	c, err := b.Analysis(carTheft, matches)
	require.NoError(t, err)
	assert.Equal(t, a, c)
}

func TestAnalysis_NoMatches(t *testing.T) {
	req, err := NewBuilder(Settings{}).Analysis("x", nil)
	require.NoError(t, err)
	assert.Contains(t, req.UserPrompt, "Relevant Sections from TF-IDF:\n(none)\n")
}

func TestAnalysis_PassesTextVerbatim(t *testing.T) {
	odd := "{{.Description}} <b>&amp;</b> \"quoted\""
	req, err := NewBuilder(Settings{}).Analysis(odd, matches)
	require.NoError(t, err)
	assert.Contains(t, req.UserPrompt, "Case Description: "+odd+"\n")
}

func TestFIR(t *testing.T) {
	incident := domain.IncidentDetails{
		DateOfIncident:     "2024-06-15",
		TimeOfIncident:     "22:30:00",
		PlaceOfOccurrence:  "Central Mall parking lot, Mumbai",
		NatureOfOffense:    "Car Theft",
		ComplainantName:    "Rahul Sharma",
		ComplainantContact: "+91 9876543210",
		AccusedName:        "Unknown",
	}
	req, err := NewBuilder(Settings{}).FIR(carTheft, matches, incident)
	require.NoError(t, err)

	p := req.UserPrompt
	assert.Contains(t, p, "Case Description: "+carTheft)
	assert.Contains(t, p, "- Section 379: Punishment for theft")
	assert.Contains(t, p, "Date of Incident: 2024-06-15\n"+
		"Time of Incident: 22:30:00\n"+
		"Place of Occurrence: Central Mall parking lot, Mumbai\n"+
		"Nature of Offense: Car Theft\n"+
		"Complainant Name: Rahul Sharma\n"+
		"Complainant Contact: +91 9876543210\n"+
		"Accused Name: Unknown\n"+
		"Accused Description: \n")

	for _, heading := range []string{
		"1. FIR Number and Registration Date",
		"2. Date and Time of the Incident",
		"3. Place of Occurrence",
		"4. Nature of the Offense",
		"5. Details of the Complainant",
		"6. Details of the Accused (if known)",
		"7. Brief Facts of the Case",
		"8. Sections Applied",
		"9. Action Taken",
		"10. Investigating Officer Details",
	} {
		assert.Contains(t, p, heading)
	}
	assert.Contains(t, p, "provide a brief analysis of the case and suggest next steps")
}
