// Package prompt renders the analysis and FIR-structuring instructions sent
// to the completion endpoint. Both passes share one template set so their
// wording cannot drift apart.
package prompt

import (
	"strings"
	"text/template"

	"firassist/internal/domain"
)

const (
	DefaultSystemInstruction = "You are a legal assistant specializing in Indian law."
	DefaultTemperature       = 0.5
	DefaultMaxOutputTokens   = 2000
)

// Template names.
const (
	Analysis = "analysis"
	FIR      = "fir"
)

const sectionsTmpl = `{{range .Matches}}- {{.Label}}: {{.Description}}
{{else}}(none)
{{end}}`

const analysisTmpl = `Based on the following case description, provide a comprehensive list of all possible relevant sections and acts that could be applicable. For each section, provide a brief explanation of why it might be relevant to the case.

Case Description: {{.Description}}

Relevant Sections from TF-IDF:
{{template "sections" .}}
Please provide a detailed analysis, considering:
1. All possible offenses described in the case
2. Any aggravating factors
3. Potential secondary offenses
4. Relevant procedural sections

Format your response as:
Section: [Section Number]
Act: [Act Name]
Relevance: [Brief explanation]

After listing all potential sections, provide a brief analysis of the case and suggest next steps for the investigation.
`

const firTmpl = `Based on the following case description, relevant sections, and user inputs, generate a detailed FIR (First Information Report) structure:

Case Description: {{.Description}}

Relevant Sections:
{{template "sections" .}}
User Inputs:
{{range .Incident}}{{.Label}}: {{.Value}}
{{end}}
Please provide a comprehensive FIR structure including:
1. FIR Number and Registration Date
2. Date and Time of the Incident
3. Place of Occurrence
4. Nature of the Offense
5. Details of the Complainant
6. Details of the Accused (if known)
7. Brief Facts of the Case
8. Sections Applied
9. Action Taken
10. Investigating Officer Details

Also, provide a brief analysis of the case and suggest next steps for the investigation.
`

var templates = template.Must(template.Must(template.Must(
	template.New(Analysis).Parse(analysisTmpl)).
	New(FIR).Parse(firTmpl)).
	New("sections").Parse(sectionsTmpl))

type view struct {
	Description string
	Matches     domain.QueryResult
	Incident    []domain.Field
}

// Settings are the per-call generation parameters stamped on every request.
type Settings struct {
	SystemInstruction string
	Temperature       float64
	MaxOutputTokens   int
}

// Builder renders GenerationRequests. It is stateless and safe for concurrent use.
type Builder struct {
	settings Settings
}

// DefaultSettings returns the generation parameters used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		SystemInstruction: DefaultSystemInstruction,
		Temperature:       DefaultTemperature,
		MaxOutputTokens:   DefaultMaxOutputTokens,
	}
}

// NewBuilder returns a Builder. An empty system instruction or a zero token
// budget takes its default; Temperature is used as given, including 0.
func NewBuilder(s Settings) *Builder {
	if s.SystemInstruction == "" {
		s.SystemInstruction = DefaultSystemInstruction
	}
	if s.MaxOutputTokens == 0 {
		s.MaxOutputTokens = DefaultMaxOutputTokens
	}
	return &Builder{settings: s}
}

// Settings returns the effective generation parameters.
func (b *Builder) Settings() Settings { return b.settings }

// Analysis builds the legal-analysis request for a case and its matched sections.
func (b *Builder) Analysis(description string, matches domain.QueryResult) (domain.GenerationRequest, error) {
	return b.build(Analysis, view{Description: description, Matches: matches})
}

// FIR builds the FIR-structuring request. Incident values are embedded as given.
func (b *Builder) FIR(description string, matches domain.QueryResult, incident domain.IncidentDetails) (domain.GenerationRequest, error) {
	return b.build(FIR, view{Description: description, Matches: matches, Incident: incident.Fields()})
}

func (b *Builder) build(name string, v view) (domain.GenerationRequest, error) {
	var sb strings.Builder
	if err := templates.ExecuteTemplate(&sb, name, v); err != nil {
		return domain.GenerationRequest{}, err
	}
	return domain.GenerationRequest{
		SystemInstruction: b.settings.SystemInstruction,
		UserPrompt:        sb.String(),
		Temperature:       b.settings.Temperature,
		MaxOutputTokens:   b.settings.MaxOutputTokens,
	}, nil
}
