package domain

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrEmptyDescription is returned when a case description is blank.
var ErrEmptyDescription = errors.New("case description is empty")

// CorpusEntry is one statutory section loaded from the reference corpus.
// Index is the entry's row in the fitted vector space.
type CorpusEntry struct {
	Index       int
	Label       string
	Number      string
	Description string
}

// Match is a ranked corpus entry together with its cosine similarity.
type Match struct {
	Label       string  `json:"label"`
	Number      string  `json:"number,omitempty"`
	Description string  `json:"description"`
	Score       float64 `json:"score"`
	Index       int     `json:"-"`
}

// QueryResult holds matches ordered by descending score, ties by corpus order.
type QueryResult []Match

// Labels returns the section labels in ranking order.
func (r QueryResult) Labels() []string {
	out := make([]string, len(r))
	for i, m := range r {
		out[i] = m.Label
	}
	return out
}

// IncidentDetails is the free-text incident metadata collected by the
// presentation layer. Values are passed through verbatim.
type IncidentDetails struct {
	DateOfIncident     string `json:"date_of_incident" yaml:"date_of_incident"`
	TimeOfIncident     string `json:"time_of_incident" yaml:"time_of_incident"`
	PlaceOfOccurrence  string `json:"place_of_occurrence" yaml:"place_of_occurrence"`
	NatureOfOffense    string `json:"nature_of_offense" yaml:"nature_of_offense"`
	ComplainantName    string `json:"complainant_name" yaml:"complainant_name"`
	ComplainantContact string `json:"complainant_contact" yaml:"complainant_contact"`
	AccusedName        string `json:"accused_name" yaml:"accused_name"`
	AccusedDescription string `json:"accused_description" yaml:"accused_description"`
}

// Field is a labelled incident value.
type Field struct {
	Label string
	Value string
}

// Fields lists the incident values in form order.
func (d IncidentDetails) Fields() []Field {
	return []Field{
		{"Date of Incident", d.DateOfIncident},
		{"Time of Incident", d.TimeOfIncident},
		{"Place of Occurrence", d.PlaceOfOccurrence},
		{"Nature of Offense", d.NatureOfOffense},
		{"Complainant Name", d.ComplainantName},
		{"Complainant Contact", d.ComplainantContact},
		{"Accused Name", d.AccusedName},
		{"Accused Description", d.AccusedDescription},
	}
}

// Draft is the output of one full pipeline run.
type Draft struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Incident    IncidentDetails `json:"incident"`
	Sections    QueryResult     `json:"sections"`
	Analysis    string          `json:"analysis"`
	FIR         string          `json:"fir"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one entry in a chat-completion conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// GenerationRequest is a single completion call. It is built fresh per call.
type GenerationRequest struct {
	SystemInstruction string
	UserPrompt        string
	Temperature       float64
	MaxOutputTokens   int
}

// Messages returns the system + user message pair sent to chat endpoints.
func (r GenerationRequest) Messages() []Message {
	msgs := make([]Message, 0, 2)
	if strings.TrimSpace(r.SystemInstruction) != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: r.SystemInstruction})
	}
	return append(msgs, Message{Role: RoleUser, Content: r.UserPrompt})
}

// Matcher ranks corpus sections against free text.
type Matcher interface {
	Rank(query string, k int) (QueryResult, error)
	Len() int
}

// Completer sends a prompt to an external completion endpoint and returns
// the raw model output.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req GenerationRequest) (string, error)
}
