package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firassist/internal/domain"
)

func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "sections.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("Section,Description\n"+
		"Section 302,Punishment for murder\n"+
		"Section 379,Punishment for theft\n"+
		"Section 380,Theft in dwelling house\n"), 0o644))
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("corpus:\n  path: "+csvPath+"\n"), 0o644))
	return cfgPath
}

func TestRankCommand(t *testing.T) {
	cfgPath := writeFixture(t)
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--config", cfgPath, "rank", "-k", "2", "theft", "in", "a", "house"})
	require.NoError(t, root.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Section 380")
}

func TestRankCommand_DefaultKCappedAtCorpus(t *testing.T) {
	cfgPath := writeFixture(t)
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--config", cfgPath, "rank", "murder"})
	require.NoError(t, root.Execute())
	assert.Len(t, strings.Split(strings.TrimSpace(out.String()), "\n"), 3)
}

func TestReadDescription(t *testing.T) {
	got, err := readDescription(nil, "", []string{"car", "stolen"})
	require.NoError(t, err)
	assert.Equal(t, "car stolen", got)

	got, err = readDescription(strings.NewReader("from stdin\n"), "-", nil)
	require.NoError(t, err)
	assert.Equal(t, "from stdin\n", got)

	path := filepath.Join(t.TempDir(), "case.txt")
	require.NoError(t, os.WriteFile(path, []byte("from file"), 0o644))
	got, err = readDescription(nil, path, nil)
	require.NoError(t, err)
	assert.Equal(t, "from file", got)

	_, err = readDescription(nil, "", nil)
	assert.ErrorIs(t, err, domain.ErrEmptyDescription)
}

func TestWriteDraft(t *testing.T) {
	d := &domain.Draft{
		ID:       "d-1",
		Sections: domain.QueryResult{{Label: "Section 379", Description: "Punishment for theft", Score: 0.5}},
		Analysis: "analysis",
		FIR:      "fir",
	}
	var text bytes.Buffer
	require.NoError(t, writeDraft(&text, d, false))
	assert.Contains(t, text.String(), "Section 379 (score 0.500)")
	assert.Contains(t, text.String(), "== FIR ==\nfir")

	var js bytes.Buffer
	require.NoError(t, writeDraft(&js, d, true))
	var back domain.Draft
	require.NoError(t, json.Unmarshal(js.Bytes(), &back))
	assert.Equal(t, "fir", back.FIR)
}
