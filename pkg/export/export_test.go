package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"id", "title"},
		Rows: []map[string]string{
			{"id": "1", "title": "Budget misuse"},
			{"id": "2", "title": "=HYPERLINK(\"http://evil\")"},
		},
	}
}

func TestCSVExporterNeutralizesFormulas(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,title", lines[0])
	assert.Equal(t, "1,Budget misuse", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "2,\"'=HYPERLINK"))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRendersDocument(t *testing.T) {
	data := sampleDataset()
	data.Rows[0]["title"] = strings.Repeat("long ", 40)

	out, err := NewPDFExporter().Render(data, "Reports")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "a b", truncate("a \n b", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
