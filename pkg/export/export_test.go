package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable(rows int) Table {
	t := Table{
		Title:    "Study plan: Machine Learning Exam",
		Subtitle: "Due Sun 09 Mar 2025 09:00",
		Columns:  []Column{{Header: "Date", Width: 2}, {Header: "Focus"}, {Header: "Topics", Width: 3}},
	}
	for i := 0; i < rows; i++ {
		t.Rows = append(t.Rows, []string{fmt.Sprintf("Day %d", i+1), "concepts", "Machine, Learning"})
	}
	return t
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleTable(2))
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Date", "Focus", "Topics"}, records[0])
	assert.Equal(t, "Machine, Learning", records[2][2])
}

func TestExportersRejectMalformedTables(t *testing.T) {
	_, err := NewCSVExporter().Render(Table{})
	assert.Error(t, err)

	ragged := sampleTable(1)
	ragged.Rows = append(ragged.Rows, []string{"only one"})
	_, err = NewPDFExporter().Render(ragged)
	assert.ErrorContains(t, err, "row 1")
}

func TestPDFExporterPaginates(t *testing.T) {
	short, err := NewPDFExporter().Render(sampleTable(3))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(short, []byte("%PDF")))

	long, err := NewPDFExporter().Render(sampleTable(30))
	require.NoError(t, err)
	assert.Greater(t, len(long), len(short))
	assert.Contains(t, string(long), "/Count 2")
}

func TestColumnWidths(t *testing.T) {
	widths := columnWidths([]Column{{Width: 2}, {}, {Width: 1}})
	assert.InDelta(t, pdfPageWidth/2, widths[0], 0.001)
	assert.InDelta(t, widths[1], widths[2], 0.001)
}
