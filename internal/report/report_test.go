package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/tracewell-health/ecg-cli/internal/model"
)

func sampleRuns() []*model.Run {
	now := time.Now().UTC()
	return []*model.Run{
		{
			ID:        "run-1",
			Scan:      model.Scan{Path: "/scans/a.png", Source: "ftp"},
			Status:    model.RunStatusComplete,
			CreatedAt: now,
			Result: &model.RobustResult{
				Success:      true,
				AttemptsMade: 2,
				Signal: model.NewECGSignal(map[model.Lead][]float64{
					model.LeadI:  {1, 2},
					model.LeadII: {1, 2},
				}, 500),
				Validation: &model.ValidationResult{Valid: true, Confidence: 0.912},
				Breakdown:  model.ScoreBreakdown{Total: 85.25, LeadCount: 2},
				Issues:     []model.Issue{{Type: model.IssueAlignment, Severity: model.SeverityWarning}},
			},
		},
		{
			ID:        "run-2",
			Scan:      model.Scan{Path: "/scans/b.png", Source: "local"},
			Status:    model.RunStatusFailed,
			CreatedAt: now,
		},
	}
}

func TestRowFor(t *testing.T) {
	t.Parallel()

	runs := sampleRuns()

	row := rowFor(runs[0])
	require.Len(t, row, len(header))
	assert.Equal(t, "run-1", row[0])
	assert.Equal(t, "/scans/a.png", row[1])
	assert.Equal(t, "ftp", row[2])
	assert.Equal(t, "complete", row[3])
	assert.Equal(t, "2", row[4])
	assert.Equal(t, "2", row[5])
	assert.Equal(t, "85.2", row[6])
	assert.Equal(t, "0.912", row[7])
	assert.Equal(t, "true", row[8])
	assert.Equal(t, "1", row[9])

	row = rowFor(runs[1])
	assert.Equal(t, "failed", row[3])
	assert.Equal(t, "", row[4], "runs without a result leave result cells blank")
	assert.Equal(t, "", row[8])
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "batch.csv")
	require.NoError(t, WriteCSV(sampleRuns(), path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, header, records[0])
	assert.Equal(t, "run-1", records[1][0])
	assert.Equal(t, "run-2", records[2][0])
}

func TestWriteXLSX(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "batch.xlsx")
	require.NoError(t, WriteXLSX(sampleRuns(), path))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)

	sheet := f.Sheets[0]
	assert.Equal(t, "Runs", sheet.Name)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "run_id", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "run-1", sheet.Rows[1].Cells[0].String())
	assert.Equal(t, "85.2", sheet.Rows[1].Cells[6].String())
	assert.Equal(t, "run-2", sheet.Rows[2].Cells[0].String())
}

func TestWriteCSV_BadPath(t *testing.T) {
	t.Parallel()

	err := WriteCSV(sampleRuns(), filepath.Join(t.TempDir(), "missing", "batch.csv"))
	assert.Error(t, err)
}
