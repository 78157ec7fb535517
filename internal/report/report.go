// Package report renders batch digitization summaries to XLSX and CSV.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/tracewell-health/ecg-cli/internal/model"
)

var header = []string{
	"run_id", "scan", "source", "status", "attempts",
	"leads", "score", "confidence", "valid", "issues",
}

// rowFor flattens one run into report cells.
func rowFor(run *model.Run) []string {
	cells := []string{
		run.ID,
		run.Scan.Path,
		run.Scan.Source,
		string(run.Status),
		"", "", "", "", "", "",
	}
	if run.Result == nil {
		return cells
	}

	res := run.Result
	cells[4] = strconv.Itoa(res.AttemptsMade)
	if res.Signal != nil {
		cells[5] = strconv.Itoa(res.Signal.LeadCount())
	}
	cells[6] = fmt.Sprintf("%.1f", res.Breakdown.Total)
	if res.Validation != nil {
		cells[7] = fmt.Sprintf("%.3f", res.Validation.Confidence)
		cells[8] = strconv.FormatBool(res.Validation.Valid)
	}
	cells[9] = strconv.Itoa(len(res.Issues))
	return cells
}

// WriteXLSX writes the batch summary workbook to path.
func WriteXLSX(runs []*model.Run, path string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Runs")
	if err != nil {
		return eris.Wrap(err, "report: add sheet")
	}

	hr := sheet.AddRow()
	for _, h := range header {
		hr.AddCell().SetString(h)
	}

	for _, run := range runs {
		row := sheet.AddRow()
		for _, cell := range rowFor(run) {
			row.AddCell().SetString(cell)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	return nil
}

// WriteCSV writes the batch summary as CSV to path.
func WriteCSV(runs []*model.Run, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "report: create %s", path)
	}
	defer file.Close() //nolint:errcheck

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "report: write header")
	}
	for _, run := range runs {
		if err := w.Write(rowFor(run)); err != nil {
			return eris.Wrapf(err, "report: write row for %s", run.ID)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "report: flush csv")
	}
	return nil
}
