// Package report renders aggregated work-hour summaries as flat files for
// download. Both renditions are pure functions of their inputs: identical
// summaries and range produce byte-identical output.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"punchclock/internal/summary"
)

const timeLayout = "15:04"

var header = []string{"date", "role", "name", "staff_id", "first_in", "last_out", "total", "arrival"}

// Config controls report rendering.
type Config struct {
	// ExpectedStart is the clock time ("15:04") arrivals are compared against
	// for the on-time/late flag.
	ExpectedStart string
}

// Filename returns the download name for a range export.
func Filename(start, end string) string {
	return fmt.Sprintf("work_hours_%s_to_%s.csv", start, end)
}

// CSV renders one row per (date, person) summary. Rows keep the order produced
// by the aggregator: date, then role priority, then name.
func CSV(rows []summary.PersonDay, cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, s := range rows {
		if err := w.Write(row(s, cfg)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// XLSX renders the same table as a spreadsheet for the admin screens.
func XLSX(rows []summary.PersonDay, cfg Config) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	for col, name := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return nil, err
		}
	}
	for i, s := range rows {
		for col, val := range row(s, cfg) {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

func row(s summary.PersonDay, cfg Config) []string {
	lastOut := ""
	if s.LastOut != nil {
		lastOut = s.LastOut.Format(timeLayout)
	}
	return []string{
		s.Date,
		s.Role,
		s.Name,
		s.StaffID,
		s.FirstIn.Format(timeLayout),
		lastOut,
		summary.FormatMinutes(s.TotalMinutes),
		arrivalFlag(s.FirstIn, cfg.ExpectedStart),
	}
}

// arrivalFlag compares the first arrival's clock time against the configured
// expected start. An unparsable expected start disables the flag.
func arrivalFlag(firstIn time.Time, expectedStart string) string {
	expected, err := time.Parse(timeLayout, expectedStart)
	if err != nil {
		return ""
	}
	arrived := firstIn.Hour()*60 + firstIn.Minute()
	cutoff := expected.Hour()*60 + expected.Minute()
	if arrived <= cutoff {
		return "on_time"
	}
	return "late"
}
