package analytics

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"leaderbot/core"
	"leaderbot/leaderboard"
)

// Format selects an export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts json or xlsx, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatXLSX:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q (want json or xlsx)", s)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/json"
}

// Exporter writes the standings of a snapshot.
type Exporter interface {
	Export(w io.Writer, lb *core.Leaderboard, order leaderboard.SortOrder) error
}

// NewExporter returns the exporter for a format.
func NewExporter(f Format) (Exporter, error) {
	switch f {
	case FormatJSON:
		return JSONExporter{Indent: "  "}, nil
	case FormatXLSX:
		return XLSXExporter{}, nil
	}
	return nil, fmt.Errorf("unknown export format %q", f)
}

// StandingsDocument is the JSON export shape.
type StandingsDocument struct {
	Year       int                   `json:"year"`
	OwnerID    core.MemberID         `json:"owner_id"`
	SortOrder  leaderboard.SortOrder `json:"sort_order"`
	ExportedAt time.Time             `json:"exported_at"`
	Standings  []leaderboard.Entry   `json:"standings"`
}

// JSONExporter writes a StandingsDocument.
type JSONExporter struct {
	Indent string
}

func (e JSONExporter) Export(w io.Writer, lb *core.Leaderboard, order leaderboard.SortOrder) error {
	if lb == nil {
		return errors.New("export: no snapshot")
	}
	enc := json.NewEncoder(w)
	if e.Indent != "" {
		enc.SetIndent("", e.Indent)
	}
	return enc.Encode(StandingsDocument{
		Year:       lb.Year,
		OwnerID:    lb.OwnerID,
		SortOrder:  order,
		ExportedAt: time.Now().UTC(),
		Standings:  leaderboard.Standings(lb, order),
	})
}

const (
	standingsSheet   = "Standings"
	completionsSheet = "Completions"
)

// XLSXExporter writes a workbook with a ranked Standings sheet and a
// Completions sheet holding one row per member and one column per puzzle.
type XLSXExporter struct{}

func (XLSXExporter) Export(w io.Writer, lb *core.Leaderboard, order leaderboard.SortOrder) error {
	if lb == nil {
		return errors.New("export: no snapshot")
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", standingsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	standings := leaderboard.Standings(lb, order)
	if err := writeRow(f, standingsSheet, 1, []any{"Rank", "Member ID", "Name", "Stars", "Local score", "Last star"}); err != nil {
		return err
	}
	for i, e := range standings {
		row := []any{e.Rank, int64(e.MemberID), e.Name, e.Stars, e.LocalScore, starTime(e.LastStarTS)}
		if err := writeRow(f, standingsSheet, i+2, row); err != nil {
			return err
		}
	}
	if err := f.SetRowStyle(standingsSheet, 1, 1, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if err := f.SetColWidth(standingsSheet, "C", "C", 32); err != nil {
		return fmt.Errorf("set width: %w", err)
	}

	if _, err := f.NewSheet(completionsSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	header := []any{"Name"}
	for day := 1; day <= 25; day++ {
		header = append(header, fmt.Sprintf("Day %d.1", day), fmt.Sprintf("Day %d.2", day))
	}
	if err := writeRow(f, completionsSheet, 1, header); err != nil {
		return err
	}
	for i, e := range standings {
		m := lb.Members[e.MemberID]
		row := []any{e.Name}
		for day := 1; day <= 25; day++ {
			for part := 1; part <= 2; part++ {
				if pc, ok := m.CompletedAt(core.Puzzle{Day: day, Part: part}); ok {
					row = append(row, starTime(pc.GetStarTS))
				} else {
					row = append(row, "")
				}
			}
		}
		if err := writeRow(f, completionsSheet, i+2, row); err != nil {
			return err
		}
	}
	if err := f.SetRowStyle(completionsSheet, 1, 1, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func starTime(ts int64) string {
	if ts == 0 {
		return ""
	}
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}
