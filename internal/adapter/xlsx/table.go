// Package xlsx stores the event table as a single-sheet Excel workbook.
package xlsx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/quake-catalog-etl/internal/domain"
)

// originTimeLayout matches the "2019-06-10T13:11:41.567000Z" rendering used in catalogs.
const originTimeLayout = "2006-01-02T15:04:05.000000Z"

// Writer writes event tables to a named sheet.
type Writer struct {
	sheet string
}

// NewWriter creates a Writer that places rows on the given sheet.
func NewWriter(sheet string) *Writer {
	return &Writer{sheet: sheet}
}

// WriteTable writes the header and one row per record to path, creating
// the parent directory when absent. An existing file is replaced.
func (w *Writer) WriteTable(path string, table domain.EventTable) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), w.sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	header := make([]any, len(domain.TableColumns))
	for i, col := range domain.TableColumns {
		header[i] = col
	}
	if err := f.SetSheetRow(w.sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := w.styleHeader(f); err != nil {
		return err
	}

	for i := range table {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := recordCells(table[i])
		if err := f.SetSheetRow(w.sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func (w *Writer) styleHeader(f *excelize.File) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(domain.TableColumns), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(w.sheet, "A1", last, style); err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(domain.TableColumns))
	if err != nil {
		return err
	}
	return f.SetColWidth(w.sheet, "A", lastCol, 20)
}

func recordCells(r domain.EventRecord) []any {
	var depth any
	if r.Depth != nil {
		depth = *r.Depth
	}
	return []any{
		r.OriginTime.UTC().Format(originTimeLayout),
		r.Latitude,
		r.Longitude,
		depth,
		r.EventType,
		r.Magnitude,
		r.MagnitudeType,
		r.CreationInfo,
		r.Info,
	}
}

// ReadTable loads a table previously written by WriteTable. The header must
// match domain.TableColumns exactly.
func ReadTable(path, sheet string) (domain.EventTable, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, errors.New("sheet has no header row")
	}
	if err := checkHeader(rows[0]); err != nil {
		return nil, err
	}

	table := make(domain.EventTable, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		table = append(table, rec)
	}
	return table, nil
}

func checkHeader(row []string) error {
	if len(row) != len(domain.TableColumns) {
		return fmt.Errorf("header has %d columns, want %d", len(row), len(domain.TableColumns))
	}
	for i, col := range domain.TableColumns {
		if row[i] != col {
			return fmt.Errorf("header column %d is %q, want %q", i+1, row[i], col)
		}
	}
	return nil
}

func parseRow(row []string) (domain.EventRecord, error) {
	cells := make([]string, len(domain.TableColumns))
	copy(cells, row)

	t, err := time.Parse(originTimeLayout, cells[0])
	if err != nil {
		return domain.EventRecord{}, fmt.Errorf("origin time: %w", err)
	}
	lat, err := strconv.ParseFloat(cells[1], 64)
	if err != nil {
		return domain.EventRecord{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(cells[2], 64)
	if err != nil {
		return domain.EventRecord{}, fmt.Errorf("longitude: %w", err)
	}
	var depth *float64
	if strings.TrimSpace(cells[3]) != "" {
		d, err := strconv.ParseFloat(cells[3], 64)
		if err != nil {
			return domain.EventRecord{}, fmt.Errorf("depth: %w", err)
		}
		depth = &d
	}
	mag, err := strconv.ParseFloat(cells[5], 64)
	if err != nil {
		return domain.EventRecord{}, fmt.Errorf("magnitude: %w", err)
	}

	return domain.EventRecord{
		OriginTime:    t,
		Latitude:      lat,
		Longitude:     lon,
		Depth:         depth,
		EventType:     cells[4],
		Magnitude:     mag,
		MagnitudeType: cells[6],
		CreationInfo:  cells[7],
		Info:          cells[8],
	}, nil
}
