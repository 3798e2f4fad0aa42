package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/quake-catalog-etl/internal/adapter/xlsx"
	"github.com/couchcryptid/quake-catalog-etl/internal/domain"
)

var validateFile string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a written spreadsheet against the configured query",
	Long: `Validate re-reads the event spreadsheet and checks its header, that every
magnitude lies in the configured range, that every epicentre lies inside the
map region, that no text column is blank and that no event appears twice.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.SpreadsheetPath()
		if validateFile != "" {
			path = validateFile
		}
		if !validateSpreadsheet(cmd.OutOrStdout(), path, cfg.SheetName, cfg.Query()) {
			return errors.New("validation failed")
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateFile, "file", "", "spreadsheet to check (default OUTPUT_DIR/SPREADSHEET_NAME)")
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func validateSpreadsheet(out io.Writer, path, sheet string, q domain.Query) bool {
	fmt.Fprintln(out, "=== Event Spreadsheet Validation ===")
	fmt.Fprintf(out, "File: %s (sheet %q)\n\n", path, sheet)

	schema := &phase{name: "Phase 1: Schema"}
	table, err := xlsx.ReadTable(path, sheet)
	if err != nil {
		schema.errorf("%v", err)
	}

	phases := []*phase{schema}
	if schema.passed() {
		phases = append(phases, checkTable(table, q)...)
	}

	ok := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = "FAIL"
			ok = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}
	fmt.Fprintf(out, "\nRows: %d\n", len(table))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if ok {
		fmt.Fprintln(out, "\nAll validations passed.")
	} else {
		fmt.Fprintln(out, "\nValidation FAILED.")
	}
	return ok
}

func checkTable(table domain.EventTable, q domain.Query) []*phase {
	return []*phase{
		checkMagnitudes(table, q.Magnitude),
		checkRegion(table, q.Bounds),
		checkDefaults(table),
		checkDuplicates(table),
	}
}

func checkMagnitudes(table domain.EventTable, rng domain.MagnitudeRange) *phase {
	p := &phase{name: "Phase 2: Magnitude Range"}
	for i := range table {
		if !rng.Contains(table[i].Magnitude) {
			p.errorf("row %d: magnitude %g outside [%g, %g]", i+2, table[i].Magnitude, rng.Min, rng.Max)
		}
	}
	return p
}

func checkRegion(table domain.EventTable, b domain.MapBounds) *phase {
	p := &phase{name: "Phase 3: Map Region"}
	for i := range table {
		r := &table[i]
		if r.Latitude < b.MinLatitude || r.Latitude > b.MaxLatitude ||
			r.Longitude < b.MinLongitude || r.Longitude > b.MaxLongitude {
			p.errorf("row %d: epicentre (%g, %g) outside the map region", i+2, r.Latitude, r.Longitude)
		}
	}
	return p
}

func checkDefaults(table domain.EventTable) *phase {
	p := &phase{name: "Phase 4: Field Defaults"}
	for i := range table {
		r := &table[i]
		fields := [...]struct{ col, v string }{
			{"Event Type", r.EventType},
			{"Magnitude Type", r.MagnitudeType},
			{"Creation Info", r.CreationInfo},
			{"Info", r.Info},
		}
		for _, f := range fields {
			if f.v == "" {
				p.errorf("row %d: %s is blank", i+2, f.col)
			}
		}
	}
	return p
}

func checkDuplicates(table domain.EventTable) *phase {
	p := &phase{name: "Phase 5: Duplicate Events"}
	seen := make(map[string]int, len(table))
	for i := range table {
		r := &table[i]
		key := fmt.Sprintf("%s@%g,%g", r.OriginTime.Format("2006-01-02T15:04:05.000000Z"), r.Latitude, r.Longitude)
		if first, ok := seen[key]; ok {
			p.errorf("row %d duplicates row %d", i+2, first)
			continue
		}
		seen[key] = i + 2
	}
	return p
}
