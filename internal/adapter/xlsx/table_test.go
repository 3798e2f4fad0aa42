package xlsx

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/quake-catalog-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const testSheet = "info"

func f64(v float64) *float64 { return &v }

func sampleTable() domain.EventTable {
	return domain.EventTable{
		{
			EventID:       "evt-1",
			OriginTime:    time.Date(2019, 6, 10, 13, 11, 41, 567000000, time.UTC),
			Latitude:      26.0712,
			Longitude:     -110.3051,
			Depth:         f64(10000),
			EventType:     "earthquake",
			Magnitude:     6.2,
			MagnitudeType: "Mww",
			CreationInfo:  "agency_id=us, author=NEIC",
			Info:          "GULF OF CALIFORNIA",
		},
		{
			EventID:       "evt-2",
			OriginTime:    time.Date(2021, 8, 14, 12, 29, 8, 0, time.UTC),
			Latitude:      18.4335,
			Longitude:     -73.4822,
			EventType:     domain.DefaultEventType,
			Magnitude:     7.2,
			MagnitudeType: domain.DefaultMagnitudeType,
			CreationInfo:  domain.DefaultCreationInfo,
			Info:          domain.DefaultInfo,
		},
		{
			EventID:       "evt-3",
			OriginTime:    time.Date(1992, 6, 28, 11, 57, 34, 130000000, time.UTC),
			Latitude:      34.2,
			Longitude:     -116.437,
			Depth:         f64(1000),
			EventType:     "earthquake",
			Magnitude:     7.3,
			MagnitudeType: "Mw",
			CreationInfo:  "N/A",
			Info:          "SOUTHERN CALIFORNIA",
		},
	}
}

func TestWriteTable_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "calmex.xlsx")
	table := sampleTable()

	require.NoError(t, NewWriter(testSheet).WriteTable(path, table))

	got, err := ReadTable(path, testSheet)
	require.NoError(t, err)
	require.Len(t, got, len(table))

	for i := range table {
		want := table[i]
		assert.Equal(t, want.OriginTime, got[i].OriginTime, "row %d", i)
		assert.InDelta(t, want.Latitude, got[i].Latitude, 1e-9, "row %d", i)
		assert.InDelta(t, want.Longitude, got[i].Longitude, 1e-9, "row %d", i)
		if want.Depth == nil {
			assert.Nil(t, got[i].Depth, "row %d", i)
		} else {
			require.NotNil(t, got[i].Depth, "row %d", i)
			assert.InDelta(t, *want.Depth, *got[i].Depth, 1e-9, "row %d", i)
		}
		assert.Equal(t, want.EventType, got[i].EventType, "row %d", i)
		assert.InDelta(t, want.Magnitude, got[i].Magnitude, 1e-9, "row %d", i)
		assert.Equal(t, want.MagnitudeType, got[i].MagnitudeType, "row %d", i)
		assert.Equal(t, want.CreationInfo, got[i].CreationInfo, "row %d", i)
		assert.Equal(t, want.Info, got[i].Info, "row %d", i)
	}
}

func TestWriteTable_HeaderAndSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calmex.xlsx")
	require.NoError(t, NewWriter(testSheet).WriteTable(path, nil))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{testSheet}, f.GetSheetList())
	rows, err := f.GetRows(testSheet)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.TableColumns, rows[0])
}

func TestWriteTable_EmptyTableRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calmex.xlsx")
	require.NoError(t, NewWriter(testSheet).WriteTable(path, domain.EventTable{}))

	got, err := ReadTable(path, testSheet)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWriteTable_UnwritablePath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	err := NewWriter(testSheet).WriteTable(filepath.Join(blocker, "calmex.xlsx"), sampleTable())
	require.Error(t, err)
}

func TestReadTable_WrongHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName(f.GetSheetName(0), testSheet))
	require.NoError(t, f.SetSheetRow(testSheet, "A1", &[]any{"Time", "Lat"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	_, err := ReadTable(path, testSheet)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header")
}

func TestReadTable_MissingSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calmex.xlsx")
	require.NoError(t, NewWriter(testSheet).WriteTable(path, sampleTable()))

	_, err := ReadTable(path, "other")
	require.Error(t, err)
}
