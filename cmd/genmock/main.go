// Command genmock writes a small mock QuakeML catalog and matching SAC
// waveform files for local runs without network access. The catalog is
// decoded and tabulated with the real domain code before it is written, so a
// fixture that the pipeline cannot read is never produced.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -quakeml-out data/mock/events.xml \
//	  -waveform-dir waveforms \
//	  -xlsx-out data/mock/calmex.xlsx
//
// Serve the catalog with any static file server and point CATALOG at it.
package main

import (
	"bytes"
	"encoding/binary"
	"encoding/xml"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/quake-catalog-etl/internal/adapter/fdsn"
	"github.com/couchcryptid/quake-catalog-etl/internal/adapter/xlsx"
	"github.com/couchcryptid/quake-catalog-etl/internal/domain"
	"github.com/couchcryptid/quake-catalog-etl/internal/waveform"
)

const quakeMLHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

type mockEvent struct {
	id      string
	time    time.Time
	lat     float64
	lon     float64
	depthKm float64
	mag     float64
	magType string
	region  string
}

// Epicentres and magnitudes follow well-known Mexican and Californian events.
var mockEvents = []mockEvent{
	{id: "5065096", time: time.Date(1985, 9, 19, 13, 17, 47, 350000000, time.UTC), lat: 18.19, lon: -102.533, depthKm: 27.9, mag: 8.0, magType: "Mw", region: "MICHOACAN, MEXICO"},
	{id: "3139437", time: time.Date(1992, 6, 28, 11, 57, 34, 130000000, time.UTC), lat: 34.2, lon: -116.437, depthKm: 1.0, mag: 7.3, magType: "Mw", region: "SOUTHERN CALIFORNIA"},
	{id: "3319245", time: time.Date(2010, 4, 4, 22, 40, 42, 360000000, time.UTC), lat: 32.286, lon: -115.295, depthKm: 10.0, mag: 7.2, magType: "Mww", region: "BAJA CALIFORNIA, MEXICO"},
	{id: "10294391", time: time.Date(2017, 9, 8, 4, 49, 19, 180000000, time.UTC), lat: 15.022, lon: -93.899, depthKm: 47.4, mag: 8.2, magType: "Mww", region: "NEAR COAST OF CHIAPAS, MEXICO"},
	{id: "10295627", time: time.Date(2017, 9, 19, 18, 14, 38, 90000000, time.UTC), lat: 18.55, lon: -98.489, depthKm: 48.0, mag: 7.1, magType: "Mww"},
	{id: "11053342", time: time.Date(2019, 7, 6, 3, 19, 53, 40000000, time.UTC), lat: 35.77, lon: -117.599, depthKm: 8.0, mag: 7.1, region: "CENTRAL CALIFORNIA"},
	{id: "11091824", time: time.Date(2019, 7, 10, 2, 0, 0, 0, time.UTC), lat: 35.9, lon: -117.7, depthKm: 5.0, mag: 4.6, magType: "ml", region: "CENTRAL CALIFORNIA"},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	qmlOut := flag.String("quakeml-out", "", "output path for the mock QuakeML catalog")
	waveDir := flag.String("waveform-dir", "", "directory for mock SAC files (optional)")
	xlsxOut := flag.String("xlsx-out", "", "output path for the tabulated spreadsheet fixture (optional)")
	minMag := flag.Float64("min-magnitude", 5.0, "minimum magnitude used when tabulating")
	maxMag := flag.Float64("max-magnitude", 9.5, "maximum magnitude used when tabulating")
	flag.Parse()

	if *qmlOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -quakeml-out")
	}

	doc, err := renderQuakeML(mockEvents)
	if err != nil {
		return fmt.Errorf("render QuakeML: %w", err)
	}

	// Fixed clock for reproducible fetched_at values.
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2025, time.February, 1, 6, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	events, err := fdsn.DecodeQuakeML(bytes.NewReader(doc))
	if err != nil {
		return fmt.Errorf("mock catalog does not decode: %w", err)
	}
	table, errs := domain.Tabulate(events, domain.MagnitudeRange{Min: *minMag, Max: *maxMag})
	if len(errs) > 0 {
		return fmt.Errorf("mock catalog has %d bad events: %w", len(errs), errs[0])
	}
	log.Printf("catalog: %d events, %d within [%g, %g]", len(events), len(table), *minMag, *maxMag)

	if err := writeFile(*qmlOut, doc); err != nil {
		return fmt.Errorf("writing QuakeML: %w", err)
	}
	log.Printf("wrote catalog: %s", *qmlOut)

	if *xlsxOut != "" {
		if err := xlsx.NewWriter("info").WriteTable(*xlsxOut, table); err != nil {
			return fmt.Errorf("writing spreadsheet fixture: %w", err)
		}
		log.Printf("wrote spreadsheet: %s", *xlsxOut)
	}

	if *waveDir != "" {
		n, err := writeWaveforms(*waveDir, mockEvents)
		if err != nil {
			return fmt.Errorf("writing waveforms: %w", err)
		}
		log.Printf("wrote %d SAC files to %s", n, *waveDir)
	}
	return nil
}

// QuakeML 1.2 output types. Only what the catalog decoder reads is emitted.

type qmlDoc struct {
	XMLName xml.Name `xml:"q:quakeml"`
	XMLNS   string   `xml:"xmlns,attr"`
	XMLNSQ  string   `xml:"xmlns:q,attr"`
	Params  struct {
		PublicID string     `xml:"publicID,attr"`
		Events   []qmlEvent `xml:"event"`
	} `xml:"eventParameters"`
}

type qmlEvent struct {
	PublicID    string          `xml:"publicID,attr"`
	Type        string          `xml:"type"`
	Description *qmlDescription `xml:"description,omitempty"`
	Origin      qmlOrigin       `xml:"origin"`
	Magnitude   qmlMagnitude    `xml:"magnitude"`
}

type qmlDescription struct {
	Type string `xml:"type"`
	Text string `xml:"text"`
}

type qmlOrigin struct {
	PublicID     string          `xml:"publicID,attr"`
	Time         qmlValue        `xml:"time"`
	CreationInfo qmlCreationInfo `xml:"creationInfo"`
	Latitude     qmlValue        `xml:"latitude"`
	Longitude    qmlValue        `xml:"longitude"`
	Depth        qmlValue        `xml:"depth"`
}

type qmlMagnitude struct {
	PublicID string   `xml:"publicID,attr"`
	Mag      qmlValue `xml:"mag"`
	Type     string   `xml:"type,omitempty"`
}

type qmlValue struct {
	Value string `xml:"value"`
}

type qmlCreationInfo struct {
	AgencyID string `xml:"agencyID"`
	Author   string `xml:"author"`
}

const publicIDBase = "smi:mock.quakes/fdsnws/event/1/query"

func renderQuakeML(events []mockEvent) ([]byte, error) {
	var doc qmlDoc
	doc.XMLNS = "http://quakeml.org/xmlns/bed/1.2"
	doc.XMLNSQ = "http://quakeml.org/xmlns/quakeml/1.2"
	doc.Params.PublicID = publicIDBase

	for _, e := range events {
		ev := qmlEvent{
			PublicID: publicIDBase + "?eventid=" + e.id,
			Type:     "earthquake",
			Origin: qmlOrigin{
				PublicID:     publicIDBase + "?originid=" + e.id,
				Time:         qmlValue{Value: e.time.Format("2006-01-02T15:04:05.000")},
				CreationInfo: qmlCreationInfo{AgencyID: "us", Author: "NEIC"},
				Latitude:     qmlValue{Value: ftoa(e.lat)},
				Longitude:    qmlValue{Value: ftoa(e.lon)},
				Depth:        qmlValue{Value: ftoa(e.depthKm * 1000)},
			},
			Magnitude: qmlMagnitude{
				PublicID: publicIDBase + "?magnitudeid=" + e.id,
				Mag:      qmlValue{Value: ftoa(e.mag)},
				Type:     e.magType,
			},
		}
		if e.region != "" {
			ev.Description = &qmlDescription{Type: "Flinn-Engdahl region", Text: e.region}
		}
		doc.Params.Events = append(doc.Params.Events, ev)
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(quakeMLHeader), out...), nil
}

// writeWaveforms writes one three-component record per event at station
// IU.TUC, alternating byte order so both decoders are exercised.
func writeWaveforms(dir string, events []mockEvent) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	n := 0
	for i, e := range events {
		order := binary.ByteOrder(binary.LittleEndian)
		if i%2 == 1 {
			order = binary.BigEndian
		}
		for j, ch := range []string{"BHZ", "BHN", "BHE"} {
			tr := waveform.Trace{
				Network:   "IU",
				Station:   "TUC",
				Location:  "00",
				Channel:   ch,
				StartTime: e.time.Truncate(time.Millisecond),
				Delta:     0.05,
				Data:      synthetic(1200, e.mag, j),
			}
			name := fmt.Sprintf("%s.%s.%s.SAC", e.time.Format("20060102T150405"), tr.ID(), e.id)
			var buf bytes.Buffer
			if err := waveform.WriteSAC(&buf, tr, order); err != nil {
				return n, err
			}
			if err := writeFile(filepath.Join(dir, name), buf.Bytes()); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

// synthetic returns a decaying wave train whose amplitude grows with magnitude.
func synthetic(n int, mag float64, component int) []float32 {
	amp := math.Pow(10, mag-5)
	freq := 0.8 + 0.3*float64(component)
	data := make([]float32, n)
	for i := range data {
		t := float64(i) * 0.05
		data[i] = float32(amp * math.Exp(-t/15) * math.Sin(2*math.Pi*freq*t))
	}
	return data
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
