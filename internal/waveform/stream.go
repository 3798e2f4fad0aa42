package waveform

import (
	"fmt"
	"strings"
	"time"
)

const timeLayout = "2006-01-02T15:04:05.000000Z"

// Stream is an ordered collection of traces read from one or more files.
type Stream []Trace

// String renders the stream the way seismologists expect from ObsPy:
//
//	1 Trace(s) in Stream:
//	IU.ANMO.00.BHZ | 2019-06-10T13:11:41.567000Z - ... | 20.0 Hz, 12000 samples
func (s Stream) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d Trace(s) in Stream:", len(s))

	width := 0
	for _, tr := range s {
		width = max(width, len(tr.ID()))
	}
	for _, tr := range s {
		b.WriteByte('\n')
		b.WriteString(tr.summary(width))
	}
	return b.String()
}

func (t Trace) String() string {
	return t.summary(0)
}

func (t Trace) summary(width int) string {
	rate := fmt.Sprintf("%.1f Hz", t.SamplingRate())
	if t.SamplingRate() < 0.1 {
		rate = fmt.Sprintf("%.1f s", t.Delta)
	}
	return fmt.Sprintf("%-*s | %s - %s | %s, %d samples",
		width, t.ID(),
		formatTime(t.StartTime), formatTime(t.EndTime()),
		rate, len(t.Data))
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
