// Package waveform reads SAC binary seismograms and prints stream summaries
// for every matching file in a directory.
package waveform

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"
)

// SAC header layout: 70 float32 words, 40 int32 words, then 192 bytes of
// fixed-width character fields.
const (
	headerSize   = 632
	floatWords   = 70
	intWordStart = floatWords * 4
	charStart    = intWordStart + 40*4

	undefinedNumber = -12345
	undefinedString = "-12345"
)

// Float header word indices.
const (
	hDelta  = 0
	hDepMin = 1
	hDepMax = 2
	hB      = 5
	hE      = 6
	hDepMen = 56
)

// Int header word indices, counted from the first int word.
const (
	hNzYear = 0
	hNzJDay = 1
	hNzHour = 2
	hNzMin  = 3
	hNzSec  = 4
	hNzMSec = 5
	hNvHdr  = 6
	hNpts   = 9
	hIfType = 15
	hLeven  = 35
)

// Character field offsets and widths.
const (
	kStnmOff   = charStart
	kEvnmOff   = charStart + 8
	kHoleOff   = charStart + 24
	kCmpnmOff  = charStart + 160
	kNetwkOff  = charStart + 168
	kFieldSize = 8
	kEvnmSize  = 16
)

const iTime = 1

var (
	ErrNotSAC    = errors.New("not a SAC file")
	ErrTruncated = errors.New("SAC data shorter than header npts")
)

// Trace is one evenly sampled seismogram.
type Trace struct {
	Network   string
	Station   string
	Location  string
	Channel   string
	StartTime time.Time
	// Delta is the sampling interval in seconds.
	Delta float64
	Data  []float32
}

// ID returns NET.STA.LOC.CHA.
func (t Trace) ID() string {
	return t.Network + "." + t.Station + "." + t.Location + "." + t.Channel
}

func (t Trace) SamplingRate() float64 {
	if t.Delta == 0 {
		return 0
	}
	return 1 / t.Delta
}

// EndTime is the time of the last sample.
func (t Trace) EndTime() time.Time {
	if len(t.Data) == 0 {
		return t.StartTime
	}
	return t.StartTime.Add(seconds(t.Delta * float64(len(t.Data)-1)))
}

// ReadFile parses a single-trace SAC file into a Stream.
func ReadFile(path string) (Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tr, err := ReadSAC(f)
	if err != nil {
		return nil, err
	}
	return Stream{tr}, nil
}

// ReadSAC decodes an evenly spaced SAC time series. Byte order is detected
// from the header version word.
func ReadSAC(r io.Reader) (Trace, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Trace{}, err
	}
	if len(raw) < headerSize {
		return Trace{}, fmt.Errorf("%w: %d bytes is shorter than the header", ErrNotSAC, len(raw))
	}

	order, err := detectByteOrder(raw)
	if err != nil {
		return Trace{}, err
	}
	h := header{raw: raw[:headerSize], order: order}

	npts := h.int(hNpts)
	if npts < 0 {
		return Trace{}, fmt.Errorf("%w: negative npts %d", ErrNotSAC, npts)
	}
	delta := h.float(hDelta)
	if delta <= 0 || delta == undefinedNumber {
		return Trace{}, fmt.Errorf("%w: invalid sampling interval %v", ErrNotSAC, delta)
	}

	body := raw[headerSize:]
	if len(body) < int(npts)*4 {
		return Trace{}, fmt.Errorf("%w: have %d samples, header says %d", ErrTruncated, len(body)/4, npts)
	}
	data := make([]float32, npts)
	if err := binary.Read(bytes.NewReader(body[:npts*4]), order, data); err != nil {
		return Trace{}, err
	}

	start := h.referenceTime()
	if b := h.float(hB); b != undefinedNumber {
		start = start.Add(seconds(float64(b)))
	}

	return Trace{
		Network:   h.str(kNetwkOff, kFieldSize),
		Station:   h.str(kStnmOff, kFieldSize),
		Location:  h.str(kHoleOff, kFieldSize),
		Channel:   h.str(kCmpnmOff, kFieldSize),
		StartTime: start,
		Delta:     float64(delta),
		Data:      data,
	}, nil
}

func detectByteOrder(raw []byte) (binary.ByteOrder, error) {
	word := raw[intWordStart+hNvHdr*4 : intWordStart+hNvHdr*4+4]
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		if v := int32(order.Uint32(word)); v == 6 || v == 7 {
			return order, nil
		}
	}
	return nil, fmt.Errorf("%w: unrecognised header version", ErrNotSAC)
}

type header struct {
	raw   []byte
	order binary.ByteOrder
}

func (h header) float(i int) float32 {
	return math.Float32frombits(h.order.Uint32(h.raw[i*4:]))
}

func (h header) int(i int) int32 {
	return int32(h.order.Uint32(h.raw[intWordStart+i*4:]))
}

func (h header) str(off, size int) string {
	s := strings.TrimRight(string(h.raw[off:off+size]), " \x00")
	s = strings.TrimSpace(s)
	if s == undefinedString {
		return ""
	}
	return s
}

// referenceTime assembles nz* fields; an undefined year means the epoch.
func (h header) referenceTime() time.Time {
	year := h.int(hNzYear)
	if year == undefinedNumber {
		return time.Unix(0, 0).UTC()
	}
	field := func(i int) int {
		if v := h.int(i); v != undefinedNumber {
			return int(v)
		}
		return 0
	}
	jday := field(hNzJDay)
	if jday < 1 {
		jday = 1
	}
	return time.Date(int(year), time.January, 1,
		field(hNzHour), field(hNzMin), field(hNzSec), field(hNzMSec)*int(time.Millisecond), time.UTC).
		AddDate(0, 0, jday-1)
}

// WriteSAC encodes t as a version 6 SAC file in the given byte order.
func WriteSAC(w io.Writer, t Trace, order binary.ByteOrder) error {
	raw := make([]byte, headerSize)
	h := header{raw: raw, order: order}

	for i := 0; i < floatWords; i++ {
		h.putFloat(i, undefinedNumber)
	}
	for i := 0; i < 40; i++ {
		h.putInt(i, undefinedNumber)
	}
	for off := charStart; off < headerSize; off += kFieldSize {
		h.putStr(off, kFieldSize, "")
	}
	h.putStr(kEvnmOff, kEvnmSize, "")

	start := t.StartTime.UTC()
	h.putFloat(hDelta, float32(t.Delta))
	h.putFloat(hB, 0)
	h.putFloat(hE, float32(t.Delta*float64(max(len(t.Data)-1, 0))))
	if len(t.Data) > 0 {
		lo, hi, sum := t.Data[0], t.Data[0], 0.0
		for _, v := range t.Data {
			lo, hi = min(lo, v), max(hi, v)
			sum += float64(v)
		}
		h.putFloat(hDepMin, lo)
		h.putFloat(hDepMax, hi)
		h.putFloat(hDepMen, float32(sum/float64(len(t.Data))))
	}

	h.putInt(hNzYear, int32(start.Year()))
	h.putInt(hNzJDay, int32(start.YearDay()))
	h.putInt(hNzHour, int32(start.Hour()))
	h.putInt(hNzMin, int32(start.Minute()))
	h.putInt(hNzSec, int32(start.Second()))
	h.putInt(hNzMSec, int32(start.Nanosecond()/int(time.Millisecond)))
	h.putInt(hNvHdr, 6)
	h.putInt(hNpts, int32(len(t.Data)))
	h.putInt(hIfType, iTime)
	h.putInt(hLeven, 1)

	h.putStr(kStnmOff, kFieldSize, t.Station)
	h.putStr(kHoleOff, kFieldSize, t.Location)
	h.putStr(kCmpnmOff, kFieldSize, t.Channel)
	h.putStr(kNetwkOff, kFieldSize, t.Network)

	if _, err := w.Write(raw); err != nil {
		return err
	}
	return binary.Write(w, order, t.Data)
}

func (h header) putFloat(i int, v float32) {
	h.order.PutUint32(h.raw[i*4:], math.Float32bits(v))
}

func (h header) putInt(i int, v int32) {
	h.order.PutUint32(h.raw[intWordStart+i*4:], uint32(v))
}

func (h header) putStr(off, size int, s string) {
	if s == "" {
		s = undefinedString
	}
	field := h.raw[off : off+size]
	for i := range field {
		field[i] = ' '
	}
	copy(field, s)
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s*1e6)) * time.Microsecond
}
