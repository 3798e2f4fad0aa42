package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/quake-catalog-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	calls  int
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func testWriter(fw *fakeWriter) *Writer {
	return &Writer{writer: fw, topic: "quake-events", logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func depth(v float64) *float64 { return &v }

func testRecord() domain.EventRecord {
	return domain.EventRecord{
		EventID:       "smi:service.iris.edu/fdsnws/event/1/query?eventid=11052376",
		OriginTime:    time.Date(2019, 6, 10, 13, 11, 41, 567000000, time.UTC),
		Latitude:      26.0712,
		Longitude:     -110.3051,
		Depth:         depth(10000),
		EventType:     "earthquake",
		Magnitude:     6.2,
		MagnitudeType: "Mww",
		CreationInfo:  domain.DefaultCreationInfo,
		Info:          "GULF OF CALIFORNIA",
		FetchedAt:     time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSerializeToMessage(t *testing.T) {
	rec := testRecord()

	msg, err := serializeToMessage(rec)
	require.NoError(t, err)

	assert.Equal(t, []byte(rec.EventID), msg.Key)
	assert.Contains(t, string(msg.Value), `"event_type":"earthquake"`)
	assert.Contains(t, string(msg.Value), `"depth_m":10000`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte("earthquake"), msg.Headers[0].Value)
	assert.Equal(t, "fetched_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2025-02-01T12:00:00Z"), msg.Headers[1].Value)

	var decoded domain.EventRecord
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, rec.Magnitude, decoded.Magnitude)
	assert.True(t, rec.OriginTime.Equal(decoded.OriginTime))
}

func TestSerializeToMessage_NoEventIDLeavesKeyEmpty(t *testing.T) {
	rec := testRecord()
	rec.EventID = ""
	rec.Depth = nil

	msg, err := serializeToMessage(rec)
	require.NoError(t, err)
	assert.Nil(t, msg.Key)
	assert.NotContains(t, string(msg.Value), "depth_m")
}

func TestWriter_Load(t *testing.T) {
	fw := &fakeWriter{}
	w := testWriter(fw)

	second := testRecord()
	second.EventID = "evt-2"
	require.NoError(t, w.Load(context.Background(), domain.EventTable{testRecord(), second}))

	assert.Equal(t, 1, fw.calls, "rows go out in one batch")
	require.Len(t, fw.msgs, 2)
	assert.Equal(t, []byte("evt-2"), fw.msgs[1].Key)
}

func TestWriter_LoadEmptyTableSkipsBroker(t *testing.T) {
	fw := &fakeWriter{}
	require.NoError(t, testWriter(fw).Load(context.Background(), nil))
	assert.Zero(t, fw.calls)
}

func TestWriter_LoadError(t *testing.T) {
	fw := &fakeWriter{err: errors.New("leader not available")}
	err := testWriter(fw).Load(context.Background(), domain.EventTable{testRecord()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quake-events")
	assert.Contains(t, err.Error(), "leader not available")
}

func TestWriter_NameAndClose(t *testing.T) {
	fw := &fakeWriter{}
	w := testWriter(fw)
	assert.Equal(t, "kafka", w.Name())
	require.NoError(t, w.Close())
	assert.True(t, fw.closed)
}
