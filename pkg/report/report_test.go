package report

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"camlink/pkg/command"
	"camlink/pkg/control"
	"camlink/pkg/protocol/codec"
)

func sampleRecords() []Record {
	at := time.UnixMilli(1_700_000_000_123)
	ok := NewRecord(command.MustNew("RESET", 1, 4), control.Result{Data: []byte("ISOK")}, at, 12*time.Millisecond, Options{})
	timeout := NewRecord(command.MustNew("IMAGE", 480, 640),
		control.Result{Data: []byte{}, Err: &control.ProtocolError{Kind: control.KindTimeout, Command: "IMAGE", Expected: 307200, SoFar: []byte{}, Elapsed: 3 * time.Second}},
		at.Add(time.Second), 3*time.Second, Options{})
	rejected := NewRecord(command.MustNew("STATUS", 1, 8), control.Result{Data: []byte{}, Err: fmt.Errorf("%w (capacity 1)", control.ErrQueueOverflow)},
		at.Add(2*time.Second), 0, Options{})
	return []Record{ok, timeout, rejected}
}

func TestNewRecord(t *testing.T) {
	recs := sampleRecords()

	require.Equal(t, Record{
		Command: "RESET", DatagramSize: 4, DatagramCount: 1, Expected: 4, Received: 4,
		Success: true, AtUnixMs: 1_700_000_000_123, TookMs: 12, Data: []byte("ISOK"),
	}, recs[0])

	require.False(t, recs[1].Success)
	require.Equal(t, "timeout", recs[1].Kind)
	require.Equal(t, 307200, recs[1].Expected)
	require.Contains(t, recs[1].Error, "IMAGE: timeout after 3000ms")
	require.Nil(t, recs[1].Data)

	require.Equal(t, "queue-overflow", recs[2].Kind)

	omit := NewRecord(command.MustNew("RESET", 1, 4), control.Result{Data: []byte("ISOK")}, time.Now(), 0, Options{OmitData: true})
	require.Nil(t, omit.Data)
	require.Equal(t, 4, omit.Received)
}

func TestStream_RoundTripAllFormats(t *testing.T) {
	reg, err := codec.NewRegistry()
	require.NoError(t, err)

	for _, name := range reg.Names() {
		t.Run(name, func(t *testing.T) {
			c, err := reg.Lookup(name)
			require.NoError(t, err)

			var buf bytes.Buffer
			w := NewWriter(&buf, c)
			for _, rec := range sampleRecords() {
				require.NoError(t, w.Write(rec))
			}
			require.Equal(t, 3, w.Count())

			got, err := NewReader(&buf, c).ReadAll()
			require.NoError(t, err)
			require.Equal(t, sampleRecords(), got)
		})
	}
}

func TestStream_Framing(t *testing.T) {
	reg, err := codec.NewRegistry()
	require.NoError(t, err)

	js, _ := reg.Lookup("json")
	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf, js).Write(sampleRecords()[0]))
	require.True(t, strings.HasSuffix(buf.String(), "}\n"))
	require.Contains(t, buf.String(), `"data":"SVNPSw=="`)

	pb, _ := reg.Lookup("proto")
	buf.Reset()
	require.NoError(t, NewWriter(&buf, pb).Write(sampleRecords()[0]))
	n := binary.LittleEndian.Uint32(buf.Bytes()[:4])
	require.EqualValues(t, buf.Len()-4, n)
}

func TestReader_TruncatedProtoFrame(t *testing.T) {
	reg, err := codec.NewRegistry()
	require.NoError(t, err)
	pb, _ := reg.Lookup("proto")

	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf, pb).Write(sampleRecords()[0]))
	cut := buf.Bytes()[:buf.Len()-3]

	_, err = NewReader(bytes.NewReader(cut), pb).Next()
	require.Error(t, err)
}
