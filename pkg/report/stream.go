package report

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	cbor "github.com/fxamacker/cbor/v2"
	"google.golang.org/protobuf/types/known/structpb"

	"camlink/pkg/protocol/codec"
)

// maxFrame caps one length-prefixed protobuf record on read.
const maxFrame = 16 << 20

// Writer appends records to a stream. Framing depends on the codec: JSON is
// newline delimited, CBOR items are self-delimiting and simply concatenated,
// and protobuf messages get a 4-byte little-endian length prefix.
type Writer struct {
	w io.Writer
	c codec.Codec
	n int
}

func NewWriter(w io.Writer, c codec.Codec) *Writer { return &Writer{w: w, c: c} }

func (w *Writer) Write(rec Record) error {
	b, err := w.c.Marshal(rec)
	if err != nil {
		return fmt.Errorf("report: encode %s record %d: %w", w.c.Name(), w.n, err)
	}
	switch w.c.Name() {
	case "json":
		b = append(b, '\n')
	case "proto":
		b = append(binary.LittleEndian.AppendUint32(nil, uint32(len(b))), b...)
	}
	if _, err := w.w.Write(b); err != nil {
		return fmt.Errorf("report: write record %d: %w", w.n, err)
	}
	w.n++
	return nil
}

// Count is the number of records written.
func (w *Writer) Count() int { return w.n }

// Reader reads back a stream produced by Writer with the same codec.
type Reader struct {
	c    codec.Codec
	br   *bufio.Reader
	cbor *cbor.Decoder
}

func NewReader(r io.Reader, c codec.Codec) *Reader {
	rd := &Reader{c: c, br: bufio.NewReader(r)}
	if c.Name() == "cbor" {
		rd.cbor = cbor.NewDecoder(rd.br)
	}
	return rd
}

// Next returns the next record, or io.EOF at a clean end of stream.
func (r *Reader) Next() (Record, error) {
	var rec Record
	switch r.c.Name() {
	case "json":
		line, err := r.br.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			return rec, err
		}
		if err := r.c.Unmarshal(line, &rec); err != nil {
			return rec, fmt.Errorf("report: decode json: %w", err)
		}
		return rec, nil
	case "cbor":
		if err := r.cbor.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return rec, io.EOF
			}
			return rec, fmt.Errorf("report: decode cbor: %w", err)
		}
		return rec, nil
	case "proto":
		var hdr [4]byte
		if _, err := io.ReadFull(r.br, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return rec, io.EOF
			}
			return rec, fmt.Errorf("report: read frame header: %w", err)
		}
		n := binary.LittleEndian.Uint32(hdr[:])
		if n > maxFrame {
			return rec, fmt.Errorf("report: frame of %d bytes exceeds %d", n, maxFrame)
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r.br, buf); err != nil {
			return rec, fmt.Errorf("report: read frame: %w", err)
		}
		var s structpb.Struct
		if err := r.c.Unmarshal(buf, &s); err != nil {
			return rec, fmt.Errorf("report: decode proto: %w", err)
		}
		return FromStruct(&s)
	default:
		return rec, fmt.Errorf("report: no framing for codec %q", r.c.Name())
	}
}

// ReadAll drains r.
func (r *Reader) ReadAll() ([]Record, error) {
	var out []Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}
