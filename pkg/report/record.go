// Package report turns command Results into exportable records and streams
// them through a codec.
package report

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"camlink/pkg/command"
	"camlink/pkg/control"
)

// Record is one executed command as written to a report.
type Record struct {
	Command       string `json:"command" cbor:"command"`
	DatagramSize  int    `json:"datagram_size" cbor:"datagram_size"`
	DatagramCount int    `json:"datagram_count" cbor:"datagram_count"`
	Expected      int    `json:"expected" cbor:"expected"`
	Received      int    `json:"received" cbor:"received"`
	Success       bool   `json:"success" cbor:"success"`
	Kind          string `json:"kind,omitempty" cbor:"kind,omitempty"`
	Error         string `json:"error,omitempty" cbor:"error,omitempty"`
	AtUnixMs      int64  `json:"at_unix_ms" cbor:"at_unix_ms"`
	TookMs        int64  `json:"took_ms" cbor:"took_ms"`
	Data          []byte `json:"data,omitempty" cbor:"data,omitempty"`
}

// Options controls what NewRecord keeps.
type Options struct {
	// OmitData drops the payload and keeps only its length.
	OmitData bool
}

// NewRecord captures cmd and its Result. at is when the command was
// submitted and took how long Submit blocked.
func NewRecord(cmd command.Command, r control.Result, at time.Time, took time.Duration, opts Options) Record {
	rec := Record{
		Command:       cmd.Name(),
		DatagramSize:  cmd.DatagramSize(),
		DatagramCount: cmd.DatagramCount(),
		Expected:      cmd.Total(),
		Received:      len(r.Data),
		Success:       r.Success(),
		AtUnixMs:      at.UnixMilli(),
		TookMs:        took.Milliseconds(),
	}
	if !opts.OmitData && len(r.Data) > 0 {
		rec.Data = append([]byte(nil), r.Data...)
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
		rec.Kind = kindName(r.Err)
	}
	return rec
}

func kindName(err error) string {
	if k := control.KindOf(err); k != 0 {
		return k.String()
	}
	switch {
	case errors.Is(err, control.ErrQueueOverflow):
		return "queue-overflow"
	case errors.Is(err, control.ErrClosed):
		return "closed"
	default:
		return "rejected"
	}
}

// AsProto renders the record as a google.protobuf.Struct. Data is carried
// base64 encoded since Struct has no bytes value.
func (r Record) AsProto() (proto.Message, error) {
	fields := map[string]any{
		"command":        r.Command,
		"datagram_size":  r.DatagramSize,
		"datagram_count": r.DatagramCount,
		"expected":       r.Expected,
		"received":       r.Received,
		"success":        r.Success,
		"at_unix_ms":     float64(r.AtUnixMs),
		"took_ms":        float64(r.TookMs),
	}
	if r.Kind != "" {
		fields["kind"] = r.Kind
	}
	if r.Error != "" {
		fields["error"] = r.Error
	}
	if len(r.Data) > 0 {
		fields["data"] = base64.StdEncoding.EncodeToString(r.Data)
	}
	return structpb.NewStruct(fields)
}

// FromStruct is the inverse of AsProto.
func FromStruct(s *structpb.Struct) (Record, error) {
	f := s.GetFields()
	num := func(k string) int64 { return int64(f[k].GetNumberValue()) }
	rec := Record{
		Command:       f["command"].GetStringValue(),
		DatagramSize:  int(num("datagram_size")),
		DatagramCount: int(num("datagram_count")),
		Expected:      int(num("expected")),
		Received:      int(num("received")),
		Success:       f["success"].GetBoolValue(),
		Kind:          f["kind"].GetStringValue(),
		Error:         f["error"].GetStringValue(),
		AtUnixMs:      num("at_unix_ms"),
		TookMs:        num("took_ms"),
	}
	if d := f["data"].GetStringValue(); d != "" {
		b, err := base64.StdEncoding.DecodeString(d)
		if err != nil {
			return Record{}, fmt.Errorf("report: decode data: %w", err)
		}
		rec.Data = b
	}
	return rec, nil
}
