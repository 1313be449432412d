package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
)

// Protoer is implemented by values that have a protobuf form but are
// not messages themselves.
type Protoer interface {
	AsProto() (proto.Message, error)
}

type protoCodec struct {
	mo proto.MarshalOptions
	uo proto.UnmarshalOptions
}

// Proto returns a deterministic Protocol Buffers codec. It marshals
// proto.Message values directly and Protoer values via AsProto.
func Proto() Codec {
	return protoCodec{
		mo: proto.MarshalOptions{Deterministic: true},
		uo: proto.UnmarshalOptions{DiscardUnknown: true},
	}
}

func (p protoCodec) Name() string        { return "proto" }
func (p protoCodec) ContentType() string { return "application/x-protobuf" }

func (p protoCodec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case proto.Message:
		return p.mo.Marshal(m)
	case Protoer:
		msg, err := m.AsProto()
		if err != nil {
			return nil, fmt.Errorf("protobuf: %T: %w", v, err)
		}
		return p.mo.Marshal(msg)
	default:
		return nil, fmt.Errorf("protobuf: value has no protobuf form: %T", v)
	}
}

func (p protoCodec) Unmarshal(data []byte, v any) error {
	msg, ok := v.(proto.Message)
	if !ok {
		return fmt.Errorf("protobuf: target does not implement proto.Message: %T", v)
	}
	return p.uo.Unmarshal(data, msg)
}
