package codec

import (
	"bytes"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type sample struct {
	Name string `json:"name" cbor:"name"`
	Data []byte `json:"data" cbor:"data"`
}

func TestJSONCodec(t *testing.T) {
	c := JSON()
	b, err := c.Marshal(sample{Name: "RESET", Data: []byte("ISOK")})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"name":"RESET","data":"SVNPSw=="}` {
		t.Fatalf("unexpected json: %s", b)
	}
	var out sample
	if err := c.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Name != "RESET" || string(out.Data) != "ISOK" {
		t.Fatalf("roundtrip mismatch: %#v", out)
	}
}

func TestCBORCodec(t *testing.T) {
	c, err := CBOR()
	if err != nil {
		t.Fatalf("new cbor: %v", err)
	}
	in := sample{Name: "STATUS", Data: []byte("MYSTATUS")}
	b, err := c.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	again, _ := c.Marshal(in)
	if !bytes.Equal(b, again) {
		t.Fatalf("encoding not deterministic")
	}
	var out map[string]any
	if err := c.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["name"] != "STATUS" || !bytes.Equal(out["data"].([]byte), []byte("MYSTATUS")) {
		t.Fatalf("roundtrip mismatch: %#v", out)
	}
}

type wrapped struct{ k string }

func (w wrapped) AsProto() (proto.Message, error) {
	return structpb.NewStruct(map[string]any{"k": w.k})
}

func TestProtoCodec(t *testing.T) {
	c := Proto()
	b, err := c.Marshal(wrapped{k: "v"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out structpb.Struct
	if err := c.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Fields["k"].GetStringValue() != "v" {
		t.Fatalf("roundtrip mismatch")
	}
	if _, err := c.Marshal(sample{}); err == nil {
		t.Fatalf("expected error for plain struct")
	}
	if err := c.Unmarshal(b, &sample{}); err == nil {
		t.Fatalf("expected error for non-message target")
	}
}

func TestRegistryLookup(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	if got := r.Names(); len(got) != 3 || got[0] != "cbor" || got[1] != "json" || got[2] != "proto" {
		t.Fatalf("names: %v", got)
	}
	for in, want := range map[string]string{
		"json":                   "json",
		" CBOR ":                 "cbor",
		"application/x-protobuf": "proto",
	} {
		c, err := r.Lookup(in)
		if err != nil {
			t.Fatalf("lookup %q: %v", in, err)
		}
		if c.Name() != want {
			t.Fatalf("lookup %q: got %s", in, c.Name())
		}
	}
	if _, err := r.Lookup("xml"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
