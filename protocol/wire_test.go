package protocol

import (
	"errors"
	"reflect"
	"testing"

	"github.com/momentics/hioload-amqp/api"
)

func TestTableRoundTrip(t *testing.T) {
	in := Table{
		"product": "hioload-amqp",
		"flag":    true,
		"octet":   int8(-3),
		"count":   int32(42),
		"big":     int64(1 << 40),
		"ts":      uint64(1234567890),
		"nothing": nil,
		"details": Table{"inner": "v"},
	}
	data := appendTable(nil, in)
	out, offset, err := decodeTable(data, 0)
	if err != nil {
		t.Fatal(err)
	}
	if offset != len(data) {
		t.Fatalf("offset = %d, want %d", offset, len(data))
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch:\n in: %#v\nout: %#v", in, out)
	}
}

func TestShortstrTooLongPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	appendShortstr(nil, string(make([]byte, 256)))
}

func TestDecodeShortstrShortBuffer(t *testing.T) {
	data := []byte{5, 'a', 'b'}
	_, _, err := decodeShortstr(data, 0)
	if !errors.Is(err, api.ErrShortBuffer) {
		t.Fatalf("err = %v", err)
	}
}

func TestDecodeTableUnknownTag(t *testing.T) {
	data := appendLong(nil, 3)
	data = appendShortstr(data, "k")
	data = append(data, 'Z')
	_, _, err := decodeTable(data, 0)
	if !errors.Is(err, api.ErrUnknownFieldType) {
		t.Fatalf("err = %v", err)
	}
}

func TestStartOkRoundTrip(t *testing.T) {
	in := &ConnectionStartOk{
		ClientProperties: Table{"product": "hioload-amqp"},
		Mechanism:        "PLAIN",
		Response:         "\x00guest\x00guest",
		Locale:           "en_US",
	}
	payload := in.EncodePayload()
	dec, ok := LookupMethod(MethodConnectionStartOk)
	if !ok {
		t.Fatal("start-ok not registered")
	}
	m, end, err := dec(payload, 4)
	if err != nil {
		t.Fatal(err)
	}
	if end != len(payload) {
		t.Fatalf("decoded %d of %d bytes", end, len(payload))
	}
	out := m.(*ConnectionStartOk)
	if out.Mechanism != in.Mechanism || out.Response != in.Response || out.Locale != in.Locale {
		t.Fatalf("mismatch: %+v", out)
	}
	if out.ClientProperties["product"] != "hioload-amqp" {
		t.Fatalf("client properties: %+v", out.ClientProperties)
	}
}

func TestRegisterMethodDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	RegisterMethod(MethodConnectionStart, decodeConnectionStart)
}
