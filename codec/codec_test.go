package codec

import (
	"math"
	"testing"
)

func TestRoundTripScalarTypes(t *testing.T) {
	cases := []struct {
		typ Type
		val interface{}
	}{
		{Int16, int64(-1234)},
		{Uint16, int64(5555)},
		{Count, int64(3)},
		{Acc16, int64(42)},
		{Enum16, int64(2)},
		{Bitfield16, int64(0x00FF)},
		{Int32, int64(-70000)},
		{Uint32, int64(4000000000)},
		{Acc32, int64(123456)},
		{Enum32, int64(7)},
		{Bitfield32, int64(0xFF00FF)},
		{Int64, int64(-5000000000)},
		{Uint64, uint64(18000000000000000000)},
		{Acc64, uint64(9999999999)},
		{SunSSF, int64(-3)},
		{IPAddr, "192.168.1.1"},
		{IPv6Addr, "fe800000:00000000:00000000:00000001"},
		{EUI48, "AA:BB:CC:DD:EE:FF"},
	}
	for _, c := range cases {
		w := FixedWidth(c.typ) * 2
		enc, err := Encode(c.typ, c.val, w)
		if err != nil {
			t.Fatalf("%s: Encode: %v", c.typ, err)
		}
		dec, err := Decode(c.typ, enc, w)
		if err != nil {
			t.Fatalf("%s: Decode: %v", c.typ, err)
		}
		if dec != c.val {
			t.Fatalf("%s: round trip = %v, want %v", c.typ, dec, c.val)
		}
	}
}

func TestFloat32RoundTrip(t *testing.T) {
	enc, err := Encode(Float32, 3.5, 4)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := Decode(Float32, enc, 4)
	if err != nil {
		t.Fatal(err)
	}
	if dec.(float64) != 3.5 {
		t.Fatalf("got %v, want 3.5", dec)
	}
}

func TestStringRoundTripPreservesFirstByte(t *testing.T) {
	enc := encodeString("\x00abc", 8)
	dec := decodeString(enc)
	if dec != "\x00abc" {
		t.Fatalf("got %q, want %q", dec, "\x00abc")
	}

	enc2 := encodeString("hi", 6)
	dec2 := decodeString(enc2)
	if dec2 != "hi" {
		t.Fatalf("got %q, want %q", dec2, "hi")
	}
}

func TestSentinelsAreNotImplemented(t *testing.T) {
	types := []Type{Int16, Uint16, Enum16, Bitfield16, Int32, Uint32,
		Enum32, Bitfield32, Int64, Uint64, SunSSF, IPAddr, IPv6Addr,
		Float32, String, EUI48}
	for _, typ := range types {
		sentinel, err := Sentinel(typ)
		if err != nil {
			t.Fatalf("%s: Sentinel: %v", typ, err)
		}
		if IsImplemented(typ, sentinel) {
			t.Fatalf("%s: sentinel %v reported as implemented", typ, sentinel)
		}
	}
	for _, typ := range []Type{Acc16, Acc32, Acc64} {
		if IsImplemented(typ, int64(0)) {
			t.Fatalf("%s: zero should read as not-implemented by convention", typ)
		}
		if !IsImplemented(typ, int64(5)) {
			t.Fatalf("%s: nonzero should read as implemented", typ)
		}
	}
}

func TestFloat32SentinelIsNaN(t *testing.T) {
	enc := putBE32(0x7FC00000)
	dec, err := Decode(Float32, enc, 4)
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(dec.(float64)) {
		t.Fatalf("expected NaN, got %v", dec)
	}
	if IsImplemented(Float32, dec) {
		t.Fatalf("NaN float32 should read as not implemented")
	}
}
