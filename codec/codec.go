// Package codec implements the byte-level encoding of the 21 SunSpec
// scalar point types. All multi-byte scalars are big-endian; decoded
// values equal to a type's "unimplemented" sentinel are reported as such
// so callers can distinguish an absent point from a genuine zero.
package codec

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Type names one of the 21 SunSpec point types.
type Type string

const (
	Int16      Type = "int16"
	Uint16     Type = "uint16"
	Count      Type = "count"
	Acc16      Type = "acc16"
	Enum16     Type = "enum16"
	Bitfield16 Type = "bitfield16"
	Pad        Type = "pad"
	Int32      Type = "int32"
	Uint32     Type = "uint32"
	Acc32      Type = "acc32"
	Enum32     Type = "enum32"
	Bitfield32 Type = "bitfield32"
	IPAddr     Type = "ipaddr"
	Int64      Type = "int64"
	Uint64     Type = "uint64"
	Acc64      Type = "acc64"
	IPv6Addr   Type = "ipv6addr"
	Float32    Type = "float32"
	String     Type = "string"
	SunSSF     Type = "sunssf"
	EUI48      Type = "eui48"
)

// ErrUnknownType is returned for a point type not among the 21 scalars.
var ErrUnknownType = errors.New("codec: unknown point type")

// FixedWidth returns the register width of t, or -1 if t's width is
// declared externally (string is the only variable-width type).
func FixedWidth(t Type) int {
	switch t {
	case Int16, Uint16, Count, Acc16, Enum16, Bitfield16, Pad, SunSSF:
		return 1
	case Int32, Uint32, Acc32, Enum32, Bitfield32, IPAddr, Float32:
		return 2
	case Int64, Uint64, Acc64, EUI48:
		return 4
	case IPv6Addr:
		return 8
	case String:
		return -1
	}
	return 0
}

// Sentinel returns the "unimplemented" value for t, encoded the same way
// Decode would report it.
func Sentinel(t Type) (interface{}, error) {
	switch t {
	case Int16, SunSSF:
		return int64(-32768), nil // 0x8000
	case Uint16, Enum16, Bitfield16, Count:
		return int64(0xFFFF), nil
	case Acc16, Acc32, Acc64:
		return int64(0), nil
	case Int32:
		return int64(-2147483648), nil // 0x80000000
	case Uint32, Enum32, Bitfield32:
		return int64(0xFFFFFFFF), nil
	case IPAddr:
		return "0.0.0.0", nil
	case Int64:
		return int64(math.MinInt64), nil
	case Uint64:
		return uint64(math.MaxUint64), nil
	case IPv6Addr:
		return "::", nil
	case Float32:
		return math.NaN(), nil
	case String:
		return "\x00", nil
	case EUI48:
		return "FF:FF:FF:FF:FF:FF", nil
	case Pad:
		return nil, nil
	}
	return nil, ErrUnknownType
}

// Decode interprets width bytes of big-endian wire data as a value of
// type t. width is the declared byte length (2*registers, or the point's
// declared length for string).
func Decode(t Type, data []byte, width int) (interface{}, error) {
	if len(data) < width {
		return nil, fmt.Errorf("codec: short buffer for %s: have %d want %d", t, len(data), width)
	}
	data = data[:width]
	switch t {
	case Int16, SunSSF:
		return int64(int16(be16(data))), nil
	case Uint16, Enum16, Bitfield16, Count, Acc16:
		return int64(be16(data)), nil
	case Int32:
		return int64(int32(be32(data))), nil
	case Uint32, Enum32, Bitfield32, Acc32:
		return int64(be32(data)), nil
	case IPAddr:
		return fmt.Sprintf("%d.%d.%d.%d", data[0], data[1], data[2], data[3]), nil
	case Int64:
		return int64(be64(data)), nil
	case Uint64, Acc64:
		return be64(data), nil
	case IPv6Addr:
		return decodeIPv6(data), nil
	case Float32:
		bits := be32(data)
		f := math.Float32frombits(bits)
		if bits == 0x7FC00000 {
			return float64(float32(math.NaN())), nil
		}
		return float64(f), nil
	case String:
		return decodeString(data), nil
	case EUI48:
		return decodeEUI48(data), nil
	case Pad:
		return nil, nil
	}
	return nil, ErrUnknownType
}

// Encode renders value as width bytes of big-endian wire data for type t.
func Encode(t Type, value interface{}, width int) ([]byte, error) {
	switch t {
	case Int16, SunSSF:
		v, err := toInt64(value)
		if err != nil {
			return nil, err
		}
		return putBE16(uint16(int16(v))), nil
	case Uint16, Enum16, Bitfield16, Count, Acc16:
		v, err := toInt64(value)
		if err != nil {
			return nil, err
		}
		return putBE16(uint16(v)), nil
	case Int32:
		v, err := toInt64(value)
		if err != nil {
			return nil, err
		}
		return putBE32(uint32(int32(v))), nil
	case Uint32, Enum32, Bitfield32, Acc32:
		v, err := toInt64(value)
		if err != nil {
			return nil, err
		}
		return putBE32(uint32(v)), nil
	case IPAddr:
		s, _ := value.(string)
		var a, b, c, d int
		if _, err := fmt.Sscanf(s, "%d.%d.%d.%d", &a, &b, &c, &d); err != nil {
			return nil, fmt.Errorf("codec: bad ipaddr %q: %w", s, err)
		}
		return []byte{byte(a), byte(b), byte(c), byte(d)}, nil
	case Int64:
		v, err := toInt64(value)
		if err != nil {
			return nil, err
		}
		return putBE64(uint64(v)), nil
	case Uint64, Acc64:
		v, err := toUint64(value)
		if err != nil {
			return nil, err
		}
		return putBE64(v), nil
	case IPv6Addr:
		s, _ := value.(string)
		return encodeIPv6(s)
	case Float32:
		f, err := toFloat64(value)
		if err != nil {
			return nil, err
		}
		return putBE32(math.Float32bits(float32(f))), nil
	case String:
		s, _ := value.(string)
		return encodeString(s, width), nil
	case EUI48:
		s, _ := value.(string)
		return encodeEUI48(s)
	case Pad:
		return make([]byte, width), nil
	}
	return nil, ErrUnknownType
}

// IsImplemented reports whether value differs from t's "unimplemented"
// sentinel. acc* types treat 0 as "not implemented" by convention, which
// conflates a genuinely reset counter with an absent one; the behavior is
// kept as-is rather than guessed at.
func IsImplemented(t Type, value interface{}) bool {
	sentinel, err := Sentinel(t)
	if err != nil || t == Pad {
		return false
	}
	switch t {
	case Float32:
		f, ok := value.(float64)
		return ok && !math.IsNaN(f)
	case IPv6Addr:
		s, _ := value.(string)
		return s != "::" && s != ""
	default:
		return fmt.Sprint(value) != fmt.Sprint(sentinel)
	}
}

// ToValue coerces a textual representation into the Go value Encode
// expects for t, e.g. "42" -> int64(42) for int16.
func ToValue(t Type, text string) (interface{}, error) {
	switch t {
	case Int16, SunSSF, Uint16, Enum16, Bitfield16, Count, Acc16,
		Int32, Uint32, Acc32, Enum32, Bitfield32,
		Int64, Uint64, Acc64:
		v, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("codec: bad integer %q for %s: %w", text, t, err)
		}
		return v, nil
	case Float32:
		v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, fmt.Errorf("codec: bad float %q: %w", text, err)
		}
		return v, nil
	case String, IPAddr, IPv6Addr, EUI48:
		return text, nil
	}
	return nil, ErrUnknownType
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	}
	return 0, fmt.Errorf("codec: cannot use %T as integer", v)
}

func toUint64(v interface{}) (uint64, error) {
	switch n := v.(type) {
	case uint64:
		return n, nil
	case int64:
		return uint64(n), nil
	case int:
		return uint64(n), nil
	}
	return 0, fmt.Errorf("codec: cannot use %T as unsigned integer", v)
}

func toFloat64(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	}
	return 0, fmt.Errorf("codec: cannot use %T as float", v)
}
