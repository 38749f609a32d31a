package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

func be16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
func be32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }
func be64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }

func putBE16(v uint16) []byte { b := make([]byte, 2); binary.BigEndian.PutUint16(b, v); return b }
func putBE32(v uint32) []byte { b := make([]byte, 4); binary.BigEndian.PutUint32(b, v); return b }
func putBE64(v uint64) []byte { b := make([]byte, 8); binary.BigEndian.PutUint64(b, v); return b }

// decodeString preserves the first byte verbatim and strips trailing NULs
// from the remainder. This keeps a string round-trip stable even when the
// first byte happens to be zero.
func decodeString(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if len(data) == 1 {
		return string(data)
	}
	rest := bytes.TrimRight(data[1:], "\x00")
	return string(data[0]) + string(rest)
}

func encodeString(s string, width int) []byte {
	buf := make([]byte, width)
	copy(buf, s)
	return buf
}

func decodeIPv6(data []byte) string {
	allZero := true
	for _, b := range data {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return "::"
	}
	groups := make([]string, 4)
	for i := 0; i < 4; i++ {
		groups[i] = fmt.Sprintf("%08x", be32(data[i*4:i*4+4]))
	}
	return strings.Join(groups, ":")
}

func encodeIPv6(s string) ([]byte, error) {
	if s == "::" || s == "" {
		return make([]byte, 16), nil
	}
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return nil, fmt.Errorf("codec: bad ipv6addr %q: want 4 colon-separated 32-bit hex groups", s)
	}
	buf := make([]byte, 16)
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 16, 32)
		if err != nil {
			return nil, fmt.Errorf("codec: bad ipv6addr group %q: %w", p, err)
		}
		binary.BigEndian.PutUint32(buf[i*4:], uint32(v))
	}
	return buf, nil
}

func decodeEUI48(data []byte) string {
	if len(data) < 8 {
		return "FF:FF:FF:FF:FF:FF"
	}
	b := data[2:8]
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", b[0], b[1], b[2], b[3], b[4], b[5])
}

func encodeEUI48(s string) ([]byte, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return nil, fmt.Errorf("codec: bad eui48 %q: want 6 colon-separated hex bytes", s)
	}
	buf := make([]byte, 8)
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("codec: bad eui48 byte %q: %w", p, err)
		}
		buf[2+i] = byte(v)
	}
	return buf, nil
}
