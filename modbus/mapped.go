package modbus

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/xml"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/GoAethereal/cancel"
)

// defaultMapBase is the base address assumed when an mbmap document omits
// the addr attribute.
const defaultMapBase = 40000

// Mapped is the file-backed simulated transport: reads and writes go
// against an in-memory register image loaded from an mbmap XML document
// instead of a live device.
type Mapped struct {
	mu   sync.Mutex
	base uint16
	fn   Func
	runs []mapRun
}

type mapRun struct {
	start uint16 // register offset relative to base
	data  []byte
}

type mbmapXML struct {
	XMLName xml.Name  `xml:"mbmap"`
	Addr    *uint32   `xml:"addr,attr"`
	Func    string    `xml:"func,attr"`
	Regs    []regXML  `xml:"regs"`
}

type regXML struct {
	Offset int    `xml:"offset,attr"`
	Len    int    `xml:"len,attr"`
	Type   string `xml:"type,attr"`
	Access string `xml:"access,attr"`
	Fill   string `xml:"fill,attr"`
	Text   string `xml:",chardata"`
}

// LoadMap parses an mbmap XML document into a Mapped transport.
func LoadMap(r io.Reader) (*Mapped, error) {
	var doc mbmapXML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, &MapError{Reason: "invalid xml: " + err.Error()}
	}

	m := &Mapped{base: defaultMapBase, fn: Holding}
	if doc.Addr != nil {
		m.base = uint16(*doc.Addr)
	}
	switch strings.ToLower(doc.Func) {
	case "", "holding":
		m.fn = Holding
	case "input":
		m.fn = Input
	default:
		return nil, &MapError{Reason: "unknown func: " + doc.Func}
	}

	entries := make([]regXML, len(doc.Regs))
	copy(entries, doc.Regs)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Offset < entries[j].Offset })

	var runs []mapRun
	nextExpected := -1
	for _, e := range entries {
		data, err := encodeMapValue(e)
		if err != nil {
			return nil, err
		}
		if e.Offset == nextExpected && len(runs) > 0 {
			runs[len(runs)-1].data = append(runs[len(runs)-1].data, data...)
		} else {
			if nextExpected != -1 && e.Offset < nextExpected {
				return nil, &MapError{Reason: "overlapping or non-ascending regs"}
			}
			runs = append(runs, mapRun{start: uint16(e.Offset), data: data})
		}
		nextExpected = e.Offset + e.Len
	}
	m.runs = runs
	return m, nil
}

func encodeMapValue(e regXML) ([]byte, error) {
	text := strings.TrimSpace(e.Text)
	switch e.Type {
	case "s16", "u16":
		v, err := strconv.ParseInt(text, 0, 32)
		if err != nil {
			return nil, &MapError{Reason: "bad " + e.Type + " value: " + text}
		}
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, uint16(v))
		return buf, nil
	case "s32", "u32":
		v, err := strconv.ParseInt(text, 0, 64)
		if err != nil {
			return nil, &MapError{Reason: "bad " + e.Type + " value: " + text}
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(v))
		return buf, nil
	case "s64", "u64":
		v, err := strconv.ParseUint(text, 0, 64)
		if err != nil {
			return nil, &MapError{Reason: "bad " + e.Type + " value: " + text}
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, v)
		return buf, nil
	case "f32":
		v, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return nil, &MapError{Reason: "bad f32 value: " + text}
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, math.Float32bits(float32(v)))
		return buf, nil
	case "f64":
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, &MapError{Reason: "bad f64 value: " + text}
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, math.Float64bits(v))
		return buf, nil
	case "string":
		buf := make([]byte, e.Len*2)
		copy(buf, text)
		return buf, nil
	case "hexstr":
		raw, err := hex.DecodeString(strings.ReplaceAll(text, " ", ""))
		if err != nil {
			return nil, &MapError{Reason: "bad hexstr value: " + text}
		}
		buf := make([]byte, e.Len*2)
		copy(buf, raw)
		return buf, nil
	}
	return nil, &MapError{Reason: "unknown reg type: " + e.Type}
}

func (m *Mapped) Read(_ cancel.Context, addr, count uint16, fn Func) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fn != m.fn {
		return nil, &MapError{Reason: "function code disagrees with map"}
	}
	if addr < m.base {
		return nil, &MapError{Reason: "address below map base"}
	}
	offset := addr - m.base
	for _, r := range m.runs {
		runLen := uint16(len(r.data) / 2)
		if offset >= r.start && offset+count <= r.start+runLen {
			start := int(offset-r.start) * 2
			return r.data[start : start+int(count)*2], nil
		}
	}
	return nil, &MapError{Reason: "registers outside any declared run"}
}

func (m *Mapped) Write(_ cancel.Context, addr uint16, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if addr < m.base {
		return &MapError{Reason: "address below map base"}
	}
	offset := addr - m.base
	count := uint16(len(data) / 2)
	for i := range m.runs {
		r := &m.runs[i]
		runLen := uint16(len(r.data) / 2)
		if offset >= r.start && offset+count <= r.start+runLen {
			start := int(offset-r.start) * 2
			copy(r.data[start:start+len(data)], data)
			return nil
		}
	}
	return &MapError{Reason: "registers outside any declared run"}
}
