package smdx

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/GoAethereal/sunspec/codec"
)

// SchemaError is raised for any SMDX parse or validation failure. It is
// fatal for the load that triggered it; the scanner (sunspec package)
// captures it on the affected model and continues the chain walk.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string { return "smdx: " + e.Reason }

var knownTypes = map[string]codec.Type{
	"int16": codec.Int16, "uint16": codec.Uint16, "count": codec.Count,
	"acc16": codec.Acc16, "enum16": codec.Enum16, "bitfield16": codec.Bitfield16,
	"pad": codec.Pad, "int32": codec.Int32, "uint32": codec.Uint32,
	"acc32": codec.Acc32, "enum32": codec.Enum32, "bitfield32": codec.Bitfield32,
	"ipaddr": codec.IPAddr, "int64": codec.Int64, "uint64": codec.Uint64,
	"acc64": codec.Acc64, "ipv6addr": codec.IPv6Addr, "float32": codec.Float32,
	"string": codec.String, "sunssf": codec.SunSSF, "eui48": codec.EUI48,
}

type modelsDocXML struct {
	XMLName xml.Name   `xml:"sunSpecModels"`
	Models  []modelXML `xml:"model"`
}

type modelXML struct {
	ID      int          `xml:"id,attr"`
	Len     int          `xml:"len,attr"`
	Name    string       `xml:"name,attr"`
	Blocks  []blockXML   `xml:"block"`
	Strings []stringsXML `xml:"strings"`
}

type blockXML struct {
	Type   string     `xml:"type,attr"`
	Len    int        `xml:"len,attr"`
	Points []pointXML `xml:"point"`
}

type pointXML struct {
	ID        string `xml:"id,attr"`
	Offset    *int   `xml:"offset,attr"`
	Type      string `xml:"type,attr"`
	Len       int    `xml:"len,attr"`
	Mandatory string `xml:"mandatory,attr"`
	Access    string `xml:"access,attr"`
	Units     string `xml:"units,attr"`
	SF        string `xml:"sf,attr"`
}

type stringsXML struct {
	Locale string            `xml:"locale,attr"`
	Model  modelStringsXML   `xml:"model"`
	Points []pointStringsXML `xml:"point"`
}

type modelStringsXML struct {
	Label       string `xml:"label"`
	Description string `xml:"description"`
	Notes       string `xml:"notes"`
}

type pointStringsXML struct {
	ID          string      `xml:"id,attr"`
	Label       string      `xml:"label"`
	Description string      `xml:"description"`
	Notes       string      `xml:"notes"`
	Symbols     []symbolXML `xml:"symbol"`
}

type symbolXML struct {
	ID    string `xml:"id,attr"`
	Label string `xml:",chardata"`
}

// Parse decodes one SMDX document into a ModelType, validating it along
// the way: duplicate point ids, unknown types, missing offsets, and
// missing len on string points all fail the load.
func Parse(data []byte) (*ModelType, error) {
	var doc modelsDocXML
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return nil, &SchemaError{Reason: "invalid xml: " + err.Error()}
	}
	if len(doc.Models) != 1 {
		return nil, &SchemaError{Reason: fmt.Sprintf("expected exactly one model element, found %d", len(doc.Models))}
	}
	return buildModelType(doc.Models[0])
}

func buildModelType(m modelXML) (*ModelType, error) {
	mt := &ModelType{ID: m.ID, Len: m.Len, Name: m.Name}

	var fixedXML, repeatXML *blockXML
	for i := range m.Blocks {
		b := &m.Blocks[i]
		switch b.Type {
		case "", string(Fixed):
			if fixedXML != nil {
				return nil, &SchemaError{Reason: "more than one fixed block"}
			}
			fixedXML = b
		case string(Repeating):
			if repeatXML != nil {
				return nil, &SchemaError{Reason: "more than one repeating block"}
			}
			repeatXML = b
		default:
			return nil, &SchemaError{Reason: "unknown block type: " + b.Type}
		}
	}

	fixed, err := buildBlockType(fixedXML, Fixed)
	if err != nil {
		return nil, err
	}
	mt.FixedBlock = fixed

	if repeatXML != nil {
		repeat, err := buildBlockType(repeatXML, Repeating)
		if err != nil {
			return nil, err
		}
		mt.Repeating = repeat
	}

	for _, s := range m.Strings {
		if s.Locale != "en" {
			continue
		}
		mt.Label = s.Model.Label
		mt.Description = s.Model.Description
		mt.Notes = s.Model.Notes
		for _, ps := range s.Points {
			pt := mt.FixedBlock.Point(ps.ID)
			if pt == nil && mt.Repeating != nil {
				pt = mt.Repeating.Point(ps.ID)
			}
			if pt == nil {
				continue
			}
			pt.Label = ps.Label
			pt.Description = ps.Description
			pt.Notes = ps.Notes
			for _, sym := range ps.Symbols {
				pt.Symbols = append(pt.Symbols, Symbol{Name: sym.ID, Value: sym.ID, Label: sym.Label})
			}
		}
	}

	if mt.Name == "" {
		mt.Name = fmt.Sprintf("model_%d", mt.ID)
	}
	return mt, nil
}

// buildBlockType is nil-safe: a nil xml pointer synthesizes an empty block,
// so downstream code can always reach FixedBlock.
func buildBlockType(b *blockXML, kind BlockKind) (*BlockType, error) {
	bt := &BlockType{Kind: kind}
	if b == nil {
		return bt, nil
	}
	bt.Len = b.Len

	seen := map[string]bool{}
	sum := 0
	for _, px := range b.Points {
		if seen[px.ID] {
			return nil, &SchemaError{Reason: "duplicate point id: " + px.ID}
		}
		seen[px.ID] = true

		typ, ok := knownTypes[px.Type]
		if !ok {
			return nil, &SchemaError{Reason: "unknown point type: " + px.Type}
		}

		if px.Offset == nil {
			return nil, &SchemaError{Reason: "missing offset on point: " + px.ID}
		}
		pointOffset := *px.Offset

		width := codec.FixedWidth(typ)
		if typ == codec.String {
			if px.Len <= 0 {
				return nil, &SchemaError{Reason: "missing len on string point: " + px.ID}
			}
			width = px.Len
		}

		pt := &PointType{
			ID:        px.ID,
			Offset:    pointOffset,
			Type:      typ,
			Len:       width,
			Access:    defaultAccess(px.Access),
			Mandatory: px.Mandatory == "M" || px.Mandatory == "true",
			Units:     px.Units,
			SF:        px.SF,
		}
		bt.Points = append(bt.Points, pt)
		sum += width
	}

	if bt.Len != 0 && bt.Len != sum {
		return nil, &SchemaError{Reason: fmt.Sprintf("declared block len %d does not match sum of point widths %d", bt.Len, sum)}
	}
	bt.Len = sum
	return bt, nil
}

func defaultAccess(a string) string {
	if a == "" {
		return "R"
	}
	return a
}
