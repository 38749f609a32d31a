// Package pics implements the PICS device-snapshot XML dialect: a
// textual record of a device's discovered models, blocks and point
// values that can be replayed without talking to the device again.
package pics

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/GoAethereal/sunspec/codec"
	"github.com/GoAethereal/sunspec/smdx"
	"github.com/GoAethereal/sunspec/sunspec"
)

// Element and attribute names of the PICS dialect.
const (
	RootElement   = "sunSpecPics"
	DeviceElement = "device"
	ModelElement  = "model"
	BlockElement  = "block"
	PointElement  = "point"

	AttrVersion = "v"
	AttrAddr    = "addr"
	AttrID      = "id"
	AttrLen     = "len"
	AttrIndex   = "index"
	AttrType    = "type"
	AttrAccess  = "access"
	AttrImpl    = "impl"

	TypeFixed     = "fixed"
	TypeRepeating = "repeating"

	AccessRW = "rw"

	ImplementedFalse = "false"
)

// Version is the PICS document version this package reads and writes.
const Version = "1"

const defaultBaseAddr uint16 = 40000

// FormatError is raised for any structural problem in a PICS document:
// malformed XML, a malformed attribute or value, or an out-of-range block
// index. A model id the registry cannot resolve is reported with the
// error Model.Load returns, not as a FormatError.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string { return "pics: " + e.Reason }

type picsDocXML struct {
	XMLName xml.Name      `xml:"sunSpecPics"`
	Device  picsDeviceXML `xml:"device"`
}

type picsDeviceXML struct {
	Version string         `xml:"v,attr,omitempty"`
	Addr    string         `xml:"addr,attr,omitempty"`
	Models  []picsModelXML `xml:"model"`
}

type picsModelXML struct {
	ID     string         `xml:"id,attr"`
	Len    string         `xml:"len,attr,omitempty"`
	Index  string         `xml:"index,attr,omitempty"`
	Blocks []picsBlockXML `xml:"block"`
}

type picsBlockXML struct {
	Type   string         `xml:"type,attr,omitempty"`
	Index  string         `xml:"index,attr,omitempty"`
	Points []picsPointXML `xml:"point"`
}

type picsPointXML struct {
	ID     string `xml:"id,attr"`
	Impl   string `xml:"impl,attr,omitempty"`
	Access string `xml:"access,attr,omitempty"`
	Value  string `xml:",chardata"`
}

// Load parses a PICS snapshot and rebuilds the device tree it describes,
// resolving each model's schema through reg and running it through the
// same Model.Load binder the live scanner uses, so a snapshot and a
// freshly scanned device produce structurally identical trees. transport
// is stored on the returned Device for callers that intend to read or
// write it afterward; it is never touched while loading the snapshot.
func Load(r io.Reader, transport sunspec.IO, reg *smdx.Registry) (*sunspec.Device, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &FormatError{Reason: err.Error()}
	}

	var doc picsDocXML
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return nil, &FormatError{Reason: "invalid xml: " + err.Error()}
	}

	baseAddr := defaultBaseAddr
	if doc.Device.Addr != "" {
		n, err := strconv.ParseUint(doc.Device.Addr, 10, 16)
		if err != nil {
			return nil, &FormatError{Reason: "bad device addr: " + doc.Device.Addr}
		}
		baseAddr = uint16(n)
	}

	dev := sunspec.NewDevice(transport, reg)
	dev.BaseAddr = &baseAddr
	addr := baseAddr + 2

	for _, mx := range doc.Device.Models {
		id, err := strconv.Atoi(mx.ID)
		if err != nil {
			return nil, &FormatError{Reason: "bad model id: " + mx.ID}
		}

		var mlen uint16
		if mx.Len != "" {
			n, err := strconv.ParseUint(mx.Len, 10, 16)
			if err != nil {
				return nil, &FormatError{Reason: "bad model len: " + mx.Len}
			}
			mlen = uint16(n)
		}

		model := sunspec.NewModel(dev, id, addr+2, mlen)
		if err := model.Load(reg); err != nil {
			return nil, err
		}
		dev.AddModel(model)

		if err := applyModelPics(model, mx); err != nil {
			return nil, err
		}

		addr += model.Len + 2
	}

	return dev, nil
}

func applyModelPics(m *sunspec.Model, mx picsModelXML) error {
	if mx.Index != "" {
		n, err := strconv.Atoi(mx.Index)
		if err != nil {
			return &FormatError{Reason: "bad model index: " + mx.Index}
		}
		m.Index = n
	}

	for _, bx := range mx.Blocks {
		kind := bx.Type
		if kind == "" {
			kind = TypeFixed
		}
		switch kind {
		case TypeFixed:
			if len(m.Blocks) > 0 {
				if err := applyBlockPics(m.Blocks[0], bx); err != nil {
					return err
				}
			}
		case TypeRepeating:
			if bx.Index == "" {
				for _, b := range m.Repeating() {
					if err := applyBlockPics(b, bx); err != nil {
						return err
					}
				}
				continue
			}
			n, err := strconv.Atoi(bx.Index)
			if err != nil {
				return &FormatError{Reason: "bad block index: " + bx.Index}
			}
			if n < 1 || n >= len(m.Blocks) {
				return &FormatError{Reason: fmt.Sprintf("model %d: block index out of range: %d", m.ID, n)}
			}
			if err := applyBlockPics(m.Blocks[n], bx); err != nil {
				return err
			}
		default:
			return &FormatError{Reason: "unknown block type: " + kind}
		}
	}
	return nil
}

func applyBlockPics(b *sunspec.Block, bx picsBlockXML) error {
	for _, px := range bx.Points {
		p := b.Points[px.ID]
		if p == nil {
			p = b.PointsSF[px.ID]
		}
		if p == nil {
			continue
		}
		if err := applyPointPics(p, px); err != nil {
			return err
		}
	}

	// Scale factors resolve only after every point in the block has its
	// own value applied, mirroring the live binder's ordering.
	for _, p := range b.PointsList {
		if p.SFPoint == nil {
			continue
		}
		sf, ok := p.SFPoint.ValueBase.(int64)
		if !ok {
			continue
		}
		p.ValueSF = &sf
	}
	return nil
}

func applyPointPics(p *sunspec.Point, px picsPointXML) error {
	if px.Impl == ImplementedFalse {
		p.Impl = false
		return nil
	}

	text := strings.TrimSpace(px.Value)
	if text == "" {
		return nil
	}
	v, err := codec.ToValue(p.PointType.Type, text)
	if err != nil {
		return &FormatError{Reason: fmt.Sprintf("point %s: %s", p.PointType.ID, err)}
	}
	p.Impl = codec.IsImplemented(p.PointType.Type, v)
	if p.Impl {
		p.ValueBase = v
	}
	return nil
}

// Save serializes dev as a PICS snapshot. By default only the fixed block
// and the first instance of a model's repeating block are written; pass
// allRepeating to emit every discovered repeating instance.
func Save(w io.Writer, dev *sunspec.Device, allRepeating bool) error {
	dx := picsDeviceXML{Version: Version}
	if dev.BaseAddr != nil {
		dx.Addr = strconv.FormatUint(uint64(*dev.BaseAddr), 10)
	}

	for _, m := range dev.ModelsList {
		mx := picsModelXML{ID: strconv.Itoa(m.ID), Len: strconv.Itoa(int(m.Len))}
		if m.Index != 1 {
			mx.Index = strconv.Itoa(m.Index)
		}
		for _, b := range m.Blocks {
			if !allRepeating && b.Index > 1 {
				continue
			}
			mx.Blocks = append(mx.Blocks, blockToPics(b))
		}
		dx.Models = append(dx.Models, mx)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return enc.Encode(picsDocXML{Device: dx})
}

func blockToPics(b *sunspec.Block) picsBlockXML {
	bx := picsBlockXML{}
	if b.Index > 1 {
		bx.Index = strconv.Itoa(b.Index)
	}
	if b.BlockType.Kind == smdx.Repeating {
		bx.Type = TypeRepeating
	}

	for _, pt := range b.BlockType.Points {
		if pt.Type == codec.Pad {
			continue
		}
		p := b.Points[pt.ID]
		if p == nil {
			p = b.PointsSF[pt.ID]
		}
		if p == nil {
			continue
		}
		bx.Points = append(bx.Points, pointToPics(p))
	}
	return bx
}

func pointToPics(p *sunspec.Point) picsPointXML {
	px := picsPointXML{ID: p.PointType.ID}

	if _, ok := p.Value(); !ok {
		px.Impl = ImplementedFalse
		return px
	}
	if p.PointType.Access != "R" {
		px.Access = AccessRW
	}
	px.Value = fmt.Sprint(p.ValueBase)
	return px
}
