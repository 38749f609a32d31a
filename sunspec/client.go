package sunspec

import (
	"fmt"

	"github.com/GoAethereal/cancel"
	"github.com/GoAethereal/sunspec/codec"
	"github.com/GoAethereal/sunspec/smdx"
)

// readRaw issues one transport read per pre-computed partition and
// concatenates the responses into one contiguous byte string covering the
// model's full register extent.
func (m *Model) readRaw(ctx cancel.Context) ([]byte, error) {
	if len(m.ReadBlocks) == 0 {
		return m.Device.IO.Read(ctx, m.Addr, m.Len)
	}
	end := m.Addr + m.Len
	out := make([]byte, 0, int(m.Len)*2)
	for i, start := range m.ReadBlocks {
		var readLen uint16
		if i+1 < len(m.ReadBlocks) {
			readLen = m.ReadBlocks[i+1] - start
		} else {
			readLen = end - start
		}
		data, err := m.Device.IO.Read(ctx, start, readLen)
		if err != nil {
			return nil, err
		}
		out = append(out, data...)
	}
	return out, nil
}

// ReadPoints reads the model's full register extent and decodes every
// block's points, scale-factor points first so regular points can bind
// value_sf at decode time.
func (m *Model) ReadPoints(ctx cancel.Context) error {
	if m.LoadErr != nil {
		return m.LoadErr
	}
	data, err := m.readRaw(ctx)
	if err != nil {
		return err
	}
	if len(data)/2 != int(m.Len) {
		return fmt.Errorf("sunspec: model %d: short read: got %d registers, want %d", m.ID, len(data)/2, m.Len)
	}

	for _, block := range m.Blocks {
		for _, p := range block.PointsSF {
			decodePoint(data, m.Addr, p)
		}
		for _, p := range block.PointsList {
			decodePoint(data, m.Addr, p)
			if p.Impl && p.SFPoint != nil {
				if sf, ok := p.SFPoint.ValueBase.(int64); ok {
					p.ValueSF = &sf
				}
			} else {
				p.ValueSF = nil
			}
		}
	}
	return nil
}

func decodePoint(data []byte, modelAddr uint16, p *Point) {
	offset := int(p.Addr-modelAddr) * 2
	width := p.PointType.Width() * 2
	if offset < 0 || offset+width > len(data) {
		p.Impl = false
		p.ValueBase = nil
		return
	}
	v, err := codec.Decode(p.PointType.Type, data[offset:offset+width], width)
	if err != nil {
		p.Impl = false
		p.ValueBase = nil
		return
	}
	if !codec.IsImplemented(p.PointType.Type, v) {
		p.Impl = false
		p.ValueBase = nil
		p.ValueSF = nil
		return
	}
	p.Impl = true
	p.ValueBase = v
}

// WritePoints scans each block in order, coalescing runs of dirty points
// whose addresses are physically contiguous into a single multi-register
// write, flushing at a gap or at block end.
func (m *Model) WritePoints(ctx cancel.Context) error {
	for _, block := range m.Blocks {
		var pending []*Point
		flush := func() error {
			if len(pending) == 0 {
				return nil
			}
			startAddr := pending[0].Addr
			var buf []byte
			for _, p := range pending {
				width := p.PointType.Width() * 2
				b, err := codec.Encode(p.PointType.Type, p.ValueBase, width)
				if err != nil {
					return fmt.Errorf("sunspec: point %s: %w", p.PointType.ID, err)
				}
				buf = append(buf, b...)
			}
			if err := m.Device.IO.Write(ctx, startAddr, buf); err != nil {
				return err
			}
			for _, p := range pending {
				p.Dirty = false
			}
			pending = nil
			return nil
		}

		for _, p := range block.PointsList {
			if !p.Dirty {
				if err := flush(); err != nil {
					return err
				}
				continue
			}
			if len(pending) > 0 {
				last := pending[len(pending)-1]
				if p.Addr != last.Addr+uint16(last.PointType.Width()) {
					if err := flush(); err != nil {
						return err
					}
				}
			}
			pending = append(pending, p)
		}
		if err := flush(); err != nil {
			return err
		}
	}
	return nil
}

// Repeating returns the model's repeating-block instances (Blocks[1:]),
// or nil if the model has no repeating block.
func (m *Model) Repeating() []*Block {
	if len(m.Blocks) < 2 {
		return nil
	}
	return m.Blocks[1:]
}

// ClientDevice is the typed client facade: a Device plus a by-name index
// so callers can look models up the way the SunSpec model definitions
// name them ("common", "inverter", ...) instead of by raw id.
type ClientDevice struct {
	*Device
	byName map[string][]*Model // 1-indexed per name; index 0 is always nil
}

// NewClientDevice builds an empty ClientDevice over io, resolving model
// schemas through reg.
func NewClientDevice(io IO, reg *smdx.Registry) *ClientDevice {
	return &ClientDevice{Device: NewDevice(io, reg)}
}

// Scan runs the base Device scan and then rebuilds the by-name index from
// the discovered models' schemas.
func (c *ClientDevice) Scan(ctx cancel.Context, opts ScanOptions) error {
	if err := c.Device.Scan(ctx, opts); err != nil {
		return err
	}
	c.indexByName()
	return nil
}

func (c *ClientDevice) indexByName() {
	c.byName = map[string][]*Model{}
	for _, m := range c.ModelsList {
		name := fmt.Sprintf("model_%d", m.ID)
		if m.ModelType != nil && m.ModelType.Name != "" {
			name = m.ModelType.Name
		}
		list := c.byName[name]
		if list == nil {
			list = []*Model{nil}
		}
		c.byName[name] = append(list, m)
	}
}

// ModelsNamed returns the 1-indexed instance list for name (index 0 is
// always nil), or nil if no model by that name was discovered.
func (c *ClientDevice) ModelsNamed(name string) []*Model {
	return c.byName[name]
}

// ModelNamed returns the first instance of name, or nil if none was
// discovered.
func (c *ClientDevice) ModelNamed(name string) *Model {
	list := c.byName[name]
	if len(list) < 2 {
		return nil
	}
	return list[1]
}

// ReadPoints reads every successfully-loaded model's points.
func (c *ClientDevice) ReadPoints(ctx cancel.Context) error {
	for _, m := range c.ModelsList {
		if m.LoadErr != nil {
			continue
		}
		if err := m.ReadPoints(ctx); err != nil {
			return err
		}
	}
	return nil
}

// WritePoints flushes dirty points on every successfully-loaded model.
func (c *ClientDevice) WritePoints(ctx cancel.Context) error {
	for _, m := range c.ModelsList {
		if m.LoadErr != nil {
			continue
		}
		if err := m.WritePoints(ctx); err != nil {
			return err
		}
	}
	return nil
}
