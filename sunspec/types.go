package sunspec

import (
	"fmt"
	"sync"

	"github.com/GoAethereal/sunspec/smdx"
)

// defaultBaseAddrCandidates is the probe order for base-address
// discovery: 40000 first, then the alternate 0-based and 50000-based maps.
var defaultBaseAddrCandidates = []uint16{40000, 0, 50000}

const endModelID = 0xFFFF

// Device owns the ordered tree of discovered models and the base Modbus
// address they were found at.
type Device struct {
	mu         sync.Mutex
	IO         IO
	Registry   *smdx.Registry
	BaseAddr   *uint16
	Candidates []uint16 // base address probe order; defaults to {40000, 0, 50000}

	ModelsList []*Model
	Models     map[int][]*Model // keyed by model id, preserving discovery order
}

// NewDevice builds an empty Device over io, resolving model schemas
// through reg. A nil reg is stored as given; no default registry is
// substituted.
func NewDevice(io IO, reg *smdx.Registry) *Device {
	return &Device{
		IO:       io,
		Registry: reg,
		Models:   map[int][]*Model{},
	}
}

// AddModel appends model to the device's flat list and its per-id bucket.
func (d *Device) AddModel(m *Model) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m.Index = len(d.Models[m.ID]) + 1
	d.Models[m.ID] = append(d.Models[m.ID], m)
	d.ModelsList = append(d.ModelsList, m)
}

// ModelsByID returns the ordered list of model instances for id, or nil.
func (d *Device) ModelsByID(id int) []*Model {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Models[id]
}

// Diff deep-compares d against other, returning "" when the two trees are
// structurally equal and a diagnostic string identifying the first
// mismatch otherwise. Used to validate that a snapshot-loaded device and a
// live-scanned device produce identical trees.
func (d *Device) Diff(other *Device) string {
	if other == nil {
		return "device is nil"
	}
	if len(d.ModelsList) != len(other.ModelsList) {
		return fmt.Sprintf("model counts differ: %d vs %d", len(d.ModelsList), len(other.ModelsList))
	}
	for i, m := range d.ModelsList {
		if s := m.diff(other.ModelsList[i]); s != "" {
			return fmt.Sprintf("model[%d]: %s", i, s)
		}
	}
	return ""
}

// Model is one instance of a SunSpec model discovered on a device: its
// schema (ModelType), its register extent, and the concrete Block
// instances bound to that extent.
type Model struct {
	Device    *Device
	ID        int
	Index     int // 1-indexed position among same-id models on the device
	ModelType *smdx.ModelType
	Addr      uint16 // address of the first point in the model (past id/len)
	Len       uint16 // register count of the model's point data
	Blocks    []*Block
	LoadErr   error // load failure on this model; scan continues when set

	ReadBlocks []uint16 // ascending partition start addresses, ≤125 registers apart

	// Convenience aliases for the fixed block (index 0), so callers can
	// reach its points directly off the model.
	PointsList []*Point
	Points     map[string]*Point
	PointsSF   map[string]*Point
}

func newModel(dev *Device, id int, addr, mlen uint16) *Model {
	return &Model{Device: dev, ID: id, Addr: addr, Len: mlen, Index: 1}
}

// NewModel builds an unloaded Model instance at the given address, for
// callers (e.g. the pics package) that reconstruct a device tree from a
// source other than a live scan. Call Load to bind its blocks and points.
func NewModel(dev *Device, id int, addr, mlen uint16) *Model {
	return newModel(dev, id, addr, mlen)
}

func (m *Model) diff(other *Model) string {
	if other == nil {
		return "other model is nil"
	}
	if m.ID != other.ID {
		return fmt.Sprintf("id differs: %d vs %d", m.ID, other.ID)
	}
	if len(m.Blocks) != len(other.Blocks) {
		return fmt.Sprintf("model %d: block counts differ: %d vs %d", m.ID, len(m.Blocks), len(other.Blocks))
	}
	for i, b := range m.Blocks {
		if s := b.diff(other.Blocks[i]); s != "" {
			return fmt.Sprintf("model %d: %s", m.ID, s)
		}
	}
	return ""
}

// Block is one fixed- or repeating-block instance within a Model.
type Block struct {
	Model     *Model
	BlockType *smdx.BlockType
	Addr      uint16
	Len       uint16
	Index     int // 0 for the fixed block, 1-based for repeating instances

	PointsList []*Point // non-SF points, ordered by offset
	Points     map[string]*Point
	PointsSF   map[string]*Point
}

func newBlock(m *Model, bt *smdx.BlockType, addr, blen uint16, index int) *Block {
	return &Block{
		Model:     m,
		BlockType: bt,
		Addr:      addr,
		Len:       blen,
		Index:     index,
		Points:    map[string]*Point{},
		PointsSF:  map[string]*Point{},
	}
}

func (b *Block) diff(other *Block) string {
	if other == nil {
		return "other block is nil"
	}
	if len(b.PointsList) != len(other.PointsList) {
		return fmt.Sprintf("block[%d]: point counts differ: %d vs %d", b.Index, len(b.PointsList), len(other.PointsList))
	}
	for _, p := range b.PointsList {
		op := other.Points[p.PointType.ID]
		if s := p.diff(op); s != "" {
			return fmt.Sprintf("block[%d]: %s", b.Index, s)
		}
	}
	return ""
}

// Point is one bound register-backed value within a Block.
type Point struct {
	Block     *Block
	PointType *smdx.PointType
	Addr      uint16
	SFPoint   *Point // resolved scale-factor point, nil if none declared

	ValueBase interface{} // the on-wire decoded value
	ValueSF   *int64      // resolved exponent, nil when no SF is bound
	Impl      bool
	Dirty     bool
}

func (p *Point) diff(other *Point) string {
	if other == nil {
		return fmt.Sprintf("point %s: other is nil", p.PointType.ID)
	}
	if p.PointType.ID != other.PointType.ID {
		return fmt.Sprintf("point id differs: %s vs %s", p.PointType.ID, other.PointType.ID)
	}
	baseDiffers := (p.ValueBase != nil || other.ValueBase != nil) && fmt.Sprint(p.ValueBase) != fmt.Sprint(other.ValueBase)
	sfDiffers := (p.ValueSF != nil || other.ValueSF != nil) && !sameInt64Ptr(p.ValueSF, other.ValueSF)
	if baseDiffers || sfDiffers {
		return fmt.Sprintf("point %s not equal: %v/%v vs %v/%v", p.PointType.ID, p.ValueBase, p.ValueSF, other.ValueBase, other.ValueSF)
	}
	return ""
}

func sameInt64Ptr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
