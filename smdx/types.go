// Package smdx parses SunSpec model-definition (SMDX) XML documents into
// immutable ModelType schemas, cached by id in a Registry.
package smdx

import "github.com/GoAethereal/sunspec/codec"

// Symbol binds a named constant to a point's enum or bitfield vocabulary.
type Symbol struct {
	Name  string
	Value string
	Label string
}

// PointType describes one logical point within a BlockType: its wire type,
// its offset (in registers) within the block, and the metadata needed to
// bind and label it.
type PointType struct {
	ID          string
	Offset      int // register offset within the block
	Type        codec.Type
	Len         int // register width; authoritative for String, derived for fixed-width types
	Access      string
	Mandatory   bool
	Units       string
	SF          string // raw scale-factor reference: integer literal or sibling point id
	Symbols     []Symbol
	Label       string
	Description string
	Notes       string
}

// Width returns the point's register length.
func (p *PointType) Width() int {
	if p.Type == codec.String {
		return p.Len
	}
	return codec.FixedWidth(p.Type)
}

// BlockKind distinguishes a model's single fixed block from its optional
// repeating block.
type BlockKind string

const (
	Fixed     BlockKind = "fixed"
	Repeating BlockKind = "repeating"
)

// BlockType is the schema for one block within a model: an ordered list of
// point types and the block's declared register length.
type BlockType struct {
	Kind   BlockKind
	Len    int
	Points []*PointType
}

// Point looks up a point type by id within the block, or nil.
func (b *BlockType) Point(id string) *PointType {
	if b == nil {
		return nil
	}
	for _, p := range b.Points {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// ModelType is the immutable, SMDX-derived schema for one SunSpec model id.
// Instances are cached by id in the Registry that loaded them.
type ModelType struct {
	ID          int
	Len         int
	Name        string
	Label       string
	Description string
	Notes       string
	FixedBlock  *BlockType // never nil: synthesized empty when undeclared
	Repeating   *BlockType // nil when the model has no repeating block
}
