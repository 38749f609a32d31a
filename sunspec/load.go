package sunspec

import (
	"strconv"

	"github.com/GoAethereal/sunspec/codec"
	"github.com/GoAethereal/sunspec/smdx"
)

const maxReadRegisters = 125

// commonModelID is the legacy common model whose declared len=65 keeps the
// fixed block at that width instead of the schema's declared length.
const commonModelID = 1
const commonModelLegacyLen = 65

// Load performs the scanner/binder's structural work: resolve the
// model's schema from reg, instantiate fixed and repeating block
// instances across the model's register extent, bind points to absolute
// addresses, resolve scale-factor references, and compute read
// partitions. Both the live scanner and a PICS snapshot loader share this
// path so the two produce identical trees.
func (m *Model) Load(reg *smdx.Registry) error {
	mt, err := reg.Get(m.ID)
	if err != nil {
		return err
	}
	m.ModelType = mt

	if m.Len == 0 {
		m.Len = uint16(mt.Len)
	}
	endAddr := m.Addr + m.Len

	blockType := mt.FixedBlock
	blockAddr := m.Addr
	blockLen := uint16(blockType.Len)
	if m.ID == commonModelID && m.Len == commonModelLegacyLen {
		blockLen = m.Len
	}

	index := 0
	for endAddr >= blockAddr+blockLen {
		block := newBlock(m, blockType, blockAddr, blockLen, index)

		for _, pt := range blockType.Points {
			if pt.Type == codec.Pad {
				continue
			}
			p := &Point{
				Block:     block,
				PointType: pt,
				Addr:      blockAddr + uint16(pt.Offset),
			}
			if pt.Type == codec.SunSSF {
				block.PointsSF[pt.ID] = p
			} else {
				block.PointsList = append(block.PointsList, p)
				block.Points[pt.ID] = p
			}
		}

		for _, p := range block.PointsList {
			if p.PointType.SF == "" {
				continue
			}
			sfPoint, err := resolveScaleFactor(m, block, p.PointType.ID, p.PointType.SF)
			if err != nil {
				return err
			}
			p.SFPoint = sfPoint
		}

		m.Blocks = append(m.Blocks, block)

		blockAddr += blockLen
		blockType = mt.Repeating
		if blockType == nil {
			break
		}
		index++
		blockLen = uint16(blockType.Len)
	}

	if len(m.Blocks) > 0 {
		fixed := m.Blocks[0]
		m.PointsList = fixed.PointsList
		m.Points = fixed.Points
		m.PointsSF = fixed.PointsSF
	}

	m.ReadBlocks = computeReadBlocks(m)
	return nil
}

// resolveScaleFactor follows a three-step lookup: integer literal,
// same-block sunssf point, then (repeating blocks only) fixed-block
// sunssf point.
func resolveScaleFactor(m *Model, block *Block, pointID, ref string) (*Point, error) {
	if n, err := strconv.Atoi(ref); err == nil {
		sf := int64(n)
		return &Point{
			Block:     block,
			PointType: &smdx.PointType{ID: "", Type: codec.SunSSF},
			ValueBase: sf,
			Impl:      true,
		}, nil
	}
	if sf, ok := block.PointsSF[ref]; ok {
		return sf, nil
	}
	if block.Index > 0 && len(m.Blocks) > 0 {
		if sf, ok := m.Blocks[0].PointsSF[ref]; ok {
			return sf, nil
		}
	}
	return nil, &ResolutionError{Model: m.ID, Point: pointID, Ref: ref}
}

// computeReadBlocks walks every point across every block in address order
// and opens a new partition whenever the next point would extend the
// current window past maxReadRegisters registers from its start.
func computeReadBlocks(m *Model) []uint16 {
	var windows []uint16
	var windowStart uint16
	haveWindow := false

	for _, block := range m.Blocks {
		for _, pt := range block.BlockType.Points {
			addr := block.Addr + uint16(pt.Offset)
			width := uint16(pt.Width())

			if !haveWindow {
				windowStart = addr
				windows = append(windows, windowStart)
				haveWindow = true
				continue
			}
			if addr+width-windowStart > maxReadRegisters {
				windowStart = addr
				windows = append(windows, windowStart)
			}
		}
	}
	return windows
}
