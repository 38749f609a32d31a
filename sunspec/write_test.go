package sunspec

import (
	"testing"

	"github.com/GoAethereal/cancel"
	"github.com/GoAethereal/sunspec/codec"
	"github.com/GoAethereal/sunspec/smdx"
)

type countingIO struct {
	writes int
	data   map[uint16][]byte
}

func (c *countingIO) Read(_ cancel.Context, addr, count uint16) ([]byte, error) {
	out := make([]byte, int(count)*2)
	for i := uint16(0); i < count; i++ {
		copy(out[i*2:i*2+2], c.data[addr+i])
	}
	return out, nil
}

func (c *countingIO) Write(_ cancel.Context, addr uint16, data []byte) error {
	c.writes++
	for i := 0; i*2 < len(data); i++ {
		reg := make([]byte, 2)
		copy(reg, data[i*2:i*2+2])
		if c.data == nil {
			c.data = map[uint16][]byte{}
		}
		c.data[addr+uint16(i)] = reg
	}
	return nil
}

func buildUint16Point(block *Block, id string, addr uint16) *Point {
	pt := &smdx.PointType{ID: id, Type: codec.Uint16}
	p := &Point{Block: block, PointType: pt, Addr: addr, ValueBase: int64(0), Dirty: true}
	block.PointsList = append(block.PointsList, p)
	block.Points[id] = p
	return p
}

func TestWriteCoalescesContiguousRun(t *testing.T) {
	io := &countingIO{}
	dev := NewDevice(io, smdx.NewRegistry(nil))
	model := newModel(dev, 99, 0, 3)
	model.Device = dev
	block := newBlock(model, &smdx.BlockType{}, 10, 3, 0)
	buildUint16Point(block, "a", 10)
	buildUint16Point(block, "b", 11)
	buildUint16Point(block, "c", 12)
	model.Blocks = []*Block{block}

	if err := model.WritePoints(cancel.New()); err != nil {
		t.Fatal(err)
	}
	if io.writes != 1 {
		t.Fatalf("writes = %d, want 1 for a contiguous run", io.writes)
	}
}

func TestWriteSplitsAcrossGap(t *testing.T) {
	io := &countingIO{}
	dev := NewDevice(io, smdx.NewRegistry(nil))
	model := newModel(dev, 99, 0, 4)
	model.Device = dev
	block := newBlock(model, &smdx.BlockType{}, 10, 4, 0)
	buildUint16Point(block, "a", 10)
	buildUint16Point(block, "b", 13)
	model.Blocks = []*Block{block}

	if err := model.WritePoints(cancel.New()); err != nil {
		t.Fatal(err)
	}
	if io.writes != 2 {
		t.Fatalf("writes = %d, want 2 across a gap", io.writes)
	}
}
