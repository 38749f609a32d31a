// Package sunspec implements the device model, scanner/binder, and typed
// client facade over a discovered SunSpec register map: the in-memory
// Device → Model → Block → Point tree, base-address discovery, model
// chain walking, scale-factor resolution, and read/write coalescing.
package sunspec

import (
	"github.com/GoAethereal/cancel"
	"github.com/GoAethereal/sunspec/modbus"
)

// IO is the register-level contract a Device scans and reads through. It
// narrows modbus.Transport to the holding-register space SunSpec devices
// are read over, so the scanner and client facade need not carry a Func
// parameter through every call.
type IO interface {
	Read(ctx cancel.Context, addr, count uint16) ([]byte, error)
	Write(ctx cancel.Context, addr uint16, data []byte) error
}

// HoldingIO adapts a modbus.Transport to IO by fixing every read to the
// holding-register function code, which is what SunSpec devices are
// addressed through.
type HoldingIO struct {
	Transport modbus.Transport
}

func (h HoldingIO) Read(ctx cancel.Context, addr, count uint16) ([]byte, error) {
	return h.Transport.Read(ctx, addr, count, modbus.Holding)
}

func (h HoldingIO) Write(ctx cancel.Context, addr uint16, data []byte) error {
	return h.Transport.Write(ctx, addr, data)
}
