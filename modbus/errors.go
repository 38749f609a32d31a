package modbus

import (
	"errors"
	"fmt"
)

// ErrInvalidParameter signals a malformed transport configuration.
var ErrInvalidParameter = errors.New("modbus: given parameter violates restriction")

// Timeout is returned when a read from the underlying stream produced no
// data before the configured deadline elapsed.
type Timeout struct {
	Op string
}

func (e *Timeout) Error() string { return fmt.Sprintf("modbus: timeout during %s", e.Op) }

// ProtocolError covers CRC mismatches, MBAP length mismatches and frame
// truncation: anything that shows the wire bytes themselves are malformed,
// as opposed to a well-formed exception response.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string { return "modbus: protocol error: " + e.Reason }

// Exception represents a well-formed Modbus exception response (function
// code with the high bit set, plus a one-byte exception code).
type Exception struct {
	Code byte
}

func (e *Exception) Error() string {
	switch e.Code {
	case 0x01:
		return "modbus: exception - illegal function"
	case 0x02:
		return "modbus: exception - illegal data address"
	case 0x03:
		return "modbus: exception - illegal data value"
	case 0x04:
		return "modbus: exception - slave device failure"
	case 0x05:
		return "modbus: exception - acknowledge"
	case 0x06:
		return "modbus: exception - slave device busy"
	case 0x08:
		return "modbus: exception - memory parity error"
	case 0x0A:
		return "modbus: exception - gateway path unavailable"
	case 0x0B:
		return "modbus: exception - gateway target device failed to respond"
	}
	return fmt.Sprintf("modbus: exception - code %d undefined", e.Code)
}

// MapError is raised by the mapped backend: the map file is malformed, the
// request lies outside every declared register run, or the request's
// function code disagrees with the map's declared function.
type MapError struct {
	Reason string
}

func (e *MapError) Error() string { return "modbus: map error: " + e.Reason }
