// Package modbus implements the Modbus transport layer consumed by the
// sunspec scanner and typed client: RTU framing with CRC-16, TCP MBAP
// framing, and a file-backed simulated transport, behind a single
// Transport contract.
package modbus

import (
	"github.com/GoAethereal/cancel"
)

// Func identifies the Modbus register space a request targets.
type Func byte

const (
	Holding Func = 0x03
	Input   Func = 0x04
	write   Func = 0x10
)

// maxRegisters is the largest register count a single Modbus PDU can
// carry; larger logical reads are split into consecutive PDUs by split.
const maxRegisters = 125

// Trace is invoked, if set on a backend, with a formatted hex dump of
// every request and response frame exchanged on the wire.
type Trace func(direction, hexdump string)

// Transport is the contract shared by the RTU, TCP and mapped backends.
// count is expressed in registers (not bytes); Read returns 2*count bytes.
type Transport interface {
	Read(ctx cancel.Context, addr, count uint16, fn Func) ([]byte, error)
	Write(ctx cancel.Context, addr uint16, data []byte) error
}

// split issues one req per maxRegisters-sized chunk of count, in ascending
// address order, and concatenates the responses. It is atomic only per
// chunk: a failure partway through leaves earlier chunks applied with no
// rollback.
func split(addr, count uint16, req func(addr, count uint16) ([]byte, error)) ([]byte, error) {
	out := make([]byte, 0, int(count)*2)
	for count > 0 {
		n := count
		if n > maxRegisters {
			n = maxRegisters
		}
		data, err := req(addr, n)
		if err != nil {
			return nil, err
		}
		out = append(out, data...)
		addr += n
		count -= n
	}
	return out, nil
}
