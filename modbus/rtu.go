package modbus

import (
	"encoding/binary"
	"encoding/hex"
	"sync"

	"github.com/GoAethereal/cancel"
)

// rtuPort is shared by every RTU backend addressing the same serial port
// name. The library does not serialize concurrent requests over one port:
// callers must enforce single-writer discipline themselves. The slave
// reference-count bookkeeping is guarded by rtuRegistry.mu; no lock is
// held for a request in flight.
type rtuPort struct {
	mu     sync.Mutex
	port   serialPort
	slaves map[byte]int
}

var rtuRegistry = struct {
	mu    sync.Mutex
	ports map[string]*rtuPort
}{ports: map[string]*rtuPort{}}

// RTU is a Modbus RTU backend for one slave address on one serial port.
// Multiple RTU values dialed for the same SerialConfig.Port share a single
// underlying port, keyed by port name.
type RTU struct {
	port  *rtuPort
	name  string
	slave byte
	Trace Trace
}

// DialRTU opens (or reuses) the serial port named in cfg and registers
// slave against it.
func DialRTU(cfg SerialConfig, slave byte) (*RTU, error) {
	rtuRegistry.mu.Lock()
	defer rtuRegistry.mu.Unlock()

	p, ok := rtuRegistry.ports[cfg.Port]
	if !ok {
		sp, err := openSerial(cfg)
		if err != nil {
			return nil, err
		}
		p = &rtuPort{port: sp, slaves: map[byte]int{}}
		rtuRegistry.ports[cfg.Port] = p
	}
	p.slaves[slave]++
	return &RTU{port: p, name: cfg.Port, slave: slave}, nil
}

// Close drops this device's slave registration. When the last slave on the
// port closes, the port itself closes and is removed from the registry.
func (r *RTU) Close() error {
	rtuRegistry.mu.Lock()
	defer rtuRegistry.mu.Unlock()

	r.port.slaves[r.slave]--
	if r.port.slaves[r.slave] <= 0 {
		delete(r.port.slaves, r.slave)
	}
	if len(r.port.slaves) == 0 {
		delete(rtuRegistry.ports, r.name)
		return r.port.port.Close()
	}
	return nil
}

func (r *RTU) Read(_ cancel.Context, addr, count uint16, fn Func) ([]byte, error) {
	return split(addr, count, func(a, n uint16) ([]byte, error) {
		return r.readRegisters(byte(fn), a, n)
	})
}

func (r *RTU) Write(_ cancel.Context, addr uint16, data []byte) error {
	return r.writeRegisters(addr, data)
}

func (r *RTU) readRegisters(fn byte, addr, count uint16) ([]byte, error) {
	req := make([]byte, 0, 8)
	req = append(req, r.slave, fn, 0, 0, 0, 0)
	binary.BigEndian.PutUint16(req[2:], addr)
	binary.BigEndian.PutUint16(req[4:], count)
	req = putCRC(req)
	r.trace("tx", req)

	if _, err := r.port.port.Write(req); err != nil {
		return nil, err
	}

	head := make([]byte, 3)
	if err := readFull(r.port.port, head); err != nil {
		return nil, err
	}
	if head[1]&0x80 != 0 {
		rest := make([]byte, 2)
		if err := readFull(r.port.port, rest); err != nil {
			return nil, err
		}
		frame := append(head, rest...)
		r.trace("rx", frame)
		if !checkCRC(frame) {
			return nil, &ProtocolError{Reason: "bad crc on exception response"}
		}
		return nil, &Exception{Code: frame[2]}
	}

	byteCount := head[2]
	rest := make([]byte, int(byteCount)+2)
	if err := readFull(r.port.port, rest); err != nil {
		return nil, err
	}
	frame := append(head, rest...)
	r.trace("rx", frame)
	if !checkCRC(frame) {
		return nil, &ProtocolError{Reason: "bad crc"}
	}
	if frame[0] != r.slave || frame[1] != fn || int(byteCount) != 2*int(count) {
		return nil, &ProtocolError{Reason: "response does not match request"}
	}
	return frame[3 : 3+int(byteCount)], nil
}

func (r *RTU) writeRegisters(addr uint16, data []byte) error {
	count := uint16(len(data) / 2)
	req := make([]byte, 0, 9+len(data))
	req = append(req, r.slave, byte(write), 0, 0, 0, 0, byte(len(data)))
	binary.BigEndian.PutUint16(req[2:], addr)
	binary.BigEndian.PutUint16(req[4:], count)
	req = append(req, data...)
	req = putCRC(req)
	r.trace("tx", req)

	if _, err := r.port.port.Write(req); err != nil {
		return err
	}

	head := make([]byte, 2)
	if err := readFull(r.port.port, head); err != nil {
		return err
	}
	if head[1]&0x80 != 0 {
		rest := make([]byte, 3)
		if err := readFull(r.port.port, rest); err != nil {
			return err
		}
		frame := append(head, rest...)
		r.trace("rx", frame)
		if !checkCRC(frame) {
			return &ProtocolError{Reason: "bad crc on exception response"}
		}
		return &Exception{Code: frame[2]}
	}
	rest := make([]byte, 6)
	if err := readFull(r.port.port, rest); err != nil {
		return err
	}
	frame := append(head, rest...)
	r.trace("rx", frame)
	if !checkCRC(frame) {
		return &ProtocolError{Reason: "bad crc"}
	}
	if binary.BigEndian.Uint16(frame[2:]) != addr || binary.BigEndian.Uint16(frame[4:]) != count {
		return &ProtocolError{Reason: "response does not match request"}
	}
	return nil
}

func (r *RTU) trace(direction string, frame []byte) {
	if r.Trace != nil {
		r.Trace(direction, hex.EncodeToString(frame))
	}
}

// readFull reads exactly len(buf) bytes. A read that returns zero bytes
// with no error means the port's deadline elapsed with nothing received,
// which is reported as Timeout.
func readFull(port serialPort, buf []byte) error {
	got := 0
	for got < len(buf) {
		n, err := port.Read(buf[got:])
		if err != nil {
			return err
		}
		if n == 0 {
			return &Timeout{Op: "rtu read"}
		}
		got += n
	}
	return nil
}
