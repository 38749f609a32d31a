package modbus

// fakeTCPServer is a minimal Modbus/TCP responder used only by this
// package's tests, adapted from GoAethereal/modbus's server.go/handler.go
// connection-accept loop and framer.go MBAP struct: accept a connection,
// decode MBAP+PDU, dispatch by function code against an in-memory register
// file, and reply. Connections are served one after another, never
// concurrently — the TCP backend under test opens at most one at a time,
// though in its default lazy mode it opens a fresh one for every call.

import (
	"encoding/binary"
	"net"
	"sync"
)

type fakeTCPServer struct {
	mu   sync.Mutex
	regs map[uint16][]byte // addr -> 2 bytes
	ln   net.Listener
}

func newFakeTCPServer(t interface{ Helper() }) (*fakeTCPServer, string) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(err)
	}
	s := &fakeTCPServer{regs: map[uint16][]byte{}, ln: ln}
	go s.serve()
	return s, ln.Addr().String()
}

func (s *fakeTCPServer) set(addr uint16, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i+1 < len(data); i += 2 {
		s.regs[addr+uint16(i/2)] = data[i : i+2]
	}
}

func (s *fakeTCPServer) close() { s.ln.Close() }

func (s *fakeTCPServer) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.serveConn(conn)
	}
}

func (s *fakeTCPServer) serveConn(conn net.Conn) {
	defer conn.Close()
	for {
		head := make([]byte, 7)
		if _, err := readN(conn, head); err != nil {
			return
		}
		length := binary.BigEndian.Uint16(head[4:6])
		body := make([]byte, int(length)-1)
		if _, err := readN(conn, body); err != nil {
			return
		}
		unit := head[6]
		res := s.handle(body)
		out := make([]byte, 7, 7+len(res))
		copy(out, head[:4])
		binary.BigEndian.PutUint16(out[4:], uint16(len(res)+1))
		out[6] = unit
		out = append(out, res...)
		if _, err := conn.Write(out); err != nil {
			return
		}
	}
}

func (s *fakeTCPServer) handle(pdu []byte) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(pdu) == 0 {
		return []byte{0x80, 0x01}
	}
	switch Func(pdu[0]) {
	case Holding, Input:
		addr := binary.BigEndian.Uint16(pdu[1:])
		count := binary.BigEndian.Uint16(pdu[3:])
		data := make([]byte, 0, 2*int(count))
		for i := uint16(0); i < count; i++ {
			reg, ok := s.regs[addr+i]
			if !ok {
				reg = []byte{0, 0}
			}
			data = append(data, reg...)
		}
		return append([]byte{pdu[0], byte(len(data))}, data...)
	case write:
		addr := binary.BigEndian.Uint16(pdu[1:])
		count := binary.BigEndian.Uint16(pdu[3:])
		data := pdu[6:]
		for i := 0; i+1 < len(data); i += 2 {
			s.regs[addr+uint16(i/2)] = data[i : i+2]
		}
		res := make([]byte, 5)
		res[0] = byte(write)
		binary.BigEndian.PutUint16(res[1:], addr)
		binary.BigEndian.PutUint16(res[3:], count)
		return res
	}
	return []byte{pdu[0] | 0x80, 0x01}
}

func readN(conn net.Conn, buf []byte) (int, error) {
	got := 0
	for got < len(buf) {
		n, err := conn.Read(buf[got:])
		if err != nil {
			return got, err
		}
		got += n
	}
	return got, nil
}
