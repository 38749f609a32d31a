package modbus

import (
	"encoding/binary"
	"encoding/hex"
	"sync"

	"github.com/GoAethereal/cancel"
)

// TCP is a Modbus/TCP backend. Connections are lazy and short-lived by
// default: each call opens a session, performs one PDU, and closes it.
// Connect wraps many calls in a single session, as an explicit scan does.
type TCP struct {
	cfg   SocketConfig
	mu    sync.Mutex
	sess  *socket
	Trace Trace
}

// DialTCP constructs a TCP backend without opening a connection; the first
// request opens one lazily unless Connect was called first.
func DialTCP(cfg SocketConfig) *TCP {
	return &TCP{cfg: cfg}
}

// Connect opens a session that subsequent requests reuse until
// Disconnect is called.
func (t *TCP) Connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sess != nil {
		return nil
	}
	s, err := dialSocket(t.cfg)
	if err != nil {
		return err
	}
	t.sess = s
	return nil
}

// Disconnect closes an explicit session opened by Connect, if any.
func (t *TCP) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sess == nil {
		return nil
	}
	err := t.sess.close()
	t.sess = nil
	return err
}

func (t *TCP) Read(_ cancel.Context, addr, count uint16, fn Func) ([]byte, error) {
	return split(addr, count, func(a, n uint16) ([]byte, error) {
		pdu := make([]byte, 5)
		pdu[0] = byte(fn)
		binary.BigEndian.PutUint16(pdu[1:], a)
		binary.BigEndian.PutUint16(pdu[3:], n)
		res, err := t.call(pdu)
		if err != nil {
			return nil, err
		}
		if len(res) < 2 || int(res[1]) != 2*int(n) {
			return nil, &ProtocolError{Reason: "unexpected response size"}
		}
		return res[2 : 2+int(res[1])], nil
	})
}

func (t *TCP) Write(_ cancel.Context, addr uint16, data []byte) error {
	count := uint16(len(data) / 2)
	pdu := make([]byte, 0, 6+len(data))
	pdu = append(pdu, byte(write), 0, 0, 0, 0, byte(len(data)))
	binary.BigEndian.PutUint16(pdu[1:], addr)
	binary.BigEndian.PutUint16(pdu[3:], count)
	pdu = append(pdu, data...)
	res, err := t.call(pdu)
	if err != nil {
		return err
	}
	if len(res) < 5 || binary.BigEndian.Uint16(res[1:]) != addr || binary.BigEndian.Uint16(res[3:]) != count {
		return &ProtocolError{Reason: "unexpected write response"}
	}
	return nil
}

// call performs one request/response exchange, wrapped in an MBAP header
// with transaction id fixed at 0 (this client never has more than one
// request in flight).
func (t *TCP) call(pdu []byte) ([]byte, error) {
	t.mu.Lock()
	sess := t.sess
	ephemeral := sess == nil
	var err error
	if ephemeral {
		sess, err = dialSocket(t.cfg)
		if err != nil {
			t.mu.Unlock()
			return nil, err
		}
	}
	t.mu.Unlock()
	if ephemeral {
		defer sess.close()
	}

	header := make([]byte, 7)
	binary.BigEndian.PutUint16(header[4:], uint16(len(pdu)+1))
	header[6] = t.cfg.UnitID
	frame := append(header, pdu...)
	t.trace("tx", frame)

	if err := sess.sendall(frame); err != nil {
		return nil, err
	}

	head, err := sess.recv(6)
	if err != nil {
		return nil, err
	}
	if head[2] != 0 || head[3] != 0 {
		return nil, &ProtocolError{Reason: "non-zero protocol id"}
	}
	length := binary.BigEndian.Uint16(head[4:6])
	if length < 2 {
		return nil, &ProtocolError{Reason: "mbap length too short"}
	}
	// length counts the unit id byte plus the PDU, all still unread.
	body, err := sess.recv(int(length))
	if err != nil {
		return nil, err
	}
	t.trace("rx", append(append([]byte{}, head...), body...))

	if head[0] != 0 || head[1] != 0 {
		return nil, &ProtocolError{Reason: "unexpected transaction id"}
	}
	unit, res := body[0], body[1:]
	if unit != t.cfg.UnitID {
		return nil, &ProtocolError{Reason: "unexpected unit id"}
	}
	if res[0]&0x80 != 0 {
		return nil, &Exception{Code: res[1]}
	}
	return res, nil
}

func (t *TCP) trace(direction string, frame []byte) {
	if t.Trace != nil {
		t.Trace(direction, hex.EncodeToString(frame))
	}
}
