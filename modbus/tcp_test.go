package modbus

import (
	"testing"
	"time"

	"github.com/GoAethereal/cancel"
)

func TestTCPReadWritePartitioning(t *testing.T) {
	srv, addr := newFakeTCPServer(t)
	defer srv.close()

	for i := uint16(0); i < 200; i++ {
		srv.set(40000+i, []byte{byte(i >> 8), byte(i)})
	}

	tc := DialTCP(SocketConfig{Endpoint: addr, UnitID: 1, CallTime: 2 * time.Second})
	ctx := cancel.New()

	data, err := tc.Read(ctx, 40000, 200, Holding)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(data) != 400 {
		t.Fatalf("len(data) = %d, want 400", len(data))
	}
	for i := uint16(0); i < 200; i++ {
		got := uint16(data[2*i])<<8 | uint16(data[2*i+1])
		if got != i {
			t.Fatalf("register %d = %d, want %d", i, got, i)
		}
	}

	if err := tc.Write(ctx, 40000, []byte{0x00, 0x2A}); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err = tc.Read(ctx, 40000, 1, Holding)
	if err != nil {
		t.Fatalf("reread: %v", err)
	}
	if data[0] != 0x00 || data[1] != 0x2A {
		t.Fatalf("reread = %v, want [0 42]", data)
	}
}
