package modbus

import (
	"time"

	"go.bug.st/serial"
)

// SerialConfig configures the physical serial port backing an RTU
// transport. Framing is fixed at 8 data bits, 1 stop bit; Parity selects
// between none and even, matching the SunSpec RTU profile.
type SerialConfig struct {
	Port    string
	Baud    int
	Parity  string // "N" or "E"
	Timeout time.Duration
}

// Verify checks cfg for invalid parameters. If cfg is valid, no error
// (nil) is returned.
func (cfg SerialConfig) Verify() error {
	if cfg.Port == "" {
		return ErrInvalidParameter
	}
	if cfg.Baud <= 0 {
		return ErrInvalidParameter
	}
	switch cfg.Parity {
	case "N", "E":
	default:
		return ErrInvalidParameter
	}
	if cfg.Timeout < 0 {
		return ErrInvalidParameter
	}
	return nil
}

// serialPort is the minimal surface the RTU backend drives: read, write,
// discard any stale input, and close. It is satisfied by go.bug.st/serial's
// serial.Port as well as by test doubles.
type serialPort interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	ResetInputBuffer() error
	Close() error
}

// openSerial opens cfg 8-N-1 or 8-E-1 and installs cfg.Timeout (one
// second when zero) as the port's read timeout. Writes are given no
// timeout.
func openSerial(cfg SerialConfig) (serialPort, error) {
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	mode := &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		StopBits: serial.OneStopBit,
		Parity:   serial.NoParity,
	}
	if cfg.Parity == "E" {
		mode.Parity = serial.EvenParity
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, err
	}
	return port, nil
}
